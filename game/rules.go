// Package game holds the tunable game rules and the pure state transitions
// they drive. Nothing here performs I/O; callers decide when a transition is
// committed.
package game

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tolelom/zkgame/core"
)

// Recipe turns input materials into an item after Duration has elapsed.
type Recipe struct {
	Inputs         map[string]uint64 `yaml:"inputs" json:"inputs"`
	Output         string            `yaml:"output" json:"output"`
	OutputQuantity uint64            `yaml:"output_quantity" json:"output_quantity"`
	Duration       time.Duration     `yaml:"duration" json:"duration"`
	Experience     uint64            `yaml:"experience" json:"experience"`
}

// Rules is the tunable rule set. It is loaded as the "rules" section of the
// YAML config.
type Rules struct {
	StartingCurrency   uint64                   `yaml:"starting_currency"`
	StartingReputation float64                  `yaml:"starting_reputation"`
	FirstClaimDelay    time.Duration            `yaml:"first_claim_delay"` // new players start this far behind on claims
	StartPosition      core.Position            `yaml:"start_position"`
	MoveExperience     map[core.AreaType]uint64 `yaml:"move_experience"`
	ClaimCooldown      time.Duration            `yaml:"claim_cooldown"`
	RewardPerHour      uint64                   `yaml:"reward_per_hour"`
	GatherCooldown     time.Duration            `yaml:"gather_cooldown"`
	GatherExperience   uint64                   `yaml:"gather_experience"` // per unit
	MaxGatherQuantity  uint64                   `yaml:"max_gather_quantity"`
	MaxStores          int                      `yaml:"max_stores"`
	Recipes            map[string]Recipe        `yaml:"recipes"`
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		StartingCurrency:   1000,
		StartingReputation: 1.0,
		FirstClaimDelay:    time.Hour,
		StartPosition: core.Position{
			AreaID:   1,
			AreaType: core.AreaStreet,
			Country:  "Aetheria",
			City:     "Newhaven",
			Street:   "Main Street",
		},
		MoveExperience: map[core.AreaType]uint64{
			core.AreaStreet:  5,
			core.AreaCity:    15,
			core.AreaCountry: 30,
		},
		ClaimCooldown:     time.Hour,
		RewardPerHour:     100,
		GatherCooldown:    5 * time.Minute,
		GatherExperience:  5,
		MaxGatherQuantity: 100,
		MaxStores:         10,
		Recipes: map[string]Recipe{
			"iron_sword": {
				Inputs:         map[string]uint64{"iron_ore": 3, "wood": 1},
				Output:         "iron_sword",
				OutputQuantity: 1,
				Duration:       time.Hour,
				Experience:     100,
			},
			"basic_tool": {
				Inputs:         map[string]uint64{"iron_ore": 1, "wood": 1},
				Output:         "basic_tool",
				OutputQuantity: 1,
				Duration:       15 * time.Minute,
				Experience:     25,
			},
		},
	}
}

// Validate checks internal consistency.
func (r *Rules) Validate() error {
	var errs []error
	if r.StartingReputation < 0 {
		errs = append(errs, errors.New("starting_reputation must be >= 0"))
	}
	if !r.StartPosition.AreaType.Valid() {
		errs = append(errs, fmt.Errorf("start_position.area_type %q is not a known area type", r.StartPosition.AreaType))
	}
	for t := range r.MoveExperience {
		if !t.Valid() {
			errs = append(errs, fmt.Errorf("move_experience: unknown area type %q", t))
		}
	}
	if r.ClaimCooldown < 0 || r.GatherCooldown < 0 {
		errs = append(errs, errors.New("cooldowns must be >= 0"))
	}
	if r.MaxStores <= 0 {
		errs = append(errs, errors.New("max_stores must be > 0"))
	}
	for name, rec := range r.Recipes {
		if rec.Output == "" || rec.OutputQuantity == 0 {
			errs = append(errs, fmt.Errorf("recipe %q: output and output_quantity required", name))
		}
		if rec.Duration < 0 {
			errs = append(errs, fmt.Errorf("recipe %q: negative duration", name))
		}
	}
	return errors.Join(errs...)
}

// Recipe looks up a recipe by name.
func (r *Rules) Recipe(name string) (Recipe, error) {
	rec, ok := r.Recipes[name]
	if !ok {
		return Recipe{}, fmt.Errorf("%w: recipe %q not found", core.ErrInvalidTransition, name)
	}
	return rec, nil
}

// RecipeNames lists recipes in name order.
func (r *Rules) RecipeNames() []string {
	names := make([]string, 0, len(r.Recipes))
	for n := range r.Recipes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ExperienceFor returns the experience gained by entering an area of type t.
func (r *Rules) ExperienceFor(t core.AreaType) uint64 { return r.MoveExperience[t] }

// ClaimReward computes floor(rewardPerHour · hoursElapsed · reputation).
// Negative elapsed time yields 0.
func (r *Rules) ClaimReward(elapsed time.Duration, reputation float64) uint64 {
	if elapsed <= 0 || reputation <= 0 {
		return 0
	}
	v := math.Floor(float64(r.RewardPerHour) * elapsed.Hours() * reputation)
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}
