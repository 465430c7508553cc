package game

import (
	"fmt"
	"time"

	"github.com/tolelom/zkgame/core"
)

// MoveEffect summarises what a move changes. The prover needs it to build
// the movement witness.
type MoveEffect struct {
	From            core.Position
	To              core.Position
	ExperienceGain  uint64
	AlreadyExplored bool
}

// ClaimEffect summarises a reward claim.
type ClaimEffect struct {
	Reward      uint64
	CurrentTime int64 // unix ms
}

// ValidateMove checks the movement precondition: the target must be a known
// area type and differ from the current area.
func ValidateMove(p *core.PlayerState, areaID uint64, t core.AreaType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown area type %q", core.ErrInvalidTransition, t)
	}
	if areaID == p.Position.AreaID {
		return fmt.Errorf("%w: already in area %d", core.ErrInvalidTransition, areaID)
	}
	return nil
}

// ApplyMove moves p in place. It does not touch the nonce.
func (r *Rules) ApplyMove(p *core.PlayerState, areaID uint64, t core.AreaType) (MoveEffect, error) {
	if err := ValidateMove(p, areaID, t); err != nil {
		return MoveEffect{}, err
	}
	eff := MoveEffect{
		From:            p.Position,
		ExperienceGain:  r.ExperienceFor(t),
		AlreadyExplored: p.HasExplored(areaID),
	}
	p.Position.AreaID = areaID
	p.Position.AreaType = t
	if !eff.AlreadyExplored {
		p.ExploredAreas = append(p.ExploredAreas, core.ExploredArea{ID: areaID, Type: t})
	}
	p.Experience += eff.ExperienceGain
	eff.To = p.Position
	return eff, nil
}

// NextMove returns the state after a committed move: a modified clone with
// the nonce advanced by one.
func (r *Rules) NextMove(p *core.PlayerState, areaID uint64, t core.AreaType) (*core.PlayerState, MoveEffect, error) {
	next := p.Clone()
	eff, err := r.ApplyMove(next, areaID, t)
	if err != nil {
		return nil, MoveEffect{}, err
	}
	next.Nonce++
	return next, eff, nil
}

// ValidateClaim checks that the claim cooldown has elapsed at now.
func (r *Rules) ValidateClaim(p *core.PlayerState, now time.Time) error {
	elapsed := time.Duration(now.UnixMilli()-p.LastClaimTime) * time.Millisecond
	if elapsed < r.ClaimCooldown {
		return fmt.Errorf("%w: %w: next claim in %s", core.ErrInvalidTransition, core.ErrCooldownActive,
			(r.ClaimCooldown - elapsed).Round(time.Second))
	}
	return nil
}

// ApplyClaim credits the time reward to p in place.
func (r *Rules) ApplyClaim(p *core.PlayerState, now time.Time) (ClaimEffect, error) {
	if err := r.ValidateClaim(p, now); err != nil {
		return ClaimEffect{}, err
	}
	ms := now.UnixMilli()
	eff := ClaimEffect{
		Reward:      r.ClaimReward(time.Duration(ms-p.LastClaimTime)*time.Millisecond, p.Reputation),
		CurrentTime: ms,
	}
	p.Currency += eff.Reward
	p.LastClaimTime = ms
	return eff, nil
}

// NextClaim returns the state after a committed claim.
func (r *Rules) NextClaim(p *core.PlayerState, now time.Time) (*core.PlayerState, ClaimEffect, error) {
	next := p.Clone()
	eff, err := r.ApplyClaim(next, now)
	if err != nil {
		return nil, ClaimEffect{}, err
	}
	next.Nonce++
	return next, eff, nil
}

// ApplyGather adds quantity units of resource and stamps the gather time.
func (r *Rules) ApplyGather(p *core.PlayerState, resource string, quantity uint64, now time.Time) error {
	if resource == "" || core.IsGatherKey(resource) {
		return fmt.Errorf("%w: invalid resource %q", core.ErrInvalidTransition, resource)
	}
	if quantity == 0 || (r.MaxGatherQuantity > 0 && quantity > r.MaxGatherQuantity) {
		return fmt.Errorf("%w: quantity must be between 1 and %d", core.ErrInvalidTransition, r.MaxGatherQuantity)
	}
	ms := now.UnixMilli()
	key := core.GatherKey(resource)
	if last, ok := p.Inventory[key]; ok {
		elapsed := time.Duration(ms-int64(last)) * time.Millisecond
		if elapsed < r.GatherCooldown {
			return fmt.Errorf("%w: %w: %s can be gathered again in %s", core.ErrInvalidTransition, core.ErrCooldownActive,
				resource, (r.GatherCooldown - elapsed).Round(time.Second))
		}
	}
	if p.Inventory == nil {
		p.Inventory = map[string]uint64{}
	}
	p.Inventory[resource] += quantity
	p.Inventory[key] = uint64(ms)
	p.Experience += quantity * r.GatherExperience
	return nil
}

// CheckMaterials verifies p holds every input of rec.
func CheckMaterials(p *core.PlayerState, name string, rec Recipe) error {
	for item, need := range rec.Inputs {
		if have := p.Inventory[item]; have < need {
			return fmt.Errorf("%w: insufficient %s for %s: have %d need %d", core.ErrInvalidTransition, item, name, have, need)
		}
	}
	return nil
}

// NewCraft validates that recipe can start for p and returns the craft
// record. The player state itself is not modified.
func (r *Rules) NewCraft(p *core.PlayerState, recipe, craftID string, now time.Time) (core.CraftInProgress, error) {
	rec, err := r.Recipe(recipe)
	if err != nil {
		return core.CraftInProgress{}, err
	}
	if err := CheckMaterials(p, recipe, rec); err != nil {
		return core.CraftInProgress{}, err
	}
	return core.CraftInProgress{
		CraftID:      craftID,
		RecipeName:   recipe,
		StartTime:    now.UnixMilli(),
		RequiredTime: rec.Duration.Milliseconds(),
		Status:       core.CraftComputing,
	}, nil
}

// ApplyCraft completes c on p: consumes materials, adds the output and the
// recipe experience.
func (r *Rules) ApplyCraft(p *core.PlayerState, c core.CraftInProgress, now time.Time) error {
	if !c.ReadyAt(now) {
		return fmt.Errorf("%w: craft %s not ready, %s remaining", core.ErrInvalidTransition, c.CraftID,
			c.Remaining(now).Round(time.Second))
	}
	rec, err := r.Recipe(c.RecipeName)
	if err != nil {
		return err
	}
	if err := CheckMaterials(p, c.RecipeName, rec); err != nil {
		return err
	}
	if p.Inventory == nil {
		p.Inventory = map[string]uint64{}
	}
	for item, need := range rec.Inputs {
		p.Inventory[item] -= need
	}
	p.Inventory[rec.Output] += rec.OutputQuantity
	p.Experience += rec.Experience
	return nil
}

// ApplyBuyStore spends price and records a new store. Store ids are the
// purchase time in ms, bumped past any id already owned.
func (r *Rules) ApplyBuyStore(p *core.PlayerState, price uint64, now time.Time) (uint64, error) {
	if p.Currency < price {
		return 0, fmt.Errorf("%w: insufficient currency: need %d have %d", core.ErrInvalidTransition, price, p.Currency)
	}
	if len(p.OwnedStores) >= r.MaxStores {
		return 0, fmt.Errorf("%w: maximum stores per player (%d) reached", core.ErrInvalidTransition, r.MaxStores)
	}
	id := uint64(now.UnixMilli())
	for _, s := range p.OwnedStores {
		if s >= id {
			id = s + 1
		}
	}
	p.Currency -= price
	p.OwnedStores = append(p.OwnedStores, id)
	return id, nil
}
