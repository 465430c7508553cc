package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const maxActiveCrafts = 32

// CraftStatus tracks a craft through its lifetime.
type CraftStatus string

const (
	CraftComputing CraftStatus = "computing"
	CraftReady     CraftStatus = "ready"
	CraftCompleted CraftStatus = "completed"
)

// CraftInProgress is a timed recipe. It is not part of the committed state.
type CraftInProgress struct {
	CraftID      string      `json:"craft_id"`
	RecipeName   string      `json:"recipe_name"`
	StartTime    int64       `json:"start_time"`    // unix ms
	RequiredTime int64       `json:"required_time"` // ms
	Status       CraftStatus `json:"status"`
}

// ReadyAt reports whether the craft's required time has elapsed at now.
func (c *CraftInProgress) ReadyAt(now time.Time) bool {
	return now.UnixMilli()-c.StartTime >= c.RequiredTime
}

// Remaining returns how long until the craft is ready (0 when ready).
func (c *CraftInProgress) Remaining(now time.Time) time.Duration {
	left := c.RequiredTime - (now.UnixMilli() - c.StartTime)
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * time.Millisecond
}

// CraftQueue is a thread-safe set of one player's active crafts, iterated in
// start order.
type CraftQueue struct {
	mu     sync.RWMutex
	crafts map[string]*CraftInProgress
	ord    []string
}

// NewCraftQueue creates a queue seeded with crafts (e.g. loaded from disk).
func NewCraftQueue(crafts ...CraftInProgress) *CraftQueue {
	q := &CraftQueue{crafts: make(map[string]*CraftInProgress)}
	for i := range crafts {
		c := crafts[i]
		q.crafts[c.CraftID] = &c
		q.ord = append(q.ord, c.CraftID)
	}
	return q
}

// Add inserts a new craft.
func (q *CraftQueue) Add(c CraftInProgress) error {
	if c.CraftID == "" {
		return errors.New("craft id required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.crafts) >= maxActiveCrafts {
		return fmt.Errorf("%w: at most %d active crafts", ErrInvalidTransition, maxActiveCrafts)
	}
	if _, exists := q.crafts[c.CraftID]; exists {
		return fmt.Errorf("%w: craft %q", ErrAlreadyExists, c.CraftID)
	}
	q.crafts[c.CraftID] = &c
	q.ord = append(q.ord, c.CraftID)
	return nil
}

// Get returns a copy of the craft with id.
func (q *CraftQueue) Get(id string) (CraftInProgress, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	c, ok := q.crafts[id]
	if !ok {
		return CraftInProgress{}, false
	}
	return *c, true
}

// MarkReady flips every computing craft whose time has elapsed to ready and
// returns the ones that changed.
func (q *CraftQueue) MarkReady(now time.Time) []CraftInProgress {
	q.mu.Lock()
	defer q.mu.Unlock()
	var changed []CraftInProgress
	for _, id := range q.ord {
		c := q.crafts[id]
		if c.Status == CraftComputing && c.ReadyAt(now) {
			c.Status = CraftReady
			changed = append(changed, *c)
		}
	}
	return changed
}

// Remove deletes crafts by ID (called after completion).
func (q *CraftQueue) Remove(ids ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(q.crafts, id)
		removed[id] = true
	}
	filtered := q.ord[:0]
	for _, id := range q.ord {
		if !removed[id] {
			filtered = append(filtered, id)
		}
	}
	q.ord = filtered
}

// List returns copies of all crafts in start order.
func (q *CraftQueue) List() []CraftInProgress {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]CraftInProgress, 0, len(q.ord))
	for _, id := range q.ord {
		out = append(out, *q.crafts[id])
	}
	return out
}

// Size returns the number of active crafts.
func (q *CraftQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.crafts)
}
