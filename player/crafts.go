package player

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
)

// crafts returns the wallet's queue, loading it on first use. Caller holds s.mu.
func (s *Store) craftQueue(wallet string) (*core.CraftQueue, error) {
	key := core.WalletKey(wallet)
	if q, ok := s.crafts[key]; ok {
		return q, nil
	}
	list, err := s.db.GetCrafts(key)
	if err != nil {
		return nil, err
	}
	q := core.NewCraftQueue(list...)
	s.crafts[key] = q
	return q, nil
}

// Crafts returns the wallet's active craft queue. The queue is shared; use
// SaveCrafts after changing it.
func (s *Store) Crafts(wallet string) (*core.CraftQueue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.craftQueue(wallet)
}

// SaveCrafts persists the wallet's queue.
func (s *Store) SaveCrafts(wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.craftQueue(wallet)
	if err != nil {
		return err
	}
	if err := s.db.PutCrafts(wallet, q.List()); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	return nil
}

// StartCraft registers a new craft after checking the recipe and materials.
// The player state and nonce are untouched; materials are consumed when the
// craft completes.
func (s *Store) StartCraft(wallet, recipe string) (core.CraftInProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.current(wallet)
	if err != nil {
		return core.CraftInProgress{}, err
	}
	q, err := s.craftQueue(wallet)
	if err != nil {
		return core.CraftInProgress{}, err
	}
	c, err := s.rules.NewCraft(p, recipe, "craft_"+uuid.NewString(), s.Now())
	if err != nil {
		return core.CraftInProgress{}, err
	}
	if err := q.Add(c); err != nil {
		return core.CraftInProgress{}, err
	}
	s.log.Info("craft started", zap.String("wallet", core.WalletKey(wallet)), zap.String("craft_id", c.CraftID),
		zap.String("recipe", recipe))
	s.emitter.Emit(events.Event{
		Type:   events.EventCraftStarted,
		Wallet: core.WalletKey(wallet),
		Nonce:  p.Nonce,
		Data:   map[string]any{"craft_id": c.CraftID, "recipe": recipe, "required_ms": c.RequiredTime},
	})
	if err := s.db.PutCrafts(wallet, q.List()); err != nil {
		return c, fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	return c, nil
}

// ReadyCraft pairs a craft that just became ready with its owner.
type ReadyCraft struct {
	Wallet string
	Craft  core.CraftInProgress
}

// MarkReadyCrafts flips every loaded craft whose time has elapsed to ready.
func (s *Store) MarkReadyCrafts() []ReadyCraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	var out []ReadyCraft
	for wallet, q := range s.crafts {
		changed := q.MarkReady(now)
		for _, c := range changed {
			out = append(out, ReadyCraft{Wallet: wallet, Craft: c})
		}
		if len(changed) > 0 {
			if err := s.db.PutCrafts(wallet, q.List()); err != nil {
				s.log.Warn("persist crafts", zap.String("wallet", wallet), zap.Error(err))
			}
		}
	}
	return out
}
