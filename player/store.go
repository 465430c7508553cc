// Package player owns the canonical PlayerState of every local player. All
// writes go through Store, which serialises them, persists synchronously and
// hands out deep copies only.
package player

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/commitment"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
	"github.com/tolelom/zkgame/game"
	"github.com/tolelom/zkgame/storage"
)

// Mutation edits a working copy of the player state. Returning an error
// discards the copy.
type Mutation func(p *core.PlayerState) error

// Store is the single writer of player state.
type Store struct {
	db      *storage.PlayerDB
	rules   *game.Rules
	log     *zap.Logger
	emitter *events.Emitter

	// Now is the clock used for creation times. Tests may replace it.
	Now func() time.Time

	mu      sync.Mutex
	players map[string]*core.PlayerState
	crafts  map[string]*core.CraftQueue
}

// NewStore creates a Store over db.
func NewStore(db *storage.PlayerDB, rules *game.Rules, log *zap.Logger, emitter *events.Emitter) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:      db,
		rules:   rules,
		log:     log.With(zap.String("module", "player")),
		emitter: emitter,
		Now:     time.Now,
		players: make(map[string]*core.PlayerState),
		crafts:  make(map[string]*core.CraftQueue),
	}
}

// current returns the live (uncopied) state. Caller holds s.mu.
func (s *Store) current(wallet string) (*core.PlayerState, error) {
	key := core.WalletKey(wallet)
	if p, ok := s.players[key]; ok {
		return p, nil
	}
	p, err := s.db.GetPlayer(key)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("player for wallet %q: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.players[key] = p
	return p, nil
}

// install makes p the live state and persists it. On a storage failure the
// in-memory state is kept and ErrPersistenceFailed is returned alongside it.
// Caller holds s.mu.
func (s *Store) install(p *core.PlayerState) error {
	key := core.WalletKey(p.WalletAddress)
	s.players[key] = p
	if err := s.db.PutPlayer(p); err != nil {
		s.log.Warn("persist failed; state kept in memory, export recommended",
			zap.String("wallet", key), zap.Uint64("nonce", p.Nonce), zap.Error(err))
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	return nil
}

// Create makes a new player for wallet. It fails with ErrAlreadyExists if a
// player is already stored for that wallet; callers should Load instead.
func (s *Store) Create(name, wallet string) (*core.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.current(wallet); err == nil {
		return nil, fmt.Errorf("player for wallet %q: %w", core.WalletKey(wallet), core.ErrAlreadyExists)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	p, err := s.rules.NewPlayer(name, wallet, s.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidTransition, err)
	}
	perr := s.install(p)
	s.log.Info("player created", zap.String("wallet", core.WalletKey(wallet)), zap.String("player_id", p.PlayerID))
	s.emitter.Emit(events.Event{
		Type:   events.EventPlayerCreated,
		Wallet: core.WalletKey(wallet),
		Data:   map[string]any{"player_id": p.PlayerID, "name": p.Name},
	})
	return p.Clone(), perr
}

// Load returns a snapshot of the wallet's state or ErrNotFound.
func (s *Store) Load(wallet string) (*core.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.current(wallet)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// ApplyLocalMutation runs mutate on a copy of the current state, advances
// the nonce by one and persists. Used for actions the verifier never sees.
func (s *Store) ApplyLocalMutation(wallet string, mutate Mutation) (*core.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.current(wallet)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.PlayerID = cur.PlayerID
	next.WalletAddress = cur.WalletAddress
	next.Nonce = cur.Nonce + 1
	perr := s.install(next)
	return next.Clone(), perr
}

// CommitTransition stores next as the successor of old. next must carry
// old's nonce plus one, and old must still be the current state (same
// nonce and same commitment); anything else is ErrNonceMismatch.
func (s *Store) CommitTransition(old, next *core.PlayerState) error {
	if old == nil || next == nil {
		return fmt.Errorf("%w: nil state", core.ErrInvalidTransition)
	}
	if next.Nonce != old.Nonce+1 {
		return fmt.Errorf("%w: expected %d got %d", core.ErrNonceMismatch, old.Nonce+1, next.Nonce)
	}
	if next.PlayerID != old.PlayerID || core.WalletKey(next.WalletAddress) != core.WalletKey(old.WalletAddress) {
		return fmt.Errorf("%w: transition changes player identity", core.ErrInvalidTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.current(old.WalletAddress)
	if err != nil {
		return err
	}
	if cur.Nonce != old.Nonce {
		return fmt.Errorf("%w: base state nonce %d is stale, current is %d", core.ErrNonceMismatch, old.Nonce, cur.Nonce)
	}
	if !commitment.Commit(cur, commitment.VariantSum).Equal(commitment.Commit(old, commitment.VariantSum)) {
		return fmt.Errorf("%w: state at nonce %d was replaced after the transition started", core.ErrNonceMismatch, cur.Nonce)
	}
	return s.install(next.Clone())
}

// Replace installs p as the current state without nonce checks. Used by
// import and backup restore, which are explicit user overrides.
func (s *Store) Replace(p *core.PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, err := s.current(p.WalletAddress); err == nil && prev.Nonce > p.Nonce {
		s.log.Warn("replacing state with an older nonce; the verifier may reject the next proof",
			zap.String("wallet", core.WalletKey(p.WalletAddress)), zap.Uint64("current", prev.Nonce), zap.Uint64("restored", p.Nonce))
	}
	err := s.install(p.Clone())
	s.emitter.Emit(events.Event{
		Type:   events.EventPlayerRestored,
		Wallet: core.WalletKey(p.WalletAddress),
		Nonce:  p.Nonce,
	})
	return err
}

// Export renders the wallet's current state as a portable save document.
func (s *Store) Export(wallet string) ([]byte, error) {
	p, err := s.Load(wallet)
	if err != nil {
		return nil, err
	}
	return storage.Export(p, s.Now())
}

// Import validates a save document and installs its player. If wallet is
// non-empty the imported player is rebound to it.
func (s *Store) Import(data []byte, wallet string) (*core.PlayerState, error) {
	doc, err := storage.ParseExport(data)
	if err != nil {
		return nil, err
	}
	p := doc.Player
	if wallet != "" {
		p.WalletAddress = wallet
	}
	if err := s.Replace(p); err != nil {
		return p.Clone(), err
	}
	return p.Clone(), nil
}

// Backups lists the wallet's saved snapshots, newest first.
func (s *Store) Backups(wallet string) ([]storage.BackupInfo, error) {
	return s.db.Backups(wallet)
}

// RestoreBackup makes backup id the current state.
func (s *Store) RestoreBackup(wallet, id string) (*core.PlayerState, error) {
	p, err := s.db.LoadBackup(wallet, id)
	if err != nil {
		return nil, err
	}
	if err := s.Replace(p); err != nil {
		return p.Clone(), err
	}
	return p.Clone(), nil
}

// Players lists stored wallets.
func (s *Store) Players() ([]string, error) { return s.db.Players() }

// Info summarises local storage.
func (s *Store) Info() (storage.Info, error) { return s.db.Info() }

// ClearAll deletes every local player, backup and craft.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.ClearAll(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	s.players = make(map[string]*core.PlayerState)
	s.crafts = make(map[string]*core.CraftQueue)
	s.log.Info("local storage cleared")
	return nil
}
