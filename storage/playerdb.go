package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/tolelom/zkgame/core"
)

// DefaultMaxBackups bounds each player's backup history.
const DefaultMaxBackups = 10

// Key layout:
//
//	player:<wallet>                     JSON PlayerState
//	backup:<wallet>:<stamp>:<uuid>      zstd(JSON backupRecord)
//	crafts:<wallet>                     JSON []CraftInProgress
const (
	prefixPlayer = "player:"
	prefixBackup = "backup:"
	prefixCrafts = "crafts:"
)

var localPrefixes = []string{prefixPlayer, prefixBackup, prefixCrafts}

// BackupInfo describes one saved snapshot without its payload.
type BackupInfo struct {
	ID        string `json:"id"`
	Wallet    string `json:"wallet"`
	CreatedAt int64  `json:"created_at"` // unix ms
	Nonce     uint64 `json:"nonce"`
	Size      int    `json:"size"` // compressed bytes
}

type backupRecord struct {
	ID        string            `json:"id"`
	CreatedAt int64             `json:"created_at"`
	Player    *core.PlayerState `json:"player"`
}

// Info summarises what is held locally.
type Info struct {
	Players int   `json:"players"`
	Backups int   `json:"backups"`
	Crafts  int   `json:"crafts"`
	Bytes   int64 `json:"bytes"`
}

// PlayerDB stores player records on top of a DB. Every PutPlayer also
// appends a compressed backup in the same atomic batch and evicts the
// oldest ones beyond the configured capacity.
type PlayerDB struct {
	db         DB
	maxBackups int
	enc        *zstd.Encoder
	dec        *zstd.Decoder

	mu        sync.Mutex
	lastStamp int64
}

// NewPlayerDB wraps db. maxBackups <= 0 selects DefaultMaxBackups.
func NewPlayerDB(db DB, maxBackups int) (*PlayerDB, error) {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &PlayerDB{db: db, maxBackups: maxBackups, enc: enc, dec: dec}, nil
}

// Close releases the codecs. The underlying DB is owned by the caller.
func (s *PlayerDB) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

// DB returns the backing store so other components can share it under
// their own prefixes.
func (s *PlayerDB) DB() DB { return s.db }

// ---- players ----

// GetPlayer loads the player stored under wallet or returns core.ErrNotFound.
func (s *PlayerDB) GetPlayer(wallet string) (*core.PlayerState, error) {
	data, err := s.db.Get([]byte(prefixPlayer + core.WalletKey(wallet)))
	if err != nil {
		return nil, err
	}
	var p core.PlayerState
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode player %q: %w", wallet, err)
	}
	return &p, nil
}

// HasPlayer reports whether a record exists for wallet.
func (s *PlayerDB) HasPlayer(wallet string) (bool, error) {
	_, err := s.db.Get([]byte(prefixPlayer + core.WalletKey(wallet)))
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// PutPlayer writes p and a backup of it atomically.
func (s *PlayerDB) PutPlayer(p *core.PlayerState) error {
	wallet := core.WalletKey(p.WalletAddress)
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	now := time.Now()
	rec := backupRecord{ID: uuid.NewString(), CreatedAt: now.UnixMilli(), Player: p}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	existing, err := s.backupKeys(wallet)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	batch.Set([]byte(prefixPlayer+wallet), data)
	batch.Set([]byte(s.backupKey(wallet, now, rec.ID)), s.enc.EncodeAll(raw, nil))
	// existing is oldest first; keep room for the one just added.
	if over := len(existing) + 1 - s.maxBackups; over > 0 {
		for _, k := range existing[:over] {
			batch.Delete([]byte(k))
		}
	}
	return batch.Write()
}

// Players lists the wallet keys that have a stored record.
func (s *PlayerDB) Players() ([]string, error) {
	var out []string
	it := s.db.NewIterator([]byte(prefixPlayer))
	defer it.Release()
	for it.Next() {
		out = append(out, strings.TrimPrefix(string(it.Key()), prefixPlayer))
	}
	return out, it.Error()
}

// ---- backups ----

// backupKey builds a key that sorts by creation time. Stamps are forced to
// be strictly increasing so two saves within one clock tick keep order.
func (s *PlayerDB) backupKey(wallet string, now time.Time, id string) string {
	s.mu.Lock()
	stamp := now.UnixNano()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	s.mu.Unlock()
	return fmt.Sprintf("%s%s:%020d:%s", prefixBackup, wallet, stamp, id)
}

func (s *PlayerDB) backupKeys(wallet string) ([]string, error) {
	var keys []string
	it := s.db.NewIterator([]byte(prefixBackup + wallet + ":"))
	defer it.Release()
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *PlayerDB) decodeBackup(raw []byte) (*backupRecord, error) {
	plain, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	var rec backupRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if rec.Player == nil {
		return nil, errors.New("backup has no player")
	}
	return &rec, nil
}

// Backups returns wallet's backups, newest first.
func (s *PlayerDB) Backups(wallet string) ([]BackupInfo, error) {
	wallet = core.WalletKey(wallet)
	keys, err := s.backupKeys(wallet)
	if err != nil {
		return nil, err
	}
	out := make([]BackupInfo, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		raw, err := s.db.Get([]byte(keys[i]))
		if err != nil {
			return nil, err
		}
		rec, err := s.decodeBackup(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, BackupInfo{
			ID:        rec.ID,
			Wallet:    wallet,
			CreatedAt: rec.CreatedAt,
			Nonce:     rec.Player.Nonce,
			Size:      len(raw),
		})
	}
	return out, nil
}

// LoadBackup returns the player snapshot saved under backup id.
func (s *PlayerDB) LoadBackup(wallet, id string) (*core.PlayerState, error) {
	wallet = core.WalletKey(wallet)
	keys, err := s.backupKeys(wallet)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if !strings.HasSuffix(k, ":"+id) {
			continue
		}
		raw, err := s.db.Get([]byte(k))
		if err != nil {
			return nil, err
		}
		rec, err := s.decodeBackup(raw)
		if err != nil {
			return nil, err
		}
		return rec.Player, nil
	}
	return nil, fmt.Errorf("backup %q: %w", id, core.ErrNotFound)
}

// ---- crafts ----

// GetCrafts returns wallet's active crafts (empty if none).
func (s *PlayerDB) GetCrafts(wallet string) ([]core.CraftInProgress, error) {
	data, err := s.db.Get([]byte(prefixCrafts + core.WalletKey(wallet)))
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var crafts []core.CraftInProgress
	if err := json.Unmarshal(data, &crafts); err != nil {
		return nil, fmt.Errorf("decode crafts: %w", err)
	}
	return crafts, nil
}

// PutCrafts replaces wallet's active crafts. An empty list deletes the key.
func (s *PlayerDB) PutCrafts(wallet string, crafts []core.CraftInProgress) error {
	key := []byte(prefixCrafts + core.WalletKey(wallet))
	if len(crafts) == 0 {
		return s.db.Delete(key)
	}
	data, err := json.Marshal(crafts)
	if err != nil {
		return err
	}
	return s.db.Set(key, data)
}

// ---- maintenance ----

// ClearAll deletes every player, backup and craft. Other prefixes sharing
// the DB are left alone.
func (s *PlayerDB) ClearAll() error {
	batch := s.db.NewBatch()
	for _, prefix := range localPrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
		err := it.Error()
		it.Release()
		if err != nil {
			return err
		}
	}
	return batch.Write()
}

// Info counts stored records and their raw value sizes.
func (s *PlayerDB) Info() (Info, error) {
	var info Info
	for _, prefix := range localPrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			info.Bytes += int64(len(it.Key()) + len(it.Value()))
			switch prefix {
			case prefixPlayer:
				info.Players++
			case prefixBackup:
				info.Backups++
			case prefixCrafts:
				info.Crafts++
			}
		}
		err := it.Error()
		it.Release()
		if err != nil {
			return Info{}, err
		}
	}
	return info, nil
}
