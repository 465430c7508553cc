// Package journal keeps an append-only SQLite record of submissions,
// commits and local actions. It answers "what happened to hash X" before a
// user retries a submission whose outcome is unknown. The journal is
// advisory: player state never depends on it.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
)

// Journal is a SQLite-backed event log.
type Journal struct {
	db  *sql.DB
	log *zap.Logger

	// Now stamps rows. Tests may replace it.
	Now func() time.Time
}

// Submission is one verifier submission attempt.
type Submission struct {
	ID            int64     `json:"id"`
	Wallet        string    `json:"wallet"`
	Action        string    `json:"action"`
	Nonce         uint64    `json:"nonce"`
	Success       bool      `json:"success"`
	Hash          string    `json:"hash,omitempty"`
	Error         string    `json:"error,omitempty"`
	OldCommitment string    `json:"old_commitment"`
	NewCommitment string    `json:"new_commitment"`
	Committed     bool      `json:"committed"`
	At            time.Time `json:"at"`
}

// LocalAction is one applied local mutation.
type LocalAction struct {
	Wallet string    `json:"wallet"`
	Action string    `json:"action"`
	TxID   string    `json:"tx_id"`
	Nonce  uint64    `json:"nonce"`
	At     time.Time `json:"at"`
}

// Open opens or creates the journal at path. ":memory:" is accepted.
func Open(path string, log *zap.Logger) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal: empty db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, log: log.With(zap.String("module", "journal")), Now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wallet TEXT NOT NULL,
			action TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			success INTEGER NOT NULL,
			hash TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			old_commitment TEXT NOT NULL,
			new_commitment TEXT NOT NULL,
			committed INTEGER NOT NULL DEFAULT 0,
			at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS submissions_wallet ON submissions(wallet, id);`,
		`CREATE INDEX IF NOT EXISTS submissions_hash ON submissions(hash);`,
		`CREATE TABLE IF NOT EXISTS local_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wallet TEXT NOT NULL,
			action TEXT NOT NULL,
			tx_id TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS local_actions_wallet ON local_actions(wallet, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Attach subscribes the journal to e.
func (j *Journal) Attach(e *events.Emitter) {
	e.Subscribe(events.EventSubmitted, j.onSubmitted)
	e.Subscribe(events.EventCommitted, j.onCommitted)
	e.Subscribe(events.EventLocalApplied, j.onLocal)
}

func (j *Journal) onSubmitted(ev events.Event) {
	s := Submission{Wallet: ev.Wallet, Nonce: ev.Nonce}
	s.Action, _ = ev.Data["action"].(string)
	s.Success, _ = ev.Data["success"].(bool)
	s.Hash, _ = ev.Data["hash"].(string)
	s.Error, _ = ev.Data["error"].(string)
	s.OldCommitment, _ = ev.Data["old"].(string)
	s.NewCommitment, _ = ev.Data["new"].(string)
	if _, err := j.RecordSubmission(s); err != nil {
		j.log.Warn("record submission", zap.String("wallet", ev.Wallet), zap.Error(err))
	}
}

func (j *Journal) onCommitted(ev events.Event) {
	hash, _ := ev.Data["hash"].(string)
	if err := j.MarkCommitted(hash); err != nil {
		j.log.Warn("mark committed", zap.String("wallet", ev.Wallet), zap.String("hash", hash), zap.Error(err))
	}
}

func (j *Journal) onLocal(ev events.Event) {
	action, _ := ev.Data["action"].(string)
	_, err := j.db.Exec(`INSERT INTO local_actions(wallet, action, tx_id, nonce, at_ms) VALUES(?,?,?,?,?)`,
		ev.Wallet, action, ev.TxID, int64(ev.Nonce), j.Now().UnixMilli())
	if err != nil {
		j.log.Warn("record local action", zap.String("wallet", ev.Wallet), zap.Error(err))
	}
}

// RecordSubmission appends s and returns its row id.
func (j *Journal) RecordSubmission(s Submission) (int64, error) {
	at := s.At
	if at.IsZero() {
		at = j.Now()
	}
	res, err := j.db.Exec(`INSERT INTO submissions(wallet, action, nonce, success, hash, error,
		old_commitment, new_commitment, committed, at_ms) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		core.WalletKey(s.Wallet), s.Action, int64(s.Nonce), boolInt(s.Success), s.Hash, s.Error,
		s.OldCommitment, s.NewCommitment, boolInt(s.Committed), at.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MarkCommitted flags the accepted submission with hash as committed
// locally.
func (j *Journal) MarkCommitted(hash string) error {
	if hash == "" {
		return errors.New("journal: empty hash")
	}
	res, err := j.db.Exec(`UPDATE submissions SET committed = 1 WHERE hash = ? AND success = 1`, hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s: %w", hash, core.ErrNotFound)
	}
	return nil
}

const submissionCols = `id, wallet, action, nonce, success, hash, error, old_commitment, new_commitment, committed, at_ms`

func scanSubmission(sc interface{ Scan(...any) error }) (Submission, error) {
	var (
		s                  Submission
		nonce, atMs        int64
		success, committed int
	)
	if err := sc.Scan(&s.ID, &s.Wallet, &s.Action, &nonce, &success, &s.Hash, &s.Error,
		&s.OldCommitment, &s.NewCommitment, &committed, &atMs); err != nil {
		return Submission{}, err
	}
	s.Nonce = uint64(nonce)
	s.Success = success != 0
	s.Committed = committed != 0
	s.At = time.UnixMilli(atMs).UTC()
	return s, nil
}

// Submissions lists wallet's most recent submissions, newest first.
func (j *Journal) Submissions(wallet string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`SELECT `+submissionCols+` FROM submissions WHERE wallet = ? ORDER BY id DESC LIMIT ?`,
		core.WalletKey(wallet), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ByHash returns the submission recorded for hash.
func (j *Journal) ByHash(hash string) (Submission, error) {
	row := j.db.QueryRow(`SELECT `+submissionCols+` FROM submissions WHERE hash = ? ORDER BY id DESC LIMIT 1`, hash)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission %s: %w", hash, core.ErrNotFound)
	}
	return s, err
}

// Uncommitted lists accepted submissions that never reached the local
// store, e.g. after a persistence failure. Those need an export or a
// restore before the next proof can match the verifier.
func (j *Journal) Uncommitted(wallet string) ([]Submission, error) {
	rows, err := j.db.Query(`SELECT `+submissionCols+` FROM submissions
		WHERE wallet = ? AND success = 1 AND committed = 0 ORDER BY id`, core.WalletKey(wallet))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LocalActions lists wallet's most recent local actions, newest first.
func (j *Journal) LocalActions(wallet string, limit int) ([]LocalAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`SELECT wallet, action, tx_id, nonce, at_ms FROM local_actions
		WHERE wallet = ? ORDER BY id DESC LIMIT ?`, core.WalletKey(wallet), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LocalAction
	for rows.Next() {
		var (
			a           LocalAction
			nonce, atMs int64
		)
		if err := rows.Scan(&a.Wallet, &a.Action, &a.TxID, &nonce, &atMs); err != nil {
			return nil, err
		}
		a.Nonce = uint64(nonce)
		a.At = time.UnixMilli(atMs).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
