package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	j.Now = func() time.Time { return now }
	return j
}

func submitted(wallet string, nonce uint64, ok bool, hash string) events.Event {
	return events.Event{
		Type:   events.EventSubmitted,
		Wallet: wallet,
		Nonce:  nonce,
		Data: map[string]any{
			"action":  "move",
			"success": ok,
			"hash":    hash,
			"old":     "11",
			"new":     "22",
		},
	}
}

func TestJournalFollowsEvents(t *testing.T) {
	j := openTemp(t)
	e := events.NewEmitter(nil)
	j.Attach(e)

	e.Emit(submitted("0xa", 0, false, ""))
	e.Emit(submitted("0xa", 0, true, "0xh1"))
	e.Emit(events.Event{Type: events.EventCommitted, Wallet: "0xa", Nonce: 1, Data: map[string]any{"hash": "0xh1"}})
	e.Emit(submitted("0xa", 1, true, "0xh2"))
	e.Emit(events.Event{Type: events.EventLocalApplied, Wallet: "0xa", TxID: "tx1", Nonce: 3,
		Data: map[string]any{"action": "gather"}})

	subs, err := j.Submissions("0xA", 10)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "0xh2", subs[0].Hash)
	assert.False(t, subs[0].Committed)
	assert.True(t, subs[1].Committed)
	assert.False(t, subs[2].Success)
	assert.Equal(t, "22", subs[1].NewCommitment)

	pending, err := j.Uncommitted("0xa")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(1), pending[0].Nonce)

	got, err := j.ByHash("0xh1")
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), got.At)

	local, err := j.LocalActions("0xa", 0)
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, LocalAction{Wallet: "0xa", Action: "gather", TxID: "tx1", Nonce: 3, At: got.At}, local[0])
}

func TestLookupMisses(t *testing.T) {
	j := openTemp(t)
	_, err := j.ByHash("0xmissing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, j.MarkCommitted("0xmissing"), core.ErrNotFound)
	assert.Error(t, j.MarkCommitted(""))

	subs, err := j.Submissions("0xa", 5)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	_, err = j.RecordSubmission(Submission{Wallet: "0xa", Action: "claim", Success: true, Hash: "0xh"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()
	s, err := j.ByHash("0xh")
	require.NoError(t, err)
	assert.Equal(t, "claim", s.Action)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}
