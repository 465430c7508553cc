package storage_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/internal/testutil"
	"github.com/tolelom/zkgame/storage"
)

func newPlayer(wallet string, nonce uint64) *core.PlayerState {
	return &core.PlayerState{
		PlayerID:      "1700000000000",
		Name:          "Alice",
		WalletAddress: wallet,
		Position:      core.Position{AreaID: 1, AreaType: core.AreaStreet},
		Inventory:     map[string]uint64{"wood": 2},
		Currency:      1000,
		Reputation:    1,
		LastClaimTime: 1699999000000,
		OwnedStores:   []uint64{},
		ExploredAreas: []core.ExploredArea{{ID: 1, Type: core.AreaStreet}},
		Nonce:         nonce,
	}
}

func TestPutGetPlayer(t *testing.T) {
	pdb, _ := testutil.NewPlayerDB()

	_, err := pdb.GetPlayer("0xABC")
	require.ErrorIs(t, err, core.ErrNotFound)

	p := newPlayer("0xABC", 0)
	require.NoError(t, pdb.PutPlayer(p))

	got, err := pdb.GetPlayer("0xabc")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	ok, err := pdb.HasPlayer("0xabc")
	require.NoError(t, err)
	assert.True(t, ok)

	players, err := pdb.Players()
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabc"}, players)
}

func TestEmptyWalletUsesDefaultKey(t *testing.T) {
	pdb, db := testutil.NewPlayerDB()
	require.NoError(t, pdb.PutPlayer(newPlayer("", 0)))

	_, err := db.Get([]byte("player:default"))
	require.NoError(t, err)
	_, err = pdb.GetPlayer("")
	require.NoError(t, err)
}

func TestBackupRingEvictsOldest(t *testing.T) {
	pdb, _ := testutil.NewPlayerDB()
	for n := uint64(0); n < 13; n++ {
		require.NoError(t, pdb.PutPlayer(newPlayer("w", n)))
	}

	backups, err := pdb.Backups("w")
	require.NoError(t, err)
	require.Len(t, backups, storage.DefaultMaxBackups)
	// Newest first: nonces 12 down to 3.
	for i, b := range backups {
		assert.Equal(t, uint64(12-i), b.Nonce, "backup %d", i)
		assert.Positive(t, b.Size)
	}

	restored, err := pdb.LoadBackup("w", backups[len(backups)-1].ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), restored.Nonce)

	_, err = pdb.LoadBackup("w", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBackupsAreIsolatedPerWallet(t *testing.T) {
	pdb, _ := testutil.NewPlayerDB()
	require.NoError(t, pdb.PutPlayer(newPlayer("a", 0)))
	require.NoError(t, pdb.PutPlayer(newPlayer("b", 0)))
	require.NoError(t, pdb.PutPlayer(newPlayer("b", 1)))

	a, err := pdb.Backups("a")
	require.NoError(t, err)
	b, err := pdb.Backups("b")
	require.NoError(t, err)
	assert.Len(t, a, 1)
	assert.Len(t, b, 2)
}

func TestCraftsRoundTrip(t *testing.T) {
	pdb, _ := testutil.NewPlayerDB()
	crafts := []core.CraftInProgress{{CraftID: "c1", RecipeName: "basic_tool", StartTime: 1, RequiredTime: 900000, Status: core.CraftComputing}}
	require.NoError(t, pdb.PutCrafts("w", crafts))

	got, err := pdb.GetCrafts("w")
	require.NoError(t, err)
	assert.Equal(t, crafts, got)

	require.NoError(t, pdb.PutCrafts("w", nil))
	got, err = pdb.GetCrafts("w")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClearAllAndInfo(t *testing.T) {
	pdb, db := testutil.NewPlayerDB()
	require.NoError(t, db.Set([]byte("chain:other"), []byte("keep")))
	require.NoError(t, pdb.PutPlayer(newPlayer("a", 0)))
	require.NoError(t, pdb.PutPlayer(newPlayer("a", 1)))
	require.NoError(t, pdb.PutCrafts("a", []core.CraftInProgress{{CraftID: "x"}}))

	info, err := pdb.Info()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Players)
	assert.Equal(t, 2, info.Backups)
	assert.Equal(t, 1, info.Crafts)
	assert.Positive(t, info.Bytes)

	require.NoError(t, pdb.ClearAll())
	info, err = pdb.Info()
	require.NoError(t, err)
	assert.Equal(t, storage.Info{}, info)

	v, err := db.Get([]byte("chain:other"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(v))
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players")
	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	pdb, err := storage.NewPlayerDB(db, 3)
	require.NoError(t, err)
	for n := uint64(0); n < 5; n++ {
		require.NoError(t, pdb.PutPlayer(newPlayer("w", n)))
	}
	require.NoError(t, pdb.Close())
	require.NoError(t, db.Close())

	db, err = storage.NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	pdb, err = storage.NewPlayerDB(db, 3)
	require.NoError(t, err)
	defer pdb.Close()

	got, err := pdb.GetPlayer("w")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Nonce)
	backups, err := pdb.Backups("w")
	require.NoError(t, err)
	assert.Len(t, backups, 3)
}

func TestExportImport(t *testing.T) {
	p := newPlayer("0xabc", 7)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := storage.Export(p, now)
	require.NoError(t, err)

	doc, err := storage.ParseExport(data)
	require.NoError(t, err)
	assert.Equal(t, storage.ExportVersion, doc.Version)
	assert.Equal(t, "2024-06-01T12:00:00Z", doc.ExportDate)
	assert.Equal(t, storage.ExportType, doc.Metadata.ExportType)
	assert.Equal(t, p, doc.Player)
}

func TestImportRejectsInvalidDocuments(t *testing.T) {
	valid := func() *core.PlayerState { return newPlayer("w", 1) }
	cases := map[string]func() []byte{
		"not json": func() []byte { return []byte("{") },
		"missing player": func() []byte {
			return []byte(`{"version":"1.0.0","export_date":"2024-01-01T00:00:00Z","metadata":{"game_version":"1.0.0","export_type":"player_save"}}`)
		},
		"negative currency": func() []byte {
			data, _ := storage.Export(valid(), time.Now())
			return []byte(replaceOnce(string(data), `"currency": 1000`, `"currency": -5`))
		},
		"wrong export type": func() []byte {
			data, _ := storage.Export(valid(), time.Now())
			return []byte(replaceOnce(string(data), `"export_type": "player_save"`, `"export_type": "other"`))
		},
		"too many stores": func() []byte {
			p := valid()
			for i := 0; i < 11; i++ {
				p.OwnedStores = append(p.OwnedStores, uint64(i+1))
			}
			data, _ := storage.Export(p, time.Now())
			return data
		},
		"unknown area type": func() []byte {
			p := valid()
			p.Position.AreaType = "planet"
			data, _ := storage.Export(p, time.Now())
			return data
		},
		"position not explored": func() []byte {
			p := valid()
			p.Position.AreaID = 99
			data, _ := storage.Export(p, time.Now())
			return data
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := storage.ParseExport(build())
			assert.ErrorIs(t, err, storage.ErrInvalidDocument)
		})
	}
}

func replaceOnce(s, old, new string) string {
	if !strings.Contains(s, old) {
		panic(fmt.Sprintf("%q not found", old))
	}
	return strings.Replace(s, old, new, 1)
}
