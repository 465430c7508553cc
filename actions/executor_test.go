package actions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/actions"
	_ "github.com/tolelom/zkgame/actions/modules/crafting"
	_ "github.com/tolelom/zkgame/actions/modules/gather"
	_ "github.com/tolelom/zkgame/actions/modules/stores"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
	"github.com/tolelom/zkgame/game"
	"github.com/tolelom/zkgame/internal/testutil"
	"github.com/tolelom/zkgame/player"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *player.Store
	exec   *actions.Executor
	events []events.Event
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: t0}
	pdb, _ := testutil.NewPlayerDB()
	rules := game.DefaultRules()
	em := events.NewEmitter(nil)
	em.SubscribeAll(func(ev events.Event) { f.events = append(f.events, ev) })
	f.store = player.NewStore(pdb, &rules, nil, em)
	f.store.Now = func() time.Time { return f.now }
	f.exec = actions.NewExecutor(f.store, &rules, nil, em, nil)
	f.exec.Now = func() time.Time { return f.now }
	_, err := f.store.Create("Alice", "0xa")
	require.NoError(t, err)
	return f
}

func TestGatherTwiceWithinCooldown(t *testing.T) {
	f := newFixture(t)

	p, tx, err := f.exec.Execute("0xa", core.TxGather, core.GatherPayload{Resource: "wood", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), p.Inventory["wood"])
	assert.Equal(t, uint64(15), p.Experience)
	assert.Equal(t, uint64(1), p.Nonce)
	assert.NotEmpty(t, tx.ID)

	f.now = f.now.Add(4 * time.Minute)
	_, _, err = f.exec.Execute("0xa", core.TxGather, core.GatherPayload{Resource: "wood", Quantity: 3})
	assert.ErrorIs(t, err, core.ErrCooldownActive)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	got, err := f.store.Load("0xa")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Inventory["wood"])
	assert.Equal(t, uint64(1), got.Nonce)

	f.now = f.now.Add(time.Minute)
	p, _, err = f.exec.Execute("0xa", core.TxGather, core.GatherPayload{Resource: "wood", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(6), p.Inventory["wood"])
}

func TestCompleteCraft(t *testing.T) {
	f := newFixture(t)
	for _, res := range []string{"iron_ore", "wood"} {
		_, _, err := f.exec.Execute("0xa", core.TxGather, core.GatherPayload{Resource: res, Quantity: 3})
		require.NoError(t, err)
	}
	craft, err := f.store.StartCraft("0xa", "iron_sword")
	require.NoError(t, err)

	_, _, err = f.exec.Execute("0xa", core.TxCompleteCraft, core.CompleteCraftPayload{CraftID: craft.CraftID})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	f.now = f.now.Add(time.Hour)
	p, _, err := f.exec.Execute("0xa", core.TxCompleteCraft, core.CompleteCraftPayload{CraftID: craft.CraftID})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Inventory["iron_sword"])
	assert.Equal(t, uint64(0), p.Inventory["iron_ore"])
	assert.Equal(t, uint64(2), p.Inventory["wood"])
	assert.Equal(t, uint64(3), p.Nonce)
	assert.Equal(t, uint64(30+100), p.Experience)

	q, err := f.store.Crafts("0xa")
	require.NoError(t, err)
	assert.Zero(t, q.Size())

	_, _, err = f.exec.Execute("0xa", core.TxCompleteCraft, core.CompleteCraftPayload{CraftID: craft.CraftID})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBuyStore(t *testing.T) {
	f := newFixture(t)
	p, _, err := f.exec.Execute("0xa", core.TxBuyStore, core.BuyStorePayload{City: "Newhaven", Price: 400})
	require.NoError(t, err)
	assert.Equal(t, uint64(600), p.Currency)
	assert.Equal(t, []uint64{uint64(t0.UnixMilli())}, p.OwnedStores)

	_, _, err = f.exec.Execute("0xa", core.TxBuyStore, core.BuyStorePayload{City: "Newhaven", Price: 700})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, _, err = f.exec.Execute("0xa", core.TxBuyStore, core.BuyStorePayload{Price: 1})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestEventsCarryCommittedNonce(t *testing.T) {
	f := newFixture(t)
	f.events = nil
	_, tx, err := f.exec.Execute("0xa", core.TxGather, core.GatherPayload{Resource: "stone", Quantity: 1})
	require.NoError(t, err)

	require.Len(t, f.events, 1)
	ev := f.events[0]
	assert.Equal(t, events.EventLocalApplied, ev.Type)
	assert.Equal(t, uint64(1), ev.Nonce)
	assert.Equal(t, tx.ID, ev.TxID)
	assert.Equal(t, "0xa", ev.Wallet)
	assert.Equal(t, "gather", ev.Data["action"])
}

func TestUnknownActionAndPlayer(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.exec.Execute("0xa", core.TxType("teleport"), struct{}{})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, _, err = f.exec.Execute("0xnobody", core.TxGather, core.GatherPayload{Resource: "wood", Quantity: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistryListsModules(t *testing.T) {
	assert.Equal(t, []core.TxType{core.TxBuyStore, core.TxCompleteCraft, core.TxGather}, actions.Default().Types())
	assert.Panics(t, func() { actions.Register(core.TxGather, nil) })
}
