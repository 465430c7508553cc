package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/actions"
	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/events"
	"github.com/tolelom/zkgame/game"
	"github.com/tolelom/zkgame/gateway"
	"github.com/tolelom/zkgame/internal/testutil"
	"github.com/tolelom/zkgame/journal"
	"github.com/tolelom/zkgame/metrics"
	"github.com/tolelom/zkgame/orchestrator"
	"github.com/tolelom/zkgame/player"
	"github.com/tolelom/zkgame/prover"
	"github.com/tolelom/zkgame/rpc"
)

const token = "s3cret"

// newTestServer builds the full client stack over in-memory storage, a
// fake prover and the local verifier.
func newTestServer(t *testing.T) (*httptest.Server, *rpc.Handler) {
	t.Helper()
	rules := game.DefaultRules()
	em := events.NewEmitter(nil)
	m := metrics.New()
	m.Attach(em)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	j.Attach(em)

	db, _ := testutil.NewPlayerDB()
	store := player.NewStore(db, &rules, nil, em)
	gw := gateway.New(gateway.NewLocalChain(testutil.NewMemDB(), nil, nil), 0, nil)
	orch := orchestrator.New(orchestrator.Config{
		Store:     store,
		Prover:    prover.NewCoordinator(&testutil.FakeProver{}, &rules, prover.CoordinatorConfig{Capacities: prover.DefaultCapacities()}, nil),
		Submitter: gw,
		Executor:  actions.NewExecutor(store, &rules, nil, em, nil),
		Rules:     &rules,
		Emitter:   em,
	}, nil)

	h := rpc.NewHandler(orch, store, &rules, j, gw)
	srv := rpc.NewServer("127.0.0.1:0", h, token, m, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, h
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpc.Error      `json:"error"`
}

func call(t *testing.T, ts *httptest.Server, method string, params any) response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	body, _ := json.Marshal(rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
	req, _ := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRPCPlayerFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	r := call(t, ts, "init", map[string]string{"name": "Alice", "wallet": "0xa"})
	require.Nil(t, r.Error)

	r = call(t, ts, "move", map[string]any{"wallet": "0xa", "area_id": 2, "area_type": "city"})
	require.Nil(t, r.Error, "%+v", r.Error)
	var out orchestrator.Outcome
	require.NoError(t, json.Unmarshal(r.Result, &out))
	assert.Equal(t, uint64(1), out.State.Nonce)
	assert.NotEmpty(t, out.Hash)

	r = call(t, ts, "gather", map[string]any{"wallet": "0xa", "resource": "wood", "quantity": 2})
	require.Nil(t, r.Error)

	r = call(t, ts, "status", map[string]string{"wallet": "0xa"})
	require.Nil(t, r.Error)
	var st orchestrator.Status
	require.NoError(t, json.Unmarshal(r.Result, &st))
	assert.Equal(t, uint64(2), st.Player.Nonce)
	assert.Equal(t, []core.Item{{Name: "wood", Quantity: 2}}, st.Items)

	r = call(t, ts, "receipt", map[string]string{"hash": out.Hash})
	require.Nil(t, r.Error)
	var receipt map[string]any
	require.NoError(t, json.Unmarshal(r.Result, &receipt))
	assert.Equal(t, string(gateway.StatusSuccess), receipt["status"])
	assert.NotNil(t, receipt["submission"])

	r = call(t, ts, "submissions", map[string]string{"wallet": "0xa"})
	require.Nil(t, r.Error)
	var subs []journal.Submission
	require.NoError(t, json.Unmarshal(r.Result, &subs))
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Committed)
}

func TestRPCExportImport(t *testing.T) {
	ts, _ := newTestServer(t)
	require.Nil(t, call(t, ts, "init", map[string]string{"name": "Alice", "wallet": "0xa"}).Error)

	r := call(t, ts, "export", map[string]string{"wallet": "0xa"})
	require.Nil(t, r.Error)
	r = call(t, ts, "import", map[string]any{"wallet": "0xb", "document": r.Result})
	require.Nil(t, r.Error, "%+v", r.Error)

	r = call(t, ts, "players", nil)
	require.Nil(t, r.Error)
	var wallets []string
	require.NoError(t, json.Unmarshal(r.Result, &wallets))
	assert.ElementsMatch(t, []string{"0xa", "0xb"}, wallets)

	r = call(t, ts, "import", map[string]any{"document": map[string]any{"version": "1.0"}})
	require.NotNil(t, r.Error)
	assert.Equal(t, rpc.CodeInvalidParams, r.Error.Code)
}

func TestRPCErrorCodes(t *testing.T) {
	ts, _ := newTestServer(t)
	require.Nil(t, call(t, ts, "init", map[string]string{"name": "Alice", "wallet": "0xa"}).Error)

	cases := []struct {
		method string
		params any
		code   int
	}{
		{"nope", nil, rpc.CodeMethodNotFound},
		{"status", map[string]string{"wallet": "0xnobody"}, rpc.CodeNotFound},
		{"move", map[string]any{"wallet": "0xa", "area_id": 1, "area_type": "street"}, rpc.CodeInvalidTransition},
		{"move", map[string]any{"wallet": "0xa", "area_id": 2, "area_type": "galaxy"}, rpc.CodeInvalidParams},
		{"init", map[string]string{"wallet": "0xa"}, rpc.CodeInvalidParams},
		{"init", map[string]string{"name": "A", "wallet": "0xa"}, rpc.CodeInvalidTransition},
		{"gather", map[string]any{"wallet": "0xa", "resource": "wood", "quantity": 0}, rpc.CodeInvalidTransition},
		{"restore", map[string]string{"wallet": "0xa"}, rpc.CodeInvalidParams},
		{"gather", "not an object", rpc.CodeInvalidParams},
	}
	for _, c := range cases {
		r := call(t, ts, c.method, c.params)
		require.NotNil(t, r.Error, c.method)
		assert.Equal(t, c.code, r.Error.Code, "%s: %s", c.method, r.Error.Message)
	}
}

func TestRPCAuthAndMethod(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL, "application/json", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"players"}`)))
	require.NoError(t, err)
	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.NotNil(t, out.Error)
	assert.Equal(t, rpc.CodeUnauthorized, out.Error.Code)

	for _, header := range []string{"Bearer " + token + "x", "Bearer", "bearer " + token} {
		req, _ := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"players"}`)))
		req.Header.Set("Authorization", header)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		out = response{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()
		require.NotNil(t, out.Error, header)
		assert.Equal(t, rpc.CodeUnauthorized, out.Error.Code)
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL, nil)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRPCMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	call(t, ts, "players", nil)
	call(t, ts, "no-such-method-1", nil)
	call(t, ts, "no-such-method-2", nil)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `zkgame_rpc_requests_total{method="players",status="ok"} 1`)
	assert.Contains(t, string(body), `zkgame_rpc_requests_total{method="unknown",status="error"} 2`)
	assert.NotContains(t, string(body), "no-such-method")
}

func TestHandlerMethods(t *testing.T) {
	_, h := newTestServer(t)
	assert.Contains(t, h.Methods(), "completeCraft")
	assert.Len(t, h.Methods(), 17)
}
