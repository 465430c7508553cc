package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/game"
	"github.com/tolelom/zkgame/gateway"
	"github.com/tolelom/zkgame/journal"
	"github.com/tolelom/zkgame/orchestrator"
	"github.com/tolelom/zkgame/player"
)

// Receipts looks up a submission on the verifier. *gateway.Gateway
// satisfies it.
type Receipts interface {
	ReceiptStatus(ctx context.Context, hash string) (gateway.Status, error)
}

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	orch     *orchestrator.Orchestrator
	store    *player.Store
	rules    *game.Rules
	journal  *journal.Journal // optional
	receipts Receipts         // optional
	methods  map[string]func(context.Context, Request) Response
}

// NewHandler creates an RPC Handler. j and receipts may be nil.
func NewHandler(orch *orchestrator.Orchestrator, store *player.Store, rules *game.Rules, j *journal.Journal, receipts Receipts) *Handler {
	h := &Handler{orch: orch, store: store, rules: rules, journal: j, receipts: receipts}
	h.methods = map[string]func(context.Context, Request) Response{
		"init":          h.init,
		"status":        h.status,
		"move":          h.move,
		"claim":         h.claim,
		"gather":        h.gather,
		"craft":         h.craft,
		"completeCraft": h.completeCraft,
		"buyStore":      h.buyStore,
		"export":        h.export,
		"import":        h.importSave,
		"backups":       h.backups,
		"restore":       h.restore,
		"players":       h.players,
		"storageInfo":   h.storageInfo,
		"recipes":       h.recipes,
		"submissions":   h.submissions,
		"receipt":       h.receipt,
	}
	return h
}

// Methods lists the served method names.
func (h *Handler) Methods() []string {
	out := make([]string, 0, len(h.methods))
	for m := range h.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// label returns method if it is served and "unknown" otherwise, keeping
// metric label values bounded.
func (h *Handler) label(method string) string {
	if _, ok := h.methods[method]; ok {
		return method
	}
	return "unknown"
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(ctx context.Context, req Request) Response {
	m, ok := h.methods[req.Method]
	if !ok {
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
	return m(ctx, req)
}

// parse decodes params into v. Missing params decode as {}.
func parse(req Request, v any) *Response {
	raw := req.Params
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		r := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return &r
	}
	return nil
}

type walletParams struct {
	Wallet string `json:"wallet"`
}

func (h *Handler) init(_ context.Context, req Request) Response {
	var p struct {
		Name   string `json:"name"`
		Wallet string `json:"wallet"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	if p.Name == "" {
		return errResponse(req.ID, CodeInvalidParams, "name is required")
	}
	st, err := h.orch.Init(p.Name, p.Wallet)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

func (h *Handler) status(_ context.Context, req Request) Response {
	var p walletParams
	if r := parse(req, &p); r != nil {
		return *r
	}
	st, err := h.orch.Status(p.Wallet)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

func (h *Handler) move(ctx context.Context, req Request) Response {
	var p struct {
		Wallet   string `json:"wallet"`
		AreaID   uint64 `json:"area_id"`
		AreaType string `json:"area_type"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	t, err := core.ParseAreaType(p.AreaType)
	if err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	out, err := h.orch.Move(ctx, p.Wallet, p.AreaID, t, nil)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, out)
}

func (h *Handler) claim(ctx context.Context, req Request) Response {
	var p walletParams
	if r := parse(req, &p); r != nil {
		return *r
	}
	out, err := h.orch.Claim(ctx, p.Wallet, nil)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, out)
}

func (h *Handler) gather(_ context.Context, req Request) Response {
	var p struct {
		Wallet   string `json:"wallet"`
		Resource string `json:"resource"`
		Quantity uint64 `json:"quantity"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	st, err := h.orch.Gather(p.Wallet, p.Resource, p.Quantity)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

func (h *Handler) craft(_ context.Context, req Request) Response {
	var p struct {
		Wallet string `json:"wallet"`
		Recipe string `json:"recipe"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	c, err := h.orch.StartCraft(p.Wallet, p.Recipe)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, c)
}

func (h *Handler) completeCraft(_ context.Context, req Request) Response {
	var p struct {
		Wallet  string `json:"wallet"`
		CraftID string `json:"craft_id"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	if p.CraftID == "" {
		return errResponse(req.ID, CodeInvalidParams, "craft_id is required")
	}
	st, err := h.orch.CompleteCraft(p.Wallet, p.CraftID)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

func (h *Handler) buyStore(_ context.Context, req Request) Response {
	var p struct {
		Wallet string `json:"wallet"`
		City   string `json:"city"`
		Price  uint64 `json:"price"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	st, err := h.orch.BuyStore(p.Wallet, p.City, p.Price)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

func (h *Handler) export(_ context.Context, req Request) Response {
	var p walletParams
	if r := parse(req, &p); r != nil {
		return *r
	}
	doc, err := h.store.Export(p.Wallet)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, json.RawMessage(doc))
}

func (h *Handler) importSave(_ context.Context, req Request) Response {
	var p struct {
		Wallet   string          `json:"wallet"`
		Document json.RawMessage `json:"document"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	if len(p.Document) == 0 {
		return errResponse(req.ID, CodeInvalidParams, "document is required")
	}
	st, err := h.orch.Import(p.Document, p.Wallet)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

func (h *Handler) backups(_ context.Context, req Request) Response {
	var p walletParams
	if r := parse(req, &p); r != nil {
		return *r
	}
	list, err := h.store.Backups(p.Wallet)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, list)
}

func (h *Handler) restore(_ context.Context, req Request) Response {
	var p struct {
		Wallet string `json:"wallet"`
		ID     string `json:"id"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	if p.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	st, err := h.orch.RestoreBackup(p.Wallet, p.ID)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, st)
}

func (h *Handler) players(_ context.Context, req Request) Response {
	list, err := h.store.Players()
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, list)
}

func (h *Handler) storageInfo(_ context.Context, req Request) Response {
	info, err := h.store.Info()
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, info)
}

func (h *Handler) recipes(_ context.Context, req Request) Response {
	return okResponse(req.ID, h.rules.Recipes)
}

func (h *Handler) submissions(_ context.Context, req Request) Response {
	if h.journal == nil {
		return errResponse(req.ID, CodeInternalError, "journal disabled")
	}
	var p struct {
		Wallet string `json:"wallet"`
		Limit  int    `json:"limit"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	list, err := h.journal.Submissions(p.Wallet, p.Limit)
	if err != nil {
		return failResponse(req.ID, err)
	}
	return okResponse(req.ID, list)
}

// receipt combines the journal record with a live verifier lookup.
func (h *Handler) receipt(ctx context.Context, req Request) Response {
	var p struct {
		Hash string `json:"hash"`
	}
	if r := parse(req, &p); r != nil {
		return *r
	}
	if p.Hash == "" {
		return errResponse(req.ID, CodeInvalidParams, "hash is required")
	}
	out := map[string]any{"hash": p.Hash}
	if h.journal != nil {
		if s, err := h.journal.ByHash(p.Hash); err == nil {
			out["submission"] = s
		}
	}
	if h.receipts != nil {
		st, err := h.receipts.ReceiptStatus(ctx, p.Hash)
		if err != nil {
			return failResponse(req.ID, err)
		}
		out["status"] = st
	}
	return okResponse(req.ID, out)
}
