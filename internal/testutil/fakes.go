package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/crypto"
	"github.com/tolelom/zkgame/gateway"
	"github.com/tolelom/zkgame/prover"
)

// FakeProver returns a well-formed bundle carrying the expected public
// signals without doing any cryptography.
type FakeProver struct {
	mu    sync.Mutex
	Err   error
	Delay time.Duration
	// Tamper, if set, edits the bundle before it is returned.
	Tamper func(b *core.ProofBundle)
	calls  int
}

func (f *FakeProver) FullProve(ctx context.Context, in *prover.Inputs, _ prover.Artifact) (*core.ProofBundle, error) {
	f.mu.Lock()
	f.calls++
	err, delay, tamper := f.Err, f.Delay, f.Tamper
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	b := &core.ProofBundle{
		Proof: core.Proof{
			PiA: []string{"1", "2", "1"},
			PiB: [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
			PiC: []string{"7", "8", "1"},
		},
		PublicSignals: in.Signals(),
	}
	if tamper != nil {
		tamper(b)
	}
	return b, nil
}

// Calls reports how many times FullProve ran.
func (f *FakeProver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeBackend is a gateway.Backend that accepts or rejects on demand.
type FakeBackend struct {
	mu     sync.Mutex
	Err    error
	Panic  bool
	Delay  time.Duration
	sent   []*gateway.Call
	status map[string]gateway.Status
}

func (f *FakeBackend) Send(ctx context.Context, call *gateway.Call) (string, error) {
	f.mu.Lock()
	err, panics, delay := f.Err, f.Panic, f.Delay
	f.sent = append(f.sent, call)
	n := len(f.sent)
	f.mu.Unlock()

	if panics {
		panic("backend exploded")
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	hash := crypto.Keccak256Hex([]byte(call.Action), []byte{byte(n)})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		f.status = make(map[string]gateway.Status)
	}
	if err != nil {
		f.status[hash] = gateway.StatusFailed
		return hash, err
	}
	f.status[hash] = gateway.StatusSuccess
	return hash, nil
}

func (f *FakeBackend) ReceiptStatus(_ context.Context, hash string) (gateway.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.status[hash]; ok {
		return s, nil
	}
	return gateway.StatusUnknown, nil
}

// Sent returns every call the backend received.
func (f *FakeBackend) Sent() []*gateway.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gateway.Call(nil), f.sent...)
}

// SetErr changes the error returned by subsequent sends.
func (f *FakeBackend) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}
