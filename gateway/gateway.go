// Package gateway submits proof bundles to the verifier contract. Submit
// never returns an error or panics past its boundary; every outcome is a
// Result value.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/tolelom/zkgame/core"
)

// DefaultGasLimit is the gas limit used when none is configured.
const DefaultGasLimit = 500_000

// Result is the outcome of one submission.
type Result struct {
	Hash    string `json:"hash"`
	Success bool   `json:"success"`
	Err     error  `json:"-"`
}

// Error returns the failure message or "".
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Call is a bundle formatted for the verifier: field elements as big
// integers in the contract's array shapes.
type Call struct {
	Action  core.Action
	Sender  string
	A       [2]*big.Int
	B       [2][2]*big.Int
	C       [2]*big.Int
	Signals []*big.Int
	Bundle  *core.ProofBundle
}

// Status is what a receipt lookup found.
type Status string

const (
	StatusUnknown Status = "unknown" // not seen by the backend
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Backend delivers a formatted call and waits for one confirmation.
type Backend interface {
	Send(ctx context.Context, call *Call) (hash string, err error)
	ReceiptStatus(ctx context.Context, hash string) (Status, error)
}

// CommitmentSource is implemented by backends that can report the
// commitment they currently hold for a sender.
type CommitmentSource interface {
	Commitment(sender string) (string, error)
}

// RevertError is a transaction that was mined or simulated and rejected.
type RevertError struct {
	Hash   string
	Reason string
}

func (e *RevertError) Error() string {
	if e.Hash == "" {
		return "execution reverted: " + e.Reason
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.Hash, e.Reason)
}

type senderKey struct{}

// WithSender tags ctx with the wallet a submission is made for. Backends
// that sign with a fixed key ignore it.
func WithSender(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, senderKey{}, core.WalletKey(wallet))
}

// SenderFrom returns the wallet set by WithSender, or "".
func SenderFrom(ctx context.Context) string {
	s, _ := ctx.Value(senderKey{}).(string)
	return s
}

// Gateway validates and formats bundles and hands them to a Backend.
type Gateway struct {
	backend Backend
	timeout time.Duration
	log     *zap.Logger
}

// New creates a Gateway. timeout bounds each submission including the wait
// for confirmation; 0 leaves it to ctx.
func New(backend Backend, timeout time.Duration, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{backend: backend, timeout: timeout, log: log.With(zap.String("module", "gateway"))}
}

// Format converts bundle into the verifier's numeric representation,
// checking shape and signal count first.
func Format(bundle *core.ProofBundle, action core.Action) (*Call, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	want := action.SignalCount()
	if want == 0 {
		return nil, fmt.Errorf("%w: unknown action %q", core.ErrInvalidTransition, action)
	}
	if len(bundle.PublicSignals) != want {
		return nil, fmt.Errorf("%w: %s expects %d public signals, got %d", core.ErrSignalCountMismatch, action, want, len(bundle.PublicSignals))
	}
	call := &Call{Action: action, Bundle: bundle}
	var err error
	p := bundle.Proof
	for i := 0; i < 2; i++ {
		if call.A[i], err = toBig(p.PiA[i]); err != nil {
			return nil, err
		}
		if call.C[i], err = toBig(p.PiC[i]); err != nil {
			return nil, err
		}
		for j := 0; j < 2; j++ {
			if call.B[i][j], err = toBig(p.PiB[i][j]); err != nil {
				return nil, err
			}
		}
	}
	call.Signals = make([]*big.Int, len(bundle.PublicSignals))
	for i, s := range bundle.PublicSignals {
		if call.Signals[i], err = toBig(s); err != nil {
			return nil, err
		}
	}
	return call, nil
}

// toBig parses a decimal uint256, rejecting anything that does not fit.
func toBig(s string) (*big.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", core.ErrMalformedProof, s, err)
	}
	return v.ToBig(), nil
}

// Submit formats and sends bundle. Validation failures are reported before
// any network access. The returned Result always carries the outcome.
func (g *Gateway) Submit(ctx context.Context, bundle *core.ProofBundle, action core.Action) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("submission panicked", zap.String("action", string(action)), zap.Any("panic", r))
			res = Result{Err: fmt.Errorf("%w: panic: %v", core.ErrSubmissionFailed, r)}
		}
	}()

	call, err := Format(bundle, action)
	if err != nil {
		return Result{Err: err}
	}
	call.Sender = SenderFrom(ctx)
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	hash, err := g.backend.Send(ctx, call)
	if err != nil {
		g.log.Warn("submission failed", zap.String("action", string(action)), zap.String("hash", hash),
			zap.Duration("took", time.Since(start)), zap.Error(err))
		return Result{Err: fmt.Errorf("%w: %v", core.ErrSubmissionFailed, err)}
	}
	g.log.Info("submission confirmed", zap.String("action", string(action)), zap.String("hash", hash),
		zap.Duration("took", time.Since(start)))
	return Result{Hash: hash, Success: true}
}

// ReceiptStatus asks the backend about a previous submission. Callers use
// it before retrying a submission whose outcome is unknown.
func (g *Gateway) ReceiptStatus(ctx context.Context, hash string) (Status, error) {
	return g.backend.ReceiptStatus(ctx, hash)
}

// CommitmentOf returns the commitment the verifier holds for wallet. ok is
// false when the backend cannot report one or has no record for wallet yet.
func (g *Gateway) CommitmentOf(_ context.Context, wallet string) (string, bool, error) {
	src, isSource := g.backend.(CommitmentSource)
	if !isSource {
		return "", false, nil
	}
	c, err := src.Commitment(core.WalletKey(wallet))
	if errors.Is(err, core.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return c, true, nil
}
