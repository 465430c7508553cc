package gateway_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/zkgame/core"
	"github.com/tolelom/zkgame/gateway"
	"github.com/tolelom/zkgame/internal/testutil"
)

func bundle(signals ...string) *core.ProofBundle {
	return &core.ProofBundle{
		Proof: core.Proof{
			PiA: []string{"11", "12", "1"},
			PiB: [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
			PiC: []string{"31", "32", "1"},
		},
		PublicSignals: signals,
	}
}

func TestFormatPreservesShapesWithoutSwap(t *testing.T) {
	call, err := gateway.Format(bundle("100", "200", "300"), core.ActionMove)
	require.NoError(t, err)

	assert.Equal(t, [2]*big.Int{big.NewInt(11), big.NewInt(12)}, call.A)
	assert.Equal(t, [2][2]*big.Int{{big.NewInt(21), big.NewInt(22)}, {big.NewInt(23), big.NewInt(24)}}, call.B)
	assert.Equal(t, [2]*big.Int{big.NewInt(31), big.NewInt(32)}, call.C)
	assert.Equal(t, []*big.Int{big.NewInt(100), big.NewInt(200), big.NewInt(300)}, call.Signals)
}

func TestFormatRejectsBadInput(t *testing.T) {
	_, err := gateway.Format(bundle("1", "2", "3"), core.ActionClaim)
	assert.ErrorIs(t, err, core.ErrSignalCountMismatch)

	// 2^256 does not fit a uint256
	tooBig := "115792089237316195423570985008687907853269984665640564039457584007913129639936"
	_, err = gateway.Format(bundle("1", tooBig, "3"), core.ActionMove)
	assert.ErrorIs(t, err, core.ErrMalformedProof)

	_, err = gateway.Format(bundle("1", "-2", "3"), core.ActionMove)
	assert.ErrorIs(t, err, core.ErrMalformedProof)
}

func TestSignalCountMismatchNeverReachesBackend(t *testing.T) {
	backend := &testutil.FakeBackend{}
	g := gateway.New(backend, 0, nil)

	res := g.Submit(context.Background(), bundle("1", "2"), core.ActionMove)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, core.ErrSignalCountMismatch)
	assert.Empty(t, backend.Sent())
}

func TestSubmitSuccessAndReceipt(t *testing.T) {
	backend := &testutil.FakeBackend{}
	g := gateway.New(backend, 0, nil)

	ctx := gateway.WithSender(context.Background(), "0xABC")
	res := g.Submit(ctx, bundle("1", "2", "3", "4"), core.ActionClaim)
	require.True(t, res.Success, res.Error())
	assert.NotEmpty(t, res.Hash)
	assert.Equal(t, "0xabc", backend.Sent()[0].Sender)

	st, err := g.ReceiptStatus(context.Background(), res.Hash)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusSuccess, st)

	st, err = g.ReceiptStatus(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusUnknown, st)
}

func TestBackendFailureBecomesResult(t *testing.T) {
	backend := &testutil.FakeBackend{Err: &gateway.RevertError{Reason: gateway.ReasonCommitmentMismatch}}
	g := gateway.New(backend, 0, nil)

	res := g.Submit(context.Background(), bundle("1", "2", "3"), core.ActionMove)
	assert.False(t, res.Success)
	assert.Empty(t, res.Hash)
	assert.ErrorIs(t, res.Err, core.ErrSubmissionFailed)
	assert.Contains(t, res.Error(), "State commitment mismatch")
}

func TestPanicBecomesResult(t *testing.T) {
	g := gateway.New(&testutil.FakeBackend{Panic: true}, 0, nil)
	var res gateway.Result
	assert.NotPanics(t, func() {
		res = g.Submit(context.Background(), bundle("1", "2", "3"), core.ActionMove)
	})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, core.ErrSubmissionFailed)
}

func TestSubmitTimeout(t *testing.T) {
	g := gateway.New(&testutil.FakeBackend{Delay: time.Second}, 20*time.Millisecond, nil)
	res := g.Submit(context.Background(), bundle("1", "2", "3"), core.ActionMove)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, core.ErrSubmissionFailed)
	assert.Contains(t, res.Error(), context.DeadlineExceeded.Error())
}

func TestResultErrorOnSuccessIsEmpty(t *testing.T) {
	assert.Equal(t, "", gateway.Result{Success: true}.Error())
	assert.Equal(t, "x", gateway.Result{Err: errors.New("x")}.Error())
}
