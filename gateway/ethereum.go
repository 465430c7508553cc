package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/tolelom/zkgame/core"
)

// GameCoreABI is the subset of the GameCore contract the gateway calls.
const GameCoreABI = `[
 {"type":"function","name":"move","stateMutability":"nonpayable","outputs":[],
  "inputs":[{"name":"a","type":"uint256[2]"},{"name":"b","type":"uint256[2][2]"},{"name":"c","type":"uint256[2]"},{"name":"publicSignals","type":"uint256[3]"}]},
 {"type":"function","name":"claimReward","stateMutability":"nonpayable","outputs":[],
  "inputs":[{"name":"a","type":"uint256[2]"},{"name":"b","type":"uint256[2][2]"},{"name":"c","type":"uint256[2]"},{"name":"publicSignals","type":"uint256[4]"}]}
]`

// EthConfig locates the verifier contract.
type EthConfig struct {
	RPCURL   string
	Contract string
	ChainID  int64
	GasLimit uint64
}

// EthSubmitter sends bundles to a GameCore contract over JSON-RPC.
type EthSubmitter struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	gasLimit uint64
	log      *zap.Logger
}

// DialEthereum connects to cfg.RPCURL and signs with key.
func DialEthereum(ctx context.Context, cfg EthConfig, key *ecdsa.PrivateKey, log *zap.Logger) (*EthSubmitter, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Contract)
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	parsed, err := abi.JSON(strings.NewReader(GameCoreABI))
	if err != nil {
		client.Close()
		return nil, err
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		client.Close()
		return nil, err
	}
	gas := cfg.GasLimit
	if gas == 0 {
		gas = DefaultGasLimit
	}
	addr := common.HexToAddress(cfg.Contract)
	return &EthSubmitter{
		client:   client,
		contract: bind.NewBoundContract(addr, parsed, client, client, client),
		auth:     auth,
		gasLimit: gas,
		log:      log.With(zap.String("module", "ethereum")),
	}, nil
}

// Close releases the RPC connection.
func (s *EthSubmitter) Close() { s.client.Close() }

// From returns the signing address.
func (s *EthSubmitter) From() string { return s.auth.From.Hex() }

func method(action core.Action) (string, error) {
	switch action {
	case core.ActionMove:
		return "move", nil
	case core.ActionClaim:
		return "claimReward", nil
	}
	return "", fmt.Errorf("%w: unknown action %q", core.ErrInvalidTransition, action)
}

// signalArray converts signals to the fixed-size array the ABI expects.
func signalArray(sig []*big.Int) (any, error) {
	switch len(sig) {
	case 3:
		return [3]*big.Int{sig[0], sig[1], sig[2]}, nil
	case 4:
		return [4]*big.Int{sig[0], sig[1], sig[2], sig[3]}, nil
	}
	return nil, fmt.Errorf("%w: %d public signals", core.ErrSignalCountMismatch, len(sig))
}

// Send implements Backend: it transacts and waits for the receipt.
func (s *EthSubmitter) Send(ctx context.Context, call *Call) (string, error) {
	name, err := method(call.Action)
	if err != nil {
		return "", err
	}
	signals, err := signalArray(call.Signals)
	if err != nil {
		return "", err
	}
	opts := *s.auth
	opts.Context = ctx
	opts.GasLimit = s.gasLimit

	tx, err := s.contract.Transact(&opts, name, call.A, call.B, call.C, signals)
	if err != nil {
		return "", err
	}
	hash := tx.Hash().Hex()
	s.log.Debug("transaction sent", zap.String("method", name), zap.String("hash", hash))
	receipt, err := bind.WaitMined(ctx, s.client, tx)
	if err != nil {
		return hash, fmt.Errorf("waiting for %s: %w", hash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, &RevertError{Hash: hash, Reason: s.revertReason(ctx, tx, receipt)}
	}
	return hash, nil
}

// revertReason replays the call at the receipt's block to recover the
// revert string. Best effort.
func (s *EthSubmitter) revertReason(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) string {
	msg := ethereum.CallMsg{From: s.auth.From, To: tx.To(), Gas: tx.Gas(), Data: tx.Data()}
	_, err := s.client.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return "status 0"
	}
	return err.Error()
}

// ReceiptStatus implements Backend.
func (s *EthSubmitter) ReceiptStatus(ctx context.Context, hash string) (Status, error) {
	receipt, err := s.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		if _, pending, terr := s.client.TransactionByHash(ctx, common.HexToHash(hash)); terr == nil && pending {
			return StatusPending, nil
		}
		return StatusUnknown, nil
	}
	if err != nil {
		return StatusUnknown, err
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return StatusSuccess, nil
	}
	return StatusFailed, nil
}
