package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/oracle-resolver/business/chain/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

// Backend is the subset of *ethclient.Client the gateway uses.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// transactor signs and broadcasts legacy EIP-155 transactions from one key.
type transactor struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer

	gasBuffer    int64
	pollInterval time.Duration
	timeout      time.Duration
	markers      []string
	log          logger.LoggerInterface

	// Serializes nonce allocation with broadcast.
	mu sync.Mutex
}

func newTransactor(backend Backend, key *ecdsa.PrivateKey, cfg Config, log logger.LoggerInterface) *transactor {
	return &transactor{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		signer:       types.NewEIP155Signer(cfg.ChainID),
		gasBuffer:    int64(cfg.GasBufferPercent),
		pollInterval: cfg.ReceiptPollInterval,
		timeout:      cfg.ConfirmTimeout,
		markers:      cfg.AlreadyResolvedMarkers,
		log:          log,
	}
}

// send estimates, signs and broadcasts a call to `to`. A revert during
// estimation that matches an already-resolved marker is returned as
// CodeAlreadyResolved so callers can treat it as a no-op.
func (t *transactor) send(ctx context.Context, method string, to common.Address, data []byte) (common.Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return common.Hash{}, apperror.External(apperror.CodeEthereumRPCError, "pending nonce", err)
	}

	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, apperror.External(apperror.CodeEthereumRPCError, "suggest gas price", err)
	}

	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: t.from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, t.classify(method, apperror.CodeGasEstimationFailed, err)
	}
	gas = gas * uint64(100+t.gasBuffer) / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, t.signer, t.key)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeInvalidSigningKey, apperror.WithCause(err))
	}

	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, t.classify(method, apperror.CodeChainWriteFailed, err)
	}

	t.log.Debug(ctx, "transaction sent",
		"method", method,
		"tx", signed.Hash().Hex(),
		"nonce", nonce,
		"gas", gas,
		"gas_price", gasPrice.String(),
	)
	return signed.Hash(), nil
}

// wait polls for the receipt until it exists, ctx ends or the confirm
// timeout elapses. RPC errors while polling are retried on the next tick.
func (t *transactor) wait(ctx context.Context, hash common.Hash) (domain.Receipt, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return t.settle(ctx, receipt)
		case !errors.Is(err, ethereum.NotFound):
			t.log.Debug(ctx, "receipt poll failed", "tx", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{TxHash: hash, Status: domain.TxPending},
				apperror.New(apperror.CodeAwaitingConfirmation,
					apperror.WithCause(ctx.Err()),
					apperror.WithContext(hash.Hex()))
		case <-ticker.C:
		}
	}
}

func (t *transactor) settle(ctx context.Context, receipt *types.Receipt) (domain.Receipt, error) {
	out := domain.Receipt{
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
		Status:  domain.TxConfirmed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return out, nil
	}

	out.Status = domain.TxReverted
	replayErr := t.replay(ctx, receipt)
	if matchesMarker(replayErr, t.markers) {
		return out, apperror.New(apperror.CodeAlreadyResolved,
			apperror.WithCause(replayErr),
			apperror.WithContext(receipt.TxHash.Hex()))
	}

	reason := revertReason(replayErr)
	if reason == "" {
		reason = "no reason"
	}
	return out, apperror.New(apperror.CodeTransactionReverted,
		apperror.WithContext(fmt.Sprintf("%s: %s", receipt.TxHash.Hex(), reason)))
}

// replay re-executes a reverted transaction as a call at its block to
// recover the revert reason. A nil result means the reason is unavailable.
func (t *transactor) replay(ctx context.Context, receipt *types.Receipt) error {
	tx, _, err := t.backend.TransactionByHash(ctx, receipt.TxHash)
	if err != nil || tx == nil {
		return nil
	}
	_, err = t.backend.CallContract(ctx, ethereum.CallMsg{
		From:     t.from,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}, receipt.BlockNumber)
	return err
}

func (t *transactor) status(ctx context.Context, hash common.Hash) (domain.TxStatus, error) {
	receipt, err := t.backend.TransactionReceipt(ctx, hash)
	if err == nil {
		if receipt.Status == types.ReceiptStatusSuccessful {
			return domain.TxConfirmed, nil
		}
		return domain.TxReverted, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return "", apperror.External(apperror.CodeEthereumRPCError, "transaction receipt", err)
	}

	_, _, err = t.backend.TransactionByHash(ctx, hash)
	switch {
	case err == nil:
		// Pending, or mined between the two calls; either way not final yet.
		return domain.TxPending, nil
	case errors.Is(err, ethereum.NotFound):
		return domain.TxUnknown, nil
	default:
		return "", apperror.External(apperror.CodeEthereumRPCError, "transaction by hash", err)
	}
}

func (t *transactor) classify(method string, code apperror.Code, err error) error {
	if matchesMarker(err, t.markers) {
		return apperror.New(apperror.CodeAlreadyResolved,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}
	if reason := revertReason(err); reason != "" {
		return apperror.New(code,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s reverted: %s", method, reason)))
	}
	return apperror.New(code, apperror.WithCause(err), apperror.WithContext(method))
}
