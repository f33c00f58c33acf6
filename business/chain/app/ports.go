// Package app contains the port definitions for the chain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/oracle-resolver/business/chain/domain"
)

// MarketReader reads prediction market state.
type MarketReader interface {
	MarketCount(ctx context.Context) (uint64, error)
	Market(ctx context.Context, id uint64) (domain.Market, error)
	PotentialWinnings(ctx context.Context, id uint64, outcome uint8, amount *big.Int) (*big.Int, error)
}

// ResolutionWriter sends the two resolution transactions. Both return as
// soon as the transaction is broadcast; use TxWatcher to wait for it.
type ResolutionWriter interface {
	// SubmitResolution calls OracleResolver.submitResolution.
	SubmitResolution(ctx context.Context, id uint64, outcome uint8, confidence int) (common.Hash, error)
	// ResolveMarket calls PredictionMarket.resolveMarket.
	ResolveMarket(ctx context.Context, id uint64, outcome uint8) (common.Hash, error)
}

// TxWatcher observes broadcast transactions.
type TxWatcher interface {
	// WaitMined blocks until the transaction has a receipt. A reverted
	// transaction is returned as an error.
	WaitMined(ctx context.Context, hash common.Hash) (domain.Receipt, error)
	// TxStatus reports the current status without waiting.
	TxStatus(ctx context.Context, hash common.Hash) (domain.TxStatus, error)
}

// TokenAccount is the signer's view of the settlement token.
type TokenAccount interface {
	Account() common.Address
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error)
}

// BetWriter sends betting transactions.
type BetWriter interface {
	PlaceBet(ctx context.Context, id uint64, outcome uint8, amount *big.Int) (common.Hash, error)
	ClaimWinnings(ctx context.Context, id uint64) (common.Hash, error)
}

// Gateway is everything the chain context exposes.
type Gateway interface {
	MarketReader
	ResolutionWriter
	TxWatcher
	TokenAccount
	BetWriter

	// MarketAddress is the PredictionMarket contract, the spender for bets.
	MarketAddress() common.Address
	// CanSign reports whether a signing key is loaded.
	CanSign() bool
	// Ping checks RPC reachability.
	Ping(ctx context.Context) error
}
