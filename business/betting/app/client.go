// Package app contains the betting client: approve, bet, claim.
package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chainapp "github.com/fd1az/oracle-resolver/business/chain/app"
	marketviewapp "github.com/fd1az/oracle-resolver/business/marketview/app"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/asset"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

// Chain is the part of the chain gateway betting needs.
type Chain interface {
	chainapp.TokenAccount
	chainapp.BetWriter
	chainapp.TxWatcher
	MarketAddress() common.Address
	CanSign() bool
}

// Refresher drops cached market views after a confirmed write.
type Refresher interface {
	Invalidate(ctx context.Context, marketID uint64)
}

// BetReceipt describes a confirmed bet. ApproveTx is zero when the existing
// allowance already covered the amount.
type BetReceipt struct {
	MarketID  uint64
	Outcome   resolutiondomain.Outcome
	Amount    asset.Amount
	ApproveTx common.Hash
	BetTx     common.Hash
}

// Client places bets with the configured signer.
type Client struct {
	chain   Chain
	token   *asset.Token
	markets Refresher
	log     logger.LoggerInterface
	tracer  trace.Tracer
}

// NewClient creates a client. markets may be nil.
func NewClient(chain Chain, token *asset.Token, markets Refresher, log logger.LoggerInterface) *Client {
	return &Client{
		chain:   chain,
		token:   token,
		markets: markets,
		log:     log,
		tracer:  otel.Tracer("betting"),
	}
}

// Balance returns the signer's settlement token balance.
func (c *Client) Balance(ctx context.Context) (asset.Amount, error) {
	raw, err := c.chain.BalanceOf(ctx, c.chain.Account())
	if err != nil {
		return asset.Amount{}, err
	}
	return asset.NewAmount(c.token, raw), nil
}

// PlaceBet approves the market contract for amount when needed, waits for
// the approval, then places the bet and waits for it. The market view is
// refreshed only after the bet confirms.
func (c *Client) PlaceBet(ctx context.Context, marketID uint64, outcome resolutiondomain.Outcome, amount string) (BetReceipt, error) {
	if err := c.requireSigner(); err != nil {
		return BetReceipt{}, err
	}
	if !outcome.Valid() {
		return BetReceipt{}, apperror.Validation(apperror.CodeInvalidOutcome, outcome.String())
	}
	a, err := marketviewapp.ParseAmount(c.token, amount)
	if err != nil {
		return BetReceipt{}, err
	}

	ctx, span := c.tracer.Start(ctx, "betting.place", trace.WithAttributes(
		attribute.Int64("market", int64(marketID)),
		attribute.String("outcome", outcome.String()),
		attribute.String("amount", a.String()),
	))
	defer span.End()

	receipt := BetReceipt{MarketID: marketID, Outcome: outcome, Amount: a}
	owner := c.chain.Account()

	balance, err := c.chain.BalanceOf(ctx, owner)
	if err != nil {
		return receipt, betFailed(err)
	}
	if balance.Cmp(a.Raw()) < 0 {
		return receipt, apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext(fmt.Sprintf("have %s, need %s", asset.NewAmount(c.token, balance), a)))
	}

	spender := c.chain.MarketAddress()
	allowance, err := c.chain.Allowance(ctx, owner, spender)
	if err != nil {
		return receipt, approvalFailed(err)
	}
	if allowance.Cmp(a.Raw()) < 0 {
		tx, err := c.chain.Approve(ctx, spender, a.Raw())
		if err != nil {
			return receipt, approvalFailed(err)
		}
		if _, err := c.chain.WaitMined(ctx, tx); err != nil {
			return receipt, approvalFailed(err)
		}
		receipt.ApproveTx = tx
		c.log.Info(ctx, "approval confirmed", "tx", tx.Hex(), "amount", a.String())
	}

	tx, err := c.chain.PlaceBet(ctx, marketID, uint8(outcome), a.Raw())
	if err != nil {
		return receipt, betFailed(err)
	}
	if _, err := c.chain.WaitMined(ctx, tx); err != nil {
		return receipt, betFailed(err)
	}
	receipt.BetTx = tx

	c.refresh(ctx, marketID)
	c.log.Info(ctx, "bet placed",
		"market", marketID,
		"outcome", outcome.String(),
		"amount", a.String(),
		"tx", tx.Hex(),
	)
	return receipt, nil
}

// ClaimWinnings claims the signer's payout from a resolved market.
func (c *Client) ClaimWinnings(ctx context.Context, marketID uint64) (common.Hash, error) {
	if err := c.requireSigner(); err != nil {
		return common.Hash{}, err
	}

	tx, err := c.chain.ClaimWinnings(ctx, marketID)
	if err != nil {
		return common.Hash{}, claimFailed(err)
	}
	if _, err := c.chain.WaitMined(ctx, tx); err != nil {
		return tx, claimFailed(err)
	}

	c.refresh(ctx, marketID)
	c.log.Info(ctx, "winnings claimed", "market", marketID, "tx", tx.Hex())
	return tx, nil
}

func (c *Client) refresh(ctx context.Context, marketID uint64) {
	if c.markets != nil {
		c.markets.Invalidate(ctx, marketID)
	}
}

func (c *Client) requireSigner() error {
	if !c.chain.CanSign() {
		return apperror.New(apperror.CodeConfigurationMissing,
			apperror.WithContext("signing key required: set PRIVATE_KEY or chain.key_file"))
	}
	return nil
}

func approvalFailed(err error) error {
	return apperror.New(apperror.CodeApprovalFailed, apperror.WithMessage("approval failed"), apperror.WithCause(err))
}

func betFailed(err error) error {
	return apperror.New(apperror.CodeBetFailed, apperror.WithMessage("bet failed"), apperror.WithCause(err))
}

func claimFailed(err error) error {
	return apperror.New(apperror.CodeClaimFailed, apperror.WithMessage("claim failed"), apperror.WithCause(err))
}
