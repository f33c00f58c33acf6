package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaindomain "github.com/fd1az/oracle-resolver/business/chain/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/asset"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var (
	usdc    = asset.NewToken(common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d"), "USDC", 6)
	market  = common.HexToAddress("0x759449068AD81E04FD223fe0F1Da790F17426204")
	account = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type fakeChain struct {
	canSign   bool
	balance   *big.Int
	allowance *big.Int

	approveErr error
	betErr     error
	claimErr   error
	// revert fails WaitMined for the named call.
	revert string

	calls []string
	txs   map[common.Hash]string
	seq   byte
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		canSign:   true,
		balance:   big.NewInt(100_000_000),
		allowance: big.NewInt(0),
		txs:       make(map[common.Hash]string),
	}
}

func (f *fakeChain) send(name string) common.Hash {
	f.seq++
	h := common.BytesToHash([]byte{0xbe, f.seq})
	f.txs[h] = name
	return h
}

func (f *fakeChain) Account() common.Address       { return account }
func (f *fakeChain) MarketAddress() common.Address { return market }
func (f *fakeChain) CanSign() bool                 { return f.canSign }

func (f *fakeChain) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	if owner != account || spender != market {
		return nil, errors.New("unexpected allowance query")
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) Approve(_ context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	f.calls = append(f.calls, fmt.Sprintf("approve:%s", amount))
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	return f.send("approve"), nil
}

func (f *fakeChain) PlaceBet(_ context.Context, id uint64, outcome uint8, amount *big.Int) (common.Hash, error) {
	f.calls = append(f.calls, fmt.Sprintf("bet:%d:%d:%s", id, outcome, amount))
	if f.betErr != nil {
		return common.Hash{}, f.betErr
	}
	return f.send("bet"), nil
}

func (f *fakeChain) ClaimWinnings(_ context.Context, id uint64) (common.Hash, error) {
	f.calls = append(f.calls, fmt.Sprintf("claim:%d", id))
	if f.claimErr != nil {
		return common.Hash{}, f.claimErr
	}
	return f.send("claim"), nil
}

func (f *fakeChain) WaitMined(_ context.Context, hash common.Hash) (chaindomain.Receipt, error) {
	if f.txs[hash] == f.revert {
		return chaindomain.Receipt{TxHash: hash, Status: chaindomain.TxReverted},
			apperror.New(apperror.CodeTransactionReverted, apperror.WithContext("execution reverted: market closed"))
	}
	return chaindomain.Receipt{TxHash: hash, Status: chaindomain.TxConfirmed}, nil
}

func (f *fakeChain) TxStatus(context.Context, common.Hash) (chaindomain.TxStatus, error) {
	return chaindomain.TxConfirmed, nil
}

type recordingRefresher struct {
	invalidated []uint64
}

func (r *recordingRefresher) Invalidate(_ context.Context, id uint64) {
	r.invalidated = append(r.invalidated, id)
}

func TestPlaceBet_ApprovesThenBets(t *testing.T) {
	chain := newFakeChain()
	refresher := &recordingRefresher{}
	c := NewClient(chain, usdc, refresher, &mockLogger{})

	r, err := c.PlaceBet(context.Background(), 2, resolutiondomain.OutcomeYes, "10.5")
	require.NoError(t, err)

	assert.Equal(t, []string{"approve:10500000", "bet:2:0:10500000"}, chain.calls)
	assert.NotEqual(t, common.Hash{}, r.ApproveTx)
	assert.NotEqual(t, common.Hash{}, r.BetTx)
	assert.Equal(t, "10.5 USDC", r.Amount.String())
	assert.Equal(t, []uint64{2}, refresher.invalidated)
}

func TestPlaceBet_SkipsApprovalWithAllowance(t *testing.T) {
	chain := newFakeChain()
	chain.allowance = big.NewInt(50_000_000)
	c := NewClient(chain, usdc, nil, &mockLogger{})

	r, err := c.PlaceBet(context.Background(), 0, resolutiondomain.OutcomeNo, "10")
	require.NoError(t, err)

	assert.Equal(t, []string{"bet:0:1:10000000"}, chain.calls)
	assert.Equal(t, common.Hash{}, r.ApproveTx)
}

func TestPlaceBet_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*fakeChain)
		amount    string
		wantCode  apperror.Code
		wantHuman string
		wantCalls []string
	}{
		{
			name:      "no signer",
			setup:     func(f *fakeChain) { f.canSign = false },
			amount:    "10",
			wantCode:  apperror.CodeConfigurationMissing,
			wantCalls: nil,
		},
		{
			name:      "zero amount",
			amount:    "0",
			wantCode:  apperror.CodeInvalidAmount,
			wantCalls: nil,
		},
		{
			name:      "insufficient balance",
			setup:     func(f *fakeChain) { f.balance = big.NewInt(5_000_000) },
			amount:    "10",
			wantCode:  apperror.CodeInsufficientBalance,
			wantCalls: nil,
		},
		{
			name:      "approve rejected",
			setup:     func(f *fakeChain) { f.approveErr = errors.New("insufficient funds for gas") },
			amount:    "10",
			wantCode:  apperror.CodeApprovalFailed,
			wantHuman: "approval failed: insufficient funds for gas",
			wantCalls: []string{"approve:10000000"},
		},
		{
			name:      "approve reverted",
			setup:     func(f *fakeChain) { f.revert = "approve" },
			amount:    "10",
			wantCode:  apperror.CodeApprovalFailed,
			wantCalls: []string{"approve:10000000"},
		},
		{
			name:      "bet reverted",
			setup:     func(f *fakeChain) { f.revert = "bet" },
			amount:    "10",
			wantCode:  apperror.CodeBetFailed,
			wantCalls: []string{"approve:10000000", "bet:1:0:10000000"},
		},
		{
			name:      "bet rejected",
			setup:     func(f *fakeChain) { f.betErr = errors.New("execution reverted: betting closed") },
			amount:    "10",
			wantCode:  apperror.CodeBetFailed,
			wantHuman: "bet failed: execution reverted: betting closed",
			wantCalls: []string{"approve:10000000", "bet:1:0:10000000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			if tt.setup != nil {
				tt.setup(chain)
			}
			refresher := &recordingRefresher{}
			c := NewClient(chain, usdc, refresher, &mockLogger{})

			_, err := c.PlaceBet(context.Background(), 1, resolutiondomain.OutcomeYes, tt.amount)

			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.wantCode), "err = %v", err)
			if tt.wantHuman != "" {
				var appErr *apperror.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.wantHuman, appErr.Human())
			}
			assert.Equal(t, tt.wantCalls, chain.calls)
			assert.Empty(t, refresher.invalidated)
		})
	}
}

func TestClaimWinnings(t *testing.T) {
	chain := newFakeChain()
	refresher := &recordingRefresher{}
	c := NewClient(chain, usdc, refresher, &mockLogger{})

	tx, err := c.ClaimWinnings(context.Background(), 3)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, tx)
	assert.Equal(t, []uint64{3}, refresher.invalidated)

	chain.claimErr = errors.New("execution reverted: nothing to claim")
	_, err = c.ClaimWinnings(context.Background(), 3)
	assert.True(t, apperror.HasCode(err, apperror.CodeClaimFailed), "err = %v", err)
}

func TestBalance(t *testing.T) {
	chain := newFakeChain()
	chain.balance = big.NewInt(1_234_500)
	c := NewClient(chain, usdc, nil, &mockLogger{})

	b, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2345 USDC", b.String())
}
