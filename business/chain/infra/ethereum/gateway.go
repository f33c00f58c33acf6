// Package ethereum implements the chain gateway over go-ethereum.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/oracle-resolver/business/chain/app"
	"github.com/fd1az/oracle-resolver/business/chain/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/circuitbreaker"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

const (
	tracerName = "chain"
	meterName  = "chain"
)

// Ensure Gateway implements app.Gateway.
var _ app.Gateway = (*Gateway)(nil)

// Config holds contract addresses and transaction settings.
type Config struct {
	ChainID          *big.Int
	PredictionMarket common.Address
	OracleResolver   common.Address
	SettlementToken  common.Address

	ReceiptPollInterval time.Duration
	// ConfirmTimeout bounds WaitMined; zero waits until ctx ends.
	ConfirmTimeout   time.Duration
	GasBufferPercent int
	// AlreadyResolvedMarkers are revert reason fragments meaning the
	// market was resolved before this write.
	AlreadyResolvedMarkers []string
}

type gatewayMetrics struct {
	calls        metric.Int64Counter
	callLatency  metric.Float64Histogram
	transactions metric.Int64Counter
}

// Gateway reads and writes the prediction market, oracle and settlement
// token contracts. Without a key it is read-only.
type Gateway struct {
	backend Backend
	cfg     Config
	tx      *transactor
	log     logger.LoggerInterface
	cb      *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *gatewayMetrics
}

// NewGateway creates a gateway. key may be nil for read-only use.
func NewGateway(backend Backend, cfg Config, key *ecdsa.PrivateKey, log logger.LoggerInterface) (*Gateway, error) {
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext("chain.chain_id"))
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = 3 * time.Second
	}
	if cfg.GasBufferPercent < 0 {
		cfg.GasBufferPercent = 0
	}

	g := &Gateway{
		backend: backend,
		cfg:     cfg,
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
	if key != nil {
		g.tx = newTransactor(backend, key, cfg, log)
	}

	cbCfg := circuitbreaker.DefaultConfig("chain-reads")
	// A revert is an answer from a healthy node.
	cbCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) }
	cbCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	g.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return g, nil
}

func (g *Gateway) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gatewayMetrics{}

	g.metrics.calls, err = meter.Int64Counter(
		"oracle_chain_calls_total",
		metric.WithDescription("Contract read calls by method and result"),
	)
	if err != nil {
		return err
	}

	g.metrics.callLatency, err = meter.Float64Histogram(
		"oracle_chain_call_latency_ms",
		metric.WithDescription("Contract read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	g.metrics.transactions, err = meter.Int64Counter(
		"oracle_chain_transactions_total",
		metric.WithDescription("Transactions sent by method and result"),
	)
	return err
}

// MarketAddress returns the PredictionMarket contract address.
func (g *Gateway) MarketAddress() common.Address {
	return g.cfg.PredictionMarket
}

// CanSign reports whether a key is loaded.
func (g *Gateway) CanSign() bool {
	return g.tx != nil
}

// Account returns the signer address, or the zero address when read-only.
func (g *Gateway) Account() common.Address {
	if g.tx == nil {
		return common.Address{}
	}
	return g.tx.from
}

// Ping checks that the node answers.
func (g *Gateway) Ping(ctx context.Context) error {
	if _, err := g.backend.BlockNumber(ctx); err != nil {
		return apperror.External(apperror.CodeEthereumConnectionFailed, "block number", err)
	}
	return nil
}

// MarketCount reads marketCounter().
func (g *Gateway) MarketCount(ctx context.Context) (uint64, error) {
	out, err := g.call(ctx, marketABI, g.cfg.PredictionMarket, "marketCounter")
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext("marketCounter: unexpected output"))
	}
	return n.Uint64(), nil
}

// Market reads getMarket(id). Deployments that only expose the public
// markets mapping are read through it instead, without resolutionTime.
func (g *Gateway) Market(ctx context.Context, id uint64) (domain.Market, error) {
	idArg := new(big.Int).SetUint64(id)

	out, err := g.call(ctx, marketABI, g.cfg.PredictionMarket, "getMarket", idArg)
	if err == nil {
		return decodeGetMarket(id, out)
	}
	if apperror.HasCode(err, apperror.CodeCircuitOpen) {
		return domain.Market{}, err
	}

	legacy, lerr := g.call(ctx, marketABI, g.cfg.PredictionMarket, "markets", idArg)
	if lerr != nil {
		return domain.Market{}, g.marketError(id, err)
	}
	m, ok := decodeMarketsMapping(id, legacy)
	if !ok {
		return domain.Market{}, g.marketError(id, err)
	}
	return m, nil
}

func (g *Gateway) marketError(id uint64, err error) error {
	if isRevert(err) {
		return apperror.New(apperror.CodeMarketNotFound,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("market %d", id)))
	}
	return err
}

func decodeGetMarket(id uint64, out []any) (domain.Market, error) {
	if len(out) != 8 {
		return domain.Market{}, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("getMarket: %d outputs", len(out))))
	}
	m := domain.Market{ID: id}
	var ok [8]bool
	m.Question, ok[0] = out[0].(string)
	m.Description, ok[1] = out[1].(string)
	var end, resolution *big.Int
	end, ok[2] = out[2].(*big.Int)
	resolution, ok[3] = out[3].(*big.Int)
	var state uint8
	state, ok[4] = out[4].(uint8)
	m.TotalYes, ok[5] = out[5].(*big.Int)
	m.TotalNo, ok[6] = out[6].(*big.Int)
	m.Resolved, ok[7] = out[7].(bool)
	for i, good := range ok {
		if !good {
			return domain.Market{}, apperror.New(apperror.CodeContractCallFailed,
				apperror.WithContext(fmt.Sprintf("getMarket: output %d has type %T", i, out[i])))
		}
	}
	m.EndTime = unixTime(end)
	m.ResolutionTime = unixTime(resolution)
	m.State = domain.MarketState(state)
	return m, nil
}

// decodeMarketsMapping reads the public mapping getter. An unset entry
// has an empty question and id zero.
func decodeMarketsMapping(id uint64, out []any) (domain.Market, bool) {
	if len(out) != 7 {
		return domain.Market{}, false
	}
	gotID, ok1 := out[0].(*big.Int)
	question, ok2 := out[1].(string)
	description, ok3 := out[2].(string)
	end, ok4 := out[3].(*big.Int)
	yes, ok5 := out[4].(*big.Int)
	no, ok6 := out[5].(*big.Int)
	resolved, ok7 := out[6].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return domain.Market{}, false
	}
	if question == "" || !gotID.IsUint64() || gotID.Uint64() != id {
		return domain.Market{}, false
	}

	state := domain.MarketOpen
	if resolved {
		state = domain.MarketResolved
	}
	return domain.Market{
		ID:          id,
		Question:    question,
		Description: description,
		EndTime:     unixTime(end),
		State:       state,
		TotalYes:    yes,
		TotalNo:     no,
		Resolved:    resolved,
	}, true
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}

// PotentialWinnings reads calculatePotentialWinnings.
func (g *Gateway) PotentialWinnings(ctx context.Context, id uint64, outcome uint8, amount *big.Int) (*big.Int, error) {
	out, err := g.call(ctx, marketABI, g.cfg.PredictionMarket, "calculatePotentialWinnings",
		new(big.Int).SetUint64(id), outcome, amount)
	if err != nil {
		return nil, err
	}
	return firstBigInt("calculatePotentialWinnings", out)
}

// BalanceOf reads the settlement token balance of owner.
func (g *Gateway) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := g.call(ctx, erc20ABI, g.cfg.SettlementToken, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return firstBigInt("balanceOf", out)
}

// Allowance reads the settlement token allowance.
func (g *Gateway) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out, err := g.call(ctx, erc20ABI, g.cfg.SettlementToken, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return firstBigInt("allowance", out)
}

func firstBigInt(method string, out []any) (*big.Int, error) {
	if len(out) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed, apperror.WithContext(method+": no output"))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("%s: output has type %T", method, out[0])))
	}
	return v, nil
}

// SubmitResolution sends OracleResolver.submitResolution.
func (g *Gateway) SubmitResolution(ctx context.Context, id uint64, outcome uint8, confidence int) (common.Hash, error) {
	return g.transact(ctx, oracleABI, g.cfg.OracleResolver, "submitResolution",
		new(big.Int).SetUint64(id), outcome, big.NewInt(int64(confidence)))
}

// ResolveMarket sends PredictionMarket.resolveMarket.
func (g *Gateway) ResolveMarket(ctx context.Context, id uint64, outcome uint8) (common.Hash, error) {
	return g.transact(ctx, marketABI, g.cfg.PredictionMarket, "resolveMarket",
		new(big.Int).SetUint64(id), outcome)
}

// Approve sends ERC20 approve on the settlement token.
func (g *Gateway) Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	return g.transact(ctx, erc20ABI, g.cfg.SettlementToken, "approve", spender, amount)
}

// PlaceBet sends PredictionMarket.placeBet.
func (g *Gateway) PlaceBet(ctx context.Context, id uint64, outcome uint8, amount *big.Int) (common.Hash, error) {
	return g.transact(ctx, marketABI, g.cfg.PredictionMarket, "placeBet",
		new(big.Int).SetUint64(id), outcome, amount)
}

// ClaimWinnings sends PredictionMarket.claimWinnings.
func (g *Gateway) ClaimWinnings(ctx context.Context, id uint64) (common.Hash, error) {
	return g.transact(ctx, marketABI, g.cfg.PredictionMarket, "claimWinnings", new(big.Int).SetUint64(id))
}

// WaitMined waits for the receipt of hash.
func (g *Gateway) WaitMined(ctx context.Context, hash common.Hash) (domain.Receipt, error) {
	if g.tx == nil {
		return domain.Receipt{}, g.readOnly()
	}

	ctx, span := g.tracer.Start(ctx, "chain.wait_mined",
		trace.WithAttributes(attribute.String("tx", hash.Hex())))
	defer span.End()

	receipt, err := g.tx.wait(ctx, hash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return receipt, err
	}
	span.SetAttributes(attribute.Int64("block", int64(receipt.BlockNumber)))
	return receipt, nil
}

// TxStatus reports the current status of hash without waiting.
func (g *Gateway) TxStatus(ctx context.Context, hash common.Hash) (domain.TxStatus, error) {
	if g.tx == nil {
		return "", g.readOnly()
	}
	return g.tx.status(ctx, hash)
}

func (g *Gateway) readOnly() error {
	return apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext("chain.private_key"))
}

// call packs, executes through the breaker and unpacks a view call.
func (g *Gateway) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	ctx, span := g.tracer.Start(ctx, "chain.call",
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("contract", to.Hex()),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := g.doCall(ctx, contract, to, method, args...)

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", err == nil),
	)
	g.metrics.calls.Add(ctx, 1, attrs)
	g.metrics.callLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (g *Gateway) doCall(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	callData, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	result, err := g.cb.Execute(func() ([]byte, error) {
		return g.backend.CallContract(ctx, ethereum.CallMsg{
			To:   &to,
			Data: callData,
		}, nil)
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeCircuitOpen) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(method+": decode"))
	}
	return out, nil
}

func (g *Gateway) transact(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (common.Hash, error) {
	if g.tx == nil {
		return common.Hash{}, g.readOnly()
	}

	ctx, span := g.tracer.Start(ctx, "chain.transact",
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("contract", to.Hex()),
		),
	)
	defer span.End()

	data, err := contract.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	hash, err := g.tx.send(ctx, method, to, data)

	result := "sent"
	if err != nil {
		result = string(apperror.GetCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	} else {
		span.SetAttributes(attribute.String("tx", hash.Hex()))
	}
	g.metrics.transactions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("result", result),
	))
	return hash, err
}
