// Package app contains the market view service.
package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainapp "github.com/fd1az/oracle-resolver/business/chain/app"
	"github.com/fd1az/oracle-resolver/business/marketview/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/asset"
	"github.com/fd1az/oracle-resolver/internal/cache"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

const (
	tracerName = "marketview"
	meterName  = "marketview"

	listKey = "markets"
)

// Service aggregates on-chain markets into display views. Reads are
// independent of each other and safe for concurrent use.
type Service struct {
	reader chainapp.MarketReader
	token  *asset.Token
	log    logger.LoggerInterface
	now    func() time.Time

	list    *cache.Cache[string, []domain.MarketView]
	markets *cache.Cache[uint64, domain.MarketView]

	tracer   trace.Tracer
	failures metric.Int64Counter
}

// NewService creates the service. ttl bounds how long views are cached;
// zero disables caching.
func NewService(reader chainapp.MarketReader, token *asset.Token, ttl time.Duration, log logger.LoggerInterface) (*Service, error) {
	failures, err := otel.Meter(meterName).Int64Counter("oracle_market_fetch_failures_total",
		metric.WithDescription("Market reads that failed and were left out of a listing"))
	if err != nil {
		return nil, err
	}

	s := &Service{
		reader:   reader,
		token:    token,
		log:      log,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
		failures: failures,
	}
	if ttl > 0 {
		s.list = cache.New[string, []domain.MarketView](ttl)
		s.markets = cache.New[uint64, domain.MarketView](ttl)
	}
	return s, nil
}

// Token returns the settlement token.
func (s *Service) Token() *asset.Token {
	return s.token
}

// List returns every market the contract knows about. A market whose read
// fails is logged and left out; a failed count fails the whole listing.
func (s *Service) List(ctx context.Context) ([]domain.MarketView, error) {
	if s.list != nil {
		if views, ok := s.list.Get(ctx, listKey); ok {
			return views, nil
		}
	}

	ctx, span := s.tracer.Start(ctx, "marketview.list")
	defer span.End()

	count, err := s.reader.MarketCount(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeMarketFetchFailed,
			apperror.WithCause(err), apperror.WithContext("marketCounter"))
	}
	span.SetAttributes(attribute.Int64("count", int64(count)))

	views := make([]domain.MarketView, 0, count)
	for id := uint64(0); id < count; id++ {
		v, err := s.fetch(ctx, id)
		if err != nil {
			s.failures.Add(ctx, 1)
			s.log.Warn(ctx, "skipping market", "market", id, "error", err)
			continue
		}
		views = append(views, v)
	}

	if s.list != nil {
		s.list.Set(ctx, listKey, views, 0)
	}
	return views, nil
}

// Get returns one market.
func (s *Service) Get(ctx context.Context, id uint64) (domain.MarketView, error) {
	if s.markets != nil {
		if v, ok := s.markets.Get(ctx, id); ok {
			return v, nil
		}
	}

	ctx, span := s.tracer.Start(ctx, "marketview.get", trace.WithAttributes(
		attribute.Int64("market", int64(id)),
	))
	defer span.End()

	v, err := s.fetch(ctx, id)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeMarketNotFound) {
			return domain.MarketView{}, err
		}
		return domain.MarketView{}, apperror.New(apperror.CodeMarketFetchFailed,
			apperror.WithCause(err), apperror.WithContext(fmt.Sprintf("market %d", id)))
	}
	return v, nil
}

// PotentialWinnings returns the payout for betting amount (in display units)
// on outcome, as computed by the contract.
func (s *Service) PotentialWinnings(ctx context.Context, id uint64, outcome resolutiondomain.Outcome, amount string) (asset.Amount, error) {
	if !outcome.Valid() {
		return asset.Amount{}, apperror.Validation(apperror.CodeInvalidOutcome, outcome.String())
	}
	a, err := ParseAmount(s.token, amount)
	if err != nil {
		return asset.Amount{}, err
	}

	raw, err := s.reader.PotentialWinnings(ctx, id, uint8(outcome), a.Raw())
	if err != nil {
		return asset.Amount{}, apperror.New(apperror.CodeMarketFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("potential winnings market %d", id)))
	}
	if raw.Sign() < 0 {
		raw.SetInt64(0)
	}
	return asset.NewAmount(s.token, raw), nil
}

// Invalidate drops cached views so the next read goes to the chain.
func (s *Service) Invalidate(ctx context.Context, id uint64) {
	if s.list == nil {
		return
	}
	s.list.Delete(ctx, listKey)
	s.markets.Delete(ctx, id)
}

// Close stops the cache janitors.
func (s *Service) Close() {
	if s.list == nil {
		return
	}
	s.list.Close()
	s.markets.Close()
}

func (s *Service) fetch(ctx context.Context, id uint64) (domain.MarketView, error) {
	m, err := s.reader.Market(ctx, id)
	if err != nil {
		return domain.MarketView{}, err
	}
	v := domain.NewMarketView(m, s.token, s.now())
	if s.markets != nil {
		s.markets.Set(ctx, id, v, 0)
	}
	return v, nil
}

// ParseAmount parses a positive display amount, e.g. "10.5".
func ParseAmount(token *asset.Token, s string) (asset.Amount, error) {
	a, err := asset.ParseString(token, s)
	if err != nil {
		return asset.Amount{}, apperror.New(apperror.CodeInvalidAmount,
			apperror.WithCause(err), apperror.WithContext(s))
	}
	if !a.IsPositive() {
		return asset.Amount{}, apperror.Validation(apperror.CodeInvalidAmount, "amount must be positive")
	}
	return a, nil
}
