package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

const (
	tracerName = "feed"
	meterName  = "feed"
)

type feedEntry struct {
	provider Provider
	fallback domain.Reading
}

// Service is the feed registry. Fetch never fails.
type Service struct {
	log    logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time

	fetches   metric.Int64Counter
	fallbacks metric.Int64Counter

	mu    sync.RWMutex
	feeds map[string]feedEntry
}

// NewService creates an empty registry.
func NewService(log logger.LoggerInterface) (*Service, error) {
	meter := otel.Meter(meterName)

	fetches, err := meter.Int64Counter("oracle_feed_fetches_total",
		metric.WithDescription("Feed reads by feed and source"))
	if err != nil {
		return nil, err
	}
	fallbacks, err := meter.Int64Counter("oracle_feed_fallbacks_total",
		metric.WithDescription("Feed reads answered by the fallback value"))
	if err != nil {
		return nil, err
	}

	return &Service{
		log:       log,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		fetches:   fetches,
		fallbacks: fallbacks,
		feeds:     make(map[string]feedEntry),
	}, nil
}

// Register adds a provider with its fallback. Names must be unique.
func (s *Service) Register(p Provider, fallback domain.Value, fallbackConfidence int) error {
	if fallback.Kind() == 0 {
		return apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext("fallback for feed "+p.Name()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feeds[p.Name()]; ok {
		return apperror.Validation(apperror.CodeConfigurationError, "duplicate feed "+p.Name())
	}
	s.feeds[p.Name()] = feedEntry{
		provider: p,
		fallback: domain.Reading{
			Feed:       p.Name(),
			Value:      fallback,
			Confidence: fallbackConfidence,
			Source:     domain.SourceFallback,
		},
	}
	return nil
}

// Has reports whether name is registered.
func (s *Service) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.feeds[name]
	return ok
}

// Names returns the registered feed names, sorted.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.feeds))
	for name := range s.feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch reads the named feed. On any failure it logs and returns the
// fallback reading; it does not retry. An unregistered name yields a
// zero-confidence reading, which no gate accepts.
func (s *Service) Fetch(ctx context.Context, name string) domain.Reading {
	ctx, span := s.tracer.Start(ctx, "feed.fetch", trace.WithAttributes(attribute.String("feed", name)))
	defer span.End()

	s.mu.RLock()
	entry, ok := s.feeds[name]
	s.mu.RUnlock()

	if !ok {
		err := apperror.NotFound(apperror.CodeFeedNotFound, name)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error(ctx, "unknown feed", err.LogAttrs()...)
		return domain.Reading{Feed: name, Source: domain.SourceFallback, ObservedAt: s.now()}
	}

	reading, err := entry.provider.Read(ctx)
	if err == nil && reading.Value.Kind() == 0 {
		err = apperror.New(apperror.CodeFeedUnavailable, apperror.WithContext(name+": empty reading"))
	}
	if err != nil {
		appErr := apperror.Wrap(err, apperror.CodeFeedUnavailable, name)
		span.RecordError(err)
		span.SetAttributes(attribute.String("source", string(domain.SourceFallback)))
		s.log.Warn(ctx, "feed failed, using fallback",
			append(appErr.LogAttrs(), "feed", name, "fallback", entry.fallback.Value.String())...)

		s.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("feed", name)))
		s.fetches.Add(ctx, 1, metric.WithAttributes(
			attribute.String("feed", name), attribute.String("source", string(domain.SourceFallback))))

		fb := entry.fallback
		fb.ObservedAt = s.now()
		return fb
	}

	reading.Feed = name
	reading.Source = domain.SourceLive
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = s.now()
	}

	span.SetAttributes(
		attribute.String("source", string(domain.SourceLive)),
		attribute.String("value", reading.Value.String()),
		attribute.Int("confidence", reading.Confidence),
	)
	s.fetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("feed", name), attribute.String("source", string(domain.SourceLive))))
	s.log.Debug(ctx, "feed read", "feed", name, "value", reading.Value.String(), "confidence", reading.Confidence)

	return reading
}

// Providers returns the registered providers ordered by name.
func (s *Service) Providers() []Provider {
	names := s.Names()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		out = append(out, s.feeds[name].provider)
	}
	return out
}

// Close closes every provider that holds a connection.
func (s *Service) Close() error {
	var errs []error
	for _, p := range s.Providers() {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
