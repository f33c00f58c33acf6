// Package httpfeed reads a JSON HTTP endpoint and extracts a value with CEL.
package httpfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/oracle-resolver/business/feed/app"
	"github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/business/feed/infra/extract"
	"github.com/fd1az/oracle-resolver/internal/circuitbreaker"
	"github.com/fd1az/oracle-resolver/internal/httpclient"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/ratelimit"
)

const tracerName = "httpfeed"

var _ app.Provider = (*Provider)(nil)

// Config describes one HTTP feed.
type Config struct {
	Name              string
	URL               string
	Extract           string
	Confidence        domain.ConfidencePolicy
	Timeout           time.Duration
	RequestsPerMinute int
}

// Provider reads a JSON endpoint. It is rate limited and guarded by a
// circuit breaker; an open breaker is reported as a read failure.
type Provider struct {
	cfg       Config
	client    httpclient.Client
	extractor *extract.Extractor
	limiter   *ratelimit.Limiter
	cb        *circuitbreaker.CircuitBreaker[domain.Value]
	log       logger.LoggerInterface
	tracer    trace.Tracer
}

// NewProvider builds a provider. client may be nil, in which case an
// instrumented client is created for the feed.
func NewProvider(cfg Config, client httpclient.Client, log logger.LoggerInterface) (*Provider, error) {
	extractor, err := extract.New(cfg.Extract)
	if err != nil {
		return nil, err
	}

	if client == nil {
		if cfg.Timeout <= 0 {
			cfg.Timeout = 10 * time.Second
		}
		client, err = httpclient.NewInstrumentedClient(
			httpclient.WithProviderName(cfg.Name),
			httpclient.WithRequestTimeout(cfg.Timeout),
			httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
		)
		if err != nil {
			return nil, fmt.Errorf("http client for feed %s: %w", cfg.Name, err)
		}
	}

	cbCfg := circuitbreaker.DefaultConfig("feed-" + cfg.Name)
	cbCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "feed circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &Provider{
		cfg:       cfg,
		client:    client,
		extractor: extractor,
		limiter:   ratelimit.New(cfg.RequestsPerMinute),
		cb:        circuitbreaker.New[domain.Value](cbCfg),
		log:       log,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Name returns the feed name.
func (p *Provider) Name() string {
	return p.cfg.Name
}

// Read fetches and extracts the current value.
func (p *Provider) Read(ctx context.Context) (domain.Reading, error) {
	ctx, span := p.tracer.Start(ctx, "httpfeed.read",
		trace.WithAttributes(attribute.String("feed", p.cfg.Name)))
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return domain.Reading{}, err
	}

	value, err := p.cb.Execute(func() (domain.Value, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Reading{}, err
	}

	return domain.Reading{
		Value:      value,
		Confidence: p.cfg.Confidence.For(value),
		ObservedAt: time.Now(),
	}, nil
}

func (p *Provider) fetch(ctx context.Context) (domain.Value, error) {
	var body any
	resp, err := p.client.NewRequest(
		httpclient.WithLabels(httpclient.NewLabel("feed", p.cfg.Name)),
	).Get(ctx, p.cfg.URL)
	if err != nil {
		return domain.Value{}, err
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return domain.Value{}, fmt.Errorf("decode %s response: %w", p.cfg.Name, err)
	}
	return p.extractor.Extract(body)
}
