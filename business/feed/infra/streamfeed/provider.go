// Package streamfeed serves the latest price pushed over a WebSocket.
package streamfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/oracle-resolver/business/feed/app"
	"github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/business/feed/infra/extract"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/wsconn"
)

const meterName = "streamfeed"

var _ app.Provider = (*Provider)(nil)

// Config describes one stream feed.
type Config struct {
	Name string
	URL  string
	// Subscribe is sent verbatim after every (re)connect, if set.
	Subscribe json.RawMessage
	// Extract is a CEL expression over the decoded message `body`.
	Extract    string
	MaxAge     time.Duration
	Confidence domain.ConfidencePolicy
}

// Provider keeps the latest extracted value. Messages the expression does
// not match, such as subscription acks, are ignored.
type Provider struct {
	cfg       Config
	ws        *wsconn.Client
	extractor *extract.Extractor
	log       logger.LoggerInterface
	now       func() time.Time

	messages metric.Int64Counter
	ignored  metric.Int64Counter

	mu     sync.RWMutex
	latest domain.Value
	at     time.Time
}

// NewProvider creates the provider. It does not connect.
func NewProvider(cfg Config, log logger.LoggerInterface) (*Provider, error) {
	extractor, err := extract.New(cfg.Extract)
	if err != nil {
		return nil, err
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Minute
	}

	wsCfg := wsconn.DefaultConfig(cfg.URL, cfg.Name)
	if len(cfg.Subscribe) > 0 {
		wsCfg.Subscribe = []any{cfg.Subscribe}
	}
	ws, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(meterName)
	messages, err := meter.Int64Counter("oracle_stream_messages_total",
		metric.WithDescription("Stream feed messages received"))
	if err != nil {
		return nil, err
	}
	ignored, err := meter.Int64Counter("oracle_stream_messages_ignored_total",
		metric.WithDescription("Stream feed messages without a usable value"))
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:       cfg,
		ws:        ws,
		extractor: extractor,
		log:       log,
		now:       time.Now,
		messages:  messages,
		ignored:   ignored,
	}
	ws.OnMessage(p.handleMessage)
	ws.OnStateChange(func(state wsconn.State, err error) {
		if err != nil {
			log.Warn(context.Background(), "stream feed connection", "feed", cfg.Name, "state", string(state), "error", err)
			return
		}
		log.Info(context.Background(), "stream feed connection", "feed", cfg.Name, "state", string(state))
	})
	return p, nil
}

// Connect dials the stream. Reconnects happen in the background.
func (p *Provider) Connect(ctx context.Context) error {
	return p.ws.Connect(ctx)
}

// Close stops the stream.
func (p *Provider) Close() error {
	return p.ws.Close()
}

// Name returns the feed name.
func (p *Provider) Name() string {
	return p.cfg.Name
}

// Read returns the latest value, or an error when nothing fresh has arrived.
func (p *Provider) Read(context.Context) (domain.Reading, error) {
	p.mu.RLock()
	value, at := p.latest, p.at
	p.mu.RUnlock()

	if value.Kind() == 0 {
		return domain.Reading{}, apperror.New(apperror.CodeFeedUnavailable,
			apperror.WithContext(p.cfg.Name+": no data received"))
	}
	if age := p.now().Sub(at); age > p.cfg.MaxAge {
		return domain.Reading{}, apperror.New(apperror.CodeFeedStale,
			apperror.WithContext(fmt.Sprintf("%s: last update %s ago", p.cfg.Name, age.Round(time.Second))))
	}

	return domain.Reading{
		Value:      value,
		Confidence: p.cfg.Confidence.For(value),
		ObservedAt: at,
	}, nil
}

func (p *Provider) handleMessage(ctx context.Context, msg []byte) {
	p.messages.Add(ctx, 1)

	var body any
	if err := json.Unmarshal(msg, &body); err != nil {
		p.ignored.Add(ctx, 1)
		return
	}
	value, err := p.extractor.Extract(body)
	if err != nil {
		p.ignored.Add(ctx, 1)
		return
	}

	p.mu.Lock()
	p.latest = value
	p.at = p.now()
	p.mu.Unlock()
}
