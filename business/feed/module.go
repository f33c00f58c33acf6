// Package feed implements the feed adapter bounded context.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fd1az/oracle-resolver/business/feed/app"
	feedDI "github.com/fd1az/oracle-resolver/business/feed/di"
	"github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/business/feed/infra/httpfeed"
	"github.com/fd1az/oracle-resolver/business/feed/infra/randomfeed"
	"github.com/fd1az/oracle-resolver/business/feed/infra/staticfeed"
	"github.com/fd1az/oracle-resolver/business/feed/infra/streamfeed"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/di"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/monolith"
)

// Module implements the feed bounded context.
type Module struct{}

// RegisterServices registers the feed registry built from configuration.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, feedDI.FeedService, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		svc, err := NewService(cfg.Feeds, log)
		if err != nil {
			panic("failed to create feed service: " + err.Error())
		}
		return svc
	})
	return nil
}

// Startup connects stream feeds. A stream that cannot connect yet is not
// fatal; its reads fall back until it does.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := feedDI.GetFeedService(mono.Services())

	for _, p := range svc.Providers() {
		connector, ok := p.(interface{ Connect(context.Context) error })
		if !ok {
			continue
		}
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := connector.Connect(connectCtx); err != nil {
			log.Warn(ctx, "stream feed connection failed, will fall back", "feed", p.Name(), "error", err)
		}
		cancel()
	}

	log.Info(ctx, "feed module started", "feeds", svc.Names())
	return nil
}

// NewService builds the registry from feed definitions.
func NewService(cfg config.FeedsConfig, log logger.LoggerInterface) (*app.Service, error) {
	svc, err := app.NewService(log)
	if err != nil {
		return nil, err
	}

	for _, def := range cfg.Definitions {
		p, err := newProvider(def, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", def.Name, err)
		}
		fallback := readingValue(def.Fallback)
		if err := svc.Register(p, fallback, def.Fallback.Confidence); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func newProvider(def config.FeedDefinition, cfg config.FeedsConfig, log logger.LoggerInterface) (app.Provider, error) {
	policy := domain.ConfidencePolicy{
		Base:  def.Confidence.Base,
		High:  def.Confidence.High,
		Above: def.Confidence.Above,
	}

	switch def.Kind {
	case config.FeedKindHTTP:
		return httpfeed.NewProvider(httpfeed.Config{
			Name:              def.Name,
			URL:               def.URL,
			Extract:           def.Extract,
			Confidence:        policy,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}, nil, log)
	case config.FeedKindRandom:
		return randomfeed.NewProvider(def.Name, def.Probability, policy.Base), nil
	case config.FeedKindStream:
		var sub json.RawMessage
		if def.Subscribe != "" {
			sub = json.RawMessage(def.Subscribe)
			if !json.Valid(sub) {
				return nil, fmt.Errorf("subscribe message is not valid JSON")
			}
		}
		return streamfeed.NewProvider(streamfeed.Config{
			Name:       def.Name,
			URL:        def.URL,
			Subscribe:  sub,
			Extract:    def.Extract,
			MaxAge:     def.MaxAge,
			Confidence: policy,
		}, log)
	case config.FeedKindStatic:
		return staticfeed.NewProvider(def.Name, readingValue(def.Static), def.Static.Confidence), nil
	default:
		return nil, fmt.Errorf("unknown feed kind %q", def.Kind)
	}
}

func readingValue(r config.ReadingConfig) domain.Value {
	switch {
	case r.Number != nil:
		return domain.NumberValue(*r.Number)
	case r.Bool != nil:
		return domain.BoolValue(*r.Bool)
	default:
		return domain.Value{}
	}
}
