// Package main is the entry point for the oracle resolver.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/oracle-resolver/business/chain"
	chainDI "github.com/fd1az/oracle-resolver/business/chain/di"
	"github.com/fd1az/oracle-resolver/business/feed"
	feedDI "github.com/fd1az/oracle-resolver/business/feed/di"
	"github.com/fd1az/oracle-resolver/business/marketview"
	marketviewDI "github.com/fd1az/oracle-resolver/business/marketview/di"
	"github.com/fd1az/oracle-resolver/business/marketview/infra/httpapi"
	"github.com/fd1az/oracle-resolver/business/resolution"
	"github.com/fd1az/oracle-resolver/business/resolver"
	resolverDI "github.com/fd1az/oracle-resolver/business/resolver/di"
	"github.com/fd1az/oracle-resolver/internal/apm"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/health"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/metrics"
	"github.com/fd1az/oracle-resolver/internal/monolith"
	"github.com/fd1az/oracle-resolver/internal/redislock"
	"github.com/fd1az/oracle-resolver/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type options struct {
	configPath string
	tui        bool
	cycles     int
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.tui, "tui", false, "Run with the terminal dashboard instead of log output")
	flag.IntVar(&opts.cycles, "cycles", -1, "Stop after this many cycles (0 runs until interrupted)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("oracle-resolver %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !opts.tui {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v, finishing in-flight submissions\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = opts.tui
	if opts.cycles >= 0 {
		cfg.Resolver.MaxCycles = opts.cycles
	}

	// No key means no polling at all.
	if err := cfg.ValidateSigner(); err != nil {
		return err
	}

	out := io.Writer(os.Stderr)
	if opts.tui {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, logger.SpanTraceID)
	log.Info(ctx, "starting oracle resolver",
		"version", version,
		"environment", cfg.App.Environment,
		"chain_id", cfg.Chain.ChainID,
	)

	shutdownTelemetry, metricsServer, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if cfg.Lock.Enabled {
		release, err := acquireLease(ctx, cfg.Lock, log, stop)
		if err != nil {
			return err
		}
		defer release()
	}

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&chain.Module{},      // gateway, used by everything below
		&feed.Module{},       // feed registry
		&resolution.Module{}, // rule table
		&resolver.Module{},   // journal, submitter, loop
		&marketview.Module{}, // read-only market API
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	defer func() {
		if err := feedDI.GetFeedService(mono.Services()).Close(); err != nil {
			log.Warn(context.Background(), "closing feeds", "error", err)
		}
		if err := resolverDI.GetJournal(mono.Services()).Close(); err != nil {
			log.Warn(context.Background(), "closing journal", "error", err)
		}
	}()

	healthServer := newHealthServer(cfg, mono, log)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Stop(sctx)
	}()

	serve := func() error {
		return serveAll(ctx, stop, cfg, mono, metricsServer, log)
	}

	if opts.tui {
		var serving atomic.Bool
		serveDone := make(chan error, 1)
		startFunc := func() error {
			if err := startModulesWithProgress(ctx, cfg, mono, modules); err != nil {
				return err
			}
			serving.Store(true)
			go func() {
				err := serve()
				if err != nil {
					ui.Send(ui.ErrorMsg{Error: err})
				}
				serveDone <- err
			}()
			return nil
		}

		err := runTUI(ctx, startFunc)
		// Quitting the dashboard stops the loop; in-flight submissions finish.
		stop()
		if serving.Load() {
			if serr := <-serveDone; err == nil {
				err = serr
			}
		}
		return err
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	log.Info(ctx, "all modules started, beginning resolution loop")
	return serve()
}

// serveAll runs the loop, the market API and the metrics server until the
// loop finishes or ctx is cancelled.
func serveAll(ctx context.Context, stop context.CancelFunc, cfg *config.Config, mono monolith.Monolith, metricsServer *metrics.Server, log logger.LoggerInterface) error {
	g, gctx := errgroup.WithContext(ctx)

	loop := resolverDI.GetLoop(mono.Services())
	g.Go(func() error {
		defer stop()
		return loop.Run(gctx)
	})

	if cfg.API.Enabled {
		api := httpapi.NewServer(cfg.API.Port, marketviewDI.GetMarketService(mono.Services()), log)
		g.Go(api.Start)
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(api.Stop)
		})
	}

	if metricsServer != nil {
		errCh := metricsServer.Start()
		g.Go(func() error {
			select {
			case err := <-errCh:
				return err
			case <-gctx.Done():
				return shutdown(metricsServer.Stop)
			}
		})
	}

	err := g.Wait()
	log.Info(context.Background(), "shut down", "error", err)
	return err
}

func shutdown(stopFn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return stopFn(ctx)
}

// setupTelemetry installs the tracer and meter providers. The returned
// metrics server is nil when telemetry is disabled.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), *metrics.Server, error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil, nil
	}

	endpoint := cfg.Telemetry.TraceEndpoint
	if endpoint == "" {
		endpoint = cfg.Telemetry.OTLPEndpoint
	}
	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    endpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
		Insecure:    cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	providers := []metrics.ProviderCfg{{Provider: metrics.PrometheusProvider}}
	if cfg.Telemetry.OTLPEndpoint != "" {
		providers = append(providers, metrics.ProviderCfg{
			Provider: metrics.OtelCollector,
			Endpoint: cfg.Telemetry.OTLPEndpoint,
			Headers:  cfg.Telemetry.OTLPHeaders,
			Insecure: cfg.Telemetry.Insecure,
		})
	}
	mp, err := metrics.NewMetricProvider(ctx, metrics.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Providers:   providers,
	})
	if err != nil {
		_ = tp.Stop()
		return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	log.Info(ctx, "telemetry initialized",
		"trace_provider", cfg.Telemetry.TraceProvider,
		"prometheus_port", cfg.Telemetry.PrometheusPort,
	)

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mp.Shutdown(sctx)
		_ = tp.Stop()
	}, metrics.NewServer(cfg.Telemetry.PrometheusPort), nil
}

// acquireLease takes the single-writer lease. Losing it later stops the
// process through stop.
func acquireLease(ctx context.Context, cfg config.LockConfig, log logger.LoggerInterface, stop context.CancelFunc) (func(), error) {
	rdb, err := redislock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	lease, err := redislock.New(rdb).Acquire(ctx, cfg.Key, cfg.TTL)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	log.Info(ctx, "signer lease acquired", "key", cfg.Key, "token", lease.Token())

	go lease.KeepAlive(ctx, func(err error) {
		log.Error(ctx, "signer lease lost, stopping", "key", cfg.Key, "error", err)
		stop()
	})

	return func() {
		lease.Release()
		_ = rdb.Close()
	}, nil
}

type application interface {
	monolith.Monolith
	StartModules(ctx context.Context, modules ...monolith.Module) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newHealthServer(cfg *config.Config, mono monolith.Monolith, log logger.LoggerInterface) *health.Server {
	srv := health.NewServer(cfg.Health.Port, version, log)

	srv.RegisterCheck("rpc", func(ctx context.Context) (bool, string) {
		if err := chainDI.GetGateway(mono.Services()).Ping(ctx); err != nil {
			return false, err.Error()
		}
		return true, "reachable"
	})
	srv.RegisterCheck("journal", func(ctx context.Context) (bool, string) {
		j, ok := resolverDI.GetJournal(mono.Services()).(pinger)
		if !ok {
			return true, cfg.Resolver.Journal.Driver
		}
		if err := j.Ping(ctx); err != nil {
			return false, err.Error()
		}
		return true, cfg.Resolver.Journal.Driver
	})
	return srv
}

// startModulesWithProgress starts the modules while reporting each step to
// the dashboard.
func startModulesWithProgress(ctx context.Context, cfg *config.Config, mono application, modules []monolith.Module) error {
	ui.Send(ui.StartupMsg{Step: "config", Status: "done", Message: fmt.Sprintf("%d markets", len(cfg.Resolver.Markets))})

	ui.Send(ui.StartupMsg{Step: "rpc", Status: "connecting", Message: cfg.Chain.RPCURL})
	gw := chainDI.GetGateway(mono.Services())
	started := time.Now()
	if err := gw.Ping(ctx); err != nil {
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "failed", Message: err.Error()})
		ui.Send(ui.ConnectionStatusMsg{Name: "RPC", Connected: false, Detail: err.Error()})
	} else {
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "connected", Message: cfg.Chain.RPCURL})
		ui.Send(ui.ConnectionStatusMsg{Name: "RPC", Connected: true, Latency: time.Since(started), Detail: fmt.Sprintf("chain %d", cfg.Chain.ChainID)})
	}

	ui.Send(ui.StartupMsg{Step: "feeds", Status: "connecting"})
	if err := mono.StartModules(ctx, modules...); err != nil {
		ui.Send(ui.StartupMsg{Step: "feeds", Status: "failed", Message: err.Error()})
		return fmt.Errorf("failed to start modules: %w", err)
	}
	feeds := feedDI.GetFeedService(mono.Services())
	ui.Send(ui.StartupMsg{Step: "feeds", Status: "done", Message: fmt.Sprintf("%d feeds", len(feeds.Names()))})
	for _, name := range feeds.Names() {
		ui.Send(ui.ConnectionStatusMsg{Name: name, Connected: true})
	}

	ui.Send(ui.StartupMsg{Step: "journal", Status: "done", Message: cfg.Resolver.Journal.Driver})

	ui.Send(ui.SettingsMsg{
		Threshold: cfg.Resolver.ConfidenceThreshold,
		Interval:  cfg.Resolver.Interval,
		Markets:   cfg.Resolver.Markets,
		Account:   gw.Account().Hex(),
		Market:    gw.MarketAddress().Hex(),
		CanSign:   gw.CanSign(),
	})
	return nil
}

func runTUI(ctx context.Context, startFunc func() error) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		<-ctx.Done()
		p.Quit()
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		return nil
	}
}
