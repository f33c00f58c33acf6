// Package resolver implements the resolution loop bounded context: it reads
// feeds, decides outcomes, and performs the two chain writes per market.
package resolver

import (
	"context"
	"os"

	chainDI "github.com/fd1az/oracle-resolver/business/chain/di"
	feedDI "github.com/fd1az/oracle-resolver/business/feed/di"
	resolutionDI "github.com/fd1az/oracle-resolver/business/resolution/di"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/app"
	resolverDI "github.com/fd1az/oracle-resolver/business/resolver/di"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/infra/journal/memory"
	"github.com/fd1az/oracle-resolver/business/resolver/infra/journal/sqlite"
	"github.com/fd1az/oracle-resolver/business/resolver/infra/reporter"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/di"
	"github.com/fd1az/oracle-resolver/internal/logger"
	"github.com/fd1az/oracle-resolver/internal/monolith"
	"github.com/fd1az/oracle-resolver/internal/notify"
)

// Module implements the resolver bounded context.
type Module struct{}

// RegisterServices registers the journal, the submitter and the loop.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, resolverDI.Journal, func(sr di.ServiceRegistry) app.Journal {
		cfg := sr.Get("config").(*config.Config)

		j, err := NewJournal(cfg.Resolver.Journal)
		if err != nil {
			panic("failed to open commit journal: " + err.Error())
		}
		return j
	})

	di.RegisterToken(c, resolverDI.Submitter, func(sr di.ServiceRegistry) *app.Submitter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		s, err := app.NewSubmitter(
			chainDI.GetGateway(sr),
			resolverDI.GetJournal(sr),
			cfg.Resolver.ShutdownGrace,
			log,
		)
		if err != nil {
			panic("failed to create submitter: " + err.Error())
		}
		return s
	})

	di.RegisterToken(c, resolverDI.Loop, func(sr di.ServiceRegistry) *app.Loop {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var rep app.Reporter = reporter.NewConsoleReporter(os.Stdout)
		if cfg.App.TUIMode {
			rep = reporter.NewTUIReporter()
		}

		loop, err := app.NewLoop(
			LoopConfig(cfg.Resolver),
			resolutionDI.GetRuleTable(sr),
			feedDI.GetFeedService(sr),
			resolverDI.GetSubmitter(sr),
			rep,
			NewNotifier(cfg.Notify, log),
			log,
		)
		if err != nil {
			panic("failed to create resolver loop: " + err.Error())
		}
		return loop
	})
	return nil
}

// Startup checks the rule table against the feeds and configured markets,
// opens the journal and reports commits left by a previous run. A gap in the
// rules is ConfigurationMissing and fails startup before any polling.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	if err := CheckRules(resolutionDI.GetRuleTable(sr), feedDI.GetFeedService(sr), mono.Config().Resolver); err != nil {
		return err
	}

	journal := resolverDI.GetJournal(sr)

	commits, err := journal.List(ctx)
	if err != nil {
		return err
	}
	unfinished := 0
	for _, c := range commits {
		if c.Stage != domain.StageResolved {
			unfinished++
		}
	}

	cfg := mono.Config().Resolver
	log.Info(ctx, "resolver module started",
		"journal", cfg.Journal.Driver,
		"commits", len(commits),
		"unfinished", unfinished,
		"threshold", cfg.ConfidenceThreshold,
	)
	return nil
}

// LoopConfig maps resolver settings to loop settings.
func LoopConfig(cfg config.ResolverConfig) app.Config {
	return app.Config{
		Interval:       cfg.Interval,
		Pacing:         cfg.Pacing,
		Threshold:      cfg.ConfidenceThreshold,
		Markets:        cfg.Markets,
		InitialMarkets: cfg.InitialMarkets,
		MaxCycles:      cfg.MaxCycles,
	}
}

// CheckRules fails with ConfigurationMissing when a rule names an unknown
// feed or a configured market has no rule.
func CheckRules(table *resolutiondomain.Table, feeds app.Feeds, cfg config.ResolverConfig) error {
	markets := append(append([]uint64(nil), cfg.Markets...), cfg.InitialMarkets...)
	return table.Validate(feeds.Has, markets)
}

// NewJournal opens the configured journal backend. An empty driver means
// sqlite.
func NewJournal(cfg config.JournalConfig) (app.Journal, error) {
	if cfg.Driver == "memory" {
		return memory.New(), nil
	}
	path := cfg.Path
	if path == "" {
		path = "oracle.db"
	}
	return sqlite.Open(path)
}

// NewNotifier returns a Telegram-backed notifier, or nil when no token is
// configured or the sender cannot be built.
func NewNotifier(cfg config.NotifyConfig, log logger.LoggerInterface) app.Notifier {
	if cfg.TelegramToken == "" {
		return nil
	}
	tg, err := notify.NewTelegramSender(cfg.TelegramURL, cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn(context.Background(), "telegram notifications disabled", "error", err)
		return nil
	}
	return notify.New([]notify.Sender{tg},
		[]string{notify.EventResolved, notify.EventFailed}, log)
}
