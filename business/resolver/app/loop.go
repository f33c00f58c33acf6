package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

// Config holds loop settings.
type Config struct {
	Interval  time.Duration
	Pacing    time.Duration
	Threshold int
	// Markets are visited in this order every cycle.
	Markets []uint64
	// InitialMarkets are visited once at startup, before the first tick.
	InitialMarkets []uint64
	// MaxCycles stops the loop after that many ticks. Zero runs until the
	// context is cancelled.
	MaxCycles int
}

// Loop visits the configured markets on a fixed interval, one at a time.
type Loop struct {
	cfg       Config
	table     *resolutiondomain.Table
	gate      resolutiondomain.Gate
	feeds     Feeds
	submitter *Submitter
	reporter  Reporter
	notifier  Notifier
	log       logger.LoggerInterface
	now       func() time.Time

	tracer    trace.Tracer
	cycles    metric.Int64Counter
	decisions metric.Int64Counter
}

// NewLoop validates the rule table against the feeds and market lists and
// creates the loop. Any gap is ConfigurationMissing. notifier may be nil.
func NewLoop(
	cfg Config,
	table *resolutiondomain.Table,
	feeds Feeds,
	submitter *Submitter,
	reporter Reporter,
	notifier Notifier,
	log logger.LoggerInterface,
) (*Loop, error) {
	if cfg.Interval <= 0 {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "resolver interval must be positive")
	}
	markets := append(append([]uint64(nil), cfg.Markets...), cfg.InitialMarkets...)
	if err := table.Validate(feeds.Has, markets); err != nil {
		return nil, err
	}

	meter := otel.Meter(meterName)
	cycles, err := meter.Int64Counter("oracle_cycles_total",
		metric.WithDescription("Completed resolver cycles"))
	if err != nil {
		return nil, err
	}
	decisions, err := meter.Int64Counter("oracle_decisions_total",
		metric.WithDescription("Resolution decisions by outcome and gate result"))
	if err != nil {
		return nil, err
	}

	return &Loop{
		cfg:       cfg,
		table:     table,
		gate:      resolutiondomain.Gate{Threshold: cfg.Threshold},
		feeds:     feeds,
		submitter: submitter,
		reporter:  reporter,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
		cycles:    cycles,
		decisions: decisions,
	}, nil
}

// Run resumes journaled work, visits the initial markets, then runs one
// cycle per tick until ctx is cancelled or MaxCycles is reached. Ticks that
// fire while a cycle is running are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.reporter.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := l.reporter.Stop(); err != nil {
			l.log.Warn(ctx, "reporter stop failed", "error", err)
		}
	}()

	l.log.Info(ctx, "resolver loop starting",
		"interval", l.cfg.Interval.String(),
		"pacing", l.cfg.Pacing.String(),
		"threshold", l.cfg.Threshold,
		"markets", l.cfg.Markets,
		"max_cycles", l.cfg.MaxCycles,
	)

	if err := l.ResumePending(ctx); err != nil {
		return err
	}

	if len(l.cfg.InitialMarkets) > 0 && ctx.Err() == nil {
		l.runCycle(ctx, 0, l.cfg.InitialMarkets)
	}

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for n := 1; l.cfg.MaxCycles == 0 || n <= l.cfg.MaxCycles; n++ {
		select {
		case <-ctx.Done():
			l.log.Info(ctx, "resolver loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}

		l.RunCycle(ctx, n)

		select {
		case <-ticker.C:
		default:
		}
	}

	l.log.Info(ctx, "resolver loop finished", "cycles", l.cfg.MaxCycles)
	return nil
}

// ResumePending finishes journaled commits that are not resolved yet, so a
// crash between the two writes is completed before any new decision.
func (l *Loop) ResumePending(ctx context.Context) error {
	commits, err := l.submitter.journal.List(ctx)
	if err != nil {
		return err
	}

	var pending []uint64
	for _, c := range commits {
		if c.Stage != domain.StageResolved {
			pending = append(pending, c.MarketID)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	l.log.Info(ctx, "resuming journaled commits", "markets", pending)
	l.runCycle(ctx, 0, pending)
	return nil
}

// RunCycle visits every configured market once, in order.
func (l *Loop) RunCycle(ctx context.Context, number int) domain.CycleSummary {
	return l.runCycle(ctx, number, l.cfg.Markets)
}

func (l *Loop) runCycle(ctx context.Context, number int, markets []uint64) domain.CycleSummary {
	summary := domain.NewCycleSummary(uuid.NewString(), number, l.now())

	ctx, span := l.tracer.Start(ctx, "resolver.cycle", trace.WithAttributes(
		attribute.String("cycle_id", summary.ID),
		attribute.Int("cycle", number),
	))
	defer span.End()

	l.reporter.CycleStarted(summary)

	for i, id := range markets {
		if i > 0 && !l.pace(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		v := l.Visit(ctx, summary.ID, id)
		summary.Add(v)
		l.reporter.Report(v)
		l.notify(ctx, v)
	}

	summary.Duration = l.now().Sub(summary.Started)
	l.cycles.Add(ctx, 1)
	l.reporter.CycleFinished(summary)

	l.log.Info(ctx, "cycle finished",
		"cycle", number,
		"cycle_id", summary.ID,
		"visits", summary.Visits(),
		"resolved", summary.Counts[domain.StatusResolved],
		"gated", summary.Counts[domain.StatusGated],
		"failed", summary.Counts[domain.StatusFailed],
		"duration", summary.Duration.String(),
	)
	return summary
}

// Visit handles one market: reconcile the journal, then either resume the
// attested commit or read the feed, decide and submit when the gate admits.
func (l *Loop) Visit(ctx context.Context, cycleID string, marketID uint64) (v domain.Visit) {
	v = domain.Visit{CycleID: cycleID, MarketID: marketID, Started: l.now()}
	defer func() { v.Duration = l.now().Sub(v.Started) }()

	ctx, span := l.tracer.Start(ctx, "resolver.visit", trace.WithAttributes(
		attribute.Int64("market", int64(marketID)),
	))
	defer span.End()

	if rule, ok := l.table.Lookup(marketID); ok {
		v.Rule = rule.Description
	}

	plan, err := l.submitter.Inspect(ctx, marketID)
	if err != nil {
		v.Status = domain.StatusFailed
		v.Err = err
		l.log.Error(ctx, "journal check failed", "market", marketID, "error", err)
		return v
	}

	switch plan.Action {
	case ActionSkip:
		v.Status = domain.StatusSkipped
		v.Decision = plan.Commit.Resolution()
		return v

	case ActionWait:
		v.Status = domain.StatusPending
		v.Decision = plan.Commit.Resolution()
		tx, _ := plan.Commit.InFlightTx()
		l.log.Info(ctx, "market awaiting confirmation", "market", marketID, "tx", tx.Hex())
		return v

	case ActionConfirmed:
		v.Status = domain.StatusResolved
		v.Resumed = true
		v.Decision = plan.Commit.Resolution()
		v.Result = domain.SubmissionResult{OracleTx: plan.Commit.AttestTx, MarketTx: plan.Commit.ResolveTx}
		return v

	case ActionResume:
		v.Resumed = true
		v.Decision = plan.Commit.Resolution()
		l.log.Info(ctx, "resuming attested resolution", "market", marketID, "outcome", v.Decision.Outcome.String())
		res, err := l.submitter.Resume(ctx, plan.Commit)
		l.settle(&v, res, err)
		return v
	}

	rule, ok := l.table.Lookup(marketID)
	if !ok {
		v.Status = domain.StatusNoRule
		l.log.Warn(ctx, "no rule for market", "market", marketID)
		return v
	}

	v.Reading = l.feeds.Fetch(ctx, rule.Feed)
	v.Decision = resolutiondomain.Decide(rule, v.Reading)
	admitted := l.gate.Admits(v.Decision)

	l.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", v.Decision.Outcome.String()),
		attribute.Bool("gated", !admitted),
	))
	l.log.Info(ctx, "decision",
		"market", marketID,
		"rule", rule.String(),
		"reading", v.Reading.String(),
		"outcome", v.Decision.Outcome.String(),
		"confidence", v.Decision.Confidence,
	)

	if !admitted {
		v.Status = domain.StatusGated
		l.log.Info(ctx, "confidence below threshold, skipping",
			"market", marketID,
			"confidence", v.Decision.Confidence,
			"threshold", l.gate.Threshold,
		)
		return v
	}

	res, err := l.submitter.Submit(ctx, v.Decision)
	l.settle(&v, res, err)
	return v
}

func (l *Loop) settle(v *domain.Visit, res domain.SubmissionResult, err error) {
	v.Result = res
	switch {
	case err == nil:
		v.Status = domain.StatusResolved
	case apperror.HasCode(err, apperror.CodeAlreadyResolved):
		v.Status = domain.StatusAlreadyResolved
	case apperror.HasCode(err, apperror.CodeAwaitingConfirmation):
		v.Status = domain.StatusPending
		v.Err = err
	default:
		v.Status = domain.StatusFailed
		v.Err = err
	}
}

func (l *Loop) notify(ctx context.Context, v domain.Visit) {
	if l.notifier == nil {
		return
	}
	var title, msg string
	switch v.Status {
	case domain.StatusResolved:
		title = fmt.Sprintf("Market %d resolved %s", v.MarketID, v.Decision.Outcome)
		msg = fmt.Sprintf("%s\nconfidence %d\noracle tx %s\nmarket tx %s",
			v.Rule, v.Decision.Confidence, v.Result.OracleTx.Hex(), v.Result.MarketTx.Hex())
	case domain.StatusFailed:
		title = fmt.Sprintf("Market %d resolution failed", v.MarketID)
		msg = v.Err.Error()
	default:
		return
	}
	if err := l.notifier.Notify(ctx, string(v.Status), title, msg); err != nil {
		l.log.Warn(ctx, "notify failed", "market", v.MarketID, "error", err)
	}
}

// pace waits between markets. It returns false when ctx is cancelled.
func (l *Loop) pace(ctx context.Context) bool {
	if l.cfg.Pacing <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(l.cfg.Pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
