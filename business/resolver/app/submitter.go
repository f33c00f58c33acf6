package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chaindomain "github.com/fd1az/oracle-resolver/business/chain/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

const (
	tracerName = "resolver"
	meterName  = "resolver"
)

// Action is what a visit should do given the journal.
type Action int

const (
	// ActionDecide: no usable commit, read the feed and decide afresh.
	ActionDecide Action = iota
	// ActionResume: the attestation is confirmed, send only resolveMarket.
	ActionResume
	// ActionWait: a journaled transaction is still unconfirmed.
	ActionWait
	// ActionSkip: the journal records the market resolved.
	ActionSkip
	// ActionConfirmed: a journaled resolveMarket just confirmed.
	ActionConfirmed
)

// Plan is the result of reconciling the journal with the chain.
type Plan struct {
	Action Action
	Commit domain.Commit
}

// Submitter performs the two sequential writes and keeps the journal.
// Attestation always precedes resolution; a failed attestation is never
// followed by a resolution.
type Submitter struct {
	chain   Chain
	journal Journal
	log     logger.LoggerInterface
	now     func() time.Time
	// grace bounds how long an in-flight submission may outlive the caller's
	// context. Zero waits indefinitely.
	grace time.Duration

	tracer      trace.Tracer
	submissions metric.Int64Counter

	mu       sync.Mutex
	inflight map[uint64]struct{}
}

// NewSubmitter creates a submitter.
func NewSubmitter(chain Chain, journal Journal, grace time.Duration, log logger.LoggerInterface) (*Submitter, error) {
	submissions, err := otel.Meter(meterName).Int64Counter("oracle_submissions_total",
		metric.WithDescription("Chain writes by step and result"))
	if err != nil {
		return nil, err
	}
	return &Submitter{
		chain:       chain,
		journal:     journal,
		log:         log,
		now:         time.Now,
		grace:       grace,
		tracer:      otel.Tracer(tracerName),
		submissions: submissions,
		inflight:    make(map[uint64]struct{}),
	}, nil
}

// Inspect reconciles the journal entry for a market with the chain and
// returns what the visit should do. Confirmed transactions advance the
// stage; a reverted or dropped attestation clears the entry; a reverted or
// dropped resolution falls back to attested.
func (s *Submitter) Inspect(ctx context.Context, marketID uint64) (Plan, error) {
	c, ok, err := s.journal.Get(ctx, marketID)
	if err != nil {
		return Plan{}, err
	}
	if !ok {
		return Plan{Action: ActionDecide}, nil
	}

	switch c.Stage {
	case domain.StageResolved:
		return Plan{Action: ActionSkip, Commit: c}, nil
	case domain.StageAttested:
		return Plan{Action: ActionResume, Commit: c}, nil
	case domain.StageAttesting, domain.StageResolving:
	default:
		s.log.Warn(ctx, "dropping journal entry with unknown stage", "market", marketID, "stage", string(c.Stage))
		return Plan{Action: ActionDecide}, s.journal.Delete(ctx, marketID)
	}

	hash, _ := c.InFlightTx()
	status, err := s.chain.TxStatus(ctx, hash)
	if err != nil {
		return Plan{}, err
	}

	switch status {
	case chaindomain.TxPending:
		return Plan{Action: ActionWait, Commit: c}, nil

	case chaindomain.TxConfirmed:
		if c.Stage == domain.StageAttesting {
			c.Stage = domain.StageAttested
			s.record(ctx, c)
			return Plan{Action: ActionResume, Commit: c}, nil
		}
		c.Stage = domain.StageResolved
		s.record(ctx, c)
		return Plan{Action: ActionConfirmed, Commit: c}, nil

	default:
		s.log.Warn(ctx, "journaled transaction did not confirm",
			"market", marketID, "stage", string(c.Stage), "tx", hash.Hex(), "status", string(status))
		if c.Stage == domain.StageAttesting {
			return Plan{Action: ActionDecide}, s.journal.Delete(ctx, marketID)
		}
		c.Stage = domain.StageAttested
		c.ResolveTx = common.Hash{}
		s.record(ctx, c)
		return Plan{Action: ActionResume, Commit: c}, nil
	}
}

// Submit attests r and then resolves the market, waiting for each receipt.
// It returns CodeAlreadyResolved when the market contract reports the market
// was resolved before, and CodeAwaitingConfirmation when a receipt did not
// arrive in time; the journal then makes the next visit wait for it.
func (s *Submitter) Submit(ctx context.Context, r resolutiondomain.Resolution) (domain.SubmissionResult, error) {
	if !s.claim(r.MarketID) {
		return domain.SubmissionResult{}, inFlight(r.MarketID)
	}
	defer s.release(r.MarketID)

	ctx, cancel := s.detach(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "resolver.submit", trace.WithAttributes(
		attribute.Int64("market", int64(r.MarketID)),
		attribute.String("outcome", r.Outcome.String()),
		attribute.Int("confidence", r.Confidence),
	))
	defer span.End()

	var result domain.SubmissionResult

	c := domain.Commit{
		MarketID:   r.MarketID,
		Outcome:    r.Outcome,
		Confidence: r.Confidence,
	}

	hash, err := s.chain.SubmitResolution(ctx, r.MarketID, uint8(r.Outcome), r.Confidence)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeAlreadyResolved) {
			return s.attestedBefore(ctx, c, result)
		}
		return result, s.fail(ctx, "attest", c, err)
	}
	result.OracleTx = hash

	c.Stage = domain.StageAttesting
	c.AttestTx = hash
	s.record(ctx, c)

	if _, err := s.chain.WaitMined(ctx, hash); err != nil {
		switch {
		case apperror.HasCode(err, apperror.CodeAlreadyResolved):
			return s.attestedBefore(ctx, c, result)
		case apperror.HasCode(err, apperror.CodeAwaitingConfirmation):
			s.count(ctx, "attest", "pending")
			return result, err
		default:
			s.drop(ctx, r.MarketID)
		}
		return result, s.fail(ctx, "attest", c, err)
	}
	s.count(ctx, "attest", "confirmed")

	c.Stage = domain.StageAttested
	s.record(ctx, c)

	return s.resolve(ctx, c, result)
}

// attestedBefore handles an oracle that already holds an attestation for
// the market. Only the market contract's own resolved flag ends the work, so
// the commit moves to attested and resolveMarket is sent.
func (s *Submitter) attestedBefore(ctx context.Context, c domain.Commit, result domain.SubmissionResult) (domain.SubmissionResult, error) {
	s.count(ctx, "attest", "already_resolved")
	s.log.Info(ctx, "oracle already attested, resolving market", "market", c.MarketID)
	c.Stage = domain.StageAttested
	s.record(ctx, c)
	return s.resolve(ctx, c, result)
}

// Resume sends only the resolution for an attested commit, using the
// journaled outcome.
func (s *Submitter) Resume(ctx context.Context, c domain.Commit) (domain.SubmissionResult, error) {
	if !s.claim(c.MarketID) {
		return domain.SubmissionResult{}, inFlight(c.MarketID)
	}
	defer s.release(c.MarketID)

	ctx, cancel := s.detach(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "resolver.resume", trace.WithAttributes(
		attribute.Int64("market", int64(c.MarketID)),
		attribute.String("outcome", c.Outcome.String()),
	))
	defer span.End()

	return s.resolve(ctx, c, domain.SubmissionResult{OracleTx: c.AttestTx})
}

func (s *Submitter) resolve(ctx context.Context, c domain.Commit, result domain.SubmissionResult) (domain.SubmissionResult, error) {
	hash, err := s.chain.ResolveMarket(ctx, c.MarketID, uint8(c.Outcome))
	if err != nil {
		// The commit stays attested so the next visit retries step 2 only.
		return result, s.fail(ctx, "resolve", c, err)
	}
	result.MarketTx = hash

	c.Stage = domain.StageResolving
	c.ResolveTx = hash
	s.record(ctx, c)

	if _, err := s.chain.WaitMined(ctx, hash); err != nil {
		switch {
		case apperror.HasCode(err, apperror.CodeAlreadyResolved):
		case apperror.HasCode(err, apperror.CodeAwaitingConfirmation):
			s.count(ctx, "resolve", "pending")
			return result, err
		default:
			c.Stage = domain.StageAttested
			c.ResolveTx = common.Hash{}
			s.record(ctx, c)
		}
		return result, s.fail(ctx, "resolve", c, err)
	}
	s.count(ctx, "resolve", "confirmed")

	c.Stage = domain.StageResolved
	s.record(ctx, c)

	s.log.Info(ctx, "market resolved",
		"market", c.MarketID,
		"outcome", c.Outcome.String(),
		"oracle_tx", result.OracleTx.Hex(),
		"market_tx", result.MarketTx.Hex(),
	)
	return result, nil
}

// fail classifies a write error. Already-resolved from the market contract
// is recorded as resolved and returned unwrapped; everything else becomes
// CodeChainWriteFailed.
func (s *Submitter) fail(ctx context.Context, step string, c domain.Commit, err error) error {
	if apperror.HasCode(err, apperror.CodeAlreadyResolved) {
		s.count(ctx, step, "already_resolved")
		c.Stage = domain.StageResolved
		s.record(ctx, c)
		s.log.Info(ctx, "market already resolved", "market", c.MarketID, "step", step)
		return err
	}

	s.count(ctx, step, "failed")
	s.log.Error(ctx, "chain write failed", "market", c.MarketID, "step", step, "error", err)
	return apperror.New(apperror.CodeChainWriteFailed,
		apperror.WithCause(err),
		apperror.WithContext(fmt.Sprintf("%s market %d", step, c.MarketID)))
}

// record writes the journal. The chain write already happened, so a
// journal failure is logged and the submission continues.
func (s *Submitter) record(ctx context.Context, c domain.Commit) {
	c.UpdatedAt = s.now().UTC()
	if err := s.journal.Put(ctx, c); err != nil {
		s.log.Error(ctx, "journal write failed", "market", c.MarketID, "stage", string(c.Stage), "error", err)
	}
}

func (s *Submitter) drop(ctx context.Context, marketID uint64) {
	if err := s.journal.Delete(ctx, marketID); err != nil {
		s.log.Error(ctx, "journal delete failed", "market", marketID, "error", err)
	}
}

func (s *Submitter) count(ctx context.Context, step, result string) {
	s.submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", step),
		attribute.String("result", result),
	))
}

func (s *Submitter) claim(marketID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[marketID]; busy {
		return false
	}
	s.inflight[marketID] = struct{}{}
	return true
}

func (s *Submitter) release(marketID uint64) {
	s.mu.Lock()
	delete(s.inflight, marketID)
	s.mu.Unlock()
}

// detach returns a context that survives cancellation of parent for up to
// the grace period, so a started submission finishes both writes.
func (s *Submitter) detach(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	if s.grace <= 0 {
		return ctx, cancel
	}
	stop := context.AfterFunc(parent, func() {
		timer := time.NewTimer(s.grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-ctx.Done():
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

func inFlight(marketID uint64) error {
	return apperror.New(apperror.CodeAwaitingConfirmation,
		apperror.WithContext(fmt.Sprintf("market %d submission in flight", marketID)))
}
