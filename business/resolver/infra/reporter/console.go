// Package reporter contains the loop's display adapters.
package reporter

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/oracle-resolver/business/resolver/app"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Oracle Resolver Started")
	fmt.Fprintln(r.out, "=======================")
	return nil
}

// CycleStarted prints the cycle header.
func (r *ConsoleReporter) CycleStarted(s domain.CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	if s.Number == 0 {
		fmt.Fprintf(r.out, "Startup pass - %s\n", s.Started.Format("15:04:05"))
		return
	}
	fmt.Fprintf(r.out, "Check #%d - %s\n", s.Number, s.Started.Format("15:04:05"))
}

// Report prints one visit.
func (r *ConsoleReporter) Report(v domain.Visit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "Market %d", v.MarketID)
	if v.Rule != "" {
		fmt.Fprintf(r.out, ": %s", v.Rule)
	}
	fmt.Fprintln(r.out)

	if v.Reading.Feed != "" {
		fmt.Fprintf(r.out, "  Feed:         %s\n", v.Reading.String())
		fmt.Fprintf(r.out, "  Decision:     %s (confidence %d%%)\n", v.Decision.Outcome, v.Decision.Confidence)
	} else if v.Resumed {
		fmt.Fprintf(r.out, "  Journaled:    %s (confidence %d%%)\n", v.Decision.Outcome, v.Decision.Confidence)
	}

	switch v.Status {
	case domain.StatusResolved:
		if v.Result.OracleTx != (common.Hash{}) {
			fmt.Fprintf(r.out, "  Oracle tx:    %s\n", v.Result.OracleTx.Hex())
		}
		fmt.Fprintf(r.out, "  Market tx:    %s\n", v.Result.MarketTx.Hex())
		fmt.Fprintf(r.out, "  RESOLVED as %s\n", v.Decision.Outcome)
	case domain.StatusAlreadyResolved:
		fmt.Fprintln(r.out, "  Already resolved on-chain, nothing to do")
	case domain.StatusGated:
		fmt.Fprintf(r.out, "  Confidence too low (%d%%), skipping resolution\n", v.Decision.Confidence)
	case domain.StatusPending:
		fmt.Fprintln(r.out, "  Awaiting confirmation of an earlier transaction")
	case domain.StatusSkipped:
		fmt.Fprintln(r.out, "  Resolved earlier, skipping")
	case domain.StatusNoRule:
		fmt.Fprintln(r.out, "  No resolution rule")
	case domain.StatusFailed:
		fmt.Fprintf(r.out, "  FAILED: %v\n", v.Err)
	}
	fmt.Fprintf(r.out, "  Took:         %s\n", v.Duration.Round(time.Millisecond))
}

// CycleFinished prints the cycle totals.
func (r *ConsoleReporter) CycleFinished(s domain.CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "%d visits: %d resolved, %d already resolved, %d gated, %d pending, %d failed (%s)\n",
		s.Visits(),
		s.Counts[domain.StatusResolved],
		s.Counts[domain.StatusAlreadyResolved],
		s.Counts[domain.StatusGated],
		s.Counts[domain.StatusPending],
		s.Counts[domain.StatusFailed],
		s.Duration.Round(time.Millisecond),
	)
}

// Stop prints the closing line.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Oracle Resolver Stopped")
	return nil
}
