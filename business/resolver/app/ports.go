// Package app contains the resolver loop, the chain submitter and their ports.
package app

import (
	"context"

	chainapp "github.com/fd1az/oracle-resolver/business/chain/app"
	feeddomain "github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/business/resolver/domain"
)

// Chain is the part of the chain gateway the submitter needs.
type Chain interface {
	chainapp.ResolutionWriter
	chainapp.TxWatcher
}

// Journal persists commit progress per market.
type Journal interface {
	// Get returns the commit for a market; ok is false when none exists.
	Get(ctx context.Context, marketID uint64) (c domain.Commit, ok bool, err error)
	// Put inserts or replaces the commit for c.MarketID.
	Put(ctx context.Context, c domain.Commit) error
	// Delete removes the commit for a market. Missing entries are not an error.
	Delete(ctx context.Context, marketID uint64) error
	// List returns all commits ordered by market id.
	List(ctx context.Context) ([]domain.Commit, error)
	Close() error
}

// Feeds reads named feeds. Fetch never fails.
type Feeds interface {
	Fetch(ctx context.Context, name string) feeddomain.Reading
	Has(name string) bool
}

// Reporter displays loop progress.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// CycleStarted is called before the first visit of a cycle.
	CycleStarted(summary domain.CycleSummary)

	// Report is called after every market visit.
	Report(visit domain.Visit)

	// CycleFinished is called after the last visit of a cycle.
	CycleFinished(summary domain.CycleSummary)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}
