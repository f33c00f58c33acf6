package domain

import (
	"fmt"
	"time"

	feeddomain "github.com/fd1az/oracle-resolver/business/feed/domain"
	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
)

// Status is how a market visit ended.
type Status string

const (
	StatusResolved        Status = "resolved"
	StatusAlreadyResolved Status = "already_resolved"
	StatusGated           Status = "gated"
	StatusFailed          Status = "failed"
	// StatusPending means an earlier transaction is still unconfirmed.
	StatusPending Status = "pending"
	// StatusSkipped means the journal already records the market resolved.
	StatusSkipped Status = "skipped"
	StatusNoRule  Status = "no_rule"
)

// Visit is the record of one market visit.
type Visit struct {
	CycleID  string
	MarketID uint64
	Rule     string
	// Resumed is true when the outcome came from the journal rather than a
	// fresh feed read.
	Resumed  bool
	Reading  feeddomain.Reading
	Decision resolutiondomain.Resolution
	Status   Status
	Result   SubmissionResult
	Err      error
	Started  time.Time
	Duration time.Duration
}

func (v Visit) String() string {
	s := fmt.Sprintf("market %d: %s", v.MarketID, v.Status)
	if v.Err != nil {
		s += ": " + v.Err.Error()
	}
	return s
}

// CycleSummary counts visit statuses for one pass over the market list.
type CycleSummary struct {
	ID       string
	Number   int
	Started  time.Time
	Duration time.Duration
	Counts   map[Status]int
}

// NewCycleSummary starts an empty summary.
func NewCycleSummary(id string, number int, started time.Time) CycleSummary {
	return CycleSummary{
		ID:      id,
		Number:  number,
		Started: started,
		Counts:  make(map[Status]int),
	}
}

// Add records a visit.
func (s *CycleSummary) Add(v Visit) {
	s.Counts[v.Status]++
}

// Visits returns the number of recorded visits.
func (s CycleSummary) Visits() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}
