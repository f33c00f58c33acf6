// Package domain contains the resolver's commit journal and visit records.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	resolutiondomain "github.com/fd1az/oracle-resolver/business/resolution/domain"
)

// Stage is the progress of the two-write commit for one market.
type Stage string

const (
	// StageAttesting: submitResolution broadcast, not yet confirmed.
	StageAttesting Stage = "attesting"
	// StageAttested: submitResolution confirmed.
	StageAttested Stage = "attested"
	// StageResolving: resolveMarket broadcast, not yet confirmed.
	StageResolving Stage = "resolving"
	// StageResolved: both writes confirmed, or the market was already resolved.
	StageResolved Stage = "resolved"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageAttesting, StageAttested, StageResolving, StageResolved:
		return true
	}
	return false
}

// Commit is the journal record for one market. It only makes a crash
// between the two writes observable; the contracts enforce idempotency.
type Commit struct {
	MarketID   uint64
	Outcome    resolutiondomain.Outcome
	Confidence int
	Stage      Stage
	AttestTx   common.Hash
	ResolveTx  common.Hash
	UpdatedAt  time.Time
}

// InFlightTx returns the unconfirmed transaction for the in-flight stages.
func (c Commit) InFlightTx() (common.Hash, bool) {
	switch c.Stage {
	case StageAttesting:
		return c.AttestTx, true
	case StageResolving:
		return c.ResolveTx, true
	default:
		return common.Hash{}, false
	}
}

// Resolution returns the attested decision.
func (c Commit) Resolution() resolutiondomain.Resolution {
	return resolutiondomain.Resolution{
		MarketID:   c.MarketID,
		Outcome:    c.Outcome,
		Confidence: c.Confidence,
	}
}

func (c Commit) String() string {
	return fmt.Sprintf("market %d %s %s", c.MarketID, c.Stage, c.Outcome)
}

// SubmissionResult carries the two transaction hashes. Either may be zero
// when that step was skipped.
type SubmissionResult struct {
	OracleTx common.Hash
	MarketTx common.Hash
}
