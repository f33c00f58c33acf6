// Package domain holds the resolution rules and the decision they produce.
package domain

import (
	"fmt"
	"strings"
)

// Outcome is the on-chain outcome index.
type Outcome uint8

const (
	OutcomeYes Outcome = 0
	OutcomeNo  Outcome = 1
)

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "YES"
	case OutcomeNo:
		return "NO"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Valid reports whether o is Yes or No.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// ParseOutcome accepts yes/no (any case) or 0/1.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "0":
		return OutcomeYes, nil
	case "no", "n", "1":
		return OutcomeNo, nil
	default:
		return 0, fmt.Errorf("invalid outcome %q: want yes or no", s)
	}
}

// Resolution is the decision for one market.
type Resolution struct {
	MarketID   uint64
	Outcome    Outcome
	Confidence int
}

func (r Resolution) String() string {
	return fmt.Sprintf("market %d: %s (confidence %d)", r.MarketID, r.Outcome, r.Confidence)
}
