// Package domain contains the core domain types for the chain context.
package domain

import (
	"fmt"
	"math/big"
	"time"
)

// MarketState mirrors the contract's market state enum.
type MarketState uint8

const (
	MarketOpen     MarketState = 0
	MarketClosed   MarketState = 1
	MarketResolved MarketState = 2
)

func (s MarketState) String() string {
	switch s {
	case MarketOpen:
		return "open"
	case MarketClosed:
		return "closed"
	case MarketResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Market is a prediction market as stored on chain. Totals are in the
// settlement token's smallest unit.
type Market struct {
	ID             uint64
	Question       string
	Description    string
	EndTime        time.Time
	ResolutionTime time.Time
	State          MarketState
	TotalYes       *big.Int
	TotalNo        *big.Int
	Resolved       bool
}

// Volume returns TotalYes + TotalNo.
func (m Market) Volume() *big.Int {
	v := new(big.Int)
	if m.TotalYes != nil {
		v.Add(v, m.TotalYes)
	}
	if m.TotalNo != nil {
		v.Add(v, m.TotalNo)
	}
	return v
}
