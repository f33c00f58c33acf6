// Package domain contains the display model for prediction markets.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	chaindomain "github.com/fd1az/oracle-resolver/business/chain/domain"
	"github.com/fd1az/oracle-resolver/internal/asset"
)

var half = decimal.New(5, -1)

// MarketView is a market converted to display units.
type MarketView struct {
	ID             uint64          `json:"id"`
	Question       string          `json:"question"`
	Description    string          `json:"description"`
	EndTime        time.Time       `json:"endTime"`
	ResolutionTime time.Time       `json:"resolutionTime,omitzero"`
	State          string          `json:"state"`
	Resolved       bool            `json:"resolved"`
	Ended          bool            `json:"ended"`
	TotalYes       decimal.Decimal `json:"totalYes"`
	TotalNo        decimal.Decimal `json:"totalNo"`
	Volume         decimal.Decimal `json:"volume"`
	YesOdds        decimal.Decimal `json:"yesOdds"`
	NoOdds         decimal.Decimal `json:"noOdds"`
	Symbol         string          `json:"symbol"`
}

// NewMarketView converts raw token amounts using token decimals. now decides
// whether the market has ended.
func NewMarketView(m chaindomain.Market, token *asset.Token, now time.Time) MarketView {
	yes := amount(token, m.TotalYes)
	no := amount(token, m.TotalNo)

	return MarketView{
		ID:             m.ID,
		Question:       m.Question,
		Description:    m.Description,
		EndTime:        m.EndTime,
		ResolutionTime: m.ResolutionTime,
		State:          m.State.String(),
		Resolved:       m.Resolved,
		Ended:          !m.EndTime.IsZero() && !now.Before(m.EndTime),
		TotalYes:       yes.ToDecimal(),
		TotalNo:        no.ToDecimal(),
		Volume:         asset.NewAmount(token, m.Volume()).ToDecimal(),
		YesOdds:        CalculateOdds(m.TotalYes, m.TotalNo, true),
		NoOdds:         CalculateOdds(m.TotalYes, m.TotalNo, false),
		Symbol:         token.Symbol(),
	}
}

// CalculateOdds returns the share of the pool on one side: side / (yes + no).
// An empty pool yields 0.50 for both sides. The two sides always sum to 1.
func CalculateOdds(yes, no *big.Int, forYes bool) decimal.Decimal {
	y := decimal.NewFromBigInt(orZero(yes), 0)
	n := decimal.NewFromBigInt(orZero(no), 0)
	total := y.Add(n)
	if total.IsZero() {
		return half
	}

	yesOdds := y.DivRound(total, 18)
	if forYes {
		return yesOdds
	}
	return decimal.NewFromInt(1).Sub(yesOdds)
}

// FormatOdds renders odds rounded to two places.
func FormatOdds(odds decimal.Decimal) string {
	return odds.StringFixed(2)
}

func amount(token *asset.Token, raw *big.Int) asset.Amount {
	return asset.NewAmount(token, orZero(raw))
}

func orZero(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}
