package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chaindomain "github.com/fd1az/oracle-resolver/business/chain/domain"
	"github.com/fd1az/oracle-resolver/internal/asset"
)

func TestCalculateOdds(t *testing.T) {
	tests := []struct {
		name    string
		yes, no int64
		wantYes string
		wantNo  string
	}{
		{"empty pool", 0, 0, "0.50", "0.50"},
		{"even", 100, 100, "0.50", "0.50"},
		{"yes heavy", 750, 250, "0.75", "0.25"},
		{"only no", 0, 40, "0.00", "1.00"},
		{"thirds", 1, 2, "0.33", "0.67"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yes := CalculateOdds(big.NewInt(tt.yes), big.NewInt(tt.no), true)
			no := CalculateOdds(big.NewInt(tt.yes), big.NewInt(tt.no), false)

			if got := FormatOdds(yes); got != tt.wantYes {
				t.Errorf("yes odds = %s, want %s", got, tt.wantYes)
			}
			if got := FormatOdds(no); got != tt.wantNo {
				t.Errorf("no odds = %s, want %s", got, tt.wantNo)
			}
			if tt.yes+tt.no > 0 && !yes.Add(no).Equal(decimal.NewFromInt(1)) {
				t.Errorf("odds sum = %s, want 1", yes.Add(no))
			}
		})
	}
}

func TestCalculateOdds_NilTotals(t *testing.T) {
	if got := FormatOdds(CalculateOdds(nil, nil, true)); got != "0.50" {
		t.Errorf("odds = %s, want 0.50", got)
	}
}

func TestNewMarketView(t *testing.T) {
	usdc := asset.NewToken(common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d"), "USDC", 6)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	m := chaindomain.Market{
		ID:       2,
		Question: "Ethereum above $3000?",
		EndTime:  end,
		State:    chaindomain.MarketOpen,
		TotalYes: big.NewInt(15_500_000),
		TotalNo:  big.NewInt(4_500_000),
	}

	v := NewMarketView(m, usdc, end.Add(time.Hour))

	if !v.TotalYes.Equal(decimal.RequireFromString("15.5")) {
		t.Errorf("total yes = %s, want 15.5", v.TotalYes)
	}
	if !v.TotalNo.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("total no = %s, want 4.5", v.TotalNo)
	}
	if !v.Volume.Equal(decimal.NewFromInt(20)) {
		t.Errorf("volume = %s, want 20", v.Volume)
	}
	if FormatOdds(v.YesOdds) != "0.78" || FormatOdds(v.NoOdds) != "0.23" {
		t.Errorf("odds = %s/%s", FormatOdds(v.YesOdds), FormatOdds(v.NoOdds))
	}
	if !v.Ended {
		t.Error("market past its end time not marked ended")
	}
	if v.State != "open" || v.Symbol != "USDC" {
		t.Errorf("state = %s symbol = %s", v.State, v.Symbol)
	}
}
