package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/oracle-resolver/internal/asset"
)

var (
	usdc = asset.NewToken(common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d"), "USDC", 6)
	dai  = asset.NewToken(common.HexToAddress("0x0000000000000000000000000000000000000d41"), "DAI", 18)
)

func TestAmount_Basic(t *testing.T) {
	ten := asset.NewAmount(usdc, big.NewInt(10_000_000))

	if ten.IsZero() || !ten.IsPositive() {
		t.Fatal("expected positive amount")
	}
	if !ten.ToDecimal().Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected 10, got %s", ten.ToDecimal())
	}
	if ten.String() != "10 USDC" {
		t.Errorf("expected '10 USDC', got %q", ten.String())
	}
	if got := ten.StringFixed(2); got != "10.00 USDC" {
		t.Errorf("StringFixed = %q", got)
	}
}

func TestAmount_AddSub(t *testing.T) {
	one := asset.NewAmount(usdc, big.NewInt(1_000_000))
	three := asset.NewAmount(usdc, big.NewInt(3_000_000))

	sum, err := one.Add(three)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sum.Raw().Int64() != 4_000_000 {
		t.Errorf("sum = %s", sum.Raw())
	}

	diff, err := three.Sub(one)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if diff.Raw().Int64() != 2_000_000 {
		t.Errorf("diff = %s", diff.Raw())
	}

	if _, err := one.Sub(three); !errors.Is(err, asset.ErrNegativeResult) {
		t.Errorf("expected ErrNegativeResult, got %v", err)
	}
}

func TestAmount_DifferentTokens(t *testing.T) {
	a := asset.NewAmount(usdc, big.NewInt(1))
	b := asset.NewAmount(dai, big.NewInt(1))

	if _, err := a.Add(b); !errors.Is(err, asset.ErrTokenMismatch) {
		t.Errorf("expected ErrTokenMismatch, got %v", err)
	}
	if _, err := a.LessThan(b); err == nil {
		t.Error("expected error comparing different tokens")
	}
}

func TestAmount_RawIsCopy(t *testing.T) {
	a := asset.NewAmount(usdc, big.NewInt(5))
	a.Raw().SetInt64(99)
	if a.Raw().Int64() != 5 {
		t.Error("Raw must return a copy")
	}
}

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr error
	}{
		{name: "integer", input: "10", want: 10_000_000},
		{name: "fraction", input: "0.5", want: 500_000},
		{name: "smallest unit", input: "0.000001", want: 1},
		{name: "too precise", input: "0.0000001", wantErr: asset.ErrTooManyDecimals},
		{name: "negative", input: "-1", wantErr: asset.ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.ParseString(usdc, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Raw().Int64() != tt.want {
				t.Errorf("raw = %s, want %d", got.Raw(), tt.want)
			}
		})
	}

	if _, err := asset.ParseString(usdc, "ten"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestAmount_LessThan(t *testing.T) {
	small := asset.NewAmount(usdc, big.NewInt(1))
	big1 := asset.NewAmount(usdc, big.NewInt(2))

	less, err := small.LessThan(big1)
	if err != nil || !less {
		t.Errorf("LessThan = %v, %v", less, err)
	}
	if asset.Zero(usdc).IsPositive() {
		t.Error("zero must not be positive")
	}
}
