package math_test

import (
	"math/big"
	"testing"

	fpmath "LendLedger/internal/math"
)

// ============================================================================
// Test: MulDiv
// ============================================================================

func TestMulDiv_Exact(t *testing.T) {
	got := fpmath.MulDiv(big.NewInt(10), big.NewInt(6), big.NewInt(3))
	if got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("got %s, want 20", got)
	}
}

func TestMulDiv_Floors(t *testing.T) {
	// 7 * 3 / 2 = 10.5, floors to 10
	got := fpmath.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("got %s, want 10", got)
	}
}

func TestMulDiv_ZeroDenominator(t *testing.T) {
	got := fpmath.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(0))
	if got.Sign() != 0 {
		t.Errorf("got %s, want 0", got)
	}
}

func TestMulDiv_NilOperands(t *testing.T) {
	got := fpmath.MulDiv(nil, big.NewInt(3), big.NewInt(2))
	if got.Sign() != 0 {
		t.Errorf("got %s, want 0", got)
	}
}

// ============================================================================
// Test: price conversions
// ============================================================================

func TestValueFromPrice_WholeUnits(t *testing.T) {
	// 2 units at $2000: 2e18 * 2000e8 / 1e8 = 4000e18
	amount := new(big.Int).Mul(big.NewInt(2), fpmath.Wad)
	price := new(big.Int).Mul(big.NewInt(2000), fpmath.PriceScale)

	got := fpmath.ValueFromPrice(amount, price)
	want := new(big.Int).Mul(big.NewInt(4000), fpmath.Wad)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAmountFromValue_WholeUnits(t *testing.T) {
	// $625 at $2000/unit = 0.3125 units
	value := new(big.Int).Mul(big.NewInt(625), fpmath.Wad)
	price := new(big.Int).Mul(big.NewInt(2000), fpmath.PriceScale)

	got := fpmath.AmountFromValue(value, price)
	want, _ := new(big.Int).SetString("312500000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestConversion_RoundTripNeverExceeds(t *testing.T) {
	// Round trip floors at both steps, so the result recovers the input
	// within one unit and never exceeds it.
	prices := []*big.Int{
		big.NewInt(1),
		new(big.Int).Mul(big.NewInt(3), fpmath.PriceScale),
		new(big.Int).Mul(big.NewInt(1999), fpmath.PriceScale),
		new(big.Int).Add(new(big.Int).Mul(big.NewInt(2000), fpmath.PriceScale), big.NewInt(7)),
	}
	amounts := []*big.Int{
		big.NewInt(1),
		big.NewInt(999_999_999),
		fpmath.Wad,
		new(big.Int).Mul(big.NewInt(123_456_789), fpmath.Wad),
	}
	for _, price := range prices {
		for _, amount := range amounts {
			back := fpmath.AmountFromValue(fpmath.ValueFromPrice(amount, price), price)
			if back.Cmp(amount) > 0 {
				t.Errorf("round trip exceeded input: amount %s price %s back %s", amount, price, back)
			}
			diff := new(big.Int).Sub(amount, back)
			// Flooring loses at most one whole price unit of amount.
			maxLoss := new(big.Int).Quo(fpmath.PriceScale, price)
			maxLoss.Add(maxLoss, big.NewInt(1))
			if diff.Cmp(maxLoss) > 0 {
				t.Errorf("round trip lost %s for amount %s at price %s", diff, amount, price)
			}
		}
	}
}

// ============================================================================
// Test: helpers
// ============================================================================

func TestIsZeroAndIsPositive(t *testing.T) {
	if !fpmath.IsZero(nil) {
		t.Error("nil should be zero")
	}
	if !fpmath.IsZero(new(big.Int)) {
		t.Error("0 should be zero")
	}
	if fpmath.IsPositive(nil) {
		t.Error("nil should not be positive")
	}
	if fpmath.IsPositive(big.NewInt(-1)) {
		t.Error("-1 should not be positive")
	}
	if !fpmath.IsPositive(big.NewInt(1)) {
		t.Error("1 should be positive")
	}
}

func TestClone_Independent(t *testing.T) {
	orig := big.NewInt(42)
	cp := fpmath.Clone(orig)
	cp.Add(cp, big.NewInt(1))
	if orig.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("clone mutated original: %s", orig)
	}
	if fpmath.Clone(nil).Sign() != 0 {
		t.Error("clone of nil should be zero")
	}
}
