package risk_test

import (
	"math/big"
	"testing"

	fpmath "LendLedger/internal/math"
	"LendLedger/internal/registry"
	"LendLedger/internal/risk"
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fpmath.Wad)
}

// stubConverter prices assets at fixed 8-decimal dollar prices.
type stubConverter struct {
	prices map[string]*big.Int
}

func (c *stubConverter) ValueInUSD(asset string, amount *big.Int) (*big.Int, error) {
	return fpmath.ValueFromPrice(amount, c.prices[asset]), nil
}

func (c *stubConverter) AmountFromUSD(asset string, usdValue *big.Int) (*big.Int, error) {
	return fpmath.AmountFromValue(usdValue, c.prices[asset]), nil
}

func dollars(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fpmath.PriceScale)
}

// ============================================================================
// Test: Params
// ============================================================================

func TestParams_Validate(t *testing.T) {
	if err := risk.DefaultParams().Validate(); err != nil {
		t.Errorf("default params rejected: %v", err)
	}

	bad := []risk.Params{
		{LiquidationThresholdPct: 0, InterestRatePct: 3, LiquidationBonusPct: 10},
		{LiquidationThresholdPct: 101, InterestRatePct: 3, LiquidationBonusPct: 10},
		{LiquidationThresholdPct: 80, InterestRatePct: -1, LiquidationBonusPct: 10},
		{LiquidationThresholdPct: 80, InterestRatePct: 3, LiquidationBonusPct: 100},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: invalid params accepted: %+v", i, p)
		}
	}
}

// ============================================================================
// Test: interest accrual
// ============================================================================

func TestAccruedInterest_FullYear(t *testing.T) {
	p := risk.DefaultParams()
	// 3% of 500 over exactly one year = 15.
	got := p.AccruedInterest(wad(500), risk.SecondsPerYear)
	if got.Cmp(wad(15)) != 0 {
		t.Errorf("got %s, want %s", got, wad(15))
	}
}

func TestAccruedInterest_HalfYear(t *testing.T) {
	p := risk.DefaultParams()
	got := p.AccruedInterest(wad(500), risk.SecondsPerYear/2)
	want, _ := new(big.Int).SetString("7500000000000000000", 10) // 7.5
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAccruedInterest_ZeroCases(t *testing.T) {
	p := risk.DefaultParams()
	if got := p.AccruedInterest(wad(500), 0); got.Sign() != 0 {
		t.Errorf("zero elapsed: got %s, want 0", got)
	}
	if got := p.AccruedInterest(wad(500), -60); got.Sign() != 0 {
		t.Errorf("negative elapsed: got %s, want 0", got)
	}
	if got := p.AccruedInterest(new(big.Int), risk.SecondsPerYear); got.Sign() != 0 {
		t.Errorf("zero principal: got %s, want 0", got)
	}
	zeroRate := risk.Params{LiquidationThresholdPct: 80, InterestRatePct: 0, LiquidationBonusPct: 10}
	if got := zeroRate.AccruedInterest(wad(500), risk.SecondsPerYear); got.Sign() != 0 {
		t.Errorf("zero rate: got %s, want 0", got)
	}
}

func TestTotalDebt(t *testing.T) {
	p := risk.DefaultParams()
	got := p.TotalDebt(wad(500), risk.SecondsPerYear)
	if got.Cmp(wad(515)) != 0 {
		t.Errorf("got %s, want %s", got, wad(515))
	}
}

// ============================================================================
// Test: collateral minimum
// ============================================================================

func TestMinCollateralUSD_Exact(t *testing.T) {
	p := risk.DefaultParams()
	// 500 * 100 / 80 = 625 exactly.
	got := p.MinCollateralUSD(wad(500))
	if got.Cmp(wad(625)) != 0 {
		t.Errorf("got %s, want %s", got, wad(625))
	}
}

func TestMinCollateralUSD_RoundsUp(t *testing.T) {
	p := risk.DefaultParams()
	// 1 * 100 / 80 = 1.25, must round up to 2 base units.
	got := p.MinCollateralUSD(big.NewInt(1))
	if got.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("got %s, want 2", got)
	}
}

// ============================================================================
// Test: health factor
// ============================================================================

func TestHealthFactor_ScenarioValue(t *testing.T) {
	p := risk.DefaultParams()
	// $2000 collateral against $500 debt at 80%: hf = 3.2.
	got := p.HealthFactor(wad(2000), wad(500))
	want, _ := new(big.Int).SetString("3200000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestHealthFactor_NoDebtIsMax(t *testing.T) {
	p := risk.DefaultParams()
	got := p.HealthFactor(wad(2000), new(big.Int))
	if got.Cmp(risk.MaxHealthFactor) != 0 {
		t.Errorf("got %s, want MaxHealthFactor", got)
	}
}

func TestHealthFactor_ExactMinimumIsHealthy(t *testing.T) {
	p := risk.DefaultParams()
	// Collateral at exactly the minimum prices to hf = 1.0.
	minColl := p.MinCollateralUSD(wad(500))
	hf := p.HealthFactor(minColl, wad(500))
	if hf.Cmp(fpmath.Wad) != 0 {
		t.Errorf("hf at minimum: got %s, want %s", hf, fpmath.Wad)
	}
	if !risk.IsHealthy(hf) {
		t.Error("position at exact minimum should be healthy")
	}
}

func TestIsHealthy_BelowOne(t *testing.T) {
	hf := new(big.Int).Sub(fpmath.Wad, big.NewInt(1))
	if risk.IsHealthy(hf) {
		t.Error("hf below 1.0 should be unhealthy")
	}
}

// ============================================================================
// Test: liquidation quotes
// ============================================================================

func TestCalculator_Quote(t *testing.T) {
	conv := &stubConverter{prices: map[string]*big.Int{
		"ETH":  dollars(600),
		"USDC": dollars(1),
	}}
	calc := risk.NewCalculator(risk.DefaultParams(), conv)
	loan := &registry.Loan{
		Owner:           "alice",
		BorrowAsset:     "USDC",
		CollateralAsset: "ETH",
		Principal:       wad(500),
		Collateral:      wad(1),
		StartTime:       0,
		Status:          registry.StatusActive,
	}

	quote, err := calc.Quote(loan, 0)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.TotalDebt.Cmp(wad(500)) != 0 {
		t.Errorf("total debt: got %s, want %s", quote.TotalDebt, wad(500))
	}
	// 500 USDC at $600/ETH = 0.8333... ETH, floored.
	wantDebtColl, _ := new(big.Int).SetString("833333333333333333", 10)
	if quote.DebtInCollateral.Cmp(wantDebtColl) != 0 {
		t.Errorf("debt in collateral: got %s, want %s", quote.DebtInCollateral, wantDebtColl)
	}
	wantBonus, _ := new(big.Int).SetString("83333333333333333", 10)
	if quote.Bonus.Cmp(wantBonus) != 0 {
		t.Errorf("bonus: got %s, want %s", quote.Bonus, wantBonus)
	}
	wantReward := new(big.Int).Add(wantDebtColl, wantBonus)
	if quote.TotalReward.Cmp(wantReward) != 0 {
		t.Errorf("reward: got %s, want %s", quote.TotalReward, wantReward)
	}
}

func TestCalculator_QuoteIncludesInterest(t *testing.T) {
	conv := &stubConverter{prices: map[string]*big.Int{
		"ETH":  dollars(2000),
		"USDC": dollars(1),
	}}
	calc := risk.NewCalculator(risk.DefaultParams(), conv)
	loan := &registry.Loan{
		BorrowAsset:     "USDC",
		CollateralAsset: "ETH",
		Principal:       wad(500),
		Collateral:      wad(1),
		StartTime:       0,
		Status:          registry.StatusActive,
	}

	quote, err := calc.Quote(loan, risk.SecondsPerYear)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.TotalDebt.Cmp(wad(515)) != 0 {
		t.Errorf("total debt with interest: got %s, want %s", quote.TotalDebt, wad(515))
	}
}

func TestCalculator_LoanHealthTracksPrice(t *testing.T) {
	conv := &stubConverter{prices: map[string]*big.Int{
		"ETH":  dollars(2000),
		"USDC": dollars(1),
	}}
	calc := risk.NewCalculator(risk.DefaultParams(), conv)
	loan := &registry.Loan{
		BorrowAsset:     "USDC",
		CollateralAsset: "ETH",
		Principal:       wad(500),
		Collateral:      wad(1),
		StartTime:       0,
		Status:          registry.StatusActive,
	}

	hf, err := calc.LoanHealth(loan, 0)
	if err != nil {
		t.Fatalf("LoanHealth: %v", err)
	}
	want, _ := new(big.Int).SetString("3200000000000000000", 10)
	if hf.Cmp(want) != 0 {
		t.Errorf("hf at $2000: got %s, want %s", hf, want)
	}

	// Price halves: hf recomputes to 1.6.
	conv.prices["ETH"] = dollars(1000)
	hf, err = calc.LoanHealth(loan, 0)
	if err != nil {
		t.Fatalf("LoanHealth: %v", err)
	}
	want, _ = new(big.Int).SetString("1600000000000000000", 10)
	if hf.Cmp(want) != 0 {
		t.Errorf("hf at $1000: got %s, want %s", hf, want)
	}

	// $600 puts the position under water.
	conv.prices["ETH"] = dollars(600)
	hf, err = calc.LoanHealth(loan, 0)
	if err != nil {
		t.Fatalf("LoanHealth: %v", err)
	}
	if risk.IsHealthy(hf) {
		t.Errorf("hf at $600 should be below 1.0, got %s", hf)
	}
}

func TestCalculator_LoanHealthNoDebt(t *testing.T) {
	conv := &stubConverter{prices: map[string]*big.Int{"ETH": dollars(2000), "USDC": dollars(1)}}
	calc := risk.NewCalculator(risk.DefaultParams(), conv)
	loan := &registry.Loan{
		BorrowAsset:     "USDC",
		CollateralAsset: "ETH",
		Principal:       new(big.Int),
		Collateral:      wad(1),
		Status:          registry.StatusActive,
	}
	hf, err := calc.LoanHealth(loan, 0)
	if err != nil {
		t.Fatalf("LoanHealth: %v", err)
	}
	if hf.Cmp(risk.MaxHealthFactor) != 0 {
		t.Errorf("debt-free hf: got %s, want MaxHealthFactor", hf)
	}
}
