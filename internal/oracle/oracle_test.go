package oracle_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	fpmath "LendLedger/internal/math"
	"LendLedger/internal/oracle"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dollars(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fpmath.PriceScale)
}

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fpmath.Wad)
}

func newTestAdapter(t *testing.T, prices map[string]*big.Int) *oracle.Adapter {
	t.Helper()
	assets := make([]string, 0, len(prices))
	sources := make([]oracle.PriceSource, 0, len(prices))
	for _, asset := range []string{"ETH", "USDC"} {
		if p, ok := prices[asset]; ok {
			assets = append(assets, asset)
			sources = append(sources, oracle.NewStaticSource(p, t0))
		}
	}
	adapter, err := oracle.NewAdapter(assets, sources)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return adapter.WithClock(func() time.Time { return t0 })
}

// ============================================================================
// Test: construction
// ============================================================================

func TestNewAdapter_LengthMismatch(t *testing.T) {
	_, err := oracle.NewAdapter([]string{"ETH", "USDC"}, []oracle.PriceSource{
		oracle.NewStaticSource(dollars(2000), t0),
	})
	if !errors.Is(err, oracle.ErrLengthMismatch) {
		t.Errorf("got %v, want ErrLengthMismatch", err)
	}
}

func TestNewAdapter_NilSource(t *testing.T) {
	_, err := oracle.NewAdapter([]string{"ETH"}, []oracle.PriceSource{nil})
	if err == nil {
		t.Error("nil source should fail construction")
	}
}

func TestNewAdapter_EmptyAsset(t *testing.T) {
	_, err := oracle.NewAdapter([]string{""}, []oracle.PriceSource{
		oracle.NewStaticSource(dollars(1), t0),
	})
	if err == nil {
		t.Error("empty asset identifier should fail construction")
	}
}

func TestNewAdapter_DuplicateAsset(t *testing.T) {
	_, err := oracle.NewAdapter([]string{"ETH", "ETH"}, []oracle.PriceSource{
		oracle.NewStaticSource(dollars(2000), t0),
		oracle.NewStaticSource(dollars(2001), t0),
	})
	if err == nil {
		t.Error("duplicate asset should fail construction")
	}
}

func TestAdapter_AssetsInRegistrationOrder(t *testing.T) {
	adapter := newTestAdapter(t, map[string]*big.Int{"ETH": dollars(2000), "USDC": dollars(1)})
	assets := adapter.Assets()
	if len(assets) != 2 || assets[0] != "ETH" || assets[1] != "USDC" {
		t.Errorf("got %v, want [ETH USDC]", assets)
	}
	if !adapter.Supports("ETH") {
		t.Error("ETH should be supported")
	}
	if adapter.Supports("DOGE") {
		t.Error("DOGE should not be supported")
	}
}

// ============================================================================
// Test: conversions
// ============================================================================

func TestValueInUSD(t *testing.T) {
	adapter := newTestAdapter(t, map[string]*big.Int{"ETH": dollars(2000)})
	got, err := adapter.ValueInUSD("ETH", wad(2))
	if err != nil {
		t.Fatalf("ValueInUSD: %v", err)
	}
	if got.Cmp(wad(4000)) != 0 {
		t.Errorf("got %s, want %s", got, wad(4000))
	}
}

func TestValueInUSD_UnsupportedAsset(t *testing.T) {
	adapter := newTestAdapter(t, map[string]*big.Int{"ETH": dollars(2000)})
	_, err := adapter.ValueInUSD("DOGE", wad(1))
	if !errors.Is(err, oracle.ErrUnsupportedAsset) {
		t.Errorf("got %v, want ErrUnsupportedAsset", err)
	}
}

func TestConversion_RoundTripWithinOneUnit(t *testing.T) {
	adapter := newTestAdapter(t, map[string]*big.Int{"ETH": dollars(1999)})
	amount := big.NewInt(123_456_789_123_456_789)

	usd, err := adapter.ValueInUSD("ETH", amount)
	if err != nil {
		t.Fatalf("ValueInUSD: %v", err)
	}
	back, err := adapter.AmountFromUSD("ETH", usd)
	if err != nil {
		t.Fatalf("AmountFromUSD: %v", err)
	}
	if back.Cmp(amount) > 0 {
		t.Errorf("round trip exceeded input: %s > %s", back, amount)
	}
	diff := new(big.Int).Sub(amount, back)
	if diff.Cmp(big.NewInt(1)) > 0 {
		t.Errorf("round trip lost more than one unit: %s", diff)
	}
}

// ============================================================================
// Test: staleness
// ============================================================================

func TestFreshPrice_ExactlyAtBoundIsFresh(t *testing.T) {
	adapter := newTestAdapter(t, map[string]*big.Int{"ETH": dollars(2000)})
	adapter.WithClock(func() time.Time { return t0.Add(oracle.MaxPriceAge) })

	if _, err := adapter.ValueInUSD("ETH", wad(1)); err != nil {
		t.Errorf("price aged exactly MaxPriceAge should be accepted, got %v", err)
	}
}

func TestFreshPrice_PastBoundIsStale(t *testing.T) {
	adapter := newTestAdapter(t, map[string]*big.Int{"ETH": dollars(2000)})
	adapter.WithClock(func() time.Time { return t0.Add(oracle.MaxPriceAge + time.Second) })

	_, err := adapter.ValueInUSD("ETH", wad(1))
	var stale *oracle.StalePriceError
	if !errors.As(err, &stale) {
		t.Fatalf("got %v, want StalePriceError", err)
	}
	if stale.Asset != "ETH" {
		t.Errorf("stale asset: got %q, want ETH", stale.Asset)
	}
}

func TestFreshPrice_NonPositiveRejected(t *testing.T) {
	adapter := newTestAdapter(t, map[string]*big.Int{"ETH": big.NewInt(0)})
	if _, err := adapter.ValueInUSD("ETH", wad(1)); err == nil {
		t.Error("zero price should be rejected")
	}
}

// ============================================================================
// Test: FeedCache
// ============================================================================

func TestFeedCache_MissingReadingIsStale(t *testing.T) {
	cache := oracle.NewFeedCache()
	adapter, err := oracle.NewAdapter([]string{"ETH"}, []oracle.PriceSource{cache.Source("ETH")})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	adapter.WithClock(func() time.Time { return t0 })

	_, err = adapter.ValueInUSD("ETH", wad(1))
	var stale *oracle.StalePriceError
	if !errors.As(err, &stale) {
		t.Errorf("asset with no reading should surface StalePriceError, got %v", err)
	}
}

func TestFeedCache_LatestReadingWins(t *testing.T) {
	cache := oracle.NewFeedCache()
	cache.Update("ETH", dollars(1800), t0.Add(-time.Minute))
	cache.Update("ETH", dollars(2000), t0)

	adapter, err := oracle.NewAdapter([]string{"ETH"}, []oracle.PriceSource{cache.Source("ETH")})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	adapter.WithClock(func() time.Time { return t0 })

	got, err := adapter.ValueInUSD("ETH", wad(1))
	if err != nil {
		t.Fatalf("ValueInUSD: %v", err)
	}
	if got.Cmp(wad(2000)) != 0 {
		t.Errorf("got %s, want %s", got, wad(2000))
	}
}
