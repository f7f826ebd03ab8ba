package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	fpmath "LendLedger/internal/math"
)

// MaxPriceAge is the staleness bound: a price older than this aborts the
// whole operation rather than substituting a fallback value.
const MaxPriceAge = 3 * time.Hour

var (
	// ErrLengthMismatch is returned when the asset and source lists passed
	// to NewAdapter have different lengths.
	ErrLengthMismatch = errors.New("oracle: asset and price source lists differ in length")

	// ErrUnsupportedAsset is returned for assets absent from the registry.
	ErrUnsupportedAsset = errors.New("oracle: unsupported asset")
)

// StalePriceError reports a price reading older than MaxPriceAge.
type StalePriceError struct {
	Asset     string
	UpdatedAt time.Time
	Now       time.Time
}

func (e *StalePriceError) Error() string {
	return fmt.Sprintf("oracle: stale price for %s (updated %s, now %s)",
		e.Asset, e.UpdatedAt.UTC().Format(time.RFC3339), e.Now.UTC().Format(time.RFC3339))
}

// PriceSource supplies the latest price reading for one asset.
// Prices are fixed-point with 8 decimals; UpdatedAt is the feed timestamp.
type PriceSource interface {
	LatestPrice() (price *big.Int, updatedAt time.Time, err error)
}

// Adapter converts between asset amounts and USD values using per-asset
// price sources. The registry is fixed at construction: every asset maps
// 1:1 to a non-nil source, and nothing is added afterwards.
type Adapter struct {
	assets  []string
	sources map[string]PriceSource
	now     func() time.Time
}

// NewAdapter builds the adapter from two equal-length lists.
func NewAdapter(assets []string, sources []PriceSource) (*Adapter, error) {
	if len(assets) != len(sources) {
		return nil, ErrLengthMismatch
	}
	registry := make(map[string]PriceSource, len(assets))
	ordered := make([]string, 0, len(assets))
	for i, asset := range assets {
		if asset == "" {
			return nil, fmt.Errorf("oracle: empty asset identifier at index %d", i)
		}
		if sources[i] == nil {
			return nil, fmt.Errorf("oracle: nil price source for asset %s", asset)
		}
		if _, dup := registry[asset]; dup {
			return nil, fmt.Errorf("oracle: duplicate asset %s", asset)
		}
		registry[asset] = sources[i]
		ordered = append(ordered, asset)
	}
	return &Adapter{assets: ordered, sources: registry, now: time.Now}, nil
}

// WithClock overrides the wall clock used for staleness checks. Tests use
// this to advance time deterministically.
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	a.now = now
	return a
}

// Assets returns the registered asset identifiers in registration order.
func (a *Adapter) Assets() []string {
	out := make([]string, len(a.assets))
	copy(out, a.assets)
	return out
}

// Supports reports whether asset is registered.
func (a *Adapter) Supports(asset string) bool {
	_, ok := a.sources[asset]
	return ok
}

// freshPrice reads and staleness-checks the latest price for asset.
func (a *Adapter) freshPrice(asset string) (*big.Int, error) {
	source, ok := a.sources[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	price, updatedAt, err := source.LatestPrice()
	if err != nil {
		return nil, fmt.Errorf("oracle: read price for %s: %w", asset, err)
	}
	now := a.now()
	if now.Sub(updatedAt) > MaxPriceAge {
		return nil, &StalePriceError{Asset: asset, UpdatedAt: updatedAt, Now: now}
	}
	if !fpmath.IsPositive(price) {
		return nil, fmt.Errorf("oracle: non-positive price for %s", asset)
	}
	return price, nil
}

// ValueInUSD converts an 18-decimal asset amount into an 18-decimal USD
// value using the asset's latest fresh price.
func (a *Adapter) ValueInUSD(asset string, amount *big.Int) (*big.Int, error) {
	price, err := a.freshPrice(asset)
	if err != nil {
		return nil, err
	}
	return fpmath.ValueFromPrice(amount, price), nil
}

// AmountFromUSD converts an 18-decimal USD value into an asset amount.
// Division floors, so AmountFromUSD(ValueInUSD(x)) recovers x within one
// unit and never more.
func (a *Adapter) AmountFromUSD(asset string, usdValue *big.Int) (*big.Int, error) {
	price, err := a.freshPrice(asset)
	if err != nil {
		return nil, err
	}
	return fpmath.AmountFromValue(usdValue, price), nil
}
