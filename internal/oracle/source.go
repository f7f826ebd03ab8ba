package oracle

import (
	"math/big"
	"sync"
	"time"
)

// StaticSource is a fixed-price source for tests and local development.
// SetPrice replaces the reading; the zero value is unusable (no reading).
type StaticSource struct {
	mu        sync.RWMutex
	price     *big.Int
	updatedAt time.Time
}

func NewStaticSource(price *big.Int, updatedAt time.Time) *StaticSource {
	return &StaticSource{price: new(big.Int).Set(price), updatedAt: updatedAt}
}

func (s *StaticSource) SetPrice(price *big.Int, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = new(big.Int).Set(price)
	s.updatedAt = updatedAt
}

func (s *StaticSource) LatestPrice() (*big.Int, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.price), s.updatedAt, nil
}

// FeedCache is a price source fed by an external stream (NATS price
// subjects). It retains only the latest reading per asset; gaps are
// tolerated because staleness is enforced at read time by the Adapter.
type FeedCache struct {
	mu       sync.RWMutex
	readings map[string]feedReading
}

type feedReading struct {
	price     *big.Int
	updatedAt time.Time
}

func NewFeedCache() *FeedCache {
	return &FeedCache{readings: make(map[string]feedReading)}
}

// Update records the latest reading for asset.
func (f *FeedCache) Update(asset string, price *big.Int, updatedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[asset] = feedReading{price: new(big.Int).Set(price), updatedAt: updatedAt}
}

// Source returns a PriceSource view of the cache for one asset.
func (f *FeedCache) Source(asset string) PriceSource {
	return &feedSource{cache: f, asset: asset}
}

type feedSource struct {
	cache *FeedCache
	asset string
}

func (s *feedSource) LatestPrice() (*big.Int, time.Time, error) {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	r, ok := s.cache.readings[s.asset]
	if !ok {
		// No reading yet: surface as maximally stale rather than an error
		// so the caller gets a consistent StalePriceError.
		return big.NewInt(0), time.Time{}, nil
	}
	return new(big.Int).Set(r.price), r.updatedAt, nil
}
