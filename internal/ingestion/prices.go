package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"LendLedger/internal/observability"
	"LendLedger/internal/oracle"
)

// PriceUpdate is the wire format on lend.prices.{asset}. Price is an
// 8-decimal fixed-point integer encoded as a decimal string; UpdatedAt is
// epoch milliseconds from the feed.
type PriceUpdate struct {
	Asset     string `json:"asset"`
	Price     string `json:"price"`
	UpdatedAt int64  `json:"updated_at"`
}

// PriceSubscriber consumes the price stream and keeps the oracle feed cache
// current. Only the latest reading per asset matters; staleness is enforced
// at read time by the oracle adapter, so delivery gaps are tolerated.
type PriceSubscriber struct {
	js       jetstream.JetStream
	cache    *oracle.FeedCache
	metrics  *observability.Metrics
	logger   zerolog.Logger
	consumer jetstream.ConsumeContext
}

func NewPriceSubscriber(js jetstream.JetStream, cache *oracle.FeedCache, metrics *observability.Metrics, logger zerolog.Logger) *PriceSubscriber {
	return &PriceSubscriber{
		js:      js,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Subscribe creates the durable JetStream consumer on lend.prices.>.
// New readings only: replaying historical prices would briefly expose
// outdated values to the adapter.
func (ps *PriceSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ps.js.CreateOrUpdateConsumer(ctx, "LEND_PRICES", jetstream.ConsumerConfig{
		Durable:       "lendledger-prices",
		FilterSubject: "lend.prices.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create price consumer: %w", err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := ps.handle(msg.Data()); err != nil {
			ps.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("bad price update")
			msg.Term()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume prices: %w", err)
	}

	ps.consumer = consumerContext
	ps.logger.Info().Msg("subscribed to lend.prices.>")
	return nil
}

// ParsePriceUpdate decodes and validates one price message.
func ParsePriceUpdate(data []byte) (asset string, price *big.Int, updatedAt time.Time, err error) {
	var update PriceUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return "", nil, time.Time{}, fmt.Errorf("unmarshal price update: %w", err)
	}
	if update.Asset == "" {
		return "", nil, time.Time{}, fmt.Errorf("price update missing asset")
	}
	price, ok := new(big.Int).SetString(update.Price, 10)
	if !ok || price.Sign() <= 0 {
		return "", nil, time.Time{}, fmt.Errorf("invalid price %q for %s", update.Price, update.Asset)
	}
	return update.Asset, price, time.UnixMilli(update.UpdatedAt), nil
}

func (ps *PriceSubscriber) handle(data []byte) error {
	asset, price, updatedAt, err := ParsePriceUpdate(data)
	if err != nil {
		return err
	}
	ps.cache.Update(asset, price, updatedAt)

	if ps.metrics != nil {
		ps.metrics.PriceUpdates.WithLabelValues(asset).Inc()
		ps.metrics.PriceUpdateLag.WithLabelValues(asset).Observe(time.Since(updatedAt).Seconds())
	}
	return nil
}

// Stop gracefully stops the consumer.
func (ps *PriceSubscriber) Stop() {
	if ps.consumer != nil {
		ps.consumer.Stop()
	}
	ps.logger.Info().Msg("price subscriber stopped")
}
