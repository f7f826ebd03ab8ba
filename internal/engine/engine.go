// Package engine implements the loan lifecycle state machine. Every
// externally visible operation runs end-to-end under one mutex: validation,
// state mutation, token transfers, and event emission. A failed transfer
// rolls the staged state back before the lock is released, so callers never
// observe partially applied operations.
package engine

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"LendLedger/internal/event"
	"LendLedger/internal/ledger"
	"LendLedger/internal/oracle"
	"LendLedger/internal/registry"
	"LendLedger/internal/risk"
	"LendLedger/internal/token"
)

// Output is one committed operation: the sealed event envelope plus the
// journal batch it produced. The persist channel receives every output
// (blocking, ordered); the projection channel is best-effort.
type Output struct {
	Envelope event.Envelope
	Batch    *ledger.Batch
}

// Engine owns all mutable lending state.
type Engine struct {
	mu sync.Mutex

	oracle    *oracle.Adapter
	calc      *risk.Calculator
	params    risk.Params
	book      *ledger.CollateralBook
	registry  *registry.Registry
	tracker   *ledger.BalanceTracker
	tokens    map[string]token.Token
	liquidity map[string]*big.Int
	custody   string

	sequence uint64
	lastHash string
	now      func() time.Time

	persistCh    chan<- Output
	projectionCh chan<- Output
	logger       zerolog.Logger
}

// Config wires the engine's collaborators. PersistCh and ProjectionCh may
// be nil for tests that only exercise the state machine.
type Config struct {
	Oracle       *oracle.Adapter
	Params       risk.Params
	Tokens       map[string]token.Token // one per registered asset
	Custody      string                 // protocol custody account name
	PersistCh    chan<- Output
	ProjectionCh chan<- Output
	Logger       zerolog.Logger
}

func New(cfg Config) (*Engine, error) {
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("engine: oracle adapter is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	for _, asset := range cfg.Oracle.Assets() {
		if cfg.Tokens[asset] == nil {
			return nil, fmt.Errorf("engine: no token for registered asset %s", asset)
		}
	}
	return &Engine{
		oracle:       cfg.Oracle,
		calc:         risk.NewCalculator(cfg.Params, cfg.Oracle),
		params:       cfg.Params,
		book:         ledger.NewCollateralBook(),
		registry:     registry.NewRegistry(),
		tracker:      ledger.NewBalanceTracker(),
		tokens:       cfg.Tokens,
		liquidity:    make(map[string]*big.Int),
		custody:      cfg.Custody,
		lastHash:     event.GenesisHash,
		now:          time.Now,
		persistCh:    cfg.PersistCh,
		projectionCh: cfg.ProjectionCh,
		logger:       cfg.Logger,
	}, nil
}

// WithClock overrides the engine clock for deterministic tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

func (e *Engine) checkAsset(asset string) error {
	if !e.oracle.Supports(asset) {
		return fmt.Errorf("%w: %s", oracle.ErrUnsupportedAsset, asset)
	}
	return nil
}

func (e *Engine) liquidityOf(asset string) *big.Int {
	if bal, ok := e.liquidity[asset]; ok {
		return bal
	}
	bal := new(big.Int)
	e.liquidity[asset] = bal
	return bal
}

// transferIn pulls amount of asset from account into protocol custody.
func (e *Engine) transferIn(asset, from string, amount *big.Int) error {
	ok, err := e.tokens[asset].TransferFrom(from, e.custody, amount)
	if err != nil || !ok {
		return &token.TransferFailedError{Asset: asset, From: from, To: e.custody, Err: err}
	}
	return nil
}

// transferOut pushes amount of asset from protocol custody to account.
func (e *Engine) transferOut(asset, to string, amount *big.Int) error {
	ok, err := e.tokens[asset].Transfer(to, amount)
	if err != nil || !ok {
		return &token.TransferFailedError{Asset: asset, From: e.custody, To: to, Err: err}
	}
	return nil
}

// commit seals the event into the hash chain, applies the journal batch to
// the balance tracker, and hands the output to the pipelines. Must be
// called with the mutex held and only after every transfer has succeeded.
func (e *Engine) commit(typ event.EventType, payload any, batch *ledger.Batch) error {
	if err := e.tracker.Apply(batch); err != nil {
		return fmt.Errorf("engine: apply journal batch: %w", err)
	}
	env, err := event.NewEnvelope(e.sequence+1, typ, e.now().UnixMicro(), payload, e.lastHash)
	if err != nil {
		return err
	}
	e.sequence = env.Sequence
	e.lastHash = env.StateHash

	out := Output{Envelope: env, Batch: batch}
	if e.persistCh != nil {
		e.persistCh <- out
	}
	if e.projectionCh != nil {
		select {
		case e.projectionCh <- out:
		default:
			e.logger.Warn().Uint64("sequence", env.Sequence).Msg("projection channel full, dropping output")
		}
	}
	e.logger.Info().
		Uint64("sequence", env.Sequence).
		Str("type", string(typ)).
		Msg("operation committed")
	return nil
}

// newBatch opens a journal batch stamped with the next sequence.
func (e *Engine) newBatch(eventRef string) *ledger.Batch {
	return ledger.NewBatch(eventRef, int64(e.sequence+1), e.now().UnixMicro())
}

// SupplyLiquidity adds borrowable funds to the protocol pool, pulled from
// the funder's token balance.
func (e *Engine) SupplyLiquidity(funder, asset string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkAmount(amount); err != nil {
		return err
	}
	if err := e.checkAsset(asset); err != nil {
		return err
	}

	pool := e.liquidityOf(asset)
	pool.Add(pool, amount)
	if err := e.transferIn(asset, funder, amount); err != nil {
		pool.Sub(pool, amount)
		return err
	}

	batch := e.newBatch(fmt.Sprintf("supply:%s:%s", funder, asset))
	batch.Append(ledger.JournalTypeDeposit,
		ledger.NewSystemAccountKey(ledger.SubTypeSystemLiquidity, asset),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalIn, asset),
		asset, amount)
	return e.commit(event.TypeLiquiditySupplied, &event.LiquiditySupplied{Funder: funder, Asset: asset, Amount: amount}, batch)
}

// Liquidity returns the borrowable pool balance for asset.
func (e *Engine) Liquidity(asset string) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.liquidityOf(asset))
}

// CheckInvariants verifies the double-entry zero-sum property across every
// applied batch. Exposed for tests and the readiness probe.
func (e *Engine) CheckInvariants() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.CheckZeroSum()
}
