package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"LendLedger/internal/engine"
	"LendLedger/internal/event"
	"LendLedger/internal/observability"
	"LendLedger/internal/registry"
)

// Projector drains the projection channel and maintains the lend.loans
// read-model table. It is best effort: the engine drops outputs when the
// channel is full, and the event log remains the source of truth for
// rebuilds.
type Projector struct {
	db        *sql.DB
	inputChan <-chan engine.Output
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewProjector(db *sql.DB, inputChan <-chan engine.Output, metrics *observability.Metrics, logger zerolog.Logger) *Projector {
	return &Projector{db: db, inputChan: inputChan, metrics: metrics, logger: logger}
}

// Run applies outputs until ctx is cancelled or the channel closes.
func (p *Projector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case output, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.apply(ctx, output); err != nil {
				p.logger.Error().Err(err).
					Uint64("sequence", output.Envelope.Sequence).
					Msg("projection update failed")
			}
		}
	}
}

func (p *Projector) apply(ctx context.Context, out engine.Output) error {
	switch out.Envelope.Type {
	case event.TypeLoanOpened:
		var e event.LoanOpened
		if err := json.Unmarshal(out.Envelope.Payload, &e); err != nil {
			return err
		}
		return p.upsertLoan(ctx, e.LoanID, e.Owner, e.BorrowAsset, e.CollateralAsset,
			e.Principal.String(), e.Collateral.String(), e.StartTime, registry.StatusActive.String())

	case event.TypeLoanIncreased:
		var e event.LoanIncreased
		if err := json.Unmarshal(out.Envelope.Payload, &e); err != nil {
			return err
		}
		return p.exec(ctx, `UPDATE lend.loans SET principal = $2 WHERE loan_id = $1`,
			e.LoanID, e.NewPrincipal.String())

	case event.TypeLoanRepaid:
		var e event.LoanRepaid
		if err := json.Unmarshal(out.Envelope.Payload, &e); err != nil {
			return err
		}
		return p.exec(ctx, `UPDATE lend.loans SET status = $2 WHERE loan_id = $1`,
			e.LoanID, registry.StatusRepaid.String())

	case event.TypeLoanLiquidated:
		var e event.LoanLiquidated
		if err := json.Unmarshal(out.Envelope.Payload, &e); err != nil {
			return err
		}
		return p.exec(ctx, `UPDATE lend.loans SET status = $2 WHERE loan_id = $1`,
			e.LoanID, registry.StatusLiquidated.String())

	case event.TypeCollateralAdded:
		var e event.CollateralAdded
		if err := json.Unmarshal(out.Envelope.Payload, &e); err != nil {
			return err
		}
		return p.exec(ctx, `UPDATE lend.loans SET collateral = $2 WHERE loan_id = $1`,
			e.LoanID, e.NewCollateral.String())

	case event.TypeCollateralFreed:
		var e event.CollateralFreed
		if err := json.Unmarshal(out.Envelope.Payload, &e); err != nil {
			return err
		}
		return p.exec(ctx, `UPDATE lend.loans SET collateral = $2 WHERE loan_id = $1`,
			e.LoanID, e.NewCollateral.String())
	}

	// Deposits, withdrawals and liquidity supplies have no loan projection.
	return nil
}

func (p *Projector) upsertLoan(ctx context.Context, loanID, owner, borrowAsset, collateralAsset,
	principal, collateral string, startTime int64, status string) error {
	return p.exec(ctx, `
		INSERT INTO lend.loans
			(loan_id, owner, borrow_asset, collateral_asset, principal, collateral, start_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (loan_id) DO UPDATE SET
			principal = $5, collateral = $6, status = $8
	`, loanID, owner, borrowAsset, collateralAsset, principal, collateral, startTime, status)
}

func (p *Projector) exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("projection exec: %w", err)
	}
	return nil
}
