package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"LendLedger/internal/registry"
)

// Amounts cross the wire as decimal strings: 18-decimal fixed-point values
// do not fit in JSON numbers.

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

type balanceChangeRequest struct {
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req balanceChangeRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.engine.Deposit(req.Owner, req.Asset, amount); err != nil {
		s.writeError(w, "deposit", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("deposit").Inc()
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"free_balance": s.engine.FreeBalance(req.Owner, req.Asset).String(),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req balanceChangeRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.engine.Withdraw(req.Owner, req.Asset, amount); err != nil {
		s.writeError(w, "withdraw", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("withdraw").Inc()
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"free_balance": s.engine.FreeBalance(req.Owner, req.Asset).String(),
	})
}

type supplyLiquidityRequest struct {
	Funder string `json:"funder"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleSupplyLiquidity(w http.ResponseWriter, r *http.Request) {
	var req supplyLiquidityRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.engine.SupplyLiquidity(req.Funder, req.Asset, amount); err != nil {
		s.writeError(w, "supply_liquidity", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("supply_liquidity").Inc()
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"liquidity": s.engine.Liquidity(req.Asset).String(),
	})
}

type borrowRequest struct {
	Owner            string `json:"owner"`
	BorrowAsset      string `json:"borrow_asset"`
	Amount           string `json:"amount"`
	CollateralAsset  string `json:"collateral_asset"`
	CollateralAmount string `json:"collateral_amount"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	collateral, err := parseAmount(req.CollateralAmount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	loan, err := s.engine.Borrow(req.Owner, req.BorrowAsset, amount, req.CollateralAsset, collateral)
	if err != nil {
		s.writeError(w, "borrow", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("borrow").Inc()
		s.metrics.LoansOpened.Inc()
	}
	s.writeJSON(w, http.StatusCreated, loan)
}

type loanTripleRequest struct {
	Owner           string `json:"owner"`
	BorrowAsset     string `json:"borrow_asset"`
	CollateralAsset string `json:"collateral_asset"`
	Amount          string `json:"amount"`
}

func (s *Server) handleIncreaseBorrow(w http.ResponseWriter, r *http.Request) {
	var req loanTripleRequest
	if !s.decode(w, r, &req) {
		return
	}
	delta, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	loan, err := s.engine.IncreaseBorrow(req.Owner, req.BorrowAsset, req.CollateralAsset, delta)
	if err != nil {
		s.writeError(w, "increase_borrow", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("increase_borrow").Inc()
	}
	s.writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req loanTripleRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.engine.Repay(req.Owner, req.BorrowAsset, req.CollateralAsset, amount); err != nil {
		s.writeError(w, "repay", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("repay").Inc()
		s.metrics.LoansRepaid.Inc()
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": registry.StatusRepaid.String()})
}

type liquidateRequest struct {
	Liquidator      string `json:"liquidator"`
	Owner           string `json:"owner"`
	BorrowAsset     string `json:"borrow_asset"`
	CollateralAsset string `json:"collateral_asset"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if !s.decode(w, r, &req) {
		return
	}
	quote, err := s.engine.Liquidate(req.Liquidator, req.Owner, req.BorrowAsset, req.CollateralAsset)
	if err != nil {
		s.writeError(w, "liquidate", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("liquidate").Inc()
		s.metrics.LiquidationsTotal.Inc()
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleAddCollateral(w http.ResponseWriter, r *http.Request) {
	var req loanTripleRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	loan, err := s.engine.AddCollateralToLoan(req.Owner, req.BorrowAsset, req.CollateralAsset, amount)
	if err != nil {
		s.writeError(w, "add_collateral", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("add_collateral").Inc()
	}
	s.writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleFreeCollateral(w http.ResponseWriter, r *http.Request) {
	var req loanTripleRequest
	if !s.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	loan, err := s.engine.FreeCollateralFromLoan(req.Owner, req.BorrowAsset, req.CollateralAsset, amount)
	if err != nil {
		s.writeError(w, "free_collateral", err)
		return
	}
	if s.metrics != nil {
		s.metrics.OpsApplied.WithLabelValues("free_collateral").Inc()
	}
	s.writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"assets": s.engine.Assets()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	asset := r.URL.Query().Get("asset")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"owner":  owner,
		"asset":  asset,
		"free":   s.engine.FreeBalance(owner, asset).String(),
		"locked": s.engine.LockedBalance(owner, asset).String(),
	})
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	usd, err := s.engine.ValueInUSD(asset, amount)
	if err != nil {
		s.writeError(w, "value", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"asset":     asset,
		"amount":    amount.String(),
		"usd_value": usd.String(),
	})
}

func (s *Server) handleActiveLoan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loan, hf, err := s.engine.ActiveLoan(q.Get("owner"), q.Get("borrow_asset"), q.Get("collateral_asset"))
	if err != nil {
		s.writeError(w, "active_loan", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"loan":          loan,
		"health_factor": hf.String(),
	})
}

func (s *Server) handleLiquidationQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, hf, err := s.engine.PreviewLiquidation(q.Get("owner"), q.Get("borrow_asset"), q.Get("collateral_asset"))
	if err != nil {
		s.writeError(w, "liquidation_quote", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"quote":         quote,
		"health_factor": hf.String(),
	})
}

func parseStatusFilter(s string) ([]registry.LoanStatus, error) {
	switch s {
	case "":
		return nil, nil
	case "ACTIVE":
		return []registry.LoanStatus{registry.StatusActive}, nil
	case "REPAID":
		return []registry.LoanStatus{registry.StatusRepaid}, nil
	case "LIQUIDATED":
		return []registry.LoanStatus{registry.StatusLiquidated}, nil
	default:
		return nil, fmt.Errorf("unknown status %q", s)
	}
}

func (s *Server) handleLoansByOwner(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	filter, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	loans := s.engine.LoansByOwner(owner, filter...)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"loans": loans})
}

func (s *Server) handleLoanHistory(w http.ResponseWriter, r *http.Request) {
	loan, err := s.engine.LoanHistory(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "loan_history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.queries.ListEvents(r.Context(), from, limit)
	if err != nil {
		s.writeError(w, "events", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	journals, err := s.queries.ListJournal(r.Context(), account, limit)
	if err != nil {
		s.writeError(w, "journal", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"journal": journals})
}
