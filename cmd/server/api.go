package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"brainark-core/internal/airdrop"
	"brainark-core/internal/observability"
	"brainark-core/internal/sale"
	"brainark-core/internal/storage"
)

// routes builds the HTTP API. All request and response bodies are JSON;
// decimal fields accept both JSON numbers and strings.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Sale
	mux.HandleFunc("/api/v1/sale/quote", s.handleQuote)
	mux.HandleFunc("/api/v1/sale/purchase", s.handlePurchase)
	mux.HandleFunc("/api/v1/sale/stats", s.handleSaleStats)
	mux.HandleFunc("/api/v1/sale/instruments", s.handleInstruments)
	mux.HandleFunc("/api/v1/sale/history", s.handlePurchaseHistory)
	mux.HandleFunc("/api/v1/sale/admin/price", s.handleUpdatePrice)
	mux.HandleFunc("/api/v1/sale/admin/limits", s.handleUpdateLimits)
	mux.HandleFunc("/api/v1/sale/admin/treasury", s.handleUpdateTreasury)
	mux.HandleFunc("/api/v1/sale/admin/pause", s.handleSalePause)
	mux.HandleFunc("/api/v1/sale/admin/unpause", s.handleSaleUnpause)
	mux.HandleFunc("/api/v1/sale/admin/withdraw", s.handleWithdraw)

	// Airdrop
	mux.HandleFunc("/api/v1/airdrop/verify", s.handleVerifyTask)
	mux.HandleFunc("/api/v1/airdrop/can-claim", s.handleCanClaim)
	mux.HandleFunc("/api/v1/airdrop/claim", s.handleClaim)
	mux.HandleFunc("/api/v1/airdrop/stats", s.handleAirdropStats)
	mux.HandleFunc("/api/v1/airdrop/participants", s.handleParticipants)
	mux.HandleFunc("/api/v1/airdrop/referrals", s.handleReferrals)
	mux.HandleFunc("/api/v1/airdrop/admin/verifier", s.handleAddVerifier)
	mux.HandleFunc("/api/v1/airdrop/admin/trigger", s.handleTrigger)
	mux.HandleFunc("/api/v1/airdrop/admin/distribute", s.handleDistribute)
	mux.HandleFunc("/api/v1/airdrop/admin/pause", s.handleAirdropPause)
	mux.HandleFunc("/api/v1/airdrop/admin/unpause", s.handleAirdropUnpause)

	// Treasury
	mux.HandleFunc("/api/v1/treasury/liquidity", s.handleLiquidityStatus)
	mux.HandleFunc("/api/v1/treasury/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/v1/treasury/can-sell", s.handleCanSell)
	mux.HandleFunc("/api/v1/treasury/refresh", s.handleRefresh)

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps domain errors to HTTP status codes. Authorization
// failures are 403, validation and state-machine rejections 400,
// missing records 404, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sale.ErrNotOwner),
		errors.Is(err, airdrop.ErrNotOwner),
		errors.Is(err, airdrop.ErrNotVerifier):
		status = http.StatusForbidden
	case errors.Is(err, sale.ErrUnknownInstrument),
		errors.Is(err, sale.ErrInstrumentDisabled),
		errors.Is(err, sale.ErrBelowMinimum),
		errors.Is(err, sale.ErrAboveMaximum),
		errors.Is(err, sale.ErrSlippageExceeded),
		errors.Is(err, sale.ErrSaleInactive),
		errors.Is(err, airdrop.ErrTasksNotCompleted),
		errors.Is(err, airdrop.ErrAlreadyClaimed),
		errors.Is(err, airdrop.ErrSelfReferral),
		errors.Is(err, airdrop.ErrReferrerNotParticipant),
		errors.Is(err, airdrop.ErrDistributionInactive),
		errors.Is(err, airdrop.ErrTargetNotReached),
		errors.Is(err, airdrop.ErrDistributionNotTriggered),
		errors.Is(err, airdrop.ErrOffsetOutOfBounds),
		errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Printf("Request failed: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// --- Sale handlers ---

type quoteRequest struct {
	Instrument    string          `json:"instrument"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	quote, err := s.sale.GetQuote(r.Context(), req.Instrument, req.PaymentAmount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

type purchaseRequest struct {
	Buyer             string          `json:"buyer"`
	Instrument        string          `json:"instrument"`
	PaymentAmount     decimal.Decimal `json:"payment_amount"`
	MinTokenAmountOut decimal.Decimal `json:"min_token_amount_out"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.sale.Purchase(r.Context(), req.Buyer, req.Instrument, req.PaymentAmount, req.MinTokenAmountOut)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sale.GetEPOStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	list, err := s.sale.GetSupportedInstruments(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePurchaseHistory(w http.ResponseWriter, r *http.Request) {
	buyer := r.URL.Query().Get("buyer")
	if buyer == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "buyer query parameter required"})
		return
	}
	recs, err := s.sale.GetPurchaseHistory(r.Context(), buyer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

type updatePriceRequest struct {
	Caller     string          `json:"caller"`
	Instrument string          `json:"instrument"`
	PriceUSD   decimal.Decimal `json:"price_usd"`
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.sale.UpdateInstrumentPrice(r.Context(), req.Caller, req.Instrument, req.PriceUSD); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type updateLimitsRequest struct {
	Caller     string          `json:"caller"`
	Instrument string          `json:"instrument"`
	MinUSD     decimal.Decimal `json:"min_usd"`
	MaxUSD     decimal.Decimal `json:"max_usd"`
}

func (s *Server) handleUpdateLimits(w http.ResponseWriter, r *http.Request) {
	var req updateLimitsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.sale.UpdateMinMax(r.Context(), req.Caller, req.Instrument, req.MinUSD, req.MaxUSD); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type updateTreasuryRequest struct {
	Caller     string `json:"caller"`
	Instrument string `json:"instrument"`
	Wallet     string `json:"wallet"`
}

func (s *Server) handleUpdateTreasury(w http.ResponseWriter, r *http.Request) {
	var req updateTreasuryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.sale.UpdateTreasuryWallet(r.Context(), req.Caller, req.Instrument, req.Wallet); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleSalePause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.sale.Pause(req.Caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSaleUnpause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.sale.Unpause(req.Caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type withdrawRequest struct {
	Caller     string          `json:"caller"`
	Instrument string          `json:"instrument"`
	Amount     decimal.Decimal `json:"amount"`
	To         string          `json:"to"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	receipt, err := s.sale.EmergencyWithdraw(r.Context(), req.Caller, req.Instrument, req.Amount, req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

// --- Airdrop handlers ---

type verifyTaskRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	TaskID  string `json:"task_id"`
	Result  bool   `json:"result"`
}

func (s *Server) handleVerifyTask(w http.ResponseWriter, r *http.Request) {
	var req verifyTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.airdrop.VerifySocialTask(r.Context(), req.Caller, req.Address, req.TaskID, req.Result); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCanClaim(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "address query parameter required"})
		return
	}
	ok, err := s.airdrop.CanClaim(r.Context(), address)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"can_claim": ok})
}

type claimRequest struct {
	Address  string `json:"address"`
	Referrer string `json:"referrer,omitempty"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}
	participant, err := s.airdrop.Claim(r.Context(), req.Address, req.Referrer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, participant)
}

func (s *Server) handleAirdropStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.airdrop.GetAirdropStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	offset := queryInt64(r, "offset", 0)
	limit := queryInt64(r, "limit", 100)
	list, err := s.airdrop.GetParticipants(r.Context(), offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleReferrals(w http.ResponseWriter, r *http.Request) {
	referrer := r.URL.Query().Get("referrer")
	if referrer == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "referrer query parameter required"})
		return
	}
	edges, err := s.airdrop.GetReferrals(r.Context(), referrer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, edges)
}

type addVerifierRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *Server) handleAddVerifier(w http.ResponseWriter, r *http.Request) {
	var req addVerifierRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.airdrop.AddVerifier(req.Caller, req.Address); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.airdrop.TriggerDistribution(r.Context(), req.Caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type distributeRequest struct {
	Caller string `json:"caller"`
	Offset int64  `json:"offset"`
	Limit  int64  `json:"limit"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !s.decode(w, r, &req) {
		return
	}
	paid, err := s.airdrop.DistributeTokens(r.Context(), req.Caller, req.Offset, req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"paid": paid})
}

func (s *Server) handleAirdropPause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.airdrop.Pause(req.Caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAirdropUnpause(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.airdrop.Unpause(req.Caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Treasury handlers ---

func (s *Server) handleLiquidityStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.aggregator.GetLiquidityStatus(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCanSell(w http.ResponseWriter, r *http.Request) {
	allowed, err := s.aggregator.CanUserSell(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"can_sell": allowed})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	snap, err := s.aggregator.RefreshSnapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func queryInt64(r *http.Request, key string, fallback int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
