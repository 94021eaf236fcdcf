package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/gateway"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/persistence"
	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/strategy"
)

// TokenLister is the read slice of the token repository the API exposes.
type TokenLister interface {
	List(ctx context.Context, filter persistence.TokenFilter) ([]persistence.Token, error)
}

// TakeoverChecker scans a token's thread for community-takeover chatter.
type TakeoverChecker interface {
	CheckCTO(ctx context.Context, mint string) (bool, error)
}

// DeployerFeed looks up the tokens a wallet has created.
type DeployerFeed interface {
	UserCreatedTokens(ctx context.Context, wallet string) ([]gateway.TokenFeedItem, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, persistence.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func filterFromQuery(r *http.Request) persistence.TokenFilter {
	q := r.URL.Query()
	var filter persistence.TokenFilter
	if v, err := strconv.Atoi(q.Get("min_holders")); err == nil {
		filter.MinHolders = v
	}
	if v, err := strconv.ParseFloat(q.Get("min_liquidity"), 64); err == nil {
		filter.MinLiquidity = v
	}
	if v, err := strconv.ParseFloat(q.Get("min_market_cap"), 64); err == nil {
		filter.MinMarketCap = v
	}
	filter.OnlyVerified = q.Get("verified") == "true"
	return filter
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.deps.Tokens.List(r.Context(), filterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleTakeoverCheck(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]

	cto, err := s.deps.Takeovers.CheckCTO(r.Context(), mint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokenAddress":      mint,
		"communityTakeover": cto,
	})
}

func (s *Server) handleDeployerTokens(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	items, err := s.deps.Deployers.UserCreatedTokens(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Recommend.Top(r.Context(), filterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	tier := strategy.RiskTier(r.URL.Query().Get("tier"))
	if tier == "" {
		tier = strategy.TierModerate
	}

	advice, err := s.deps.Advisor.Advise(r.Context(), mint, tier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}

type createAlertRequest struct {
	TokenAddress string  `json:"tokenAddress"`
	PriceTarget  float64 `json:"priceTarget"`
	Condition    string  `json:"condition"`
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	alert, err := s.deps.Alerts.Create(r.Context(), userID, req.TokenAddress, req.PriceTarget, req.Condition)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	list, err := s.deps.Alerts.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.deps.Alerts.Remove(r.Context(), vars["userID"], vars["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	p, err := s.deps.Portfolios.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var h persistence.Holding
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if h.BuyDate.IsZero() {
		h.BuyDate = time.Now().UTC()
	}

	if err := s.deps.Portfolios.AddHolding(r.Context(), userID, h); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.deps.Portfolios.RemoveHolding(r.Context(), vars["userID"], vars["mint"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type trackWalletRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleTrackWallet(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req trackWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	wallet, err := s.deps.Wallets.Track(r.Context(), userID, req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) handleUntrackWallet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.deps.Wallets.Untrack(r.Context(), vars["userID"], vars["address"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
