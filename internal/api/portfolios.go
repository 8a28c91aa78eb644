package api

import (
	"encoding/json"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/storage"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"net/http"
	"strconv"
	"strings"
)

type CreatePortfolioRequest struct {
	Name string `json:"name"`
}

type TradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

type SellResponse struct {
	Proceeds decimal.Decimal `json:"proceeds"`
}

type LotResponse struct {
	models.Position
	CostBasis decimal.Decimal `json:"cost_basis"`
}

func (s *APIServer) listPortfoliosHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())

		portfolios, err := s.service.Portfolios(r.Context(), claims.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if portfolios == nil {
			portfolios = []models.Portfolio{}
		}

		s.writeJSON(w, http.StatusOK, portfolios)
	}
}

func (s *APIServer) createPortfolioHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())

		var req CreatePortfolioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			http.Error(w, "Portfolio name is required", http.StatusBadRequest)
			return
		}

		p, err := s.service.CreatePortfolio(r.Context(), claims.UserID, req.Name)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, p)
	}
}

func (s *APIServer) deletePortfolioHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.ownedPortfolio(w, r)
		if !ok {
			return
		}

		if err := s.service.DeletePortfolio(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *APIServer) positionsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.ownedPortfolio(w, r)
		if !ok {
			return
		}

		report, err := s.service.Valuate(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *APIServer) lotsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.ownedPortfolio(w, r)
		if !ok {
			return
		}

		lots, err := s.service.Lots(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}

		resp := make([]LotResponse, 0, len(lots))
		for _, lot := range lots {
			resp = append(resp, LotResponse{Position: lot, CostBasis: lot.CostBasis()})
		}

		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *APIServer) buyHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.ownedPortfolio(w, r)
		if !ok {
			return
		}

		req, ok := decodeTrade(w, r)
		if !ok {
			return
		}

		lot, err := s.service.Buy(r.Context(), id, req.Symbol, req.Quantity)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, lot)
	}
}

func (s *APIServer) sellHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.ownedPortfolio(w, r)
		if !ok {
			return
		}

		req, ok := decodeTrade(w, r)
		if !ok {
			return
		}

		proceeds, err := s.service.Sell(r.Context(), id, req.Symbol, req.Quantity)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, SellResponse{Proceeds: proceeds})
	}
}

func decodeTrade(w http.ResponseWriter, r *http.Request) (TradeRequest, bool) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.Symbol) == "" {
		http.Error(w, "Symbol is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// ownedPortfolio resolves the {id} route variable to a portfolio owned by
// the caller. Someone else's portfolio is reported as not found.
func (s *APIServer) ownedPortfolio(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims := claimsFrom(r.Context())

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid portfolio id", http.StatusBadRequest)
		return 0, false
	}

	p, err := s.service.GetPortfolio(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return 0, false
	}
	if p.UserID != claims.UserID {
		s.writeError(w, storage.ErrPortfolioNotFound)
		return 0, false
	}

	return id, true
}

func (s *APIServer) tickersHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		tickers, err := s.service.Tickers(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if tickers == nil {
			tickers = []models.TickerPrice{}
		}

		s.writeJSON(w, http.StatusOK, tickers)
	}
}

func (s *APIServer) refreshAllHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.service.UpdateAllTickers(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *APIServer) refreshHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := mux.Vars(r)["symbol"]

		if err := s.service.UpdateTicker(r.Context(), symbol); err != nil {
			s.writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
