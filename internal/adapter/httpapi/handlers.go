package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alimda/cryptofolio/internal/domain"
	"github.com/alimda/cryptofolio/internal/usecase/analytics"
	"github.com/alimda/cryptofolio/internal/usecase/ledger"
)

type tradeRequest struct {
	AssetID  string          `json:"assetId"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type createAlertRequest struct {
	AssetID   string          `json:"assetId"`
	Condition string          `json:"condition"`
	Threshold decimal.Decimal `json:"threshold"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusForError maps the domain error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnknownCondition),
		errors.Is(err, domain.ErrMalformedState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.ledger.RecordBuy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.ledger.RecordSell)
}

type tradeFunc func(ctx context.Context, assetID string, quantity, price decimal.Decimal) (*domain.Transaction, error)

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, record tradeFunc) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	tx, err := record(r.Context(), req.AssetID, req.Quantity, req.Price)
	if err != nil {
		// A persistence failure after a successful mutation still returns the
		// transaction; the ledger kept the mutation in memory.
		if tx != nil && errors.Is(err, domain.ErrPersistenceUnavailable) {
			s.log.Warn().Err(err).Msg("Trade recorded but not persisted")
			writeJSON(w, http.StatusOK, tx)
			return
		}
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	var prices *domain.PriceSnapshot
	if snap, ok := s.market.Latest(); ok {
		prices = snap.PriceSnapshot()
	}
	writeJSON(w, http.StatusOK, s.ledger.Valuate(prices))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Transactions())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Export())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc ledger.ExportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if err := s.ledger.Import(r.Context(), &doc); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "imported"})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.alerts.Rules())
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	rule, err := s.alerts.Create(r.Context(), req.AssetID, req.Condition, req.Threshold)
	if err != nil {
		if rule != nil && errors.Is(err, domain.ErrPersistenceUnavailable) {
			s.log.Warn().Err(err).Msg("Alert created but not persisted")
			writeJSON(w, http.StatusOK, rule)
			return
		}
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) alertID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed alert id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleDeactivateAlert(w http.ResponseWriter, r *http.Request) {
	s.handleAlertToggle(w, r, s.alerts.Deactivate)
}

func (s *Server) handleActivateAlert(w http.ResponseWriter, r *http.Request) {
	s.handleAlertToggle(w, r, s.alerts.Reactivate)
}

func (s *Server) handleAlertToggle(w http.ResponseWriter, r *http.Request, toggle func(ctx context.Context, id uuid.UUID) error) {
	id, ok := s.alertID(w, r)
	if !ok {
		return
	}
	if err := toggle(r.Context(), id); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := s.alertID(w, r)
	if !ok {
		return
	}
	if err := s.alerts.Delete(r.Context(), id); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleMarketAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.market.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no market data yet")
		return
	}
	writeJSON(w, http.StatusOK, analytics.Analyze(snap, analytics.DefaultFearGreedConfig()))
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.market.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no market data yet")
		return
	}
	writeJSON(w, http.StatusOK, s.reporting.DailyMarketReport(snap))
}

func (s *Server) handlePortfolioReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.market.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no market data yet")
		return
	}
	writeJSON(w, http.StatusOK, s.reporting.PortfolioReportFor(snap))
}
