package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/model"
	"github.com/nhle/mail-gateway/internal/store"
)

type commandRequest struct {
	Text string `json:"text"`
}

// HandleCommand parses the posted text and dispatches it. Handler
// failures are still 200; the outcome carries the reason.
func (s *Server) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	cmd, ok := command.Parse(req.Text)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "no command parsed"})
		return
	}

	meta := command.Meta{
		"source":     model.OutcomeSourceHTTP,
		"remote":     clientIP(r),
		"request_id": middleware.GetReqID(r.Context()),
	}
	out := s.deps.Dispatcher.Dispatch(r.Context(), cmd, meta)

	if s.deps.Store != nil {
		rec := store.NewOutcomeRecord(out, model.OutcomeSourceHTTP)
		if err := s.deps.Store.RecordOutcome(r.Context(), rec); err != nil {
			s.deps.RequestLogger.Error().Err(err).Msg("STORE_OUTCOME_FAIL")
		}
	}

	writeJSON(w, http.StatusOK, out)
}

// HandleListOutcomes returns the most recent dispatch outcomes.
func (s *Server) HandleListOutcomes(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, []model.OutcomeRecord{})
		return
	}

	outcomes, err := s.deps.Store.ListOutcomes(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to list outcomes", Detail: err.Error()})
		return
	}
	if outcomes == nil {
		outcomes = []model.OutcomeRecord{}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// HandleListDeliveries returns the most recent per-recipient deliveries.
func (s *Server) HandleListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, []model.Delivery{})
		return
	}

	deliveries, err := s.deps.Store.ListDeliveries(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to list deliveries", Detail: err.Error()})
		return
	}
	if deliveries == nil {
		deliveries = []model.Delivery{}
	}
	writeJSON(w, http.StatusOK, deliveries)
}

// parseLimit reads the optional ?limit= query parameter. Zero means the
// store default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}
