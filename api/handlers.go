/*
handlers.go - HTTP handlers for the absence API

PURPOSE:
  Thin translation layer over absence.Service. Parses JSON, resolves the
  acting user from the identity header, and maps the error taxonomy to
  status codes:

    validation  -> 422 Unprocessable Entity
    access      -> 403 Forbidden
    not found   -> 404 Not Found
    everything else -> 500 (store failure, transaction rolled back)

IDENTITY:
  The acting user arrives via the X-User-ID header, standing in for the
  identity collaborator that resolves the authenticated session.
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/absence-engine/absence"
)

const userHeader = "X-User-ID"

// Handler holds the API dependencies.
type Handler struct {
	svc   *absence.Service
	store absence.Store
	log   logrus.FieldLogger
}

func NewHandler(svc *absence.Service, store absence.Store, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, store: store, log: log}
}

// CreateAbsence handles POST /api/absences.
func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + userHeader + " header"})
		return
	}

	var body CreateAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	created, err := h.svc.Create(r.Context(), userID, body.StartDate, body.EndDate, body.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbsenceResponse(created))
}

// UpdateAbsence handles PUT /api/absences/{id}.
func (h *Handler) UpdateAbsence(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + userHeader + " header"})
		return
	}
	requestID := chi.URLParam(r, "id")

	var body UpdateAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	updated, err := h.svc.Update(r.Context(), requestID, userID, absence.UpdateFields{
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Reason:    body.Reason,
		Status:    body.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceResponse(updated))
}

// ListAbsences handles GET /api/absences?year=YYYY.
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + userHeader + " header"})
		return
	}

	year := yearParam(r)
	requests, err := h.svc.ListVisible(r.Context(), userID, year)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceResponses(requests))
}

// GetBalance handles GET /api/absences/balance?year=YYYY.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + userHeader + " header"})
		return
	}

	summary, err := h.svc.Balance(r.Context(), userID, yearParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Year:            summary.Year,
		Allowance:       summary.Allowance,
		Balance:         summary.Balance,
		NextYearBalance: summary.NextYearBalance,
	})
}

// GetRole handles GET /api/absences/{id}/role. Read path: served through
// the role cache.
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + userHeader + " header"})
		return
	}

	role, err := h.svc.Roles().Resolve(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoleResponse{Role: role})
}

// ListHolidays handles GET /api/holidays?year=YYYY.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := yearParam(r)
	holidays, err := h.store.HolidaysBetween(r.Context(), absence.StartOfYear(year), absence.EndOfYear(year))
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]HolidayResponse, 0, len(holidays))
	for _, holiday := range holidays {
		out = append(out, HolidayResponse{Date: holiday.Date, Name: holiday.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func yearParam(r *http.Request) int {
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil {
		return y
	}
	return time.Now().UTC().Year()
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case absence.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case absence.IsAccessDenied(err):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case absence.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		h.log.WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
