/*
handlers.go - HTTP API handlers for the seat pool service

PURPOSE:

	Exposes the reservation engine via REST API. Handles HTTP
	request/response, JSON serialization and input validation, and
	delegates everything else to the engine.

ENDPOINTS:

	GET    /api/pool                   Pool summary snapshot
	GET    /api/pool/reservations      List reservations (newest first)
	POST   /api/pool/reservations      Reserve units
	GET    /api/reservations/{id}      Look up a confirmed reservation
	DELETE /api/reservations/{id}      Cancel a reservation

ERROR HANDLING:

	Engine errors are mapped to JSON errors with appropriate HTTP status:
	- 400: Malformed input (bad units, empty requester id)
	- 404: Pool or reservation not found (or already cancelled)
	- 409: Conflict (insufficient capacity, concurrent modification)
	- 500: Internal errors, including integrity faults

	Malformed input is rejected BEFORE calling the engine: the engine
	receives only well-typed, pre-validated arguments.

SECURITY NOTE:

	Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/seatpool/engine"
)

// Units accepted per reservation request. The engine only requires
// positive units; the bounded range is API policy.
const (
	minUnits = 1
	maxUnits = 10
)

// reserveAttempts bounds how often a handler retries a reserve or cancel
// that lost a version-fence race before surfacing the conflict.
const reserveAttempts = 3

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	PoolID engine.PoolID
}

// NewHandler creates a handler serving one pool through the given engine.
func NewHandler(eng *engine.Engine, poolID engine.PoolID) *Handler {
	return &Handler{Engine: eng, PoolID: poolID}
}

// =============================================================================
// POOL HANDLERS
// =============================================================================

// GetSummary returns a point-in-time snapshot of the pool.
// GET /api/pool
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Engine.Summarize(r.Context(), h.PoolID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryDTO{
		PoolID:         string(summary.PoolID),
		Label:          summary.Label,
		Capacity:       summary.Capacity,
		Available:      summary.Available,
		ConfirmedCount: summary.ConfirmedCount,
		ConfirmedUnits: summary.ConfirmedUnits,
		Version:        summary.Version,
	})
}

// ListReservations returns all reservations for the pool, newest first.
// GET /api/pool/reservations
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.Engine.List(r.Context(), h.PoolID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]ReservationDTO, len(reservations))
	for i, res := range reservations {
		dtos[i] = toReservationDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// Reserve allocates units from the pool.
// POST /api/pool/reservations
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required", nil)
		return
	}
	if req.Units < minUnits || req.Units > maxUnits {
		writeError(w, http.StatusBadRequest, "units must be between 1 and 10", nil)
		return
	}

	ctx := r.Context()
	var id engine.ReservationID
	err := engine.Retry(ctx, reserveAttempts, func() error {
		var err error
		id, err = h.Engine.Reserve(ctx, h.PoolID, req.RequesterID, req.Units)
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReserveResponse{ReservationID: string(id)})
}

// GetReservation looks up a confirmed reservation.
// GET /api/reservations/{id}
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := engine.ReservationID(chi.URLParam(r, "id"))

	res, err := h.Engine.Find(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(*res))
}

// CancelReservation releases a reservation's units back to the pool.
// DELETE /api/reservations/{id}
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := engine.ReservationID(chi.URLParam(r, "id"))
	ctx := r.Context()

	err := engine.Retry(ctx, reserveAttempts, func() error {
		return h.Engine.Cancel(ctx, id)
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeEngineError maps the engine's error taxonomy to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, engine.ErrInvalidUnits):
		writeError(w, http.StatusBadRequest, "Invalid units", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
