/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. These types decouple
	the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:

	Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/seatpool/engine"
)

// ReserveRequest is the request to reserve units from the pool.
type ReserveRequest struct {
	RequesterID string `json:"requester_id"`
	Units       int    `json:"units"`
}

// ReserveResponse carries the id of a newly confirmed reservation.
type ReserveResponse struct {
	ReservationID string `json:"reservation_id"`
}

// ReservationDTO represents a reservation in API responses.
type ReservationDTO struct {
	ID          string `json:"id"`
	PoolID      string `json:"pool_id"`
	RequesterID string `json:"requester_id"`
	Units       int    `json:"units"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

// SummaryDTO represents a pool snapshot in API responses.
type SummaryDTO struct {
	PoolID         string `json:"pool_id"`
	Label          string `json:"label"`
	Capacity       int    `json:"capacity"`
	Available      int    `json:"available"`
	ConfirmedCount int    `json:"confirmed_count"`
	ConfirmedUnits int    `json:"confirmed_units"`
	Version        int64  `json:"version"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toReservationDTO(r engine.Reservation) ReservationDTO {
	dto := ReservationDTO{
		ID:          string(r.ID),
		PoolID:      string(r.PoolID),
		RequesterID: r.RequesterID,
		Units:       r.Units,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.CancelledAt != nil {
		dto.CancelledAt = r.CancelledAt.Format(time.RFC3339)
	}
	return dto
}
