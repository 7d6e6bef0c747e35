/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Input validation (units range, requester id) before the engine is called
- Engine error mapping to HTTP statuses
- Reserve / cancel / summary / list flows end to end over the router
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/seatpool/api"
	"github.com/warp/seatpool/engine"
	"github.com/warp/seatpool/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, capacity int) (*httptest.Server, *engine.Engine) {
	t.Helper()

	mem := store.NewTxMemory()
	require.NoError(t, mem.EnsurePool(context.Background(), "main", "Test Event", capacity))

	eng := engine.New(mem)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(eng, "main")))
	t.Cleanup(srv.Close)
	return srv, eng
}

func postReserve(t *testing.T, srv *httptest.Server, requesterID string, units int) *http.Response {
	t.Helper()

	body, err := json.Marshal(api.ReserveRequest{RequesterID: requesterID, Units: units})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/pool/reservations", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func doDelete(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// RESERVE
// =============================================================================

func TestReserveEndpoint_Success(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	resp := postReserve(t, srv, "alice", 4)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[api.ReserveResponse](t, resp)
	assert.NotEmpty(t, created.ReservationID)

	// Summary reflects the allocation
	sumResp, err := http.Get(srv.URL + "/api/pool")
	require.NoError(t, err)
	summary := decode[api.SummaryDTO](t, sumResp)
	assert.Equal(t, 96, summary.Available)
	assert.Equal(t, 1, summary.ConfirmedCount)
	assert.Equal(t, 4, summary.ConfirmedUnits)
}

func TestReserveEndpoint_ValidationRejectedBeforeEngine(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	cases := []struct {
		name      string
		requester string
		units     int
	}{
		{"zero units", "alice", 0},
		{"negative units", "alice", -1},
		{"units above bound", "alice", 11},
		{"empty requester", "", 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postReserve(t, srv, tc.requester, tc.units)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}

	// Nothing reached the ledger
	listResp, err := http.Get(srv.URL + "/api/pool/reservations")
	require.NoError(t, err)
	list := decode[[]api.ReservationDTO](t, listResp)
	assert.Empty(t, list)
}

func TestReserveEndpoint_InsufficientCapacity_Conflict(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	resp := postReserve(t, srv, "alice", 5)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postReserve(t, srv, "bob", 1)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	errResp := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, "Conflict", errResp.Error)
}

func TestReserveEndpoint_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, 5)

	resp, err := http.Post(srv.URL+"/api/pool/reservations", "application/json",
		bytes.NewReader([]byte(`{"units": "three"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CANCEL / LOOKUP
// =============================================================================

func TestCancelEndpoint_RoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	resp := postReserve(t, srv, "alice", 3)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.ReserveResponse](t, resp)

	resp = doDelete(t, srv, "/api/reservations/"+created.ReservationID)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Units returned
	sumResp, err := http.Get(srv.URL + "/api/pool")
	require.NoError(t, err)
	summary := decode[api.SummaryDTO](t, sumResp)
	assert.Equal(t, 10, summary.Available)
	assert.Equal(t, 0, summary.ConfirmedCount)

	// Second cancel: same outcome as an unknown id
	resp = doDelete(t, srv, "/api/reservations/"+created.ReservationID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelEndpoint_UnknownID(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	resp := doDelete(t, srv, "/api/reservations/ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetReservationEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	resp := postReserve(t, srv, "alice", 2)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.ReserveResponse](t, resp)

	getResp, err := http.Get(srv.URL + "/api/reservations/" + created.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	dto := decode[api.ReservationDTO](t, getResp)
	assert.Equal(t, created.ReservationID, dto.ID)
	assert.Equal(t, "alice", dto.RequesterID)
	assert.Equal(t, 2, dto.Units)
	assert.Equal(t, string(engine.StatusConfirmed), dto.Status)

	// Cancelled reservation reads as not found
	resp = doDelete(t, srv, "/api/reservations/"+created.ReservationID)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	getResp, err = http.Get(srv.URL + "/api/reservations/" + created.ReservationID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

// =============================================================================
// LIST
// =============================================================================

func TestListEndpoint_IncludesCancelled(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	resp := postReserve(t, srv, "alice", 2)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[api.ReserveResponse](t, resp)

	resp = postReserve(t, srv, "bob", 1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doDelete(t, srv, "/api/reservations/"+first.ReservationID)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	listResp, err := http.Get(srv.URL + "/api/pool/reservations")
	require.NoError(t, err)
	list := decode[[]api.ReservationDTO](t, listResp)
	require.Len(t, list, 2)

	statuses := map[string]int{}
	for _, dto := range list {
		statuses[dto.Status]++
	}
	assert.Equal(t, 1, statuses[string(engine.StatusConfirmed)])
	assert.Equal(t, 1, statuses[string(engine.StatusCancelled)])
}
