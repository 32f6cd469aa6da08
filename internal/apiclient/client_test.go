package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestVisit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/visit", r.URL.Path)

		var req VisitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "room-1", req.MeetingRoomID)
		require.Equal(t, "fp-1", req.Fingerprint)

		respond(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"meeting_id":    "m-1",
				"session_token": "tok-1",
			},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	resp, err := client.Visit(context.Background(), VisitRequest{MeetingRoomID: "room-1", Fingerprint: "fp-1"})
	require.NoError(t, err)
	require.Equal(t, "m-1", resp.MeetingID)
	require.Equal(t, "tok-1", resp.SessionToken)
}

func TestEngagementSummaryUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/meetings/m-1/engagement", r.URL.Path)
		respond(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"meeting_id":     "m-1",
				"bucket_minutes": 1,
				"overall": []map[string]any{
					{"bucket": "2026-08-31T10:00:00Z", "value": 80},
				},
			},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	summary, err := client.EngagementSummary(context.Background(), "m-1")
	require.NoError(t, err)
	require.Equal(t, "m-1", summary.MeetingID)
	require.Len(t, summary.Overall, 1)
	require.Equal(t, float64(80), summary.Overall[0].Value)
}

func TestRetriesServerFaults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			respond(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "transient"})
			return
		}
		respond(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": "c-1", "name": "Berlin"}})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	city, err := client.CreateCity(context.Background(), "Berlin")
	require.NoError(t, err)
	require.Equal(t, "Berlin", city.Name)
	require.Equal(t, int32(2), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(w, http.StatusBadRequest, map[string]any{"success": false, "error": "fingerprint is required"})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	_, err := client.Visit(context.Background(), VisitRequest{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
	require.Equal(t, "fingerprint is required", statusErr.Message)
	require.Equal(t, int32(1), calls.Load())
}

func TestGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(w, http.StatusBadGateway, map[string]any{"success": false, "error": "upstream down"})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	_, err := client.EngagementSummary(context.Background(), "m-1")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Code)
	require.Equal(t, int32(3), calls.Load())
}

func TestCitiesPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cities", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("page_size"))
		respond(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"items":     []map[string]any{{"id": "c-1", "name": "Berlin"}},
				"page":      2,
				"page_size": 10,
				"total":     11,
			},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	page, err := client.Cities(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, 11, page.Total)
}
