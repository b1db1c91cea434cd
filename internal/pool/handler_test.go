package pool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/pool-matching/pkg/common"
	"github.com/stretchr/testify/require"
)

func newTestRouter(coord *Coordinator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(coord).RegisterRoutes(router.Group("/api/v1/pool"))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, common.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope common.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestHandler_SubmitAndFetch(t *testing.T) {
	coord := newTestCoordinator(newFakeRepo(), 0)
	router := newTestRouter(coord)

	w, envelope := doJSON(t, router, http.MethodPost, "/api/v1/pool/requests", gin.H{
		"user_id":       uuid.New().String(),
		"pickup":        gin.H{"latitude": 37.7749, "longitude": -122.4194},
		"dropoff":       gin.H{"latitude": 37.8044, "longitude": -122.2712},
		"passengers":    1,
		"luggage":       1,
		"max_detour_km": 5.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, envelope.Success)

	var result SubmitResult
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Equal(t, OutcomePoolCreated, result.Outcome)

	w, envelope = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/pool/requests/%s", result.Request.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)

	w, envelope = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/pool/pools/%s", result.Pool.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, envelope.Success)
}

func TestHandler_SubmitValidationDetail(t *testing.T) {
	coord := newTestCoordinator(newFakeRepo(), 0)
	router := newTestRouter(coord)

	w, envelope := doJSON(t, router, http.MethodPost, "/api/v1/pool/requests", gin.H{
		"user_id":    uuid.New().String(),
		"pickup":     gin.H{"latitude": 95.0, "longitude": -122.4194},
		"dropoff":    gin.H{"latitude": 37.8044, "longitude": -122.2712},
		"passengers": 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, envelope.Success)
	require.Contains(t, envelope.Error.Message, "Latitude")
}

func TestHandler_CancelIdempotent(t *testing.T) {
	coord := newTestCoordinator(newFakeRepo(), 0)
	router := newTestRouter(coord)

	_, envelope := doJSON(t, router, http.MethodPost, "/api/v1/pool/requests", gin.H{
		"user_id":       uuid.New().String(),
		"pickup":        gin.H{"latitude": 37.7749, "longitude": -122.4194},
		"dropoff":       gin.H{"latitude": 37.8044, "longitude": -122.2712},
		"passengers":    1,
		"max_detour_km": 5.0,
	})
	var result SubmitResult
	raw, _ := json.Marshal(envelope.Data)
	require.NoError(t, json.Unmarshal(raw, &result))

	cancelPath := fmt.Sprintf("/api/v1/pool/requests/%s/cancel", result.Request.ID)

	w, envelope := doJSON(t, router, http.MethodPost, cancelPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cancel CancelResult
	raw, _ = json.Marshal(envelope.Data)
	require.NoError(t, json.Unmarshal(raw, &cancel))
	require.Equal(t, OutcomeCancelled, cancel.Outcome)

	w, envelope = doJSON(t, router, http.MethodPost, cancelPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	raw, _ = json.Marshal(envelope.Data)
	require.NoError(t, json.Unmarshal(raw, &cancel))
	require.Equal(t, OutcomeAlreadyTerminal, cancel.Outcome)
}

func TestHandler_ConfirmLifecycle(t *testing.T) {
	coord := newTestCoordinator(newFakeRepo(), 0)
	router := newTestRouter(coord)

	_, envelope := doJSON(t, router, http.MethodPost, "/api/v1/pool/requests", gin.H{
		"user_id":       uuid.New().String(),
		"pickup":        gin.H{"latitude": 37.7749, "longitude": -122.4194},
		"dropoff":       gin.H{"latitude": 37.8044, "longitude": -122.2712},
		"passengers":    1,
		"max_detour_km": 5.0,
	})
	var result SubmitResult
	raw, _ := json.Marshal(envelope.Data)
	require.NoError(t, json.Unmarshal(raw, &result))

	confirmPath := fmt.Sprintf("/api/v1/pool/requests/%s/confirm", result.Request.ID)

	w, envelope := doJSON(t, router, http.MethodPost, confirmPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var confirm ConfirmResult
	raw, _ = json.Marshal(envelope.Data)
	require.NoError(t, json.Unmarshal(raw, &confirm))
	require.Equal(t, RequestStatusConfirmed, confirm.Request.Status)
	require.Equal(t, PoolStatusConfirmed, confirm.PoolStatus)

	// Confirming again is an invalid transition, not an idempotent no-op
	w, envelope = doJSON(t, router, http.MethodPost, confirmPath, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, common.CodeInvalidState, envelope.Error.Code)
}

func TestHandler_NotFoundAndBadIDs(t *testing.T) {
	coord := newTestCoordinator(newFakeRepo(), 0)
	router := newTestRouter(coord)

	w, envelope := doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/pool/pools/%s", uuid.New()), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, common.CodeNotFound, envelope.Error.Code)

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/pool/pools/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/pool/requests/not-a-uuid/cancel", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Quote(t *testing.T) {
	coord := newTestCoordinator(newFakeRepo(), 0)
	router := newTestRouter(coord)

	w, envelope := doJSON(t, router, http.MethodPost, "/api/v1/pool/quote", gin.H{
		"pickup":     gin.H{"latitude": 37.7749, "longitude": -122.4194},
		"dropoff":    gin.H{"latitude": 37.8044, "longitude": -122.2712},
		"passengers": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var quote QuoteResponse
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &quote))
	require.Greater(t, quote.DistanceKm, 0.0)
	require.Less(t, quote.Pooled.FinalPrice, quote.Solo.FinalPrice)
}
