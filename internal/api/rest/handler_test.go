package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnc-guild/attendance-engine/internal/events"
	"github.com/bnc-guild/attendance-engine/internal/logger"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(Services{})

	router.GET("/health", h.HealthCheck)
	router.POST("/api/v1/rolls", h.GenerateRollRanges)
	router.POST("/api/v1/raids/:id/split", h.ComputeSplit)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	var decoded map[string]any
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	}
	return recorder, decoded
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return errors.New("nats unavailable")
}

func (failingPublisher) Close() {}

func TestPublishFailureIsLoggedNotPropagated(t *testing.T) {
	require.NoError(t, logger.Initialize(logger.Config{Debug: true}))
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodDelete, "/api/v1/raids/1", nil)

	h := &handler{services: Services{Publisher: failingPublisher{}, GuildID: 7}}
	assert.NotPanics(t, func() {
		h.publish(c, events.Event{Type: events.TypeRaidDeleted, ActorID: 3, RaidID: 1})
	})
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter()

	recorder, body := doJSON(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestGenerateRollRangesEndpoint(t *testing.T) {
	router := newTestRouter()

	t.Run("renders ranges alphabetically", func(t *testing.T) {
		recorder, body := doJSON(t, router, http.MethodPost, "/api/v1/rolls", `{
			"entrants": [
				{"name": "pyrra", "tickets": 4},
				{"name": "asha", "tickets": 9}
			]
		}`)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "asha 1-10 | pyrra 11-15", body["ranges"])
	})

	t.Run("debug mode includes the report fields", func(t *testing.T) {
		recorder, body := doJSON(t, router, http.MethodPost, "/api/v1/rolls", `{
			"entrants": [
				{"name": "boxer", "tickets": 2, "attendance_percent": 80, "box_count": 2, "ticks_since_last_win": 14}
			],
			"debug": true
		}`)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "boxer 1-3 (att 80%, chars 3, slw 14)", body["ranges"])
	})

	t.Run("rejects an empty entrant list", func(t *testing.T) {
		recorder, _ := doJSON(t, router, http.MethodPost, "/api/v1/rolls", `{"entrants": []}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestComputeSplitEndpoint(t *testing.T) {
	router := newTestRouter()

	t.Run("shares sum to the amount", func(t *testing.T) {
		recorder, body := doJSON(t, router, http.MethodPost, "/api/v1/raids/1/split", `{
			"amount": 100,
			"selected": [
				{"name": "asha", "awardedTickets": 30},
				{"name": "pyrra", "awardedTickets": 20},
				{"name": "zeth", "awardedTickets": 10}
			]
		}`)

		require.Equal(t, http.StatusOK, recorder.Code)
		shares, ok := body["shares"].([]any)
		require.True(t, ok)
		require.Len(t, shares, 3)

		var sum float64
		for _, raw := range shares {
			share := raw.(map[string]any)
			sum += share["splitAmount"].(float64)
		}
		assert.Equal(t, float64(100), sum)
	})

	t.Run("rejects a selection with no awarded tickets", func(t *testing.T) {
		recorder, _ := doJSON(t, router, http.MethodPost, "/api/v1/raids/1/split", `{
			"amount": 100,
			"selected": [{"name": "asha", "awardedTickets": 0}]
		}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("rejects a non-numeric raid id", func(t *testing.T) {
		recorder, _ := doJSON(t, router, http.MethodPost, "/api/v1/raids/chardok/split", `{
			"amount": 100,
			"selected": [{"name": "asha", "awardedTickets": 1}]
		}`)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}
