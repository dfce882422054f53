package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/eddiefleurent/zero-dte-bot/internal/risk"
	"github.com/eddiefleurent/zero-dte-bot/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGate struct {
	status risk.DayStatus
	seen   string
}

func (s *stubGate) Status(date string) risk.DayStatus {
	s.seen = date
	return s.status
}

func newTestServer(t *testing.T, token string) (*Server, *storage.MockStorage, *stubGate) {
	t.Helper()
	store := storage.NewMockStorage()
	gate := &stubGate{status: risk.DayStatus{
		Date:                "2024-03-05",
		ConsecutiveLossDays: 1,
		AllowedDailyLoss:    300,
		RealizedLossToday:   120,
	}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := NewServer(Config{Port: 0, AuthToken: token}, store, gate, logger)
	s.clock = func() time.Time { return time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC) }
	return s, store, gate
}

func get(t *testing.T, s *Server, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec := get(t, s, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestRiskEndpointDefaultsToToday(t *testing.T) {
	s, _, gate := newTestServer(t, "")

	rec := get(t, s, "/api/risk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-05", gate.seen)

	var status risk.DayStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.ConsecutiveLossDays)
	assert.InDelta(t, 300, status.AllowedDailyLoss, 1e-9)
}

func TestRiskEndpointExplicitDate(t *testing.T) {
	s, _, gate := newTestServer(t, "")

	rec := get(t, s, "/api/risk/2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03-01", gate.seen)

	rec = get(t, s, "/api/risk/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndFillsEndpoints(t *testing.T) {
	s, store, _ := newTestServer(t, "")
	require.NoError(t, store.RecordFill(&models.FillResult{OrderID: "o1"}))
	store.RecordOrderOutcome(true)

	rec := get(t, s, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats storage.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.ApprovedOrders)
	assert.Equal(t, 1, stats.FilledOrders)

	rec = get(t, s, "/api/fills", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fills []models.FillResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fills))
	require.Len(t, fills, 1)
	assert.Equal(t, "o1", fills[0].OrderID)
}

func TestAuthMiddleware(t *testing.T) {
	s, _, _ := newTestServer(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/stats", nil).Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/api/stats", map[string]string{"X-Auth-Token": "secret"}).Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/api/stats?token=secret", nil).Code)

	// Probes stay open without a token.
	assert.Equal(t, http.StatusOK, get(t, s, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/metrics", nil).Code)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec := get(t, s, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
