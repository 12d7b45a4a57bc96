package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trends-proxy/internal/common/errors"
	"trends-proxy/internal/config"
	"trends-proxy/internal/quota"
	"trends-proxy/internal/trends"
)

type stubService struct {
	result trends.Result
	batch  trends.BatchResult
	err    error

	lastReq      trends.Request
	lastKeywords []string
}

func (s *stubService) GetTrend(ctx context.Context, req trends.Request) (trends.Result, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubService) GetTrendBatch(ctx context.Context, keywords []string, timeframe, geo string) (trends.BatchResult, error) {
	s.lastKeywords = keywords
	return s.batch, s.err
}

type stubQuota struct {
	usage quota.Usage
	err   error
}

func (q *stubQuota) Usage(ctx context.Context) (quota.Usage, error) {
	return q.usage, q.err
}

func newTestHandlers(svc *stubService, qr *stubQuota) *Handlers {
	if qr == nil {
		qr = &stubQuota{usage: quota.Usage{Used: 5, Capacity: 80, ResetIn: 30 * time.Minute}}
	}
	cfg := &config.Config{DefaultTimeframe: "today 3-m", DefaultGeo: "US"}
	return New(svc, qr, nil, cfg, nil)
}

func TestGetTrends_Success(t *testing.T) {
	svc := &stubService{result: trends.Result{
		Keyword:      "dog bed",
		CurrentScore: 70,
		AverageScore: 40,
		PeakScore:    90,
		Direction:    trends.DirectionRising,
		DataPoints:   trends.Series{10, 20, 30, 40, 50, 60, 70, 80, 90, 85, 80, 70},
	}}
	h := newTestHandlers(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/trends?keyword=dog+bed&timeframe=today+12-m&geo=GB", nil)
	rec := httptest.NewRecorder()
	h.GetTrends(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dog bed", body["keyword"])
	assert.Equal(t, float64(70), body["current_score"])
	assert.Equal(t, float64(40), body["average_score"])
	assert.Equal(t, float64(90), body["peak_score"])
	assert.Equal(t, "rising", body["trend_direction"])
	assert.Len(t, body["data_points"], 12)

	assert.Equal(t, "today 12-m", svc.lastReq.Timeframe)
	assert.Equal(t, "GB", svc.lastReq.Geo)
}

func TestGetTrends_ValidationError(t *testing.T) {
	svc := &stubService{err: errors.ValidationError("keyword is required")}
	h := newTestHandlers(svc, nil)

	rec := httptest.NewRecorder()
	h.GetTrends(rec, httptest.NewRequest(http.MethodGet, "/trends", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "keyword is required")
}

func TestGetTrends_LocalQuotaExhausted(t *testing.T) {
	svc := &stubService{err: errors.RateLimitError(40 * time.Minute)}
	h := newTestHandlers(svc, nil)

	rec := httptest.NewRecorder()
	h.GetTrends(rec, httptest.NewRequest(http.MethodGet, "/trends?keyword=cats", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2400", rec.Header().Get("Retry-After"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2400, body.RetryAfterSeconds)
	assert.Contains(t, body.Error, "quota exhausted")
}

func TestGetTrends_UpstreamRateLimited(t *testing.T) {
	svc := &stubService{err: errors.UpstreamRateLimitedError(30*time.Second, nil)}
	h := newTestHandlers(svc, nil)

	rec := httptest.NewRecorder()
	h.GetTrends(rec, httptest.NewRequest(http.MethodGet, "/trends?keyword=cats", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "upstream provider")
}

func TestGetTrends_UpstreamUnavailable(t *testing.T) {
	svc := &stubService{err: errors.UpstreamUnavailableError("upstream fetch failed after 3 attempts", nil)}
	h := newTestHandlers(svc, nil)

	rec := httptest.NewRecorder()
	h.GetTrends(rec, httptest.NewRequest(http.MethodGet, "/trends?keyword=cats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "upstream fetch failed")
}

func TestGetTrends_InternalErrorIsOpaque(t *testing.T) {
	svc := &stubService{err: errors.InternalError("store lookup failed", nil)}
	h := newTestHandlers(svc, nil)

	rec := httptest.NewRecorder()
	h.GetTrends(rec, httptest.NewRequest(http.MethodGet, "/trends?keyword=cats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.NotContains(t, body.Error, "store lookup")
}

func TestGetTrendsBatch_Success(t *testing.T) {
	svc := &stubService{batch: trends.BatchResult{
		Results:        []trends.Result{{Keyword: "a"}, {Keyword: "b"}},
		CompletedCount: 2,
		TotalCount:     2,
	}}
	h := newTestHandlers(svc, nil)

	rec := httptest.NewRecorder()
	h.GetTrendsBatch(rec, httptest.NewRequest(http.MethodGet, "/trends/batch?keywords=a,b", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, svc.lastKeywords)

	var body trends.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Partial)
	assert.Len(t, body.Results, 2)
}

func TestGetTrendsBatch_PartialIsStill200(t *testing.T) {
	svc := &stubService{batch: trends.BatchResult{
		Results:         []trends.Result{{Keyword: "a"}},
		Partial:         true,
		CompletedCount:  1,
		TotalCount:      3,
		FailedOnKeyword: "b",
	}}
	h := newTestHandlers(svc, nil)

	rec := httptest.NewRecorder()
	h.GetTrendsBatch(rec, httptest.NewRequest(http.MethodGet, "/trends/batch?keywords=a,b,c", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body trends.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Partial)
	assert.Equal(t, "b", body.FailedOnKeyword)
}

func TestGetTrendsBatch_MissingKeywords(t *testing.T) {
	h := newTestHandlers(&stubService{}, nil)

	rec := httptest.NewRecorder()
	h.GetTrendsBatch(rec, httptest.NewRequest(http.MethodGet, "/trends/batch", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	qr := &stubQuota{usage: quota.Usage{Used: 30, Capacity: 80, ResetIn: 20 * time.Minute}}
	h := newTestHandlers(&stubService{}, qr)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	quotaInfo := body["quota"].(map[string]interface{})
	assert.Equal(t, float64(30), quotaInfo["used"])
	assert.Equal(t, float64(80), quotaInfo["capacity"])
	assert.Equal(t, float64(50), quotaInfo["remaining"])
	assert.Equal(t, float64(1200), quotaInfo["reset_in_seconds"])
}

func TestHealthCheck_DegradedOnQuotaError(t *testing.T) {
	qr := &stubQuota{err: errors.ConnectionError("redis unreachable", nil)}
	h := newTestHandlers(&stubService{}, qr)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestHome(t *testing.T) {
	h := newTestHandlers(&stubService{}, nil)

	rec := httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "trends-proxy", body["service"])
	assert.Equal(t, "today 3-m", body["default_timeframe"])
	assert.Contains(t, body, "endpoints")
}
