package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trends-proxy/internal/common/errors"
	"trends-proxy/internal/common/logging"
	"trends-proxy/internal/config"
	"trends-proxy/internal/quota"
	"trends-proxy/internal/redis"
	"trends-proxy/internal/trends"
)

// TrendService is the slice of the service the HTTP layer depends on.
type TrendService interface {
	GetTrend(ctx context.Context, req trends.Request) (trends.Result, error)
	GetTrendBatch(ctx context.Context, keywords []string, timeframe, geo string) (trends.BatchResult, error)
}

// QuotaReader exposes the shared window's current usage.
type QuotaReader interface {
	Usage(ctx context.Context) (quota.Usage, error)
}

type Handlers struct {
	service   TrendService
	quota     QuotaReader
	redis     *redis.Client
	config    *config.Config
	logger    logging.Logger
	startTime time.Time
}

func New(service TrendService, quotaReader QuotaReader, redisClient *redis.Client, cfg *config.Config, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		service:   service,
		quota:     quotaReader,
		redis:     redisClient,
		config:    cfg,
		logger:    logger.WithFields(logging.Field{Key: "component", Value: "handlers"}),
		startTime: time.Now(),
	}
}

type errorResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// GetTrends handles GET /trends?keyword=...&timeframe=...&geo=...
func (h *Handlers) GetTrends(w http.ResponseWriter, r *http.Request) {
	req := trends.Request{
		Keyword:   r.URL.Query().Get("keyword"),
		Timeframe: r.URL.Query().Get("timeframe"),
		Geo:       r.URL.Query().Get("geo"),
	}

	result, err := h.service.GetTrend(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetTrendsBatch handles GET /trends/batch?keywords=a,b,c. The keyword
// list is comma separated; extras beyond the batch cap are dropped.
func (h *Handlers) GetTrendsBatch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("keywords")
	if strings.TrimSpace(raw) == "" {
		h.writeError(w, errors.ValidationError("keywords query parameter is required"))
		return
	}

	batch, err := h.service.GetTrendBatch(
		r.Context(),
		strings.Split(raw, ","),
		r.URL.Query().Get("timeframe"),
		r.URL.Query().Get("geo"),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// a partial batch is still a successful response
	writeJSON(w, http.StatusOK, batch)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}

	if usage, err := h.quota.Usage(r.Context()); err == nil {
		health["quota"] = map[string]interface{}{
			"used":             usage.Used,
			"capacity":         usage.Capacity,
			"remaining":        usage.Remaining(),
			"reset_in_seconds": int(usage.ResetIn.Seconds()),
		}
	} else {
		health["status"] = "degraded"
		health["quota_error"] = err.Error()
	}

	if h.redis != nil {
		if err := h.redis.Health(); err != nil {
			health["status"] = "degraded"
			health["redis_error"] = err.Error()
		}
	}

	status := http.StatusOK
	if health["status"] != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// Home handles GET / with a short usage description
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "trends-proxy",
		"endpoints": map[string]string{
			"/trends":       "GET, query: keyword (required), timeframe, geo",
			"/trends/batch": "GET, query: keywords (comma separated), timeframe, geo",
			"/health":       "GET",
		},
		"timeframes":        trends.SupportedTimeframes,
		"default_timeframe": h.config.DefaultTimeframe,
		"default_geo":       h.config.DefaultGeo,
	})
}

// writeError maps a pipeline error onto an HTTP status and JSON body.
// Quota exhaustion, local or upstream, answers 429 with a Retry-After
// hint.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var status int

	switch {
	case errors.IsRateLimited(err):
		status = http.StatusTooManyRequests
		if retryAfter := errors.RetryAfterOf(err); retryAfter > 0 {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			resp.RetryAfterSeconds = seconds
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		if errors.IsType(err, errors.ErrTypeRateLimit) {
			resp.Error = "hourly request quota exhausted, please retry later"
		} else {
			resp.Error = "upstream provider is rate limiting requests, please retry later"
		}

	case errors.IsType(err, errors.ErrTypeValidation):
		status = http.StatusBadRequest

	case errors.IsType(err, errors.ErrTypeUpstreamUnavailable):
		status = http.StatusInternalServerError

	default:
		h.logger.Error("request failed", err)
		status = http.StatusInternalServerError
		resp.Error = "internal server error"
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
