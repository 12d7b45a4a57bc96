package trends

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"trends-proxy/internal/common/errors"
	"trends-proxy/internal/common/logging"
	"trends-proxy/internal/quota"
)

// Admitter gates upstream access against the shared quota window.
// Satisfied by quota.Governor.
type Admitter interface {
	Admit(ctx context.Context) (quota.Decision, error)
}

// Retrier runs the upstream fetch under the retry policy.
// Satisfied by retry.Controller.
type Retrier interface {
	FetchWithRetry(ctx context.Context, req Request) (Series, error)
}

// ResultCache is the slice of the cache interface the service needs.
type ResultCache interface {
	Get(ctx context.Context, key string) (Result, bool)
	Set(ctx context.Context, key string, result Result, ttl time.Duration) error
}

// ServiceConfig holds the knobs for the fetch pipeline and the batch
// orchestrator.
type ServiceConfig struct {
	// DefaultTimeframe and DefaultGeo fill in omitted request fields
	DefaultTimeframe string
	DefaultGeo       string

	// CacheTTL bounds how long an analyzed result may be served without
	// a fresh upstream fetch
	CacheTTL time.Duration

	// BatchMaxKeywords caps how many keywords a single batch may fetch;
	// extras are dropped silently
	BatchMaxKeywords int

	// BatchDelayMin and BatchDelayMax bound the randomized pause between
	// consecutive batch items
	BatchDelayMin time.Duration
	BatchDelayMax time.Duration
}

// DefaultServiceConfig returns the service defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultTimeframe: "today 3-m",
		DefaultGeo:       "US",
		CacheTTL:         15 * time.Minute,
		BatchMaxKeywords: 3,
		BatchDelayMin:    5 * time.Second,
		BatchDelayMax:    15 * time.Second,
	}
}

// Service ties the pipeline together: cache lookup, quota admission,
// pacing, retried fetch, analysis, cache fill.
type Service struct {
	admitter Admitter
	retrier  Retrier
	cache    ResultCache
	cacheKey func(Request) string
	config   ServiceConfig
	logger   logging.Logger

	// injectable for tests
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

// NewService creates the trend service. cache may be nil to disable
// result caching; cacheKey is required when cache is set.
func NewService(admitter Admitter, retrier Retrier, cache ResultCache, cacheKey func(Request) string, config ServiceConfig, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{
		admitter:  admitter,
		retrier:   retrier,
		cache:     cache,
		cacheKey:  cacheKey,
		config:    config,
		logger:    logger.WithFields(logging.Field{Key: "component", Value: "trends"}),
		sleep:     sleepContext,
		randFloat: rand.Float64,
	}
}

// GetTrend runs the full pipeline for one keyword. A cache hit returns
// immediately and consumes no quota. A quota rejection surfaces as a
// rate_limit error carrying the window's remaining time.
func (s *Service) GetTrend(ctx context.Context, req Request) (Result, error) {
	s.applyDefaults(&req)
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	if s.cache != nil {
		if result, found := s.cache.Get(ctx, s.cacheKey(req)); found {
			s.logger.Debug("cache hit", logging.String("keyword", req.Keyword))
			return result, nil
		}
	}

	decision, err := s.admitter.Admit(ctx)
	if err != nil {
		return Result{}, err
	}
	if !decision.Allowed {
		return Result{}, errors.RateLimitError(decision.RetryAfter)
	}

	if decision.Delay > 0 {
		if err := s.sleep(ctx, decision.Delay); err != nil {
			return Result{}, err
		}
	}

	series, err := s.retrier.FetchWithRetry(ctx, req)
	if err != nil {
		return Result{}, err
	}

	result := Analyze(req.Keyword, series)

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(req), result, s.config.CacheTTL); err != nil {
			s.logger.Warn("cache write failed",
				logging.String("keyword", req.Keyword),
				logging.Err(err))
		}
	}

	return result, nil
}

// GetTrendBatch fetches up to BatchMaxKeywords keywords strictly in
// sequence, pausing between items. When the shared quota runs out mid
// batch, the results gathered so far are returned with Partial set;
// any other failure aborts the whole batch.
func (s *Service) GetTrendBatch(ctx context.Context, keywords []string, timeframe, geo string) (BatchResult, error) {
	keywords = normalizeKeywords(keywords, s.config.BatchMaxKeywords)
	if len(keywords) == 0 {
		return BatchResult{}, errors.ValidationError("at least one keyword is required")
	}

	batch := BatchResult{
		Results:    make([]Result, 0, len(keywords)),
		TotalCount: len(keywords),
	}

	for i, keyword := range keywords {
		req := Request{Keyword: keyword, Timeframe: timeframe, Geo: geo}

		result, err := s.GetTrend(ctx, req)
		if err != nil {
			if errors.IsRateLimited(err) {
				s.logger.Warn("batch cut short by quota",
					logging.String("keyword", keyword),
					logging.Int("completed", batch.CompletedCount),
					logging.Int("total", batch.TotalCount))
				batch.Partial = true
				batch.FailedOnKeyword = keyword
				return batch, nil
			}
			return BatchResult{}, err
		}

		batch.Results = append(batch.Results, result)
		batch.CompletedCount++

		if i < len(keywords)-1 {
			if err := s.sleep(ctx, s.batchDelay()); err != nil {
				return BatchResult{}, err
			}
		}
	}

	return batch, nil
}

func (s *Service) applyDefaults(req *Request) {
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Timeframe == "" {
		req.Timeframe = s.config.DefaultTimeframe
	}
	if req.Geo == "" {
		req.Geo = s.config.DefaultGeo
	}
}

func (s *Service) batchDelay() time.Duration {
	spread := s.config.BatchDelayMax - s.config.BatchDelayMin
	if spread <= 0 {
		return s.config.BatchDelayMin
	}
	return s.config.BatchDelayMin + time.Duration(s.randFloat()*float64(spread))
}

// normalizeKeywords trims whitespace, drops empties, and truncates to
// the batch cap.
func normalizeKeywords(keywords []string, max int) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
