package app

import (
	"trends-proxy/internal/cache"
	"trends-proxy/internal/common/logging"
	"trends-proxy/internal/config"
	"trends-proxy/internal/handlers"
	"trends-proxy/internal/quota"
	"trends-proxy/internal/ratelimit"
	"trends-proxy/internal/redis"
	"trends-proxy/internal/retry"
	"trends-proxy/internal/trends"
	"trends-proxy/internal/upstream"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	RedisClient *redis.Client
	Governor    *quota.Governor
	Service     *trends.Service
	Handlers    *handlers.Handlers
	RateLimiter *ratelimit.Limiter
	Logger      logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initializeRedis(); err != nil {
		return nil, err
	}

	if err := app.initializeQuota(); err != nil {
		return nil, err
	}

	if err := app.initializePipeline(); err != nil {
		return nil, err
	}

	if err := app.initializeHTTP(); err != nil {
		return nil, err
	}

	return app, nil
}

// initializeRedis connects when any component is configured for the
// redis backend.
func (app *App) initializeRedis() error {
	if !app.Config.NeedsRedis() {
		return nil
	}

	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = client
	app.Logger.Info("Connected to Redis", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}

func (app *App) initializeQuota() error {
	var store quota.Store
	if app.Config.QuotaBackend == "redis" {
		store = quota.NewRedisStore(app.RedisClient, "quota:", app.Config.QuotaCapacity, app.Config.QuotaWindow)
	} else {
		store = quota.NewMemoryStore(app.Config.QuotaCapacity, app.Config.QuotaWindow)
	}

	app.Governor = quota.NewGovernor(store, quota.Config{
		Capacity: app.Config.QuotaCapacity,
		Window:   app.Config.QuotaWindow,
		DelayMin: app.Config.AdmitDelayMin,
		DelayMax: app.Config.AdmitDelayMax,
	}, app.Logger)

	return nil
}

func (app *App) initializePipeline() error {
	fetcher := upstream.New(upstream.Config{
		BaseURL:              app.Config.UpstreamBaseURL,
		Timeout:              app.Config.UpstreamTimeout,
		MaxRequestsPerSecond: app.Config.UpstreamMaxRPS,
	}, app.Logger)

	retrier := retry.NewController(fetcher, retry.Config{
		MaxAttempts:      app.Config.RetryMaxAttempts,
		ThrottleCooldown: app.Config.RetryThrottleCooldown,
		TransientBackoff: app.Config.RetryTransientBackoff,
	}, app.Logger)

	var resultCache trends.ResultCache
	if app.Config.CacheEnabled {
		cacheConfig := cache.DefaultConfig()
		cacheConfig.TTL = app.Config.CacheTTL
		if app.Config.CacheBackend == "redis" {
			cacheConfig.Type = cache.TypeRedis
			cacheConfig.RedisClient = app.RedisClient.RDB()
		}

		c, err := cache.New(cacheConfig)
		if err != nil {
			return err
		}
		resultCache = c
	}

	app.Service = trends.NewService(app.Governor, retrier, resultCache, cache.Key, trends.ServiceConfig{
		DefaultTimeframe: app.Config.DefaultTimeframe,
		DefaultGeo:       app.Config.DefaultGeo,
		CacheTTL:         app.Config.CacheTTL,
		BatchMaxKeywords: app.Config.BatchMaxKeywords,
		BatchDelayMin:    app.Config.BatchDelayMin,
		BatchDelayMax:    app.Config.BatchDelayMax,
	}, app.Logger)

	return nil
}

func (app *App) initializeHTTP() error {
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:           app.Config.RateLimitEnabled,
		RequestsPerSecond: float64(app.Config.RateLimitRPS),
		BurstSize:         app.Config.RateLimitBurst,
		MaxKeys:           10000,
		CleanupPeriod:     ratelimit.DefaultConfig().CleanupPeriod,
	}, app.Logger)
	if err != nil {
		return err
	}
	app.RateLimiter = limiter

	app.Handlers = handlers.New(app.Service, app.Governor, app.RedisClient, app.Config, app.Logger)
	return nil
}

// Cleanup releases external connections
func (app *App) Cleanup() {
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Error closing Redis client", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}
