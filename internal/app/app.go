package app

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/johnrirwin/newsradar/internal/aggregator"
	"github.com/johnrirwin/newsradar/internal/auth"
	"github.com/johnrirwin/newsradar/internal/cache"
	"github.com/johnrirwin/newsradar/internal/config"
	"github.com/johnrirwin/newsradar/internal/database"
	"github.com/johnrirwin/newsradar/internal/dedup"
	"github.com/johnrirwin/newsradar/internal/enrichment"
	"github.com/johnrirwin/newsradar/internal/feed"
	"github.com/johnrirwin/newsradar/internal/httpapi"
	"github.com/johnrirwin/newsradar/internal/learning"
	"github.com/johnrirwin/newsradar/internal/llm"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/mcp"
	"github.com/johnrirwin/newsradar/internal/pipeline"
	"github.com/johnrirwin/newsradar/internal/ratelimit"
	"github.com/johnrirwin/newsradar/internal/research"
	"github.com/johnrirwin/newsradar/internal/scoring"
	"github.com/johnrirwin/newsradar/internal/sources"
	"github.com/johnrirwin/newsradar/internal/tagging"
)

const pruneInterval = time.Hour

// Store is everything the feed updater and learning engine persist.
// database.Store and database.MemoryStore both satisfy it.
type Store interface {
	feed.Store
	learning.InteractionStore
	learning.WeightStore
}

// App holds all application dependencies
type App struct {
	Config         *config.Config
	Logger         *logging.Logger
	Cache          cache.Cache
	Aggregator     *aggregator.Aggregator
	Pipeline       *pipeline.Pipeline
	Learning       *learning.Engine
	Feeds          *feed.Updater
	Verifier       *auth.Verifier
	AuthMiddleware *auth.Middleware
	HTTPServer     *httpapi.Server
	MCPServer      *mcp.Server
	store          Store
	locker         cache.Locker
	db             *database.DB
	redis          *cache.RedisCache
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// Initialize logger
	app.Logger = app.initLogger()

	// Initialize cache and refresh lock
	app.Cache = app.initCache()

	// Initialize persistence
	app.store = app.initStore()

	// Initialize rate limiter and fetchers
	limiter := ratelimit.New(cfg.Server.RateLimitDur)
	fetchers := app.initFetchers(limiter)
	app.Aggregator = aggregator.New(fetchers, app.Cache, cfg.Sources.SnapshotTTL, app.Logger)

	// Initialize the news pipeline
	app.Pipeline = app.initPipeline()

	// Initialize learning and personal feeds
	app.Learning = learning.New(app.store, app.store, app.store, app.store, learning.Config{
		LearningRate: cfg.Pipeline.LearningRate,
		Lookback:     cfg.Pipeline.LearningLookback,
	}, app.Logger)

	feedCache := cache.NewFeedCache(app.Cache, cfg.Cache.TTL)
	app.Feeds = feed.New(app.Aggregator, app.Pipeline, app.store, app.Learning, feedCache, app.locker, feed.Config{
		InitialWindow: cfg.Pipeline.InitialWindow,
	}, app.Logger)

	// Initialize auth
	app.Verifier = auth.NewVerifier(cfg.Auth, app.Logger)
	app.AuthMiddleware = auth.NewMiddleware(app.Verifier)
	if !app.Verifier.Enabled() {
		app.Logger.Warn("AUTH_JWT_SECRET not set, trusting X-User-ID header (development only)")
	}

	// Initialize servers
	app.initServers()

	return app, nil
}

// Run starts the application in the appropriate mode
func (a *App) Run(ctx context.Context) error {
	if a.Config.Server.MCPMode {
		return a.runMCPMode(ctx)
	}
	return a.runHTTPMode(ctx)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Error("Redis close error", logging.WithField("error", err.Error()))
		}
	}

	if m, ok := a.Cache.(*cache.MemoryCache); ok {
		m.Stop()
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.LevelInfo
	switch a.Config.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:     a.Config.Cache.RedisAddr,
			Password: a.Config.Cache.RedisPassword,
			DB:       a.Config.Cache.RedisDB,
			Prefix:   "newsradar:",
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			a.locker = cache.NewMemoryLocker()
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		a.redis = redisCache
		// Serialize refreshes across every instance sharing this Redis
		a.locker = cache.NewRedisLocker(redisCache.Client(), redisCache.Prefix(), a.Config.Cache.LockLease)
		a.Logger.Info("Using Redis for refresh locks")
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		a.locker = cache.NewMemoryLocker()
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initStore() Store {
	if !a.Config.Database.Enabled {
		a.Logger.Info("Using in-memory feed store")
		return database.NewMemoryStore()
	}

	dbConfig := database.DefaultConfig()
	dbConfig.Host = a.Config.Database.Host
	dbConfig.Port = a.Config.Database.Port
	dbConfig.User = a.Config.Database.User
	dbConfig.Password = a.Config.Database.Password
	dbConfig.Database = a.Config.Database.Database
	dbConfig.SSLMode = a.Config.Database.SSLMode

	db, err := database.New(dbConfig)
	if err != nil {
		a.Logger.Warn("Failed to connect to PostgreSQL, using in-memory feed store", logging.WithField("error", err.Error()))
		return database.NewMemoryStore()
	}

	a.Logger.Info("Connected to PostgreSQL")
	if err := db.Migrate(context.Background()); err != nil {
		a.Logger.Warn("Failed to run migrations, using in-memory feed store", logging.WithField("error", err.Error()))
		db.Close()
		return database.NewMemoryStore()
	}

	a.db = db
	return database.NewStore(db)
}

func (a *App) initFetchers(limiter *ratelimit.Limiter) []sources.Fetcher {
	fetcherConfig := sources.FetcherConfig{
		Timeout:          a.Config.Sources.FetchTimeout,
		MaxItems:         a.Config.Sources.MaxItems,
		UserAgent:        a.Config.Sources.UserAgent,
		FullTextMinChars: a.Config.Sources.FullTextMinChars,
	}

	configPath := a.Config.Sources.FeedsPath
	if configPath == "" {
		configPath = sources.FindFeedsConfig()
	}
	if configPath != "" {
		feedsConfig, err := sources.LoadFeedsConfig(configPath)
		if err != nil {
			a.Logger.Warn("Failed to load feeds config, using defaults", logging.WithFields(map[string]interface{}{
				"path":  configPath,
				"error": err.Error(),
			}))
		} else {
			a.Logger.Info("Loaded feeds configuration", logging.WithFields(map[string]interface{}{
				"path":    configPath,
				"sources": len(feedsConfig.Sources),
			}))
			return sources.CreateFetchersFromConfig(feedsConfig, limiter, fetcherConfig)
		}
	} else {
		a.Logger.Info("No feeds.json found, using default sources")
	}

	return sources.CreateFetchersFromConfig(sources.GetDefaultFeedsConfig(), limiter, fetcherConfig)
}

func (a *App) initEmbedder(client *llm.Client) dedup.Embedder {
	if a.Config.LLM.EmbeddingProvider != "bedrock" {
		return client
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	embedder, err := llm.NewBedrockEmbedder(ctx, a.Config.LLM.BedrockRegion, a.Config.LLM.BedrockModel)
	if err != nil {
		a.Logger.Error("Failed to initialize Bedrock embeddings, falling back to OpenAI-compatible endpoint", logging.WithField("error", err.Error()))
		return client
	}
	a.Logger.Info("Using Bedrock embeddings", logging.WithField("model", a.Config.LLM.BedrockModel))
	return embedder
}

func (a *App) initPipeline() *pipeline.Pipeline {
	p := a.Config.Pipeline

	client := llm.New(llm.Config{
		BaseURL:        a.Config.LLM.BaseURL,
		APIKey:         a.Config.LLM.APIKey,
		ChatModel:      a.Config.LLM.ChatModel,
		EmbeddingModel: a.Config.LLM.EmbeddingModel,
		Timeout:        a.Config.LLM.Timeout,
	})
	if a.Config.LLM.APIKey == "" {
		a.Logger.Warn("LLM_API_KEY not set, judge and drafter calls will be rejected upstream")
	}

	// One gate bounds every outbound model and research call
	gate := semaphore.NewWeighted(int64(p.MaxConcurrentCalls))

	embeddings := cache.NewEmbeddingCache(a.Cache, a.Config.Cache.EmbeddingTTL)
	deduplicator := dedup.New(a.initEmbedder(client), embeddings, gate, dedup.Config{
		SimilarityThreshold: p.SimilarityThreshold,
		MaxConcurrent:       p.MaxConcurrentCalls,
		EmbedTimeout:        p.EmbedTimeout,
		ReputableSources:    p.ReputableSources,
	}, a.Logger)

	scorer := scoring.New(client, gate, scoring.Config{Timeout: p.JudgeTimeout}, a.Logger)

	var researcher enrichment.Researcher
	if p.EnableDeepResearch && a.Config.Research.APIKey != "" {
		researcher = research.New(research.Config{
			BaseURL: a.Config.Research.BaseURL,
			APIKey:  a.Config.Research.APIKey,
			Timeout: p.ResearchTimeout,
		})
	} else if p.EnableDeepResearch {
		a.Logger.Warn("RESEARCH_API_KEY not set, escalated stories are drafted without research")
	}

	selector := enrichment.New(client, researcher, gate, enrichment.Config{
		EscalationThreshold: p.EscalationThreshold,
		DisableResearch:     researcher == nil,
		ResearchMaxSources:  p.ResearchMaxSources,
		DraftTimeout:        p.DraftTimeout,
		ResearchTimeout:     p.ResearchTimeout,
	}, a.Logger)

	return pipeline.New(deduplicator, scorer, selector, tagging.New(), p.TopK, a.Logger)
}

func (a *App) initServers() {
	radar := pipeline.NewRadar(a.Pipeline, a.Aggregator)

	a.HTTPServer = httpapi.New(radar, a.Feeds, a.Learning, a.AuthMiddleware, a.Logger)

	mcpHandler := mcp.NewHandler(radar, a.Feeds, a.Learning, a.Aggregator, a.Logger)
	a.MCPServer = mcp.NewServer(mcpHandler, a.Logger)
}

func (a *App) runMCPMode(ctx context.Context) error {
	a.Logger.Info("Starting MCP server in stdio mode")
	return a.MCPServer.Run(ctx)
}

func (a *App) runHTTPMode(ctx context.Context) error {
	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.HTTPAddr))

	go a.pruneLoop(ctx)

	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// pruneLoop drops stale unsaved feed items until ctx is cancelled
func (a *App) pruneLoop(ctx context.Context) {
	if a.Config.Server.RetentionPeriod <= 0 {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Feeds.Prune(ctx, a.Config.Server.RetentionPeriod)
			if err != nil {
				a.Logger.Warn("Feed prune failed", logging.WithField("error", err.Error()))
				continue
			}
			if n > 0 {
				a.Logger.Info("Pruned stale feed items", logging.WithField("deleted", n))
			}
		}
	}
}
