package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	Pipeline PipelineConfig
	LLM      LLMConfig
	Research ResearchConfig
	Sources  SourcesConfig
}

// ServerConfig holds HTTP/MCP server configuration
type ServerConfig struct {
	HTTPAddr        string
	MCPMode         bool
	RateLimitDur    time.Duration
	RetentionPeriod time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend       string // "memory" or "redis"
	TTL           time.Duration
	EmbeddingTTL  time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockLease     time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// AuthConfig holds bearer token verification settings. An empty secret
// switches the API to development mode where X-User-ID is trusted.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration
}

// PipelineConfig holds the tuning knobs of the news pipeline
type PipelineConfig struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	EscalationThreshold float64       `yaml:"hotness_escalation_threshold"`
	MaxConcurrentCalls  int           `yaml:"max_concurrent_external_calls"`
	LearningRate        float64       `yaml:"learning_rate"`
	EmbedTimeout        time.Duration `yaml:"embed_timeout"`
	JudgeTimeout        time.Duration `yaml:"judge_timeout"`
	DraftTimeout        time.Duration `yaml:"draft_timeout"`
	ResearchTimeout     time.Duration `yaml:"research_timeout"`
	ResearchMaxSources  int           `yaml:"research_max_sources"`
	EnableDeepResearch  bool          `yaml:"enable_deep_research"`
	InitialWindow       time.Duration `yaml:"initial_window"`
	LearningLookback    time.Duration `yaml:"learning_lookback"`
	TopK                int           `yaml:"top_k"`
	ReputableSources    []string      `yaml:"reputable_sources"`
}

// LLMConfig holds the judge/drafter endpoint and the embedding provider
type LLMConfig struct {
	BaseURL           string
	APIKey            string
	ChatModel         string
	EmbeddingProvider string // "openai" or "bedrock"
	EmbeddingModel    string
	BedrockRegion     string
	BedrockModel      string
	Timeout           time.Duration
}

// ResearchConfig holds the deep research endpoint
type ResearchConfig struct {
	BaseURL string
	APIKey  string
}

// SourcesConfig holds collector settings
type SourcesConfig struct {
	FeedsPath        string
	FetchTimeout     time.Duration
	MaxItems         int
	UserAgent        string
	FullTextMinChars int
	SnapshotTTL      time.Duration
}

// Load reads .env, parses flags and environment variables, then overlays
// pipeline tuning from the YAML file named by -config or RADAR_CONFIG.
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{}

	// Define flags with defaults
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	mcpMode := flag.Bool("mcp", false, "Run in MCP stdio mode")
	configPath := flag.String("config", "", "Optional YAML file with pipeline tuning")
	cacheTTL := flag.Duration("cache-ttl", 30*time.Minute, "Feed cache TTL")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	rateLimitDur := flag.Duration("rate-limit", time.Second, "Minimum delay between requests to same host")
	retention := flag.Duration("retention", 30*24*time.Hour, "Drop unsaved feed items older than this")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	dbEnabled := flag.Bool("db", false, "Persist feeds in PostgreSQL instead of memory")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "newsradar", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")
	similarity := flag.Float64("similarity-threshold", 0.85, "Cosine similarity that links two articles")
	escalation := flag.Float64("escalation-threshold", 0.7, "Overall hotness at which stories get a full draft and research")
	maxConcurrent := flag.Int("max-concurrent", 5, "Maximum concurrent external calls")
	learningRate := flag.Float64("learning-rate", 0.1, "Interest weight learning rate")
	topK := flag.Int("top-k", 0, "Keep at most this many stories per run (0 = all)")
	initialWindow := flag.Duration("initial-window", 24*time.Hour, "Look-back for a reader's first refresh")
	noResearch := flag.Bool("disable-research", false, "Draft escalated stories without deep research")

	flag.Parse()

	cfg.Server = ServerConfig{
		HTTPAddr:        *httpAddr,
		MCPMode:         *mcpMode,
		RateLimitDur:    *rateLimitDur,
		RetentionPeriod: *retention,
	}

	cfg.Cache = CacheConfig{
		Backend:      *cacheBackend,
		TTL:          *cacheTTL,
		EmbeddingTTL: 7 * 24 * time.Hour,
		RedisAddr:    *redisAddr,
		LockLease:    5 * time.Minute,
	}

	cfg.Database = DatabaseConfig{
		Enabled:  *dbEnabled,
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPassword,
		Database: *dbName,
		SSLMode:  *dbSSLMode,
	}

	cfg.Logging = LoggingConfig{
		Level: *logLevel,
	}

	cfg.Pipeline = PipelineConfig{
		SimilarityThreshold: *similarity,
		EscalationThreshold: *escalation,
		MaxConcurrentCalls:  *maxConcurrent,
		LearningRate:        *learningRate,
		EmbedTimeout:        30 * time.Second,
		JudgeTimeout:        45 * time.Second,
		DraftTimeout:        90 * time.Second,
		ResearchTimeout:     3 * time.Minute,
		ResearchMaxSources:  20,
		EnableDeepResearch:  !*noResearch,
		InitialWindow:       *initialWindow,
		LearningLookback:    30 * 24 * time.Hour,
		TopK:                *topK,
		ReputableSources:    []string{"reuters", "bloomberg", "wsj", "ft.com", "cnbc"},
	}

	cfg.Sources = SourcesConfig{
		FetchTimeout: 30 * time.Second,
		MaxItems:     50,
		UserAgent:    "NewsRadar/1.0",
		SnapshotTTL:  2 * time.Minute,
	}

	applyEnvOverrides(cfg)

	cfg.Auth = loadAuthConfig()
	cfg.LLM = loadLLMConfig()
	cfg.Research = ResearchConfig{
		BaseURL: getEnvOrDefault("RESEARCH_BASE_URL", "https://api.tavily.com"),
		APIKey:  os.Getenv("RESEARCH_API_KEY"),
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("RADAR_CONFIG")
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig is the subset of configuration a YAML file may override
type fileConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sources  struct {
		FeedsPath        string `yaml:"feeds_path"`
		FullTextMinChars int    `yaml:"full_text_min_chars"`
	} `yaml:"sources"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Pipeline: cfg.Pipeline}
	fc.Sources.FeedsPath = cfg.Sources.FeedsPath
	fc.Sources.FullTextMinChars = cfg.Sources.FullTextMinChars

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.Pipeline = fc.Pipeline
	cfg.Sources.FeedsPath = fc.Sources.FeedsPath
	cfg.Sources.FullTextMinChars = fc.Sources.FullTextMinChars
	return nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	p := c.Pipeline
	var errs []error
	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity threshold %v must be in (0, 1]", p.SimilarityThreshold))
	}
	if p.EscalationThreshold <= 0 || p.EscalationThreshold > 1 {
		errs = append(errs, fmt.Errorf("escalation threshold %v must be in (0, 1]", p.EscalationThreshold))
	}
	if p.MaxConcurrentCalls < 1 {
		errs = append(errs, fmt.Errorf("max concurrent external calls must be at least 1, got %d", p.MaxConcurrentCalls))
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		errs = append(errs, fmt.Errorf("learning rate %v must be in (0, 1]", p.LearningRate))
	}
	if p.TopK < 0 {
		errs = append(errs, fmt.Errorf("top k must not be negative, got %d", p.TopK))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.LLM.EmbeddingProvider != "openai" && c.LLM.EmbeddingProvider != "bedrock" {
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.LLM.EmbeddingProvider))
	}
	return errors.Join(errs...)
}

func loadAuthConfig() AuthConfig {
	ttl := time.Hour
	envDuration("AUTH_TOKEN_TTL", &ttl)

	return AuthConfig{
		JWTSecret:   os.Getenv("AUTH_JWT_SECRET"),
		JWTIssuer:   getEnvOrDefault("AUTH_JWT_ISSUER", "newsradar"),
		JWTAudience: getEnvOrDefault("AUTH_JWT_AUDIENCE", "newsradar-users"),
		TokenTTL:    ttl,
	}
}

func loadLLMConfig() LLMConfig {
	timeout := 2 * time.Minute
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	return LLMConfig{
		BaseURL:           getEnvOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		APIKey:            os.Getenv("LLM_API_KEY"),
		ChatModel:         getEnvOrDefault("LLM_CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingProvider: strings.ToLower(getEnvOrDefault("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:    getEnvOrDefault("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
		BedrockRegion:     os.Getenv("AWS_REGION"),
		BedrockModel:      getEnvOrDefault("BEDROCK_EMBEDDING_MODEL", "amazon.titan-embed-text-v2:0"),
		Timeout:           timeout,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1":
		*dst = true
	case "false", "0":
		*dst = false
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("MCP_MODE"); v == "true" || v == "1" {
		cfg.Server.MCPMode = true
	}
	envDuration("RATE_LIMIT", &cfg.Server.RateLimitDur)
	envDuration("RETENTION_PERIOD", &cfg.Server.RetentionPeriod)

	envDuration("CACHE_TTL", &cfg.Cache.TTL)
	if v := os.Getenv("CACHE_TTL_MINUTES"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTL = time.Duration(m) * time.Minute
		}
	}
	envDuration("EMBEDDING_CACHE_TTL", &cfg.Cache.EmbeddingTTL)
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	cfg.Cache.RedisPassword = os.Getenv("REDIS_PASSWORD")
	envInt("REDIS_DB", &cfg.Cache.RedisDB)
	envDuration("REFRESH_LOCK_LEASE", &cfg.Cache.LockLease)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	envBool("DB_ENABLED", &cfg.Database.Enabled)
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	envInt("DB_PORT", &cfg.Database.Port)
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}

	p := &cfg.Pipeline
	envFloat("SIMILARITY_THRESHOLD", &p.SimilarityThreshold)
	envFloat("HOTNESS_ESCALATION_THRESHOLD", &p.EscalationThreshold)
	envInt("MAX_CONCURRENT_EXTERNAL_CALLS", &p.MaxConcurrentCalls)
	envFloat("LEARNING_RATE", &p.LearningRate)
	envDuration("EMBED_TIMEOUT", &p.EmbedTimeout)
	envDuration("JUDGE_TIMEOUT", &p.JudgeTimeout)
	envDuration("DRAFT_TIMEOUT", &p.DraftTimeout)
	envDuration("RESEARCH_TIMEOUT", &p.ResearchTimeout)
	envInt("RESEARCH_MAX_SOURCES", &p.ResearchMaxSources)
	envBool("ENABLE_DEEP_RESEARCH", &p.EnableDeepResearch)
	envDuration("INITIAL_WINDOW", &p.InitialWindow)
	envDuration("LEARNING_LOOKBACK", &p.LearningLookback)
	envInt("TOP_K", &p.TopK)
	if v := os.Getenv("REPUTABLE_SOURCES"); v != "" {
		var list []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, strings.ToLower(s))
			}
		}
		p.ReputableSources = list
	}

	if v := os.Getenv("FEEDS_CONFIG_PATH"); v != "" {
		cfg.Sources.FeedsPath = v
	}
	envDuration("FETCH_TIMEOUT", &cfg.Sources.FetchTimeout)
	envInt("FETCH_MAX_ITEMS", &cfg.Sources.MaxItems)
	envInt("FULL_TEXT_MIN_CHARS", &cfg.Sources.FullTextMinChars)
	envDuration("COLLECTOR_SNAPSHOT_TTL", &cfg.Sources.SnapshotTTL)
}
