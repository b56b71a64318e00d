package domain

// Config holds the complete Lavandowski configuration.
type Config struct {
	// Server settings for the dashboard API
	Server ServerConfig `json:"server" yaml:"server" toml:"server"`

	// Tier selects infrastructure defaults
	Tier Tier `json:"tier" yaml:"tier" toml:"tier"`

	// Data sources and collaborators
	Warehouse  WarehouseConfig  `json:"warehouse" yaml:"warehouse" toml:"warehouse"`
	Identity   IdentityConfig   `json:"identity" yaml:"identity" toml:"identity"`
	LLM        LLMConfig        `json:"llm" yaml:"llm" toml:"llm"`
	Submission SubmissionConfig `json:"submission" yaml:"submission" toml:"submission"`
	Alerts     AlertsConfig     `json:"alerts" yaml:"alerts" toml:"alerts"`
	Export     ExportConfig     `json:"export" yaml:"export" toml:"export"`

	// Component configurations
	Cache    CacheConfig    `json:"cache" yaml:"cache" toml:"cache"`
	EventBus EventBusConfig `json:"event_bus" yaml:"event_bus" toml:"event_bus"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing" toml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string   `json:"host" yaml:"host" toml:"host"`
	Port         int      `json:"port" yaml:"port" toml:"port"`
	ReadTimeout  int      `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`    // seconds
	WriteTimeout int      `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"` // seconds
	AllowOrigins []string `json:"allow_origins" yaml:"allow_origins" toml:"allow_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`    // debug, info, warn, error
	Format string `json:"format" yaml:"format" toml:"format"` // json, text

	// File enables rotated file output next to stderr.
	File       string `json:"file" yaml:"file" toml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress" toml:"compress"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	ServiceName string `json:"service_name" yaml:"service_name" toml:"service_name"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierLocal runs against a SQLite warehouse replica with channels and an in-process cache.
	TierLocal Tier = "local"

	// TierPro runs against BigQuery with NATS and Redis.
	TierPro Tier = "pro"
)

// WarehouseConfig holds configuration for the warehouse query layer.
type WarehouseConfig struct {
	// Driver is one of "bigquery", "postgres" or "sqlite".
	Driver string `json:"driver" yaml:"driver" toml:"driver"`

	// BigQuery
	Project         string `json:"project" yaml:"project" toml:"project"`
	Location        string `json:"location" yaml:"location" toml:"location"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file" toml:"credentials_file"`
	CredentialsJSON string `json:"credentials_json" yaml:"credentials_json" toml:"credentials_json"`

	// SQLite
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path" toml:"sqlite_path"`

	// PostgreSQL
	PostgresHost     string `json:"postgres_host" yaml:"postgres_host" toml:"postgres_host"`
	PostgresPort     int    `json:"postgres_port" yaml:"postgres_port" toml:"postgres_port"`
	PostgresUser     string `json:"postgres_user" yaml:"postgres_user" toml:"postgres_user"`
	PostgresPassword string `json:"postgres_password" yaml:"postgres_password" toml:"postgres_password"`
	PostgresDB       string `json:"postgres_db" yaml:"postgres_db" toml:"postgres_db"`
	PostgresSSLMode  string `json:"postgres_ssl_mode" yaml:"postgres_ssl_mode" toml:"postgres_ssl_mode"`

	// Connection pool settings (SQL drivers only)
	MaxOpenConns       int `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns       int `json:"max_idle_conns" yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetimeSec int `json:"conn_max_lifetime" yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`

	// InitSchema creates the local table set on open (SQL drivers only).
	InitSchema bool `json:"init_schema" yaml:"init_schema" toml:"init_schema"`

	// Tables overrides physical table names by logical name.
	Tables map[string]string `json:"tables" yaml:"tables" toml:"tables"`
}

// IdentityConfig holds BigDataCorp credentials and limits.
type IdentityConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url" toml:"base_url"`
	AccessToken    string `json:"access_token" yaml:"access_token" toml:"access_token"`
	TokenID        string `json:"token_id" yaml:"token_id" toml:"token_id"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	CacheTTLHours  int    `json:"cache_ttl_hours" yaml:"cache_ttl_hours" toml:"cache_ttl_hours"`
	DailyQuota     int64  `json:"daily_quota" yaml:"daily_quota" toml:"daily_quota"` // 0 disables
}

// Enabled reports whether lookups can be made.
func (c IdentityConfig) Enabled() bool {
	return c.AccessToken != "" && c.TokenID != ""
}

// AnalysisMode selects the narrative analysis strategy.
type AnalysisMode string

const (
	// ModeBasic makes a single analysis completion.
	ModeBasic AnalysisMode = "basic"

	// ModeEnhanced adds a score follow-up and a two-line final decision.
	ModeEnhanced AnalysisMode = "enhanced"

	// ModeReasoning runs the analysis on the reasoning model only.
	ModeReasoning AnalysisMode = "reasoning"
)

// LLMConfig holds chat-completion settings.
type LLMConfig struct {
	APIKey          string       `json:"api_key" yaml:"api_key" toml:"api_key"`
	BaseURL         string       `json:"base_url" yaml:"base_url" toml:"base_url"`
	Mode            AnalysisMode `json:"mode" yaml:"mode" toml:"mode"`
	AnalysisModel   string       `json:"analysis_model" yaml:"analysis_model" toml:"analysis_model"`
	ReasoningModel  string       `json:"reasoning_model" yaml:"reasoning_model" toml:"reasoning_model"`
	ReasoningEffort string       `json:"reasoning_effort" yaml:"reasoning_effort" toml:"reasoning_effort"`
	TimeoutSeconds  int          `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// SubmissionConfig holds the case-management endpoint.
type SubmissionConfig struct {
	URL            string `json:"url" yaml:"url" toml:"url"`
	APIKey         string `json:"api_key" yaml:"api_key" toml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	DryRun         bool   `json:"dry_run" yaml:"dry_run" toml:"dry_run"`
}

// AlertsConfig controls flagged-user selection.
type AlertsConfig struct {
	// UserID bypasses alert selection and analyzes a single user.
	UserID int64 `json:"user_id" yaml:"user_id" toml:"user_id"`

	LookbackDays  int `json:"lookback_days" yaml:"lookback_days" toml:"lookback_days"`
	ExclusionDays int `json:"exclusion_days" yaml:"exclusion_days" toml:"exclusion_days"`

	LifetimeVolumeThreshold float64 `json:"lifetime_volume_threshold" yaml:"lifetime_volume_threshold" toml:"lifetime_volume_threshold"`
	RecentVolumeThreshold   float64 `json:"recent_volume_threshold" yaml:"recent_volume_threshold" toml:"recent_volume_threshold"`
	RecentVolumeDays        int     `json:"recent_volume_days" yaml:"recent_volume_days" toml:"recent_volume_days"`

	// Filter is an optional CEL expression evaluated per flagged user.
	Filter string `json:"filter" yaml:"filter" toml:"filter"`
}

// ExportConfig controls run report output.
type ExportConfig struct {
	Dir       string   `json:"dir" yaml:"dir" toml:"dir"`
	Formats   []string `json:"formats" yaml:"formats" toml:"formats"`
	GCSBucket string   `json:"gcs_bucket" yaml:"gcs_bucket" toml:"gcs_bucket"`
	GCSPrefix string   `json:"gcs_prefix" yaml:"gcs_prefix" toml:"gcs_prefix"`
}

// DefaultConfig returns a configuration for local runs.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 60,
			AllowOrigins: []string{"*"},
		},
		Tier: TierLocal,
		Warehouse: WarehouseConfig{
			Driver:     "sqlite",
			SQLitePath: "./lavandowski.db",
		},
		Identity: IdentityConfig{
			BaseURL:        "https://plataforma.bigdatacorp.com.br",
			TimeoutSeconds: 30,
			CacheTTLHours:  24,
		},
		LLM: LLMConfig{
			Mode:            ModeBasic,
			AnalysisModel:   "gpt-4o",
			ReasoningModel:  "o3-mini",
			ReasoningEffort: "high",
			TimeoutSeconds:  180,
		},
		Submission: SubmissionConfig{
			URL:            "https://risk-analysis-api.infinitepay.io/monitoring/offense_analysis",
			TimeoutSeconds: 30,
		},
		Alerts: AlertsConfig{
			LookbackDays:            1,
			ExclusionDays:           30,
			LifetimeVolumeThreshold: 1_000_000,
			RecentVolumeThreshold:   300_000,
			RecentVolumeDays:        90,
		},
		Export: ExportConfig{
			Dir:     "./exports",
			Formats: []string{"csv", "json"},
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "lavandowski",
		},
	}
}

// ProConfig returns the BigQuery/NATS/Redis configuration.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Warehouse = WarehouseConfig{
		Driver:   "bigquery",
		Location: "US",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       300,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "lavandowski-workers",
	}
	cfg.Tracing.Enabled = true
	return cfg
}
