package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Broker        BrokerConfig        `mapstructure:"broker"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Triage        TriageConfig        `mapstructure:"triage"`
	NLP           NLPConfig           `mapstructure:"nlp"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Logger        LoggerConfig        `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds workflow store configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3 or postgres
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// CacheConfig holds workflow cache configuration
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // memory or redis
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// BrokerConfig holds event broker configuration. An empty URL runs the
// notifier in local-only mode.
type BrokerConfig struct {
	URL               string        `mapstructure:"url"`
	Exchange          string        `mapstructure:"exchange"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// CollaboratorsConfig holds endpoints for the external systems the engine
// coordinates across
type CollaboratorsConfig struct {
	VoiceGatewayURL       string        `mapstructure:"voice_gateway_url"`
	PatientRecordsURL     string        `mapstructure:"patient_records_url"`
	IdentifierRegistryURL string        `mapstructure:"identifier_registry_url"`
	ClaimsProcessorURL    string        `mapstructure:"claims_processor_url"`
	ClaimsEmbedded        bool          `mapstructure:"claims_embedded"`
	ProviderIdentifier    string        `mapstructure:"provider_identifier"`
	FacilityIdentifier    string        `mapstructure:"facility_identifier"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

// TriageConfig holds the symptom vocabulary used for deterministic triage
type TriageConfig struct {
	EmergencyKeywords []string `mapstructure:"emergency_keywords"`
	UrgentKeywords    []string `mapstructure:"urgent_keywords"`
	RoutineKeywords   []string `mapstructure:"routine_keywords"`
}

// NLPConfig holds the optional AI intent-analysis configuration
type NLPConfig struct {
	OpenAIAPIKey string  `mapstructure:"openai_api_key"`
	Model        string  `mapstructure:"model"`
	Temperature  float32 `mapstructure:"temperature"`
}

// WorkflowConfig holds engine policy configuration
type WorkflowConfig struct {
	ReaperEnabled  bool          `mapstructure:"reaper_enabled"`
	PendingTimeout time.Duration `mapstructure:"pending_timeout"`
	ReaperInterval time.Duration `mapstructure:"reaper_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.driver", "sqlite3")
	viper.SetDefault("database.dsn", "data/orchestrator.db")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Cache defaults
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", time.Hour)
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.redis_db", 0)

	// Broker defaults; URL stays empty so a minimal deployment runs local-only
	viper.SetDefault("broker.exchange", "masterlinc.events")
	viper.SetDefault("broker.reconnect_interval", 5*time.Second)

	// Collaborator defaults
	viper.SetDefault("collaborators.timeout", 15*time.Second)
	viper.SetDefault("collaborators.claims_embedded", true)
	viper.SetDefault("collaborators.provider_identifier", "provider-001")
	viper.SetDefault("collaborators.facility_identifier", "facility-001")

	// Triage vocabulary defaults
	viper.SetDefault("triage.emergency_keywords", []string{
		"unconscious", "not breathing", "severe bleeding", "stroke", "seizure",
	})
	viper.SetDefault("triage.urgent_keywords", []string{
		"chest pain", "chest", "heart", "head", "brain", "fracture", "bone", "joint", "high fever",
	})
	viper.SetDefault("triage.routine_keywords", []string{
		"cough", "cold", "rash", "checkup", "refill", "fatigue",
	})

	// NLP defaults
	viper.SetDefault("nlp.model", "gpt-4o-mini")
	viper.SetDefault("nlp.temperature", 0.2)

	// Workflow policy defaults
	viper.SetDefault("workflow.reaper_enabled", false)
	viper.SetDefault("workflow.pending_timeout", 72*time.Hour)
	viper.SetDefault("workflow.reaper_interval", 15*time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("database.dsn", "DATABASE_DSN")
	viper.BindEnv("cache.redis_addr", "REDIS_ADDR")
	viper.BindEnv("cache.redis_password", "REDIS_PASSWORD")
	viper.BindEnv("broker.url", "RABBITMQ_URL")
	viper.BindEnv("nlp.openai_api_key", "OPENAI_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite3" && c.Database.Driver != "postgres" {
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if !c.Collaborators.ClaimsEmbedded && c.Collaborators.ClaimsProcessorURL == "" {
		return fmt.Errorf("collaborators.claims_processor_url is required when claims_embedded is false")
	}

	if c.Workflow.ReaperEnabled {
		if c.Workflow.PendingTimeout <= 0 {
			return fmt.Errorf("workflow.pending_timeout must be positive when the reaper is enabled")
		}
		if c.Workflow.ReaperInterval <= 0 {
			return fmt.Errorf("workflow.reaper_interval must be positive when the reaper is enabled")
		}
	}

	return nil
}
