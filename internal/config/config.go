package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int                 `json:"port"`
	JWTSecret     string              `json:"jwt_secret"`
	JWTTTLHours   int                 `json:"jwt_ttl_hours"`
	Admin         AdminConfig         `json:"admin"`
	LogConfig     logger.LogConfig    `json:"log_config"`
	Database      DatabaseConfig      `json:"database"`
	CasebaseStore CasebaseStoreConfig `json:"casebase_store"`
	Vectorizer    VectorizerConfig    `json:"vectorizer"`
	Ontology      OntologyConfig      `json:"ontology"`
	Schedule      ScheduleConfig      `json:"schedule"`
	Trace         TraceConfig         `json:"trace"`
	CORSAllowlist []string            `json:"cors_allowlist"`
	RateLimitMS   int                 `json:"rate_limit_ms"`
}

type AdminConfig struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type CasebaseStoreConfig struct {
	Type       string           `json:"type"`
	OpenSearch OpenSearchConfig `json:"opensearch"`
}

type OpenSearchConfig struct {
	Endpoint   string `json:"endpoint"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	TimeoutSec int    `json:"timeout_sec"`
}

type ModelConfig struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type VectorizerConfig struct {
	AccessKey          string                 `json:"access_key"`
	TimeoutSec         int                    `json:"timeout_sec"`
	Models             map[string]ModelConfig `json:"models"`
	SimilarityEndpoint string                 `json:"similarity_endpoint"`
	LRUSize            int                    `json:"lru_size"`
	LRUTTLSeconds      int                    `json:"lru_ttl_seconds"`
	DBCache            bool                   `json:"db_cache"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	PathStyle bool   `json:"path_style"`
}

type OntologyConfig struct {
	Mode           string      `json:"mode"`
	RemoteEndpoint string      `json:"remote_endpoint"`
	RemoteToken    string      `json:"remote_token"`
	Redis          RedisConfig `json:"redis"`
	LockTTLSeconds int         `json:"lock_ttl_seconds"`
	S3             S3Config    `json:"s3"`
	FetchTimeout   int         `json:"fetch_timeout_sec"`
}

type ScheduleConfig struct {
	EmbeddingCacheCleanup string `json:"embedding_cache_cleanup"`
	AttributeRefresh      string `json:"attribute_refresh"`
	CacheMaxAgeDays       int    `json:"cache_max_age_days"`
}

type TraceConfig struct {
	Enabled     bool   `json:"enabled"`
	Exporter    string `json:"exporter"`
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	switch cfg.Database.Driver {
	case "postgres", "pgx":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case "sqlite":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres, pgx or sqlite")
	}
	if cfg.CasebaseStore.Type == "" {
		cfg.CasebaseStore.Type = "sql"
	}
	switch cfg.CasebaseStore.Type {
	case "sql", "memory":
	case "opensearch":
		if cfg.CasebaseStore.OpenSearch.Endpoint == "" {
			return fmt.Errorf("casebase_store.opensearch.endpoint is required for opensearch store")
		}
		if cfg.CasebaseStore.OpenSearch.TimeoutSec == 0 {
			cfg.CasebaseStore.OpenSearch.TimeoutSec = 30
		}
	default:
		return fmt.Errorf("casebase_store.type must be sql, memory or opensearch")
	}
	if cfg.Vectorizer.TimeoutSec == 0 {
		cfg.Vectorizer.TimeoutSec = 30
	}
	if cfg.Ontology.Mode == "" {
		cfg.Ontology.Mode = "local"
	}
	switch cfg.Ontology.Mode {
	case "local":
	case "remote":
		if cfg.Ontology.RemoteEndpoint == "" {
			return fmt.Errorf("ontology.remote_endpoint is required for remote mode")
		}
	default:
		return fmt.Errorf("ontology.mode must be local or remote")
	}
	if cfg.Ontology.LockTTLSeconds == 0 {
		cfg.Ontology.LockTTLSeconds = 600
	}
	if cfg.Ontology.FetchTimeout == 0 {
		cfg.Ontology.FetchTimeout = 60
	}
	if cfg.Schedule.CacheMaxAgeDays == 0 {
		cfg.Schedule.CacheMaxAgeDays = 30
	}
	if cfg.Trace.ServiceName == "" {
		cfg.Trace.ServiceName = "clood"
	}
	return nil
}
