package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the regional compliance service
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Elasticsearch ElasticsearchConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	S3            S3Config
	Signing       SigningConfig
	Auth          AuthConfig
	Logging       LoggingConfig
	Compliance    ComplianceConfig
	Cache         CacheConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// ElasticsearchConfig holds the decision search index configuration
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// RedisConfig holds the shared risk score store configuration
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	RiskScoreTTL time.Duration `mapstructure:"risk_score_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
	AlertTopic       string   `mapstructure:"alert_topic"`
	// FilingTopicPrefix is followed by the lowercased regulator name
	FilingTopicPrefix string `mapstructure:"filing_topic_prefix"`
	MaxRetries        int    `mapstructure:"max_retries"`
	EnableIdempotent  bool   `mapstructure:"enable_idempotent"`
}

// S3Config holds the filed report archive configuration
type S3Config struct {
	Region        string `mapstructure:"region"`
	FilingsBucket string `mapstructure:"filings_bucket"`
	Endpoint      string `mapstructure:"endpoint"` // For local testing with MinIO
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
}

// SigningConfig holds decision signing and archive sealing keys
type SigningConfig struct {
	SealingKeysBase64   []string `mapstructure:"keys"`
	CurrentKeyVersion   int      `mapstructure:"current_key_version"`
	DecisionHMACSecret  string   `mapstructure:"decision_hmac_secret"`
	SealArchivedFilings bool     `mapstructure:"seal_archived_filings"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTPublicKeyPath string `mapstructure:"jwt_public_key_path"`
	JWTIssuer        string `mapstructure:"jwt_issuer"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	EnablePIIMask bool   `mapstructure:"enable_pii_mask"`
}

// ComplianceConfig selects and configures jurisdiction providers
type ComplianceConfig struct {
	// DefaultProvider serves requests nothing else resolves; empty picks
	// the provider with the widest capabilities
	DefaultProvider string `mapstructure:"default_provider"`
	Environment     string `mapstructure:"environment"`
	InstitutionName string `mapstructure:"institution_name"`
	// ProfileDir holds extra jurisdiction profiles loaded next to the builtin ones
	ProfileDir string `mapstructure:"profile_dir"`
	// Providers holds per-provider initialization maps keyed by provider name
	Providers     map[string]map[string]string `mapstructure:"providers"`
	RegionMap     map[string]string            `mapstructure:"region_map"`
	LookupTimeout time.Duration                `mapstructure:"lookup_timeout"`
	FilingTimeout time.Duration                `mapstructure:"filing_timeout"`
}

// ProviderConfig returns the initialization map of a provider. Service wide
// environment and institution apply unless the provider overrides them.
func (c ComplianceConfig) ProviderConfig(name string) map[string]string {
	out := map[string]string{
		"environment":      c.Environment,
		"institution_name": c.InstitutionName,
	}
	for k, v := range c.Providers[strings.ToLower(name)] {
		out[k] = v
	}
	return out
}

// CacheConfig bounds the in-process history and risk score caches
type CacheConfig struct {
	Shards         int           `mapstructure:"shards"`
	UsersPerShard  int           `mapstructure:"users_per_shard"`
	MaxPerUser     int           `mapstructure:"max_per_user"`
	LoadWindow     time.Duration `mapstructure:"load_window"`
	ScoreShards    int           `mapstructure:"score_shards"`
	ScoresPerShard int           `mapstructure:"scores_per_shard"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// COMPLIANCE_SERVER_PORT overrides server.port
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "compliance_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.auto_migrate", false)

	// Elasticsearch
	v.SetDefault("elasticsearch.enabled", true)
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "elastic")
	v.SetDefault("elasticsearch.password", "changeme")
	v.SetDefault("elasticsearch.index", "compliance-decisions")

	// Redis
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 3)
	v.SetDefault("redis.risk_score_ttl", "720h")
	v.SetDefault("redis.key_prefix", "compliance:risk:")

	// Kafka
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "regional-compliance-service")
	v.SetDefault("kafka.transaction_topic", "banking.transactions")
	v.SetDefault("kafka.alert_topic", "banking.compliance.alerts")
	v.SetDefault("kafka.filing_topic_prefix", "banking.compliance.filings.")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.enable_idempotent", true)

	// S3
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.filings_bucket", "banking-compliance-filings")

	// Signing
	v.SetDefault("signing.current_key_version", 1)
	v.SetDefault("signing.seal_archived_filings", true)

	// Auth
	v.SetDefault("auth.jwt_public_key_path", "./keys/jwt_public.pem")
	v.SetDefault("auth.jwt_issuer", "banking-auth-service")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_pii_mask", true)

	// Compliance
	v.SetDefault("compliance.default_provider", "usa-compliance")
	v.SetDefault("compliance.environment", "production")
	v.SetDefault("compliance.institution_name", "Banking Institution")
	v.SetDefault("compliance.profile_dir", "")
	v.SetDefault("compliance.lookup_timeout", "5s")
	v.SetDefault("compliance.filing_timeout", "30s")

	// Cache
	v.SetDefault("cache.shards", 32)
	v.SetDefault("cache.users_per_shard", 2048)
	v.SetDefault("cache.max_per_user", 500)
	v.SetDefault("cache.load_window", "720h")
	v.SetDefault("cache.score_shards", 16)
	v.SetDefault("cache.scores_per_shard", 4096)
}
