package config

import (
	"fmt"
	"time"

	"boingbox-backend/pkg/env"
)

const defaultUploadSecret = "boingbox-dev-upload-secret-change-me"

// defaultPorts are the ports the gateway expects each service on
var defaultPorts = map[string]int{
	"api-gateway":     8080,
	"chat-service":    8082,
	"video-service":   8083,
	"storage-service": 8084,
}

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cassandra CassandraConfig
	MinIO     MinIOConfig
	Media     MediaConfig
	Call      CallConfig
	Gateway   GatewayConfig
	Log       LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Environment    string // development, staging, production
	ServiceName    string
	MaxConnections int
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// CassandraConfig holds Cassandra configuration
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MediaConfig tunes the intake pipeline.
type MediaConfig struct {
	UploadSecret    string
	Workers         int
	QueueSize       int
	ProcessInterval time.Duration
	EnqueueTimeout  time.Duration
}

// CallConfig tunes the call service.
type CallConfig struct {
	RingTimeout   time.Duration
	SweepInterval time.Duration
}

// GatewayConfig holds the upstream addresses and rate limit of the api-gateway.
type GatewayConfig struct {
	ChatServiceURL    string
	VideoServiceURL   string
	StorageServiceURL string
	RateLimit         int
	RateWindow        time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           env.GetInt("PORT", defaultPort(serviceName)),
			Environment:    env.GetString("ENV", "development"),
			ServiceName:    env.GetString("SERVICE_NAME", serviceName),
			MaxConnections: env.GetInt("WS_MAX_CONNECTIONS", 5000),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "boingbox"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 25),
			MinConns: env.GetInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		Cassandra: CassandraConfig{
			Hosts:    env.GetStringSlice("CASSANDRA_HOSTS", []string{"localhost"}),
			Keyspace: env.GetString("CASSANDRA_KEYSPACE", "boingbox"),
			Username: env.GetString("CASSANDRA_USER", ""),
			Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
			Timeout:  env.GetDuration("CASSANDRA_TIMEOUT", 10*time.Second),
		},
		MinIO: MinIOConfig{
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
			Bucket:    env.GetString("MINIO_BUCKET", "boingbox-media"),
		},
		Media: MediaConfig{
			UploadSecret:    env.GetStringFromFile("MEDIA_UPLOAD_SECRET", defaultUploadSecret),
			Workers:         env.GetInt("MEDIA_WORKERS", 2),
			QueueSize:       env.GetInt("MEDIA_QUEUE_SIZE", 256),
			ProcessInterval: env.GetDuration("MEDIA_PROCESS_INTERVAL", time.Second),
			EnqueueTimeout:  env.GetDuration("MEDIA_ENQUEUE_TIMEOUT", 5*time.Second),
		},
		Call: CallConfig{
			RingTimeout:   env.GetDuration("CALL_RING_TIMEOUT", 60*time.Second),
			SweepInterval: env.GetDuration("CALL_SWEEP_INTERVAL", 15*time.Second),
		},
		Gateway: GatewayConfig{
			ChatServiceURL:    env.GetString("CHAT_SERVICE_URL", "http://chat-service:8082"),
			VideoServiceURL:   env.GetString("VIDEO_SERVICE_URL", "http://video-service:8083"),
			StorageServiceURL: env.GetString("STORAGE_SERVICE_URL", "http://storage-service:8084"),
			RateLimit:         env.GetInt("RATE_LIMIT_REQUESTS", 100),
			RateWindow:        env.GetDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultPort(serviceName string) int {
	if port, ok := defaultPorts[serviceName]; ok {
		return port
	}
	return 8080
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.Media.UploadSecret == defaultUploadSecret {
			return fmt.Errorf("MEDIA_UPLOAD_SECRET must be set in production")
		}
		if len(c.Media.UploadSecret) < 32 {
			return fmt.Errorf("MEDIA_UPLOAD_SECRET must be at least 32 characters in production")
		}
	}
	if c.Media.Workers < 1 {
		return fmt.Errorf("MEDIA_WORKERS must be at least 1")
	}
	if c.Media.QueueSize < 1 {
		return fmt.Errorf("MEDIA_QUEUE_SIZE must be at least 1")
	}
	return nil
}
