package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Events   EventsConfig
	Channels ChannelsConfig
	AWS      AWSConfig
	Intake   IntakeConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	AllowedOrigins        []string
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	Disabled              bool
	AgentGroup            string
	AccessTokenTTLMinutes int
}

// EventsConfig controls event publication.
type EventsConfig struct {
	TicketsStream         string
	MessagesStream        string
	StreamMaxLen          int64
	Workers               int
	QueueSize             int
	PublishTimeoutSeconds int
}

// ChannelsConfig holds per-channel webhook and outbound settings.
type ChannelsConfig struct {
	FacebookVerifyToken    string
	FacebookAppSecret      string
	WhatsAppVerifyToken    string
	WhatsAppAppSecret      string
	WhatsAppPhoneNumberID  string
	TwitterConsumerSecret  string
	GraphAPIBaseURL        string
	GraphAPIVersion        string
	TwitterAPIBaseURL      string
	FacebookTokenSecret    string
	WhatsAppTokenSecret    string
	TwitterTokenSecret     string
	EmailAPIKeySecret      string
	FromEmail              string
	EmailSubject           string
	OutboundTimeoutSeconds int
}

// AWSConfig configures the Secrets Manager client.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SecretsEndpoint string
}

// IntakeConfig controls webhook intake behavior.
type IntakeConfig struct {
	IdempotencyTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "omnichannel-support-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			AllowedOrigins:        getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			Disabled:              getEnvAsBool("AUTH_DISABLED", false),
			AgentGroup:            getEnv("AUTH_AGENT_GROUP", "Agents"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Events: EventsConfig{
			TicketsStream:         getEnv("EVENTS_TICKETS_STREAM", "support-tickets"),
			MessagesStream:        getEnv("EVENTS_MESSAGES_STREAM", "support-messages"),
			StreamMaxLen:          int64(getEnvAsInt("EVENTS_STREAM_MAXLEN", 100000)),
			Workers:               getEnvAsInt("EVENTS_WORKERS", 4),
			QueueSize:             getEnvAsInt("EVENTS_QUEUE_SIZE", 1024),
			PublishTimeoutSeconds: getEnvAsInt("EVENTS_PUBLISH_TIMEOUT_SECONDS", 5),
		},
		Channels: ChannelsConfig{
			FacebookVerifyToken:    os.Getenv("FACEBOOK_VERIFY_TOKEN"),
			FacebookAppSecret:      os.Getenv("FACEBOOK_APP_SECRET"),
			WhatsAppVerifyToken:    os.Getenv("WHATSAPP_VERIFY_TOKEN"),
			WhatsAppAppSecret:      os.Getenv("WHATSAPP_APP_SECRET"),
			WhatsAppPhoneNumberID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			TwitterConsumerSecret:  os.Getenv("TWITTER_CONSUMER_SECRET"),
			GraphAPIBaseURL:        getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com"),
			GraphAPIVersion:        getEnv("GRAPH_API_VERSION", "v18.0"),
			TwitterAPIBaseURL:      getEnv("TWITTER_API_BASE_URL", "https://api.twitter.com"),
			FacebookTokenSecret:    getEnv("FACEBOOK_PAGE_ACCESS_TOKEN_SECRET", "FACEBOOK_PAGE_ACCESS_TOKEN"),
			WhatsAppTokenSecret:    getEnv("WHATSAPP_API_TOKEN_SECRET", "WHATSAPP_API_TOKEN"),
			TwitterTokenSecret:     getEnv("TWITTER_API_KEY_SECRET", "TWITTER_BEARER_TOKEN"),
			EmailAPIKeySecret:      getEnv("EMAIL_API_KEY_SECRET", "RESEND_API_KEY"),
			FromEmail:              getEnv("FROM_EMAIL", "support@example.com"),
			EmailSubject:           getEnv("EMAIL_REPLY_SUBJECT", "Response from Support Team"),
			OutboundTimeoutSeconds: getEnvAsInt("OUTBOUND_TIMEOUT_SECONDS", 10),
		},
		AWS: AWSConfig{
			Region:          os.Getenv("AWS_REGION"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SecretsEndpoint: os.Getenv("AWS_SECRETS_ENDPOINT"),
		},
		Intake: IntakeConfig{
			IdempotencyTTLMinutes: getEnvAsInt("INTAKE_IDEMPOTENCY_TTL_MINUTES", 24*60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// PublishTimeout bounds a single event publication.
func (e EventsConfig) PublishTimeout() time.Duration {
	return seconds(e.PublishTimeoutSeconds)
}

// OutboundTimeout bounds a single outbound channel call.
func (c ChannelsConfig) OutboundTimeout() time.Duration {
	return seconds(c.OutboundTimeoutSeconds)
}

// IdempotencyTTL is how long a provider message id is remembered.
func (i IntakeConfig) IdempotencyTTL() time.Duration {
	if i.IdempotencyTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(i.IdempotencyTTLMinutes) * time.Minute
}

// UsesSecretsManager reports whether channel credentials come from AWS Secrets Manager.
func (a AWSConfig) UsesSecretsManager() bool {
	return a.Region != ""
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var result []string
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
