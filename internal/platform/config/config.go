package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	platformstrings "applygate/pkg/platform/strings"
)

// Config captures everything cmd/server needs to wire the process. Values come
// from the environment, with a .env file honored for local development.
type Config struct {
	Addr        string
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	JWTSigningKey string
	JWTIssuer     string

	// AdminTokenHash is the bcrypt hash of the X-Admin-Token value accepted
	// on /admin routes. Empty disables the admin surface.
	AdminTokenHash string

	// GracePeriod is the interval between a deactivation request and its
	// scheduled execution, during which the request may be cancelled.
	GracePeriod time.Duration

	// DisclosureCost is the credit price charged for unlocking one applicant
	// field for one viewer.
	DisclosureCost int64

	// SchedulerWorkers bounds parallelism of the deactivation batch job.
	SchedulerWorkers int

	// SchedulerInterval is how often the deactivation batch runs. Zero
	// disables the background loop; /admin/scheduler/run still works.
	SchedulerInterval time.Duration

	// SessionTTL bounds how long a session stays active in the registry.
	SessionTTL time.Duration

	// MigrationsDir points at the SQL migration files applied on boot.
	MigrationsDir string
}

// RedisConfig configures the session registry connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the best-effort event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

const (
	defaultGracePeriodDays  = 5
	defaultDisclosureCost   = 5
	defaultSchedulerWorkers = 4
)

// FromEnv builds a Config from environment variables so main stays lean.
// A missing .env file is not an error.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:              envOr("APPLYGATE_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSigningKey:     envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:         envOr("JWT_ISSUER", "applygate"),
		AdminTokenHash:    os.Getenv("ADMIN_TOKEN_HASH"),
		GracePeriod:       time.Duration(envInt("GRACE_PERIOD_DAYS", defaultGracePeriodDays)) * 24 * time.Hour,
		DisclosureCost:    int64(envInt("DISCLOSURE_COST", defaultDisclosureCost)),
		SchedulerWorkers:  envInt("SCHEDULER_WORKERS", defaultSchedulerWorkers),
		SchedulerInterval: time.Duration(envInt("SCHEDULER_INTERVAL_MINUTES", 60)) * time.Minute,
		SessionTTL:        time.Duration(envInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		MigrationsDir:     envOr("MIGRATIONS_DIR", "migrations"),
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     envInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	cfg.Kafka = KafkaConfig{
		Topic: envOr("KAFKA_TOPIC", "applygate.events"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
