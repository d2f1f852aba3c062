package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	ServerPort string

	JWTSecret string
	JWTExpiry time.Duration

	// RedisURL selects the Redis change feed. Empty means the in-process hub.
	RedisURL          string
	FeedChannelPrefix string

	StoreRollbackOnFailure bool
	StoreSingleFlight      bool
	OperationTimeout       time.Duration
	FetchConcurrency       int

	LogLevel          string
	MigrationsEnabled bool
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("⚠️  No .env file found, using system environment variables")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5431"),
		DBUser:     getEnv("DB_USER", "kanban_user"),
		DBPassword: getEnv("DB_PASSWORD", "kanban_pass"),
		DBName:     getEnv("DB_NAME", "kanban_db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		JWTSecret: getEnv("JWT_SECRET", "supersecretkey"),
		JWTExpiry: time.Duration(getInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,

		RedisURL:          getEnv("REDIS_URL", ""),
		FeedChannelPrefix: getEnv("FEED_CHANNEL_PREFIX", "kanban"),

		StoreRollbackOnFailure: getBool("STORE_ROLLBACK_ON_FAILURE", false),
		StoreSingleFlight:      getBool("STORE_SINGLE_FLIGHT", false),
		OperationTimeout:       getDuration("OPERATION_TIMEOUT", 10*time.Second),
		FetchConcurrency:       getInt("FETCH_CONCURRENCY", 4),

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		MigrationsEnabled: getBool("MIGRATIONS_ENABLED", true),
	}
}

// DSN is the libpq connection string for the configured database.
func (c *Config) DSN() string {
	return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser +
		" password=" + c.DBPassword + " dbname=" + c.DBName + " sslmode=disable"
}

// MigrationURL is the pgx5:// URL golang-migrate expects.
func (c *Config) MigrationURL() string {
	return "pgx5://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=disable"
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Warnf("⚠️  invalid %s=%q, using %d", key, value, defaultVal)
		return defaultVal
	}
	return n
}

func getBool(key string, defaultVal bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warnf("⚠️  invalid %s=%q, using %t", key, value, defaultVal)
		return defaultVal
	}
	return b
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warnf("⚠️  invalid %s=%q, using %s", key, value, defaultVal)
		return defaultVal
	}
	return d
}
