package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const (
	CartStoreMySQL  = "mysql"
	CartStoreRedis  = "redis"
	CartStoreMemory = "memory"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	MySQLDSN  string
	RedisAddr string
	// CartStore selects the cart backend: mysql, redis or memory
	CartStore string

	DefaultUserID     string
	RequestTimeout    time.Duration
	MaxMutateAttempts int
	SeedCatalog       bool

	CORSAllowOrigins []string
	LogLevel         string
}

// Load reads the environment, after applying a .env file when one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:          getEnv("GRPC_ADDR", ":50051"),
		MySQLDSN:          withParseTime(getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true")),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		CartStore:         parseCartStore(getEnv("CART_STORE", CartStoreMySQL)),
		DefaultUserID:     getEnv("DEFAULT_USER_ID", "demo-user"),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 3*time.Second),
		MaxMutateAttempts: getEnvInt("MAX_MUTATE_ATTEMPTS", 200),
		SeedCatalog:       getEnvBool("SEED_CATALOG", true),
		CORSAllowOrigins:  splitCSV(getEnv("CORS_ALLOW_ORIGINS", "*")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// withParseTime turns on parseTime, which cart timestamps are scanned with.
// A DSN the driver cannot parse is returned unchanged so that the open
// reports the error.
func withParseTime(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil || cfg.ParseTime {
		return dsn
	}
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func parseCartStore(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case CartStoreRedis:
		return CartStoreRedis
	case CartStoreMemory:
		return CartStoreMemory
	default:
		return CartStoreMySQL
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
