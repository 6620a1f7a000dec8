package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-only-carshare-secret"

type Config struct {
	Env            string
	Port           int
	DBURL          string
	DBMaxConns     int
	StorageDriver  string
	MigrateOnStart bool
	SeedDemo       bool

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	AuthRateLimit      int
	AuthRateWindow     time.Duration
	WriteRateLimit     int
	WriteRateWindow    time.Duration

	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string
}

func Load() Config {
	// a missing .env is fine, real deployments use the process environment
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" && env != "prod" {
		jwtSecret = devJWTSecret
	}

	return Config{
		Env:            env,
		Port:           getEnvInt("PORT", 8080),
		DBURL:          getEnv("DATABASE_URL", buildDBURL()),
		DBMaxConns:     getEnvInt("DB_MAX_CONNS", 10),
		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),
		SeedDemo:       getEnvBool("SEED_DEMO", false),

		JWTSecret: jwtSecret,
		JWTTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 30*time.Second),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		AuthRateLimit:      getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow:     getEnvDuration("AUTH_RATE_WINDOW", time.Minute),
		WriteRateLimit:     getEnvInt("WRITE_RATE_LIMIT", 30),
		WriteRateWindow:    getEnvDuration("WRITE_RATE_WINDOW", time.Minute),

		OTelEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
	}
}

// Validate reports configuration that would make the API unsafe or unusable.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Env == "prod" && c.JWTSecret == devJWTSecret {
		return errors.New("JWT_SECRET must be set explicitly in prod")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	switch c.StorageDriver {
	case "postgres":
		if c.DBURL == "" {
			return errors.New("database url is empty")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// ImagesEnabled is true when listing image uploads can be presigned.
func (c Config) ImagesEnabled() bool {
	return c.S3Bucket != ""
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "carshare")
	pass := getEnv("DB_PASSWORD", "carshare")
	name := getEnv("DB_NAME", "carshare")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// WithTimeoutFrom bounds a call made on behalf of parent, usually the
// request context, so client disconnects and trace spans carry through.
func WithTimeoutFrom(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an int, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not a number, using %g\n", key, v, fallback)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not a duration, using %s\n", key, v, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
