package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splits list-valued variables
	"time"    // time parses duration values
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Handles built from this struct (database pools,
// the cache manager, the broker consumer) are constructed once at process
// start and passed down explicitly; nothing in this module initializes
// clients lazily on first use.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	JWTSecret    string // secret used to sign and verify JWTs
	JWTAlgorithm string // signing algorithm name; only HS256 is accepted

	AccessTTLMin   int // access token time‑to‑live in minutes
	RefreshTTLDays int // refresh token time‑to‑live in days
	BcryptCost     int // bcrypt cost for password hashing (default 12)

	// Primary database connection parameters.
	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	// Read replica connection parameters.  Host/port default to the primary
	// when unset so single-node deployments keep working.
	ReplicaHost string
	ReplicaPort string

	// Replica fallback policy for the routing session.  The retry count and
	// delay are part of the visible configuration instead of an annotation
	// attached to the execute path.
	ReplicaRetryAttempts int
	ReplicaRetryBackoff  time.Duration

	PrivilegeCacheTTL time.Duration // lifetime of warmed privilege bundles

	EncryptionKey string   // base64-encoded 32-byte AES-256-GCM key
	DecryptPaths  []string // POST paths whose bodies arrive encrypted

	EmailServiceURL string // notification-service endpoint for outbound email
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		JWTSecret:      must("JWT_SECRET"),
		JWTAlgorithm:   getenvDefault("JWT_ALGORITHM", "HS256"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     intDefault("BCRYPT_COST", 12),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		ReplicaHost: os.Getenv("REPLICA_DB_HOST"),
		ReplicaPort: os.Getenv("REPLICA_DB_PORT"),

		ReplicaRetryAttempts: intDefault("REPLICA_RETRY_ATTEMPTS", 3),
		ReplicaRetryBackoff:  durDefault("REPLICA_RETRY_BACKOFF", time.Second),

		PrivilegeCacheTTL: durDefault("PRIVILEGE_CACHE_TTL", time.Hour),

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		DecryptPaths:  splitPaths(os.Getenv("DECRYPT_PATHS")),

		EmailServiceURL: os.Getenv("EMAIL_SERVICE_URL"),
	}
	if cfg.JWTAlgorithm != "HS256" {
		log.Fatalf("unsupported JWT_ALGORITHM: %q (only HS256 is supported)", cfg.JWTAlgorithm)
	}
	if cfg.ReplicaHost == "" {
		cfg.ReplicaHost = cfg.DBHost
	}
	if cfg.ReplicaPort == "" {
		cfg.ReplicaPort = cfg.DBPort
	}
	if cfg.ReplicaRetryAttempts < 1 {
		cfg.ReplicaRetryAttempts = 1
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// splitPaths parses a comma-separated list of request paths.
func splitPaths(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
