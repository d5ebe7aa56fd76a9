package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and limits.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // secret used to sign JWTs (minimum 32 bytes)
	APIURL          string // public base URL used to build photo references
	AccessTTLMin    int    // access token time‑to‑live in minutes
	RefreshTTLDays  int    // refresh token time‑to‑live in days
	MaxSessions     int    // maximum live refresh sessions per user
	LockoutAttempts int    // failed logins before an account is locked
	LockoutMinutes  int    // duration of an account lock in minutes
	InactiveDays    int    // refresh tokens unused this long are swept
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The signing secret
// is additionally checked for length: an undersized secret makes every
// issued token forgeable, so the service refuses to start instead of
// failing per request.
func Load() Config {
	cfg := Config{
		Env:             must("APP_ENV"),      // environment (dev/test/prod)
		Port:            must("APP_PORT"),     // port to bind the HTTP server
		DBUser:          must("DB_USER"),      // database user
		DBPass:          os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:          must("DB_HOST"),      // database host
		DBPort:          must("DB_PORT"),      // database port
		DBName:          must("DB_NAME"),      // database name
		JWTSecret:       must("JWT_SECRET"),   // secret used for signing JWTs
		APIURL:          envStr("API_URL", "http://localhost:4000"),
		AccessTTLMin:    envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays:  envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		MaxSessions:     envInt("MAX_SESSIONS_PER_USER", 5),
		LockoutAttempts: envInt("LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutMinutes:  envInt("LOCKOUT_DURATION_MIN", 15),
		InactiveDays:    envInt("REFRESH_INACTIVE_DAYS", 30),
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatalf("JWT_SECRET must be at least 32 bytes, got %d", len(cfg.JWTSecret))
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

// envStr returns the value of an optional environment variable, or the
// provided default when unset.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt is like envStr but converts the retrieved string into an integer.
// Invalid values fall back to the default rather than aborting startup.
func envInt(key string, def int) int {
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
