package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"time"    // time converts the *_SECS variables into durations
)

// DefaultUserKeysURL serves the x509 certificates that sign end-user
// identity tokens, keyed by kid.
const DefaultUserKeysURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations are converted from the *_SECS and
// *_HOURS variables at load time so callers never deal with raw integers.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	DatabaseURL string // postgres:// or mysql:// URL, or a raw MySQL DSN
	AutoMigrate bool   // apply the embedded schema at boot

	HoldTTL             time.Duration // lifetime of a hold before the sweeper reclaims it
	SweepInterval       time.Duration // sweeper tick
	QRSecret            string        // HMAC key for pickup tokens
	QRMaxAge            time.Duration // oldest pickup token accepted at scan
	CancelRestoresStock bool          // whether cancelling an active order gives stock back

	OperatorSecret   string        // HS256 key for operator tokens
	OperatorIssuer   string        // iss claim of operator tokens
	OperatorAudience string        // aud claim of operator tokens
	OperatorTokenTTL time.Duration // lifetime of an operator token

	UserKeysURL   string // endpoint publishing identity signing keys
	UserProjectID string // identity project; audience and issuer suffix of user tokens

	AMQPURL     string // broker for lifecycle events; empty disables events
	EventLogDir string // directory of the rotating order event log
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "8080"),
		DatabaseURL: must("DATABASE_URL"),
		AutoMigrate: envBool("DB_AUTO_MIGRATE", true),

		HoldTTL:             time.Duration(envInt("ORDER_HOLD_TTL_SECS", 300)) * time.Second,
		SweepInterval:       time.Duration(envInt("HOLD_SWEEP_INTERVAL_SECS", 60)) * time.Second,
		QRSecret:            must("DELIVER_QR_HASH_SECRET"),
		QRMaxAge:            time.Duration(envInt("QR_TOKEN_MAX_AGE_SECS", 86400)) * time.Second,
		CancelRestoresStock: envBool("ORDER_CANCEL_RESTORES_STOCK", false),

		OperatorSecret:   must("OPERATOR_JWT_SECRET"),
		OperatorIssuer:   envStr("OPERATOR_JWT_ISSUER", "canteen-order-service"),
		OperatorAudience: envStr("OPERATOR_JWT_AUDIENCE", "canteen-operators"),
		OperatorTokenTTL: time.Duration(envInt("OPERATOR_TOKEN_TTL_HOURS", 12)) * time.Hour,

		UserKeysURL:   envStr("USER_IDENTITY_KEYS_URL", DefaultUserKeysURL),
		UserProjectID: must("USER_IDENTITY_PROJECT_ID"),

		AMQPURL:     amqpURL(),
		EventLogDir: envStr("ORDER_EVENT_LOG_DIR", "logs"),
	}
}

// amqpURL honours both names the broker URL has gone by.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
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
