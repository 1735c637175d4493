// Package config loads gateway configuration from the environment, with an
// optional YAML deployment profile layered on top.
package config

import (
	"os"
	"strconv"
)

// Config holds server configuration.
type Config struct {
	Port       string
	LogLevel   string
	InstanceID string

	// DatabaseURL selects the request store. postgres:// DSNs use the
	// Postgres store, everything else is treated as a SQLite path.
	DatabaseURL string

	// RedisAddr enables the Redis-backed callback flood limiter when set.
	// Empty falls back to the in-process limiter.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OraclePublicKey is the hex-encoded ed25519 verification key for
	// oracle attestations. Empty runs the built-in simulator oracle.
	OraclePublicKey string
	// OracleURL is the external oracle dispatch endpoint. Required when
	// OraclePublicKey is set.
	OracleURL string

	Owner           string
	CooldownSeconds int

	JWTSecret string

	// OTLPEndpoint enables trace/metric export when set.
	OTLPEndpoint string

	CallbackRPM   int
	CallbackBurst int

	ProofSearchLimit uint64
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "fhegate-dev"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Default to a local SQLite file
		dbURL = "file:fhegate.db"
	}

	owner := os.Getenv("GATEWAY_OWNER")
	if owner == "" {
		owner = "owner"
	}

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		InstanceID:       instanceID,
		DatabaseURL:      dbURL,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          envInt("REDIS_DB", 0),
		OraclePublicKey:  os.Getenv("ORACLE_PUBLIC_KEY"),
		OracleURL:        os.Getenv("ORACLE_URL"),
		Owner:            owner,
		CooldownSeconds:  envInt("COOLDOWN_SECONDS", 30),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
		CallbackRPM:      envInt("CALLBACK_RATE_RPM", 120),
		CallbackBurst:    envInt("CALLBACK_RATE_BURST", 20),
		ProofSearchLimit: uint64(envInt("PROOF_SEARCH_LIMIT", 1<<20)),
	}
}

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
