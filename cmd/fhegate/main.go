// Command fhegate runs the decryption-oracle gateway: it admits provider
// submissions, dispatches committed handle sets to the oracle, and verifies
// the oracle's callbacks before releasing results.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/api"
	"github.com/Veilstone-Labs/fhegate/pkg/audit"
	"github.com/Veilstone-Labs/fhegate/pkg/auth"
	"github.com/Veilstone-Labs/fhegate/pkg/batch"
	"github.com/Veilstone-Labs/fhegate/pkg/commitment"
	"github.com/Veilstone-Labs/fhegate/pkg/config"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/crypto"
	"github.com/Veilstone-Labs/fhegate/pkg/engine"
	"github.com/Veilstone-Labs/fhegate/pkg/gate"
	"github.com/Veilstone-Labs/fhegate/pkg/observability"
	"github.com/Veilstone-Labs/fhegate/pkg/oracle"
	"github.com/Veilstone-Labs/fhegate/pkg/protocol"
	"github.com/Veilstone-Labs/fhegate/pkg/registry"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServe(args[1:], stderr)
	}
	switch args[1] {
	case "serve":
		return runServe(args[2:], stderr)
	case "keygen":
		return runKeygen(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if strings.HasPrefix(args[1], "-") {
			return runServe(args[1:], stderr)
		}
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "fhegate - FHE decryption-oracle gateway")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fhegate [serve] [-profile path]   run the gateway")
	fmt.Fprintln(w, "  fhegate keygen                    generate an oracle attestation keypair")
	fmt.Fprintln(w, "  fhegate help                      show this help")
}

// runKeygen prints a fresh ed25519 keypair for oracle attestation, hex
// encoded. The private half belongs to the oracle operator, the public
// half goes in ORACLE_PUBLIC_KEY.
func runKeygen(stdout, stderr io.Writer) int {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(stderr, "keygen: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "public_key:  %s\n", hex.EncodeToString(pub))
	fmt.Fprintf(stdout, "private_key: %s\n", hex.EncodeToString(priv.Seed()))
	return 0
}

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profilePath := fs.String("profile", os.Getenv("PROFILE_PATH"), "deployment profile YAML")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	var profile *config.DeploymentProfile
	if *profilePath != "" {
		p, err := config.LoadProfile(*profilePath)
		if err != nil {
			fmt.Fprintf(stderr, "profile: %v\n", err)
			return 1
		}
		p.Apply(cfg)
		profile = p
	}

	setupLogging(cfg.LogLevel)
	logger := slog.Default().With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "fhegate",
		ServiceVersion: "1.0.0",
		Environment:    envName(),
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		logger.Error("observability init failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	store, db, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("store init failed", "error", err, "url", cfg.DatabaseURL)
		return 1
	}
	if db != nil {
		defer db.Close()
	}

	hasher := commitment.NewHasher(cfg.InstanceID)

	computations := engine.NewRegistry()
	engine.RegisterProofSearch(computations, cfg.ProofSearchLimit)
	scheme := engine.NewXorScheme([]byte(cfg.InstanceID))
	eng := engine.NewXorEngine(scheme, computations)

	var (
		dispatcher oracle.Dispatcher
		verifier   *crypto.AttestationVerifier
	)
	if cfg.OraclePublicKey != "" {
		if cfg.OracleURL == "" {
			logger.Error("ORACLE_URL required when ORACLE_PUBLIC_KEY is set")
			return 1
		}
		verifier, err = crypto.NewAttestationVerifierHex(cfg.OraclePublicKey)
		if err != nil {
			logger.Error("oracle key invalid", "error", err)
			return 1
		}
		dispatcher = oracle.NewRelay(cfg.OracleURL)
		logger.Info("oracle: external relay", "url", cfg.OracleURL)
	} else {
		// Simulator oracle for local development. Its signing key is
		// ephemeral, so pending requests do not survive a restart.
		signer, err := crypto.NewAttestationSigner(cfg.InstanceID + "-sim")
		if err != nil {
			logger.Error("simulator signer init failed", "error", err)
			return 1
		}
		verifier, err = crypto.NewAttestationVerifier(signer.PublicKeyBytes())
		if err != nil {
			logger.Error("simulator verifier init failed", "error", err)
			return 1
		}
		dispatcher = oracle.NewSimOracle(scheme, signer)
		logger.Warn("oracle: in-process simulator", "public_key", signer.PublicKey())
	}

	reg := registry.New(store, dispatcher, hasher)

	var policy *gate.Policy
	if profile != nil && profile.Admission.Expression != "" {
		policy, err = gate.NewPolicy()
		if err != nil {
			logger.Error("admission policy init failed", "error", err)
			return 1
		}
		if err := policy.SetExpression(profile.Admission.Expression); err != nil {
			logger.Error("admission expression rejected", "error", err)
			return 1
		}
		logger.Info("admission policy loaded", "expression", profile.Admission.Expression)
	}

	svc, err := protocol.New(protocol.Config{
		Owner:    cfg.Owner,
		Cooldown: time.Duration(cfg.CooldownSeconds) * time.Second,
		Engine:   eng,
		Registry: reg,
		Batches:  batch.NewLedger(),
		Verifier: verifier,
		Audit:    audit.NewLogger(),
		Sink:     completionLogger{},
		Policy:   policy,
	})
	if err != nil {
		logger.Error("protocol init failed", "error", err)
		return 1
	}

	var limiter gate.LimiterStore
	if cfg.RedisAddr != "" {
		limiter = gate.NewRedisLimiterStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		logger.Info("callback limiter: redis", "addr", cfg.RedisAddr)
	} else {
		limiter = gate.NewInMemoryLimiterStore()
	}
	limiterPolicy := gate.LimiterPolicy{RPM: cfg.CallbackRPM, Burst: cfg.CallbackBurst}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, provider and admin routes will reject all requests")
	}
	server := api.NewServer(svc, auth.NewJWTValidator([]byte(cfg.JWTSecret)), limiter, limiterPolicy)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           obs.Middleware(server.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "port", cfg.Port, "instance", cfg.InstanceID, "owner", cfg.Owner)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	}
}

// openStore selects the request store from the database URL. postgres://
// DSNs get the Postgres store, everything else is a SQLite path.
func openStore(ctx context.Context, url string) (registry.Store, *sql.DB, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		db, err := sql.Open("postgres", url)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := registry.NewPostgresStore(db)
		if err := store.Init(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, db, nil
	}

	db, err := sql.Open("sqlite", url)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := registry.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init sqlite store: %w", err)
	}
	return store, db, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func envName() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

// completionLogger is the default completion sink: verified results go to
// the structured log. Deployments that feed results onward replace it.
type completionLogger struct{}

func (completionLogger) Completed(ev contracts.CompletionEvent) {
	slog.Default().Info("decryption completed",
		"request_id", ev.RequestID,
		"batch_id", ev.BatchID,
		"result_flag", ev.ResultFlag,
		"result_value", ev.ResultValue.String(),
	)
}
