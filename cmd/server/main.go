// Package main runs the swap execution service: the HTTP API for
// swap/transfer orchestration and goal management, plus the
// health/metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"solana-dca-engine/internal/goals"
	"solana-dca-engine/internal/httpapi"
	"solana-dca-engine/internal/observability"
	"solana-dca-engine/internal/orchestrator"
	"solana-dca-engine/internal/quote"
	"solana-dca-engine/internal/router"
	"solana-dca-engine/internal/solana"
	"solana-dca-engine/internal/storage"
	chstore "solana-dca-engine/internal/storage/clickhouse"
	"solana-dca-engine/internal/storage/memory"
	"solana-dca-engine/internal/storage/migrations"
	pgstore "solana-dca-engine/internal/storage/postgres"
	"solana-dca-engine/internal/submit"
	"solana-dca-engine/internal/txbuilder"
)

// Server holds all components of the service.
type Server struct {
	// Configuration
	rpcEndpoint     string
	wsEndpoint      string
	routingEndpoint string
	listenAddr      string
	network         string
	useMemory       bool

	// Stores
	stores *allStores

	// Components
	api    *httpapi.Server
	logger *log.Logger

	// State
	mu        sync.Mutex
	startedAt time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	recordStore storage.RecordStore
	goalStore   storage.GoalStore
	ledgerStore storage.LedgerStore
	auditStore  storage.AuditStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional; polling-only confirmation without it)")
	routingEndpoint := flag.String("routing-endpoint", os.Getenv("ROUTING_ENDPOINT"), "Liquidity routing provider base URL")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	authToken := flag.String("auth-token", os.Getenv("API_AUTH_TOKEN"), "Static bearer token for mutating endpoints")
	network := flag.String("network", envOr("SOLANA_NETWORK", "mainnet"), "Network label stamped on records")
	intermediateMint := flag.String("intermediate-mint", os.Getenv("INTERMEDIATE_MINT"), "Route swaps through this mint in two legs (optional)")
	confirmTimeout := flag.Duration("confirm-timeout", 60*time.Second, "Confirmation wait per submission")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	listenAddr := flag.String("listen-addr", ":8080", "API HTTP address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *routingEndpoint == "" {
		logger.Fatal("--routing-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if *authToken == "" {
		logger.Println("WARNING: no --auth-token set, mutating endpoints are unauthenticated")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Create server
	server := &Server{
		rpcEndpoint:     *rpcEndpoint,
		wsEndpoint:      *wsEndpoint,
		routingEndpoint: *routingEndpoint,
		listenAddr:      *listenAddr,
		network:         *network,
		useMemory:       *useMemory,
		stores:          stores,
		logger:          logger,
	}

	api, apiCleanup, err := server.buildAPI(ctx, *authToken, *intermediateMint, *confirmTimeout)
	if err != nil {
		logger.Fatalf("Failed to build API: %v", err)
	}
	defer apiCleanup()
	server.api = api

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start metrics/health server
	go server.startMetricsServer(*metricsAddr)

	// Run the API server
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// buildAPI wires the orchestration components into the HTTP API.
func (s *Server) buildAPI(ctx context.Context, authToken, intermediateMint string, confirmTimeout time.Duration) (*httpapi.Server, func(), error) {
	rpc := solana.NewHTTPClient(s.rpcEndpoint)
	routing := router.NewHTTPClient(s.routingEndpoint)

	cleanup := func() {}

	// WebSocket confirmation is optional; the submitter falls back to
	// status polling when no subscriber is configured.
	var subscriber submit.SignatureSubscriber
	if s.wsEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, s.wsEndpoint, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("create websocket client: %w", err)
		}
		subscriber = ws
		cleanup = func() { ws.Close() }
	}

	acquirer, err := quote.NewAcquirer(quote.Options{
		Routing: routing,
		Logger:  log.New(os.Stdout, "[quote] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create quote acquirer: %w", err)
	}

	builder, err := txbuilder.NewBuilder(txbuilder.Options{
		RPC:     rpc,
		Routing: routing,
		Logger:  log.New(os.Stdout, "[txbuilder] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create transaction builder: %w", err)
	}

	submitter, err := submit.NewSubmitter(submit.Options{
		Records:        s.stores.recordStore,
		Audit:          s.stores.auditStore,
		RPC:            rpc,
		Subscriber:     subscriber,
		ConfirmTimeout: confirmTimeout,
		Logger:         log.New(os.Stdout, "[submit] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create submitter: %w", err)
	}

	var planner orchestrator.LegPlanner
	if intermediateMint != "" {
		planner = orchestrator.TwoLegPlanner{IntermediateMint: intermediateMint}
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Records:   s.stores.recordStore,
		Goals:     s.stores.goalStore,
		Ledger:    s.stores.ledgerStore,
		Audit:     s.stores.auditStore,
		Quotes:    acquirer,
		Builder:   builder,
		Submitter: submitter,
		Planner:   planner,
		RPC:       rpc,
		Network:   s.network,
		Logger:    log.New(os.Stdout, "[orchestrator] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create orchestrator: %w", err)
	}

	goalService, err := goals.NewService(goals.Options{
		Goals:  s.stores.goalStore,
		Logger: log.New(os.Stdout, "[goals] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create goal service: %w", err)
	}

	api, err := httpapi.NewServer(httpapi.Options{
		Orchestrator: orch,
		Goals:        goalService,
		AuthToken:    authToken,
		Logger:       log.New(os.Stdout, "[httpapi] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create http api: %w", err)
	}
	return api, cleanup, nil
}

// createStores creates all required stores and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		records := memory.NewRecordStore()
		goalStore := memory.NewGoalStore()
		stores := &allStores{
			recordStore: records,
			goalStore:   goalStore,
			ledgerStore: memory.NewLedgerStore(records, goalStore),
			auditStore:  memory.NewAuditStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		recordStore: pgstore.NewRecordStore(pool),
		goalStore:   pgstore.NewGoalStore(pool),
		ledgerStore: pgstore.NewLedgerStore(pool),
		auditStore:  chstore.NewAuditEventStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run serves the API until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting API server on %s", s.listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	go s.tickUptime(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("API server shutdown: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// tickUptime advances the uptime counter once per second.
func (s *Server) tickUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.DefaultMetrics.UptimeSeconds.Add(1)
		}
	}
}

// startMetricsServer starts the HTTP server for health/metrics/status.
func (s *Server) startMetricsServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("Metrics server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Network   string    `json:"network"`
	Storage   string    `json:"storage"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()

	storageMode := "postgres+clickhouse"
	if s.useMemory {
		storageMode = "memory"
	}

	resp := StatusResponse{
		Status:    "running",
		Uptime:    time.Since(startedAt).String(),
		StartedAt: startedAt,
		Network:   s.network,
		Storage:   storageMode,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// envOr returns the environment value or a default when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
