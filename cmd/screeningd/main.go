package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/veriscope/screening/internal/auditlog"
	"github.com/veriscope/screening/internal/config"
	"github.com/veriscope/screening/internal/crypto"
	"github.com/veriscope/screening/pkg/compliance"
	"github.com/veriscope/screening/pkg/monitoring"
	"github.com/veriscope/screening/pkg/provider"
	"github.com/veriscope/screening/pkg/risk"
	"github.com/veriscope/screening/pkg/sar"
	"github.com/veriscope/screening/pkg/screening"
	"github.com/veriscope/screening/pkg/store"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable so tests can stub it out.
var startServer = runServer

// Run is the process entrypoint, kept separate from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		startServer()
		return 0
	}

	switch args[1] {
	case "server", "serve":
		startServer()
		return 0
	case "health":
		return runHealthCmd(stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Usage: screeningd [server|health]\n")
		return 2
	}
}

func runHealthCmd(out, errOut io.Writer) int {
	resp, err := http.Get("http://localhost:8081/health")
	if err != nil {
		fmt.Fprintf(errOut, "health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(errOut, "health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(out, "OK")
	return 0
}

func runServer() {
	ctx := context.Background()
	cfg := config.Load()
	dataDir := "data"

	var (
		tenants  store.TenantStore
		entities store.EntityStore
	)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Printf("[screeningd] DATABASE_URL not set, falling back to Lite Mode (in-memory tenant/entity stores)")
		tenants = store.NewMemoryTenantStore()
		entities = store.NewMemoryEntityStore()
	} else {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatalf("[screeningd] failed to connect to db: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("[screeningd] db ping failed: %v", err)
		}
		log.Println("[screeningd] postgres: connected")
		tenants = store.NewPostgresTenantStore(db)
		entities = store.NewPostgresEntityStore(db)
	}
	// tenants isn't read anywhere in this entrypoint: no tenant-management
	// API is wired here, only the screening/monitoring request path. Built
	// regardless so Lite Mode and Postgres mode both exercise TenantStore.
	_ = tenants

	checkpointDB, err := openCheckpointDB(dataDir)
	if err != nil {
		log.Fatalf("[screeningd] failed to open checkpoint db: %v", err)
	}
	checkpointStore, err := store.NewSQLiteCheckpointStore(checkpointDB)
	if err != nil {
		log.Fatalf("[screeningd] failed to init checkpoint store: %v", err)
	}

	vaultKey, err := loadOrGenerateVaultKey(dataDir)
	if err != nil {
		log.Fatalf("[screeningd] failed to load vault key: %v", err)
	}
	vault, err := crypto.NewVault(vaultKey)
	if err != nil {
		log.Fatalf("[screeningd] failed to init vault: %v", err)
	}

	complianceEngine := compliance.NewEngine(compliance.DefaultGraph(), compliance.NewRuleSet())

	resolver := newEntityResolverAdapter(entities, vault)

	// Provider stack. No external provider integrations are registered by
	// default (spec §4.4's providers are pluggable, not bundled): the
	// Registry starts empty and every routed query fails closed with "no
	// eligible provider", the same graceful-degradation posture the
	// teacher leaves its MCP driver in when no concrete driver is wired.
	breakers := provider.NewBreakerRegistry(provider.BreakerConfig(cfg.Breaker))
	registry := provider.NewRegistry(breakers)
	limiter := provider.NewLocalLimiter(5, 10)
	cache := provider.NewCache(store.NewMemoryCacheStore(), vault, provider.DefaultTTLTable())
	costService := provider.NewCostService(store.NewMemoryCostStore())
	router := provider.NewRouter(provider.RouterConfig(cfg.Router), registry, breakers, limiter, cache, costService)

	sarDeps := sar.TypeCycleDeps{
		Planner:    sar.NewPlanner(complianceEngine),
		Executor:   sar.NewExecutor(router.Route, cfg.Provider.MaxConcurrentQueries),
		Assessor:   sar.NewAssessor(),
		Controller: sar.NewIterationController(sar.ControllerConfig{
			MaxIterations:           cfg.SAR.MaxIterationsPerType,
			ConfidenceThreshold:     cfg.SAR.ConfidenceThreshold,
			DiminishingReturnsDelta: cfg.SAR.MinGainThreshold,
		}),
		Refiner: sar.NewRefiner(),
		Schema:  sar.NewSchemaValidator(),
	}
	// The Checkpointer is constructed and available for resume queries, but
	// Orchestrator.Run does not thread one through yet (it has no
	// Checkpointer field): recording/resuming per-type checkpoints is an
	// operational concern for a future crash-resume code path, not wired
	// into the synchronous screening request here.
	_ = sar.NewCheckpointer(checkpointStore)

	riskDeps := screening.RiskDeps{
		Classifier:  risk.NewClassifier(nil),
		Severity:    risk.NewSeverityCalculator(),
		Scorer:      risk.NewScorer(),
		Patterns:    risk.NewPatternRecognizer(),
		Anomalies:   risk.NewAnomalyDetector(),
		Connections: risk.NewAnalyzer(3),
	}

	orchestrator := screening.NewOrchestrator(
		complianceEngine,
		resolver,
		costService,
		sarDeps,
		riskDeps,
		screening.NewResultCompiler(),
		logReportRenderer{},
	)

	auditStore := store.NewAuditStore()
	auditLogger := auditlog.NewLogger(auditStore)

	subjectStore := store.NewMemorySubjectStore()
	runner := newOrchestratorRunner(orchestrator, auditLogger)

	hooks := &monitoringHooks{
		store:     subjectStore,
		deltas:    monitoring.NewDeltaDetector(),
		vigilance: monitoring.NewVigilanceManager(),
		alerts: monitoring.NewAlertGenerator(monitoring.AlertConfig{
			RetryCount:                cfg.Monitoring.NotificationRetryCount,
			RetryDelay:                cfg.Monitoring.NotificationRetryDelay,
			MaxAlertsBeforeEscalation: cfg.Monitoring.MaxAlertsBeforeEscalation,
			AlertWindowHours:          cfg.Monitoring.AlertWindowHours,
		}, logAlertChannel{}),
	}
	scheduler := monitoring.NewScheduler(subjectStore, runner, hooks.onCheck)

	go runMonitoringLoop(ctx, scheduler)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	go func() {
		log.Printf("[screeningd] health server: :8081")
		if err := http.ListenAndServe(":8081", healthMux); err != nil {
			log.Printf("[screeningd] health server error: %v", err)
		}
	}()

	log.Println("[screeningd] ready")
	log.Println("[screeningd] press ctrl+c to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("[screeningd] shutting down")
}

func runMonitoringLoop(ctx context.Context, scheduler *monitoring.Scheduler) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if err := scheduler.ExecuteDue(ctx, time.Now()); err != nil {
			log.Printf("[screeningd] monitoring: execute_due failed: %v", err)
		}
		<-ticker.C
	}
}
