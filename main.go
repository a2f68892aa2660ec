package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"wrap-render-server/modules/backend"
	"wrap-render-server/modules/common/config"
	"wrap-render-server/modules/common/database"
	"wrap-render-server/modules/common/gemini"
	"wrap-render-server/modules/common/logger"
	"wrap-render-server/modules/common/metrics"
	redisutil "wrap-render-server/modules/common/redis"
	"wrap-render-server/modules/common/storage"
	"wrap-render-server/modules/continuity"
	"wrap-render-server/modules/design"
	"wrap-render-server/modules/notifier"
	"wrap-render-server/modules/qualitygate"
	"wrap-render-server/modules/quota"
	"wrap-render-server/modules/render"
	"wrap-render-server/modules/scheduler"
	"wrap-render-server/modules/session"
	"wrap-render-server/modules/worker"
)

const (
	memoryContinuitySize = 1024
	shutdownTimeout      = 15 * time.Second
)

var startTime = time.Now()

// CORS headers
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// health check with hub stats
func healthCheck(hub *notifier.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"service": "wrap-render-server",
			"uptime":  time.Since(startTime).String(),
			"hub":     hub.Stats(),
		})
	}
}

// buildBackend - render generator and inspector for the configured backend
func buildBackend(ctx context.Context, cfg *config.Config, db *database.Client, log zerolog.Logger) (scheduler.Generator, qualitygate.Inspector, error) {
	if cfg.RenderBackend == config.BackendGemini {
		pool, err := gemini.NewPool(ctx, cfg, logger.Module(log, "gemini"))
		if err != nil {
			return nil, nil, err
		}
		var records backend.RenderRecorder
		if db != nil {
			records = db
		}
		gen := backend.NewGeminiGenerator(pool, cfg.GeminiModel, storage.NewClient(cfg, logger.Module(log, "storage")), records, logger.Module(log, "backend"))
		insp := backend.NewGeminiInspector(pool, cfg.GeminiInspectModel, logger.Module(log, "backend"))
		log.Info().Int("keys", pool.Size()).Msg("✅ [Main] Gemini backend ready")
		return gen, insp, nil
	}

	client := backend.NewFunctionClient(cfg.RenderFunctionsURL, cfg.SupabaseServiceKey, cfg.RenderTimeout, logger.Module(log, "backend"))
	log.Info().Str("url", cfg.RenderFunctionsURL).Msg("✅ [Main] Render function backend ready")
	return client, client, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("❌ Failed to load config")
	}
	log := logger.New(cfg.IsDevelopment(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis backs continuity and the job queue; without it both fall back or stay off
	var continuityStore continuity.Store
	var queue worker.Queue
	rdb, err := redisutil.Connect(cfg, logger.Module(log, "redis"))
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [Main] Redis unavailable, continuity kept in memory and queue disabled")
		mem, memErr := continuity.NewMemoryStore(memoryContinuitySize, cfg.ContinuityTTL)
		if memErr != nil {
			log.Fatal().Err(memErr).Msg("❌ [Main] Failed to create memory continuity store")
		}
		continuityStore = mem
	} else {
		defer rdb.Close()
		continuityStore = continuity.NewRedisStore(rdb, cfg.ContinuityTTL)
		queue = worker.NewRedisQueue(rdb)
	}
	cache := continuity.NewCache(continuityStore, logger.Module(log, "continuity"))

	var guard *quota.Guard
	db, err := database.NewClient(cfg, logger.Module(log, "database"))
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [Main] Supabase unavailable, quota checks disabled")
	} else {
		overage := quota.NewFunctionOverage(cfg.RenderFunctionsURL, cfg.SupabaseServiceKey, cfg.RenderTimeout)
		guard = quota.NewGuard(quota.NewSupabaseStore(db), overage, logger.Module(log, "quota"))
	}

	gen, inspector, err := buildBackend(ctx, cfg, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ [Main] Failed to build render backend")
	}

	sched := scheduler.New(gen, scheduler.Options{
		Concurrency: cfg.ViewConcurrency,
		CallTimeout: cfg.RenderTimeout,
	}, logger.Module(log, "scheduler"))
	gate := qualitygate.New(inspector, sched, render.ViewType(cfg.QualityGateView), logger.Module(log, "qualitygate"))

	hub := notifier.NewHub(logger.Module(log, "hub"))
	hub.StartCleanup(ctx)

	deps := session.Deps{
		Scheduler: sched,
		Gate:      gate,
		Cache:     cache,
		Notifier:  hub,
	}
	var quotaReader design.QuotaReader
	if guard != nil {
		deps.Quota = guard
		quotaReader = guard
	}
	engine, err := session.NewEngine(deps, logger.Module(log, "session"))
	if err != nil {
		log.Fatal().Err(err).Msg("❌ [Main] Failed to create session engine")
	}

	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck(hub)).Methods("GET")
	r.HandleFunc("/health", healthCheck(hub)).Methods("GET")
	r.HandleFunc("/ws", hub.ServeWS)
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	design.NewHandler(engine, cache, quotaReader, logger.Module(log, "design")).RegisterRoutes(r)

	if queue != nil {
		worker.NewEnqueueHandler(queue, logger.Module(log, "enqueue")).RegisterRoutes(r)
		go worker.New(queue, engine, cfg.ViewConcurrency, logger.Module(log, "worker")).Run(ctx)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("❌ [Main] Shutdown failed")
		}
	}()

	log.Info().Msgf("🚀 Wrap Render Server starting on port %s", cfg.Port)
	log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws?session=<id>&user=<id>", cfg.Port)
	log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
