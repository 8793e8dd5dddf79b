package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/oect/internal/api"
	"github.com/RMahshie/oect/internal/config"
	"github.com/RMahshie/oect/internal/device"
	"github.com/RMahshie/oect/internal/processing"
	"github.com/RMahshie/oect/internal/repository/postgres"
	"github.com/RMahshie/oect/internal/storage"
	"github.com/RMahshie/oect/pkg/models"
)

const version = "1.0.0"

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	startup, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.PingContext(startup); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := postgres.Migrate(startup, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	store, err := newObjectStore(startup, cfg.Storage)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}

	repo := postgres.NewPostgresAnalysisRepository(db)
	defaults := device.DefaultOptions()
	defaults.GmMethod = cfg.Processing.GmMethod
	defaults.PeakWidth = cfg.Processing.PeakWidth
	processingSvc := processing.NewProcessingService(store, repo, defaults, cfg.Processing.PlotResults)

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create Huma API
	humaConfig := huma.DefaultConfig("OECT Characterization API", version)
	humaConfig.DocsPath = "/api/docs"
	humaAPI := humachi.New(router, humaConfig)

	// Register health endpoint
	huma.Register(humaAPI, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		if err := db.PingContext(ctx); err != nil {
			resp.Body.Status = "degraded"
		}
		resp.Body.Version = version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	api.RegisterRoutes(humaAPI, store, repo, processingSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("Starting OECT API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newObjectStore picks the storage backend named in the configuration.
func newObjectStore(ctx context.Context, c config.StorageConfig) (storage.ObjectStore, error) {
	sc := storage.Config{
		Bucket:    c.Bucket,
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKeyID,
		SecretKey: c.SecretAccessKey,
	}
	if c.Backend == config.BackendMinio {
		return storage.NewMinioService(ctx, sc)
	}
	return storage.NewS3Service(sc)
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("request_id", middleware.GetReqID(r.Context())).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
