// README: Entry point; loads config, wires storage, tools, model backend and planner, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ringsaturn/tzf"

	"ryokou/internal/ai"
	"ryokou/internal/config"
	httptransport "ryokou/internal/http"
	"ryokou/internal/infra"
	"ryokou/internal/maps"
	"ryokou/internal/modules/planner"
	"ryokou/internal/modules/tripplan"
	"ryokou/internal/service"
	"ryokou/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	repo, closeDB, err := openRepository(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	backend, closeBackend, err := newBackend(ctx, cfg.AI)
	if err != nil {
		return err
	}
	defer closeBackend()

	var locator tools.Locator
	if cfg.Tools.GoogleMapsKey != "" {
		places, err := maps.NewPlacesService(cfg.Tools.GoogleMapsKey)
		if err != nil {
			return err
		}
		locator = places
	}
	toolSet := tools.NewSet(tools.Config{
		FlightAPIKey:     cfg.Tools.FlightAPIKey,
		FlightAPIBaseURL: cfg.Tools.FlightAPIBaseURL,
		XoteloBaseURL:    cfg.Tools.XoteloBaseURL,
		GeoapifyKey:      cfg.Tools.GeoapifyKey,
		GeoapifyBaseURL:  cfg.Tools.GeoapifyBaseURL,
	}, tools.NewClient(cfg.Tools.HTTPTimeout, cache, cfg.Tools.CacheTTL), locator)

	var timezones tripplan.TimezoneFinder
	if finder, err := tzf.NewDefaultFinder(); err != nil {
		slog.Warn("timezone finder unavailable; calendar export uses UTC", "error", err)
	} else {
		timezones = finder
	}

	flows := planner.NewRegistry(backend,
		planner.NewSuggestionStage(toolSet.Suggestion()),
		planner.NewItineraryStage(toolSet.All(), planner.ToolMode(cfg.Planner.ItineraryTools)),
		planner.Options{
			StreamTimeout: cfg.Planner.StreamTimeout,
			ToolTimeout:   cfg.Planner.ToolTimeout,
			MaxToolTurns:  cfg.Planner.MaxToolTurns,
		},
		cfg.Planner.FlowTTL,
	)
	tripPlanner := service.NewTripPlanner(flows, tripplan.NewService(repo, timezones))

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httptransport.NewRouter(tripPlanner, cfg.HTTP.AllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr, "ai", cfg.AI.Provider, "db", cfg.DB.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func openRepository(ctx context.Context, cfg config.DBConfig) (tripplan.Repository, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := infra.NewDB(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := infra.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("database connection established", "driver", cfg.Driver)
		return tripplan.NewPostgresStore(pool), pool.Close, nil
	default:
		db, err := infra.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := tripplan.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("database connection established", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return store, func() { db.Close() }, nil
	}
}

func openCache(ctx context.Context, cfg config.Config) (tools.Cache, func(), error) {
	if cfg.Redis.Addr == "" {
		return tools.NewMemoryCache(cfg.Tools.CacheTTL), func() {}, nil
	}
	client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return nil, nil, err
	}
	return tools.NewRedisCache(client), func() { client.Close() }, nil
}

func newBackend(ctx context.Context, cfg config.AIConfig) (ai.Backend, func(), error) {
	if cfg.Provider == config.ProviderOpenAI {
		return ai.NewOpenAIBackend(cfg.OpenAIKey, cfg.Model, cfg.Temperature), func() {}, nil
	}
	gemini, err := ai.NewGeminiBackend(ctx, cfg.GeminiKey, cfg.Model, float32(cfg.Temperature))
	if err != nil {
		return nil, nil, err
	}
	return gemini, gemini.Close, nil
}
