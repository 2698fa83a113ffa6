package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/transitway/transitd/internal/cache"
	"github.com/transitway/transitd/internal/config"
	"github.com/transitway/transitd/internal/handler"
	"github.com/transitway/transitd/internal/metrics"
	"github.com/transitway/transitd/internal/middleware"
	"github.com/transitway/transitd/internal/routing"
	"github.com/transitway/transitd/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "transitd",
	Short: "Metropolitan transit journey-planning service",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(graphcheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wiring shared by the serve and graphcheck commands:
// config, store connection, and the loaded graph.
type app struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	store *store.Store
	graph *routing.Graph
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to store: %w", err)
	}
	log.Println("connected to store")

	st := store.New(pool)
	loader := routing.NewLoader(st, routing.LoaderConfig{
		TransferRadiusMeters: cfg.Routing.TransferRadiusMeters,
		InterStopSeconds:     cfg.Routing.InterStopSeconds,
	})
	graph, err := loader.LoadData(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load transit graph: %w", err)
	}

	return &app{cfg: cfg, pool: pool, store: st, graph: graph}, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP journey-planning API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	var stopCache *cache.StopBoxCache
	if c, err := cache.New(a.cfg.Redis.URL); err != nil {
		log.Printf("nearest-stop cache disabled: %v", err)
	} else {
		stopCache = c
		defer stopCache.Close()
	}

	engine := routing.NewEngine(a.graph, a.cfg.Routing.MaxRounds)
	resolver := routing.NewResolver(a.graph, a.store, stopCache, a.cfg.Routing.NearbyBoxDegrees)
	transportHandler := handler.NewTransportHandler(a.store, engine, resolver)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(time.Duration(a.cfg.Server.RequestTimeout) * time.Second))
	r.Use(middleware.RequestID)
	r.Use(metrics.Middleware)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"transitd"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := a.pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"error","db":"disconnected"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","db":"connected"}`))
	})

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/lines", transportHandler.GetAllLines)
		r.Get("/lines/{id}", transportHandler.GetLineDetails)
		r.Get("/stops", transportHandler.GetStops)
		r.Get("/stops/{id}", transportHandler.GetStopDetails)
		r.Get("/route", transportHandler.GetRoute)
	})

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	log.Printf("server starting on %s", addr)
	return http.ListenAndServe(addr, r)
}

var graphcheckCmd = &cobra.Command{
	Use:   "graphcheck",
	Short: "Load the transit graph from the configured store and print its shape",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.pool.Close()

		transferTotal := 0
		for _, ts := range a.graph.Transfers {
			transferTotal += len(ts)
		}
		tripTotal := 0
		for _, route := range a.graph.Routes {
			tripTotal += len(route.Trips)
		}
		fmt.Printf("stops=%d routes=%d trips=%d transfers=%d\n",
			len(a.graph.Stops), len(a.graph.Routes), tripTotal, transferTotal)
		return nil
	},
}
