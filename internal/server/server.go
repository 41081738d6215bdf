package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/skyfield-labs/terralens/config"
	"github.com/skyfield-labs/terralens/internal/imagery"
	"github.com/skyfield-labs/terralens/internal/llm"
	"github.com/skyfield-labs/terralens/internal/runtime"
	"github.com/skyfield-labs/terralens/internal/satellite"
	"github.com/skyfield-labs/terralens/internal/store"
	"github.com/skyfield-labs/terralens/internal/telemetry"
)

// Run assembles the API server, wires the pipeline behind it and blocks on
// the listener.
func Run(addr string, configPath string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	cfg := config.LoadConfig(configPath)

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Postgres DSN from config when present, DATABASE_URL / POSTGRES_* env
	// otherwise.
	dsn := ""
	if err := cfg.Storage.Postgres.Validate(); err == nil {
		dsn = cfg.Storage.Postgres.DSN()
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("migrate: %v", err)
	}

	ctx := context.Background()
	var st *store.Store
	var err error
	if dsn != "" {
		st, err = store.NewWithDSN(ctx, dsn)
	} else {
		st, err = store.New(ctx)
	}
	if err != nil {
		return err
	}

	// Rebuild the in-memory search index from persisted summaries.
	index, err := store.NewSummaryIndex()
	if err != nil {
		return err
	}
	if recs, err := st.ListSummaries(ctx, "", 200); err == nil {
		if err := index.Rebuild(recs); err != nil {
			log.Printf("summary index rebuild: %v", err)
		}
	} else {
		log.Printf("summary index load: %v", err)
	}

	// Pipeline dependencies (single instances shared by API and scheduler).
	tele := telemetry.NewTelemetry(cfg.Telemetry)
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	pipeLogger := log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	fetcher := imagery.New(cfg.Imagery, log.New(log.Writer(), "[IMAGERY] ", log.LstdFlags), tele)
	planner := satellite.NewPlanner(provider, cfg.LLM.Routing.Planning, tele, pipeLogger)
	executor := satellite.NewExecutor(fetcher, tele, pipeLogger)
	summarizer := satellite.NewSummarizer(provider, cfg.LLM.Routing.Summarizing, tele, pipeLogger)
	pipeline := satellite.NewPipeline(planner, executor, summarizer, tele, pipeLogger)

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	auth := &AuthHandler{Store: st, Secret: secret}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(runtime.EchoAuthMiddleware(secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, MeResponse{UserID: c.Get("user_id").(string)})
	})

	ah := &AnalysesHandler{Store: st, Runner: pipeline, Index: index, Logger: baseLogger}
	ah.Register(api, secret)

	wh := &WatchlistsHandler{Store: st}
	wh.Register(api.Group("/watchlists"), secret)

	if cfg.Scheduler.Enabled {
		if err := cfg.Storage.Redis.Validate(); err != nil {
			return err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		sched := &Scheduler{
			Store:    st,
			Stop:     make(chan struct{}),
			Rdb:      rdb,
			Runner:   pipeline,
			Index:    index,
			Interval: cfg.Scheduler.Interval,
			LockTTL:  cfg.Scheduler.LockTTL,
			Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		}
		sched.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10030"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
