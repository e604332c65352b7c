package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/internal/session/inmemory"
	redis_session "github.com/mohammad-safakhou/deepresearch/internal/session/redis"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
	"github.com/mohammad-safakhou/deepresearch/provider"
	"github.com/mohammad-safakhou/deepresearch/tools/reader"
	"github.com/mohammad-safakhou/deepresearch/tools/web_search"
)

// Run wires the whole service together and blocks serving HTTP.
func Run(cfg *config.Config) error {
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
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	if err := Migrate("file://migrations", postgresURL(cfg.Storage.Postgres), "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}

	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.ConnString())
	if err != nil {
		return err
	}

	var registry session.Registry
	switch cfg.Storage.Session.Backend {
	case "redis":
		registry = redis_session.NewRedisRegistry(
			cfg.Storage.Redis.Addr(),
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			cfg.Storage.Session.TTL,
		)
	default:
		registry = inmemory.NewInMemoryRegistry()
	}

	prov, err := provider.NewProvider(provider.Client(cfg.LLM.Provider), cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
	if err != nil {
		return err
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	if err != nil {
		return err
	}
	rd, err := reader.NewReader(reader.FetcherType(cfg.Reader.Fetcher), cfg.Reader.APIKey, cfg.Reader.Timeout, cfg.Reader.MaxChars)
	if err != nil {
		return err
	}

	h := NewQueryHandler(cfg, registry, st, prov, searcher, rd)
	h.Register(e.Group("/api/v1"))

	if cfg.Cleanup.Enabled {
		cl := &Cleaner{Store: st, Cfg: cfg.Cleanup, Stop: make(chan struct{})}
		cl.Start()
		defer close(cl.Stop)
	}

	return e.Start(cfg.Server.Address)
}

// postgresURL builds the URL form golang-migrate expects.
func postgresURL(p config.PostgresConfig) string {
	if p.URL != "" {
		return p.URL
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, sslmode)
}
