// Package api exposes the small operational HTTP surface: health,
// metrics, login, and the report export download.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/api/handlers"
	"github.com/jordanlanch/salesbot/pkg/database"
	"github.com/jordanlanch/salesbot/pkg/export"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	custommw "github.com/jordanlanch/salesbot/pkg/middleware"
)

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Config   *config.Config
	Agents   *agents.Service
	Exports  *export.Service
	DB       *database.Client
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Log      logger.Logger
}

// New builds the configured echo server without starting it.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			d.Log.Info("http request",
				"method", c.Request().Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		status := map[string]string{"status": "ok"}
		if d.DB != nil {
			if err := d.DB.Ping(c.Request().Context()); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				return c.JSON(http.StatusServiceUnavailable, status)
			}
		}
		return c.JSON(http.StatusOK, status)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		d.Registry, promhttp.HandlerOpts{})))

	authHandler := handlers.NewAuthHandler(d.Agents, d.Config, d.Metrics)
	exportHandler := handlers.NewExportHandler(d.Exports, d.Metrics, d.Log)

	loginLimiter := custommw.NewRateLimiter(5, 2)

	v1 := e.Group("/api/v1")
	v1.POST("/login", authHandler.Login, loginLimiter.RateLimitMiddleware())
	v1.GET("/reports/export", exportHandler.Download,
		custommw.JWTAuth(d.Config.JWTSecret), custommw.RequireSupervisor())

	return e
}

// Start runs the server until ctx is canceled.
func Start(ctx context.Context, e *echo.Echo, addr string, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()
	select {
	case <-ctx.Done():
		return e.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
