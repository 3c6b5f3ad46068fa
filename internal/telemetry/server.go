package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// HealthExtras lets a stage contribute extra fields to the /health payload
// (e.g. the cold writer's archive statistics).
type HealthExtras func() map[string]interface{}

// OpsServer serves GET /health and GET /metrics for one stage. No
// authentication; consumer lag is derived externally from broker metrics
// and deliberately not reported here.
type OpsServer struct {
	echo  *echo.Echo
	stage string
	log   *zap.Logger
}

// NewOpsServer wires the ops endpoints for a stage.
func NewOpsServer(stage string, m *Metrics, extras HealthExtras, log *zap.Logger) *OpsServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		body := map[string]interface{}{
			"status":    "ok",
			"service":   stage,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if extras != nil {
			for k, v := range extras() {
				body[k] = v
			}
		}
		return c.JSON(http.StatusOK, body)
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return &OpsServer{echo: e, stage: stage, log: log}
}

// Start binds the server in a background goroutine. Fatal on bind failure:
// an unobservable stage should not run.
func (s *OpsServer) Start(addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			s.log.Fatal("ops server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	s.log.Info("ops server listening", zap.String("addr", addr), zap.String("stage", s.stage))
}

// Shutdown stops the ops server gracefully.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
