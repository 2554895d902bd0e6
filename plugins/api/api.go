package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

var logger *slog.Logger

type ApiPlugin struct {
	Config

	server  *echo.Echo
	ctl     Controller
	metrics http.Handler
}

// NewApiPlugin builds the plugin. The metrics handler is optional: the
// /metrics route is only exposed when it's provided.
func NewApiPlugin(c *Config, ctl Controller, metrics http.Handler) (*ApiPlugin, error) {
	logger = slog.Default().With("t", "api")

	if ctl == nil {
		return nil, errors.New("no controller provided")
	}
	return &ApiPlugin{Config: *c, ctl: ctl, metrics: metrics}, nil
}

func (p *ApiPlugin) String() string {
	return "api"
}

func (p *ApiPlugin) Init() error {
	logger.Debug("initialising the api plugin")
	p.server = echo.New()

	// Configure the methods for each path
	p.server.GET("/", handleRoot)
	p.server.GET("/state", handleState)
	p.server.POST("/interrupt", handleInterrupt)
	if p.metrics != nil {
		p.server.GET("/metrics", echo.WrapHandler(p.metrics))
	}

	// Prevent the banner from showing up in the log
	p.server.HideBanner = true
	p.server.HidePort = true

	// Extend the context so that handlers can reach the control loop.
	p.server.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&extendedContext{c, p.server.Routes(), p.ctl})
		}
	})

	return nil
}

func (p *ApiPlugin) Run(done <-chan struct{}) {
	logger.Debug("running the api plugin")

	go func() {
		if err := p.server.Start(fmt.Sprintf("%s:%d", p.BindAddress, p.BindPort)); err != http.ErrServerClosed {
			logger.Error("couldn't start the API server", "err", err)
		}
	}()

	// Simply wait until we're done
	<-done
	logger.Debug("cleanly exiting the api plugin")
}

func (p *ApiPlugin) Cleanup() error {
	logger.Debug("cleaning up the api plugin")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down the API server: %w", err)
	}
	return nil
}
