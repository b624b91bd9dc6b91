// Package server assembles the echo application: middleware, the
// optional envelope and the routes.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nckslvrmn/stash/internal/config"
	"github.com/nckslvrmn/stash/internal/governor"
	"github.com/nckslvrmn/stash/internal/handlers"
	custommw "github.com/nckslvrmn/stash/internal/middleware"
	"github.com/nckslvrmn/stash/internal/storage/types"
	"github.com/nckslvrmn/stash/pkg/envelope"
)

// New builds the HTTP server around store and gov.
func New(cfg *config.Config, store types.SecretStore, gov *governor.Governor) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.INFO)

	var routeMW []echo.MiddlewareFunc
	opts := handlers.Options{
		SecretMaxLength: cfg.SecretMaxLength,
		Canary:          cfg.Canary,
	}
	if cfg.ServerSecretKey != "" {
		key, err := envelope.ParseSecretKey(cfg.ServerSecretKey)
		if err != nil {
			return nil, fmt.Errorf("server secret key: %w", err)
		}
		opts.PublicKey = key.PublicKeyHex()
		routeMW = append(routeMW, custommw.NewEnvelope(key).Middleware)
		e.Logger.Infof("envelope enabled, public key %s", opts.PublicKey)
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infoj(log.JSON{
				"id":      v.RequestID,
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.BodyLimit(bodyLimit(cfg.SecretMaxLength)))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
	e.Use(custommw.Brotli(5))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: custommw.AcceptsBrotli,
	}))

	h := handlers.New(store, gov, opts)
	e.POST("/store", h.Store, routeMW...)
	e.POST("/fetch", h.Fetch, routeMW...)
	e.POST("/trash", h.Trash, routeMW...)
	e.GET("/info", h.Info)

	return e, nil
}

// bodyLimit leaves room for the credentials, JSON framing and envelope
// overhead around a maximum length secret.
func bodyLimit(secretMaxLength int) string {
	return fmt.Sprintf("%dK", 2*secretMaxLength/1024+64)
}
