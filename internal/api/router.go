package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ytaudio-server/internal/config"
)

// NewRouter setup routes and apply global middleware
func NewRouter(h *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = NewTemplateRenderer()

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			return !cfg.RequestLogging || c.Path() == "/healthz"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	if cors := CORSMiddleware(cfg.AllowedOrigins); cors != nil {
		e.Use(cors)
	}

	e.GET("/", h.Index)
	e.POST("/", h.Download, RateLimitMiddleware(cfg.RatePerMinute, cfg.RateBurst))
	e.GET("/healthz", h.Health)

	return e
}
