package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ytaudio-server/internal/config"
)

const shutdownGrace = 15 * time.Second

// Run serves e on the configured address until ctx is cancelled, then shuts
// down gracefully. No write timeout is set: responses are file downloads.
func Run(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	s := &http.Server{
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println(">>> 🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
