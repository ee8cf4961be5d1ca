package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ShutdownTimeout bounds how long Serve waits for open requests to finish.
const ShutdownTimeout = 5 * time.Second

// Serve runs srv until ctx is cancelled or the listener fails. After a
// cancellation it shuts srv down gracefully and returns http.ErrServerClosed.
func Serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	logger = logger.With(slog.String("addr", srv.Addr))

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting")
		listenErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.Any("error", err))
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", slog.Any("error", err))
		return err
	}
	logger.Info("http server stopped")
	return http.ErrServerClosed
}
