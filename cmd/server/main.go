package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kapu/formsmith-server-go/internal/config"
	"github.com/kapu/formsmith-server-go/internal/di"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run() error {
	app, err := di.InitializeApp()
	if err != nil {
		return err
	}
	defer app.Close()

	config.LogEnvStatus(app.Config, app.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		app.Logger.Info(
			"http_server_start",
			"host", app.Config.HTTP.Host,
			"port", app.Config.HTTP.Port,
			"http2", app.Config.HTTP.HTTP2Enabled,
		)
		serverErr <- app.Server.ListenAndServe()
	}()

	select {
	case err = <-serverErr:
	case <-ctx.Done():
		app.Logger.Info("http_server_shutdown_signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := app.Server.Shutdown(shutdownCtx); shutdownErr != nil {
			app.Logger.Error("http_server_shutdown_failed", "err", shutdownErr)
			_ = app.Server.Close()
		}
		err = <-serverErr
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.Logger.Error("http_server_failed", "err", err)
		return err
	}
	return nil
}
