package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/chain"
	"github.com/ashishroygit/medical-chatbot-enterprise/config"
	"github.com/ashishroygit/medical-chatbot-enterprise/service"
)

const (
	defaultAddr     = "0.0.0.0:8080"
	shutdownTimeout = 30 * time.Second
)

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Value:   defaultAddr,
			Usage:   "Address the web service listens on",
			EnvVars: []string{"ADDR"},
		},
	}
}

// Serve runs the chat service. A configuration error does not stop the process: the
// degraded router keeps reporting it on the index page until the operator fixes the env.
func Serve(ctx *cli.Context) error {
	logger := slog.Default()
	addr := ctx.String("addr")

	handler, err := newHandler(ctx.Context, logger)
	if handler == nil {
		return err
	}
	if runErr := run(ctx.Context, handler, addr, logger); runErr != nil {
		return runErr
	}
	return err
}

// newHandler returns the chat router, or the degraded router together with the
// configuration error it reports. A nil handler means the chain could not be assembled.
func newHandler(ctx context.Context, logger *slog.Logger) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.ErrorContext(ctx, "configuration error, serving degraded index page", slog.Any("error", err))
		return service.NewDegraded(err), err
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ragChain, err := chain.Assemble(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble chain: %w", err)
	}
	return service.New(ragChain, logger, cfg.Debug), nil
}

func run(ctx context.Context, handler http.Handler, addr string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("unexpected error in http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
