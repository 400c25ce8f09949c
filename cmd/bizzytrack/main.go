package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bizzytrack/backend/internal/adapters/impexp"
	"bizzytrack/backend/internal/adapters/logging"
	"bizzytrack/backend/internal/adapters/scheduler"
	"bizzytrack/backend/internal/adapters/telemetry"
	"bizzytrack/backend/internal/httpapi"
	"bizzytrack/backend/internal/service"
)

var (
	runServer          = run
	loadRuntimeConfig  = httpapi.LoadRuntimeConfigFromEnv
	openRepository     = httpapi.OpenRepository
	exitProcess        = os.Exit
	signalNotify       = signal.Notify
	signalStop         = signal.Stop
	newShutdownContext = context.WithTimeout
)

const (
	shutdownTimeout   = 30 * time.Second
	reconcilerTimeout = 10 * time.Second
)

// envFileVar names an alternative dotenv file. The default is ./.env.
const envFileVar = "BIZZY_ENV_FILE"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitProcess(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile, logLevel, addr string

	cmd := &cobra.Command{
		Use:          "bizzytrack",
		Short:        "Serve the BizzyTrack HTTP API",
		Long:         "Serve the BizzyTrack HTTP API on the store selected by BIZZY_STORE. Flags override the matching BIZZY_* variables.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			config, err := loadRuntimeConfig()
			if err != nil {
				return fmt.Errorf("load runtime config: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				config.LogLevel = logLevel
			}
			if addr != "" {
				config.Addr = addr
			}

			logger, err := logging.NewWithOutput(cmd.ErrOrStderr(), string(config.Mode), config.LogLevel)
			if err != nil {
				return err
			}
			logStartupWarnings(config, logger)

			api, err := assemble(config, logger)
			if err != nil {
				logger.WithError(err).Error("failed to initialize server")
				return err
			}

			err = runServer(config.ListenAddr(), api, func(server *http.Server, listener net.Listener) error {
				return server.Serve(listener)
			}, logger)
			if err != nil {
				logger.WithError(err).Error("server failed")
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default $"+envFileVar+" or ./.env)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override BIZZY_LOG_LEVEL")
	cmd.Flags().StringVar(&addr, "addr", "", "override BIZZY_ADDR")
	return cmd
}

// assemble opens the configured store and builds the API on top of it. The
// returned API owns the store and the reconciler; Close releases both.
func assemble(config httpapi.RuntimeConfig, logger *logrus.Logger) (*httpapi.API, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for idx := len(closers) - 1; idx >= 0; idx-- {
			errs = append(errs, closers[idx]())
		}
		return errors.Join(errs...)
	}

	repo, closeRepo, err := openRepository(config)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", config.Store, err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	metrics := telemetry.NewPrometheusTelemetry()
	svc, err := service.New(repo, metrics, impexp.NewYAMLCodec())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create service: %w", err), closeAll())
	}

	authProvider, err := httpapi.NewAuthProvider(config)
	if err != nil {
		return nil, errors.Join(err, closeAll())
	}

	if schedule := strings.TrimSpace(config.ReconcileSchedule); schedule != "" {
		reconciler, err := scheduler.NewReconciler(schedule, svc, logger)
		if err != nil {
			return nil, errors.Join(err, closeAll())
		}
		reconciler.Start()
		closers = append(closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), reconcilerTimeout)
			defer cancel()
			reconciler.Stop(ctx)
			return nil
		})
	}

	logger.WithFields(logrus.Fields{
		"mode":      config.Mode,
		"store":     config.Store,
		"auth":      config.AuthMode,
		"reconcile": config.ReconcileSchedule,
	}).Info("server assembled")

	return httpapi.NewRouterWithDependencies(httpapi.Dependencies{
		AuthProvider: authProvider,
		Service:      svc,
		Logger:       logger,
		Metrics:      metrics,
		Config:       config,
		Cleanup:      closeAll,
	}), nil
}

func logStartupWarnings(config httpapi.RuntimeConfig, logger logrus.FieldLogger) {
	if !config.Mode.IsDevelopment() {
		return
	}

	logger.Warn("backend is running in development mode")
	if config.AuthMode == httpapi.AuthModeDev {
		logger.Warn("development mode enables header-based dev auth and permissive CORS defaults")
	}
	logger.Warn("do not expose development mode to untrusted networks")
}

// loadEnvFile exports a dotenv file into the process environment without
// overriding variables that are already set. path wins over BIZZY_ENV_FILE;
// a missing default file is fine.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envFileVar))
	}
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func run(addr string, handler http.Handler, start func(*http.Server, net.Listener) error, logger logrus.FieldLogger) error {
	if start == nil {
		return errors.New("start function is required")
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer func() {
		_ = listener.Close()
	}()

	logger.WithField("addr", listener.Addr().String()).Info("bizzytrack backend listening")

	serveErr := make(chan error, 1)
	go func() {
		if startErr := start(server, listener); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
			serveErr <- startErr
			return
		}
		serveErr <- nil
	}()

	quit := make(chan os.Signal, 1)
	signalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signalStop(quit)

	select {
	case err = <-serveErr:
		return errors.Join(err, closeResources(handler))
	case shutdownSignal := <-quit:
		logger.WithField("signal", shutdownSignal.String()).Info("shutdown signal received, draining in-flight requests")
	}

	ctx, cancel := newShutdownContext(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("server forced to shutdown")
	} else {
		logger.Info("server exited gracefully")
	}

	if err := closeResources(handler); err != nil {
		logger.WithError(err).Error("resource cleanup failed")
	} else {
		logger.Info("resource cleanup completed")
	}

	select {
	case err = <-serveErr:
		return err
	case <-ctx.Done():
		logger.WithError(ctx.Err()).Warn("timed out waiting for server goroutine to exit")
	}
	return nil
}

type closer interface {
	Close() error
}

func closeResources(handler http.Handler) error {
	resourceCloser, ok := handler.(closer)
	if !ok {
		return nil
	}
	return resourceCloser.Close()
}
