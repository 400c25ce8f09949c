package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bizzytrack/backend/internal/adapters/impexp"
	"bizzytrack/backend/internal/adapters/logging"
	"bizzytrack/backend/internal/adapters/telemetry"
	"bizzytrack/backend/internal/httpapi"
	"bizzytrack/backend/internal/service"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env carries what every subcommand needs. Tests replace loadConfig.
type env struct {
	logLevel   string
	loadConfig func() (httpapi.RuntimeConfig, error)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithEnv(&env{loadConfig: httpapi.LoadRuntimeConfigFromEnv})
}

func newRootCmdWithEnv(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bizzyctl",
		Short:        "Operator tasks for the bizzytrack backend",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "override BIZZY_LOG_LEVEL")
	cmd.AddCommand(migrateCmd(e), ledgerCmd(e), tokenCmd(e))
	return cmd
}

func (e *env) config() (httpapi.RuntimeConfig, error) {
	config, err := e.loadConfig()
	if err != nil {
		return httpapi.RuntimeConfig{}, fmt.Errorf("load config: %w", err)
	}
	if e.logLevel != "" {
		config.LogLevel = e.logLevel
	}
	return config, nil
}

func (e *env) logger(cmd *cobra.Command, config httpapi.RuntimeConfig) (*logrus.Logger, error) {
	return logging.NewWithOutput(cmd.ErrOrStderr(), string(config.Mode), config.LogLevel)
}

// withService opens the configured store for the duration of fn.
func (e *env) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service, logger *logrus.Logger) error) (err error) {
	config, err := e.config()
	if err != nil {
		return err
	}
	logger, err := e.logger(cmd, config)
	if err != nil {
		return err
	}

	repo, closeRepo, err := httpapi.OpenRepository(config)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		defer func() {
			err = errors.Join(err, closeRepo())
		}()
	}

	svc, err := service.New(repo, telemetry.NewPrometheusTelemetry(), impexp.NewYAMLCodec())
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return fn(cmd.Context(), svc, logger)
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
