// Package cmd defines and implements the CLI commands for the webscreenshot executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/app"
	"github.com/JakeFAU/webscreenshot/internal/config"
	"github.com/JakeFAU/webscreenshot/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the Runner in the context.
type appKeyType string

const appKey appKeyType = "app"

// Runner is what commands need from the application. Tests inject a fake.
type Runner interface {
	Run(ctx context.Context) error
	Close()
}

// newRunner is the application factory. It is a variable so tests can
// replace it.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return appRunner{a}, nil
}

type appRunner struct{ *app.App }

func (r appRunner) Run(ctx context.Context) error {
	_, err := r.App.Run(ctx)
	return err
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webscreenshot",
		Short: "Captures and stores screenshots of a list of websites.",
		Long: `webscreenshot renders every candidate URL at a fixed set of viewport
sizes, stores each image under a content-derived key, makes it public
and records its metadata.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			runner, err := newRunner(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, runner))
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = zap.L().Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().String("loglevel", "", "log level: error, warn, info or debug")

	cmd.AddCommand(newCaptureCmd())
	return cmd
}

func resolveRunner(ctx context.Context) (Runner, error) {
	runner, ok := ctx.Value(appKey).(Runner)
	if !ok || runner == nil {
		return nil, errors.New("application services not initialized")
	}
	return runner, nil
}

// Execute is the main entry point. It returns the process exit code.
func Execute() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
