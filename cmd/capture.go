package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCaptureCmd creates the 'capture' subcommand, which performs one run.
func newCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Captures screenshots for every candidate URL",
		Long: `Reads candidate URLs from the configured source (or --url), renders each
one at every configured size, uploads the images and writes their records.
Exits non-zero when the source cannot be read or no screenshot was created.`,
		RunE: runCaptureCommand,
	}
	cmd.Flags().StringSlice("url", nil, "capture only this URL (repeatable); bypasses the configured source")
	return cmd
}

func runCaptureCommand(cmd *cobra.Command, _ []string) error {
	runner, err := resolveRunner(cmd.Context())
	if err != nil {
		return err
	}
	defer runner.Close()

	if err := runner.Run(cmd.Context()); err != nil {
		if errors.Is(err, context.Canceled) {
			zap.L().Warn("capture run canceled")
		}
		return fmt.Errorf("capture: %w", err)
	}
	zap.L().Info("capture command finished")
	return nil
}
