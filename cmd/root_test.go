package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webscreenshot/internal/config"
)

type fakeRunner struct {
	runErr error
	ran    bool
	closed bool
}

func (f *fakeRunner) Run(context.Context) error {
	f.ran = true
	return f.runErr
}

func (f *fakeRunner) Close() { f.closed = true }

func stubRunner(t *testing.T, runner *fakeRunner, got *config.Config) {
	t.Helper()
	orig := newRunner
	newRunner = func(_ context.Context, cfg config.Config, _ *zap.Logger) (Runner, error) {
		*got = cfg
		return runner, nil
	}
	t.Cleanup(func() { newRunner = orig })
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "storage:\n  kind: memory\nrecords:\n  kind: memory\nsource:\n  kind: static\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCaptureCommandRunsAndCloses(t *testing.T) {
	runner := &fakeRunner{}
	var cfg config.Config
	stubRunner(t, runner, &cfg)

	root := newRootCmd()
	root.SetArgs([]string{"capture", "--config", writeConfig(t), "--loglevel", "debug",
		"--url", "https://a.example/", "--url", "https://b.example/"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.True(t, runner.ran)
	assert.True(t, runner.closed)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, cfg.Run.URLs)
	assert.Equal(t, config.StorageMemory, cfg.Storage.Kind)
}

func TestCaptureCommandReportsRunError(t *testing.T) {
	runner := &fakeRunner{runErr: errors.New("no screenshots were created")}
	var cfg config.Config
	stubRunner(t, runner, &cfg)

	root := newRootCmd()
	root.SetArgs([]string{"capture", "--config", writeConfig(t), "--url", "https://a.example/"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "capture: no screenshots were created")
	assert.True(t, runner.closed)
}

func TestCaptureCommandRejectsInvalidConfig(t *testing.T) {
	runner := &fakeRunner{}
	var cfg config.Config
	stubRunner(t, runner, &cfg)

	root := newRootCmd()
	// static source without --url fails validation
	root.SetArgs([]string{"capture", "--config", writeConfig(t)})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "load config")
	assert.False(t, runner.ran)
}

func TestResolveRunnerRequiresApp(t *testing.T) {
	_, err := resolveRunner(context.Background())
	require.Error(t, err)
}
