//go:build unix

package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
)

func TestExecRunner_Run(t *testing.T) {
	r := NewExecRunner(arbor.NewLogger())

	result, err := r.Run(context.Background(), interfaces.Command{
		Args: []string{"sh", "-c", "echo out; echo err >&2; exit 0"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
}

func TestExecRunner_RunNonZeroExit(t *testing.T) {
	r := NewExecRunner(arbor.NewLogger())

	result, err := r.Run(context.Background(), interfaces.Command{Args: []string{"sh", "-c", "exit 3"}})
	require.NoError(t, err, "non-zero exit is reported through the result")
	assert.Equal(t, 3, result.ExitCode)
}

func TestExecRunner_RunDir(t *testing.T) {
	dir := t.TempDir()
	r := NewExecRunner(arbor.NewLogger())

	result, err := r.Run(context.Background(), interfaces.Command{Args: []string{"pwd"}, Dir: dir})
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(result.Stdout))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecRunner_RunTimeout(t *testing.T) {
	r := NewExecRunner(arbor.NewLogger())

	start := time.Now()
	_, err := r.Run(context.Background(), interfaces.Command{
		Args:    []string{"sleep", "10"},
		Timeout: 100 * time.Millisecond,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunner_RunMissingProgram(t *testing.T) {
	r := NewExecRunner(arbor.NewLogger())

	result, err := r.Run(context.Background(), interfaces.Command{Args: []string{"vigil-no-such-program"}})
	assert.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)

	_, err = r.Run(context.Background(), interfaces.Command{})
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestExecRunner_StartDetached(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "started")
	r := NewExecRunner(arbor.NewLogger())

	pid, err := r.Start(context.Background(), interfaces.Command{
		Args: []string{"sh", "-c", "touch started"},
		Dir:  dir,
	})
	require.NoError(t, err)
	assert.Positive(t, pid)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestExecRunner_StartErrors(t *testing.T) {
	r := NewExecRunner(arbor.NewLogger())

	_, err := r.Start(context.Background(), interfaces.Command{Args: []string{"vigil-no-such-program"}})
	assert.Error(t, err)

	_, err = r.Start(context.Background(), interfaces.Command{Args: []string{""}})
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestDryRunRunner(t *testing.T) {
	dir := t.TempDir()
	r := NewDryRunRunner(arbor.NewLogger())

	result, err := r.Run(context.Background(), interfaces.Command{Args: []string{"sh", "-c", "touch ran"}, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	_, err = r.Start(context.Background(), interfaces.Command{Args: []string{"sh", "-c", "touch started"}, Dir: dir})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "dry run executes nothing")
}
