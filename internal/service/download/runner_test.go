package download

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

// TestCommandRunnerCollectsNewFiles tests the directory delta.
func TestCommandRunnerCollectsNewFiles(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "old.mp3"), []byte("x"), 0o600))

	files, err := NewCommandRunner().RunAndCollectOutputs(
		context.Background(),
		"sh",
		[]string{"-c", "mkdir -p album && touch a.mp3 album/b.mp3 c.mp3.part"},
		workDir,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(workDir, "a.mp3"),
		filepath.Join(workDir, "album", "b.mp3"),
	}, files)
}

// TestCommandRunnerFailures tests error classification of the external process.
func TestCommandRunnerFailures(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	runner := NewCommandRunner()

	_, err := runner.RunAndCollectOutputs(
		context.Background(), "sh", []string{"-c", "echo 'quota exceeded' >&2; exit 3"}, t.TempDir())
	require.ErrorIs(t, err, ErrExternalFailed)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = runner.RunAndCollectOutputs(
		context.Background(), "media-grabber-missing-tool", nil, t.TempDir())
	require.ErrorIs(t, err, ErrExternalNotFound)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()

	_, err = runner.RunAndCollectOutputs(ctx, "sh", []string{"-c", "sleep 5; touch late.mp3"}, t.TempDir())
	require.ErrorIs(t, err, ErrExternalTimeout)
	assert.Less(t, time.Since(started), 3*time.Second)
}

// TestTailBuffer tests that only the end of the output is kept.
func TestTailBuffer(t *testing.T) {
	t.Parallel()

	buffer := new(tailBuffer)

	for range maxDiagnosticLength {
		_, _ = buffer.Write([]byte("ab"))
	}

	_, _ = buffer.Write([]byte("END"))

	output := buffer.String()
	assert.Len(t, output, maxDiagnosticLength)
	assert.Equal(t, "END", output[len(output)-3:])
}
