//go:build unix

package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// isAlive reports whether pid is a running, non-zombie process.
func isAlive(pid int) bool {
	if err := unix.Kill(pid, 0); err != nil {
		return !errors.Is(err, unix.ESRCH)
	}

	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return !errors.Is(err, os.ErrNotExist) || !dirExists("/proc/self")
	}

	// The state follows the parenthesized command name.
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))

	return len(fields) == 0 || fields[0] != "Z"
}

func dirExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

// readPID waits for the script to publish its child pid.
func readPID(t *testing.T, path string) int {
	t.Helper()

	var pid int

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path) //nolint:gosec // Test file.
		if err != nil {
			return false
		}

		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))

		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	return pid
}

// TestCommandKillsChildrenOnTimeout tests that grandchildren die with the process.
func TestCommandKillsChildrenOnTimeout(t *testing.T) {
	t.Parallel()

	pidFile := filepath.Join(t.TempDir(), "child.pid")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := Command(ctx, "sh", "-c", `sleep 30 & echo $! > "$1"; wait`, "sh", pidFile)

	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)

	require.Error(t, err)
	require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second, "output pipes stayed open after the deadline")

	child := readPID(t, pidFile)

	assert.Eventually(t, func() bool {
		return !isAlive(child)
	}, 2*time.Second, 20*time.Millisecond, "child %d survived the deadline", child)
}

// TestCommandFinishedProcess tests that a process exiting on its own is not disturbed.
func TestCommandFinishedProcess(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	output, err := Command(ctx, "sh", "-c", "echo done").Output()
	cancel()

	require.NoError(t, err)
	assert.Equal(t, "done\n", string(output))
}
