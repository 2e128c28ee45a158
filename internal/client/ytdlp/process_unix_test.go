//go:build unix

package ytdlp

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// assertChildStopped checks that the pid written to pidFile no longer runs.
func assertChildStopped(t *testing.T, pidFile string) {
	t.Helper()

	data, err := os.ReadFile(pidFile) //nolint:gosec // Test file.
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		err := unix.Kill(pid, 0)
		if errors.Is(err, unix.ESRCH) {
			return true
		}

		// An unreaped zombie no longer runs.
		stat, readErr := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")

		return readErr == nil && strings.Contains(string(stat), ") Z ")
	}, 2*time.Second, 20*time.Millisecond, "child %d survived the deadline", pid)
}
