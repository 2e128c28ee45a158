//go:build !unix

package ytdlp

import "testing"

// assertChildStopped is a no-op where process groups are not used.
func assertChildStopped(t *testing.T, _ string) {
	t.Helper()
}
