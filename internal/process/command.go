package process

import (
	"context"
	"os/exec"
	"time"
)

// WaitDelay is how long output pipes may stay open after the process group is killed.
const WaitDelay = 5 * time.Second

// Command prepares name with args bound to ctx. The process runs in its own group,
// and the whole group is killed when ctx is done.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = WaitDelay
	configureGroup(cmd)

	return cmd
}
