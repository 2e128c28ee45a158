//go:build !unix

package process

import "os/exec"

// configureGroup keeps the default behavior, which kills only the direct child.
func configureGroup(_ *exec.Cmd) {}
