//go:build !unix

package proc

import "os/exec"

// configureProcessGroup keeps the default exec.CommandContext behaviour,
// which kills only the direct child.
func configureProcessGroup(cmd *exec.Cmd) {}
