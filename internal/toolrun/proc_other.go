//go:build !windows

package toolrun

import "os/exec"

func hideWindow(cmd *exec.Cmd) {}
