//go:build !linux

package process

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}

func killProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// os.ErrProcessDone means it already exited.
	_ = cmd.Process.Kill()
}
