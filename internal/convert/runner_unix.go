//go:build unix

package convert

import (
	"os/exec"
	"syscall"
)

func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// negative pid signals the whole group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
