//go:build !unix

package convert

import "os/exec"

func killGroupOnCancel(cmd *exec.Cmd) {}
