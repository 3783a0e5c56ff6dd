//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProcess puts drillpadd in its own process group so it
// outlives the shell that ran 'drillpad start'
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
