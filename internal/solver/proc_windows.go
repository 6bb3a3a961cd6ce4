//go:build windows

package solver

import (
	"os"
	"os/exec"
)

func configureSysProc(cmd *exec.Cmd) {}

// signalGracefully has no soft option on Windows; Kill is the stop signal.
func signalGracefully(p *os.Process) {
	if p == nil {
		return
	}
	_ = p.Kill()
}

func killHard(p *os.Process) {
	if p == nil {
		return
	}
	_ = p.Kill()
}
