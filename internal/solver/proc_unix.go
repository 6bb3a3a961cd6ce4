//go:build !windows

package solver

import (
	"os"
	"os/exec"
	"syscall"
)

// configureSysProc places the solver in its own process group so teardown can
// target the solver and any children it forked in one signal.
func configureSysProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGracefully asks the solver's process group to terminate.
func signalGracefully(p *os.Process) {
	if p == nil || p.Pid <= 0 {
		return
	}
	if pgid, err := syscall.Getpgid(p.Pid); err == nil && pgid > 0 {
		_ = syscall.Kill(-pgid, syscall.SIGTERM)
		return
	}
	_ = p.Signal(syscall.SIGTERM)
}

// killHard force-kills the solver's full process group.
func killHard(p *os.Process) {
	if p == nil || p.Pid <= 0 {
		return
	}
	if pgid, err := syscall.Getpgid(p.Pid); err == nil && pgid > 0 {
		// Negative PGID targets the whole group (solver + spawned children).
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = p.Kill()
}
