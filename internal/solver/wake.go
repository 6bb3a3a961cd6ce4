package solver

import (
	"os/exec"
	"runtime"
	"strings"
	"time"

	"fieldrun/internal/logbook"
)

const wakeTimeout = 5 * time.Second

// Waker runs the "keep system awake" helper: once before the first solve
// attempt, and opportunistically when a later attempt first shows progress.
// Failure is logged, never fatal; a host that dozes off mid-solve is an
// annoyance, not a correctness problem.
type Waker struct {
	command []string
	log     *logbook.Logbook
	run     func(name string, args ...string) error
}

// NewWaker builds a waker. command overrides the per-OS default; empty means
// use the default, which may itself be empty on platforms with no helper.
func NewWaker(command []string, log *logbook.Logbook) *Waker {
	if len(command) == 0 {
		command = defaultWakeCommand()
	}
	return &Waker{
		command: command,
		log:     log,
		run: func(name string, args ...string) error {
			cmd := exec.Command(name, args...)
			if err := cmd.Start(); err != nil {
				return err
			}
			done := make(chan error, 1)
			go func() { done <- cmd.Wait() }()
			select {
			case err := <-done:
				return err
			case <-time.After(wakeTimeout):
				_ = cmd.Process.Kill()
				return <-done
			}
		},
	}
}

func defaultWakeCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		// Assert user activity so the display/system idle timers reset.
		return []string{"caffeinate", "-u", "-t", "1"}
	default:
		return nil
	}
}

// Invoke runs the helper best-effort.
func (w *Waker) Invoke(reason string) {
	if len(w.command) == 0 {
		w.log.Infof("wake: no keep-awake helper configured (%s)", reason)
		return
	}
	if err := w.run(w.command[0], w.command[1:]...); err != nil {
		w.log.Warnf("wake: %s failed (%s): %v", strings.Join(w.command, " "), reason, err)
		return
	}
	w.log.Infof("wake: kept system awake (%s)", reason)
}
