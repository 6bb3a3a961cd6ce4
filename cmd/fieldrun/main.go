// fieldrun is the driver CLI: it walks the bench units, spawns one worker
// process per unit, and shows the worker's progress stream either in the TUI
// or as plain log lines. Pressing q (or ctrl+c) in the TUI signals the
// worker, which stops after its in-flight cleanup.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fieldrun/internal/config"
	"fieldrun/internal/progress"
	"fieldrun/internal/tui"
	"fieldrun/internal/unit"
)

const workerExitCancelled = 3

func main() {
	benchFile := flag.String("bench", "fieldrun.yaml", "path to the bench file")
	only := flag.String("unit", "", "run only this unit")
	force := flag.Bool("force", false, "bypass the cache and rerun every phase")
	plain := flag.Bool("plain", false, "log events instead of the TUI")
	workerPath := flag.String("worker", "", "path to the fieldrun-worker binary")
	flag.Parse()

	cfg, err := config.Load(*benchFile)
	if err != nil {
		die("load bench: %v", err)
	}
	if err := cfg.InitStateDir(); err != nil {
		die("init state dir: %v", err)
	}
	worker, err := resolveWorker(*workerPath)
	if err != nil {
		die("%v", err)
	}

	failed := 0
	for _, u := range cfg.WorkUnits() {
		if *only != "" && u.ID != *only {
			continue
		}
		cancelled, err := superviseUnit(worker, *benchFile, u, *force, *plain)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fieldrun: %s: %v\n", u.ID, err)
			failed++
		}
		if cancelled {
			fmt.Println("fieldrun: stop requested, skipping remaining units")
			break
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// superviseUnit runs one worker process and consumes its event stream.
func superviseUnit(worker, benchFile string, u unit.WorkUnit, force, plain bool) (cancelled bool, err error) {
	args := []string{"-bench", benchFile, "-unit", u.ID}
	if force {
		args = append(args, "-force")
	}
	cmd := exec.Command(worker, args...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, fmt.Errorf("worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("spawn worker: %w", err)
	}

	queue := progress.NewQueue()
	pumpDone := make(chan error, 1)
	go func() {
		pumpErr := progress.Pump(stdout, queue)
		// Guarantee the consumer unblocks even if the worker died without a
		// finished event; a duplicate finished is ignored after the first.
		queue.Emit(progress.Finished())
		pumpDone <- pumpErr
	}()

	stopWorker := func() {
		_ = cmd.Process.Signal(os.Interrupt)
	}
	if plain {
		consumePlain(queue, pumpDone)
	} else {
		app := tui.New(queue, u.ID, stopWorker)
		if _, uiErr := tea.NewProgram(app).Run(); uiErr != nil {
			// Fall back to draining so the worker is not abandoned.
			fmt.Fprintf(os.Stderr, "fieldrun: tui failed, continuing headless: %v\n", uiErr)
			consumePlain(queue, pumpDone)
		}
	}
	if pumpErr := <-pumpDone; pumpErr != nil {
		fmt.Fprintf(os.Stderr, "fieldrun: event stream from %s: %v\n", u.ID, pumpErr)
	}

	waitErr := cmd.Wait()
	if waitErr == nil {
		return false, nil
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok && exitErr.ExitCode() == workerExitCancelled {
		return true, nil
	}
	return false, fmt.Errorf("worker: %w", waitErr)
}

// consumePlain drains the queue on the same cadence the TUI would, printing
// one line per meaningful event.
func consumePlain(queue *progress.Queue, pumpDone <-chan error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		<-ticker.C
		for _, e := range queue.Drain() {
			switch e.Kind {
			case progress.KindStatus:
				fmt.Println(e.Message)
			case progress.KindOverall:
				fmt.Printf("overall %3.0f%%\n", e.Fraction()*100)
			case progress.KindStage:
				fmt.Printf("%s %d/%d\n", e.Name, e.Current, e.Total)
			case progress.KindStop:
				fmt.Println("stopping")
			case progress.KindFinished:
				return
			}
		}
	}
}

// resolveWorker finds the worker binary: explicit flag first, then next to
// this executable, then PATH.
func resolveWorker(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	name := "fieldrun-worker"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	if found, err := exec.LookPath(name); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("cannot locate %s (set --worker)", name)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fieldrun: "+format+"\n", args...)
	os.Exit(1)
}
