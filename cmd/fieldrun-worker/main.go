// fieldrun-worker executes the phases of one WorkUnit inside its own process
// so a hung solver can never freeze the presentation side. Progress events go
// to stdout as newline-delimited JSON; the driver pumps them into its queue.
// SIGINT or SIGTERM is the cancellation entry point, observed within one
// polling interval.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fieldrun/internal/cache"
	"fieldrun/internal/config"
	"fieldrun/internal/driver"
	"fieldrun/internal/logbook"
	"fieldrun/internal/progress"
	"fieldrun/internal/solver"
	"fieldrun/internal/unit"
)

const (
	exitFailure   = 1
	exitCancelled = 3
)

func main() {
	benchFile := flag.String("bench", "fieldrun.yaml", "path to the bench file")
	unitID := flag.String("unit", "", "work unit to execute")
	force := flag.Bool("force", false, "bypass the cache and rerun every phase")
	flag.Parse()

	if strings.TrimSpace(*unitID) == "" {
		die("--unit is required")
	}
	cfg, err := config.Load(*benchFile)
	if err != nil {
		die("load bench: %v", err)
	}
	if err := cfg.InitStateDir(); err != nil {
		die("init state dir: %v", err)
	}
	log, err := logbook.Open(cfg.LogPath())
	if err != nil {
		die("open logbook: %v", err)
	}

	var target unit.WorkUnit
	found := false
	for _, u := range cfg.WorkUnits() {
		if u.ID == *unitID {
			target = u
			found = true
			break
		}
	}
	if !found {
		die("unknown unit %q", *unitID)
	}
	rawParams, _ := cfg.UnitParams(target.ID)

	// The registry outlives everything else in this process: whatever is
	// still registered when we exit gets swept.
	registry := solver.NewRegistry(log)
	defer registry.Sweep()

	cancel := &solver.CancelFlag{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("worker: stop signal observed for %s", target.ID)
		cancel.Trigger()
	}()

	history, err := progress.LoadHistory(cfg.HistoryPath())
	if err != nil {
		log.Warnf("worker: estimate history unreadable, starting fresh: %v", err)
		history = progress.NewHistory()
	}

	encoder := progress.NewEncoder(os.Stdout)
	emit := func(e progress.Event) {
		if err := encoder.Encode(e); err != nil {
			log.Errorf("worker: emit event: %v", err)
		}
	}

	sup := solver.New(
		solver.Config{
			PollInterval:   cfg.Supervision.PollInterval.Std(),
			RespawnPause:   cfg.Supervision.RespawnPause.Std(),
			RetryStopGrace: cfg.Supervision.RetryStopGrace.Std(),
			FinalStopGrace: cfg.Supervision.FinalStopGrace.Std(),
			WarnEvery:      cfg.Supervision.WarnEvery,
		},
		registry, log, cancel,
		solver.WithWaker(solver.NewWaker(cfg.Solver.KeepAwake, log)),
	)
	runner := driver.NewRunner(cfg, cache.New(), sup, driver.DefaultHooks(), history, log, emit, cancel)

	runErr := runner.RunUnit(target, cache.Params(rawParams), *force)

	if err := history.Save(cfg.HistoryPath()); err != nil {
		log.Warnf("worker: save estimate history: %v", err)
	}
	if swept := registry.Sweep(); swept > 0 {
		log.Warnf("worker: exit sweep killed %d orphaned process(es)", swept)
	}

	switch {
	case errors.Is(runErr, driver.ErrCancelled):
		log.Infof("worker: %s cancelled", target.ID)
		os.Exit(exitCancelled)
	case runErr != nil:
		log.Errorf("worker: %s failed: %v", target.ID, runErr)
		fmt.Fprintf(os.Stderr, "fieldrun-worker: %v\n", runErr)
		os.Exit(exitFailure)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fieldrun-worker: "+format+"\n", args...)
	os.Exit(exitFailure)
}
