package solver

import "sync/atomic"

// CancelFlag is the advisory cancellation signal. It is polled, not
// preemptive: the supervisor honors it on its next monitoring tick and before
// each retry, while cleanup already in flight runs to completion.
type CancelFlag struct {
	flag atomic.Bool
}

// Trigger requests cancellation. Idempotent.
func (f *CancelFlag) Trigger() {
	f.flag.Store(true)
}

// Requested reports whether cancellation has been requested.
func (f *CancelFlag) Requested() bool {
	return f.flag.Load()
}
