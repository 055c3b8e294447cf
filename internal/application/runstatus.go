package application

import (
	"sync"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
)

// RunStatusTracker records whether any test in the current run has already
// failed. It is shared by every suite instance in the process and gates
// whether their setup/teardown work proceeds at all.
//
// The tracker is fed by a single signal path: an outcome listener observing
// every test result in the run (OnTestOutcome). The lifecycle's per-instance
// hasFailed flag is a separate signal and is deliberately never reconciled
// with this one.
type RunStatusTracker struct {
	mu     sync.Mutex
	failed bool
}

// NewRunStatusTracker creates a tracker in its initial NOT_FAILED state.
func NewRunStatusTracker() *RunStatusTracker {
	return &RunStatusTracker{}
}

// HasFailures reports whether any test in this run has failed.
func (t *RunStatusTracker) HasFailures() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// MarkFailed transitions the run into its failed state. The transition is
// terminal for the run; only Reset at the start of a new run clears it.
func (t *RunStatusTracker) MarkFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
}

// Reset clears the flag. Meant to be called once, at run start.
func (t *RunStatusTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = false
}

// OnTestOutcome observes a test result and marks the run failed on the first
// FAILURE. The runner glue invokes it for every finished test.
func (t *RunStatusTracker) OnTestOutcome(outcome domain.TestOutcome) {
	if outcome.Status == domain.StatusFailure {
		t.MarkFailed()
	}
}
