package pending

import (
	"context"
	"time"

	"github.com/clustercore/lrmbridge/pkg/op"
)

// CancelOutcome is the executor's reply to a cancel request (§5
// "Cancellation and timeouts").
type CancelOutcome int

const (
	// CancelCancelled: the operation was cancelled immediately.
	CancelCancelled CancelOutcome = iota
	// CancelNothingToCancel: the operation had already completed.
	CancelNothingToCancel
	// CancelPending: cancel accepted; a completion event will still follow.
	CancelPending
)

// Canceller is the slice of the executor capability this registry
// consumes to cancel in-flight operations (§6 "cancel-op").
type Canceller interface {
	CancelOp(ctx context.Context, desc op.ResourceDescriptor, callID int) (CancelOutcome, error)
}

// Op is a registered in-flight operation (§3 PendingOp).
type Op struct {
	RscID          string
	OpKey          string
	CallID         int
	Interval       int
	RemoveOnCancel bool      // request CIB-side history pruning when cancellation completes
	Cancelled      bool      // advisory only: completion relies on the arriving status=cancelled event, not this flag
	DispatchedAt   time.Time // submission time, for dispatch-to-completion latency metrics
}

// StopID returns the registry key for this entry.
func (p Op) StopID() string {
	return op.Operation{RscID: p.RscID, Result: op.Result{CallID: p.CallID}}.StopID()
}

// Registry is the pending-op registry. It is mutated only from the
// bridge's single event loop (§5); no internal lock is taken.
type Registry struct {
	entries map[string]*Op
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Op)}
}

// Insert registers p after the executor has returned a positive call id.
func (r *Registry) Insert(p Op) {
	r.entries[p.StopID()] = &p
}

// Lookup returns the pending record for stopID, if any.
func (r *Registry) Lookup(stopID string) (*Op, bool) {
	e, ok := r.entries[stopID]
	return e, ok
}

// Remove deletes the entry for stopID, on successful completion or
// confirmed cancellation.
func (r *Registry) Remove(stopID string) {
	delete(r.entries, stopID)
}

// MarkRemoveOnCancel sets the RemoveOnCancel flag on stopID's entry, if
// present.
func (r *Registry) MarkRemoveOnCancel(stopID string) {
	if e, ok := r.entries[stopID]; ok {
		e.RemoveOnCancel = true
	}
}

// CountNonRecurring returns the number of pending one-shot (interval ==
// 0) operations — used by shutdown quiescence (§4.9).
func (r *Registry) CountNonRecurring() int {
	n := 0
	for _, e := range r.entries {
		if e.Interval == 0 {
			n++
		}
	}
	return n
}

// NonRecurring returns the set of pending one-shot entries, for
// diagnostic dumps during shutdown.
func (r *Registry) NonRecurring() []Op {
	var out []Op
	for _, e := range r.entries {
		if e.Interval == 0 {
			out = append(out, *e)
		}
	}
	return out
}

// Recurring returns the set of pending recurring entries for rscID.
func (r *Registry) Recurring(rscID string) []Op {
	var out []Op
	for _, e := range r.entries {
		if e.RscID == rscID && e.Interval > 0 {
			out = append(out, *e)
		}
	}
	return out
}

// CancelByOpKey iterates entries matching rscID and opKey, requests
// cancellation from c for each, and removes those whose cancel
// completes immediately (Cancelled or NothingToCancel). An entry whose
// cancel reports Pending is left in place: the later asynchronous
// completion is what removes it (§4.3, §9 open question). Returns the
// stop-ids that were removed.
func (r *Registry) CancelByOpKey(ctx context.Context, c Canceller, rscID, opKey string, desc op.ResourceDescriptor) ([]string, error) {
	var removed []string
	for stopID, e := range r.entries {
		if e.RscID != rscID || e.OpKey != opKey {
			continue
		}
		outcome, err := c.CancelOp(ctx, desc, e.CallID)
		if err != nil {
			return removed, err
		}
		switch outcome {
		case CancelCancelled, CancelNothingToCancel:
			delete(r.entries, stopID)
			removed = append(removed, stopID)
		case CancelPending:
			e.Cancelled = true
		}
	}
	return removed, nil
}

// DrainAllRecurring cancels and removes every recurring op registered
// against any resource — used by shutdown quiescence (§4.9 step 2),
// which must silence recurring monitors cluster-wide, not just for one
// resource.
func (r *Registry) DrainAllRecurring(ctx context.Context, c Canceller) ([]string, error) {
	var removed []string
	for stopID, e := range r.entries {
		if e.Interval == 0 {
			continue
		}
		outcome, err := c.CancelOp(ctx, op.ResourceDescriptor{ID: e.RscID}, e.CallID)
		if err != nil {
			return removed, err
		}
		switch outcome {
		case CancelCancelled, CancelNothingToCancel:
			delete(r.entries, stopID)
			removed = append(removed, stopID)
		case CancelPending:
			e.Cancelled = true
		}
	}
	return removed, nil
}

// DrainRecurringFor cancels and removes every recurring op registered
// against rscID — used before a stop/promote/demote/migrate so the
// prior monitoring regime does not race the new action (§4.3, §4.6
// step 2, §4.9 step 2).
func (r *Registry) DrainRecurringFor(ctx context.Context, c Canceller, rscID string, desc op.ResourceDescriptor) ([]string, error) {
	var removed []string
	for stopID, e := range r.entries {
		if e.RscID != rscID || e.Interval == 0 {
			continue
		}
		outcome, err := c.CancelOp(ctx, desc, e.CallID)
		if err != nil {
			return removed, err
		}
		switch outcome {
		case CancelCancelled, CancelNothingToCancel:
			delete(r.entries, stopID)
			removed = append(removed, stopID)
		case CancelPending:
			e.Cancelled = true
		}
	}
	return removed, nil
}
