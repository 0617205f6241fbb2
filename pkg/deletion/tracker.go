package deletion

import (
	"github.com/clustercore/lrmbridge/pkg/op"
)

// Entry is the original delete request, held until the executor
// confirms the deletion completed.
type Entry struct {
	Desc          op.ResourceDescriptor
	TransitionKey string
	RequestedBy   string // originating system/host, for the deferred direct ack
}

// Tracker maps resource id to its deferred deletion Entry. Mutated only
// from the bridge's single event loop (§5); it holds no internal lock.
type Tracker struct {
	entries map[string]Entry
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: make(map[string]Entry)}
}

// Register records e as awaiting the executor's asynchronous
// "resource deleted" signal.
func (t *Tracker) Register(e Entry) {
	t.entries[e.Desc.ID] = e
}

// IsPending reports whether rscID has a deferred deletion outstanding.
func (t *Tracker) IsPending(rscID string) bool {
	_, ok := t.entries[rscID]
	return ok
}

// Resolve removes and returns rscID's deferred entry, if any — called
// once the executor signals the resource backend was purged.
func (t *Tracker) Resolve(rscID string) (Entry, bool) {
	e, ok := t.entries[rscID]
	if ok {
		delete(t.entries, rscID)
	}
	return e, ok
}
