package history

import (
	"github.com/clustercore/lrmbridge/pkg/op"
)

// Entry is the per-resource aggregate (§3 HistoryEntry).
type Entry struct {
	Descriptor op.ResourceDescriptor
	Last       *op.Operation // last non-recurring operation that ran to completion
	Failed     *op.Operation // last failed operation; sticky across subsequent successes
	Recurring  []op.Operation // currently-registered recurring operations, newest op-key first; a repeat completion keeps its op-key's position
}

// recurringIndex returns the slice index of the entry matching e's
// op-key, or -1.
func (e *Entry) recurringIndex(opKey string) int {
	for i := range e.Recurring {
		if e.Recurring[i].OpKey() == opKey {
			return i
		}
	}
	return -1
}

// Cache maps resource id to Entry. Mutated only from the bridge's
// single event loop (§5); no internal lock is held.
type Cache struct {
	entries map[string]*Entry
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Get returns the entry for rscID, if any.
func (c *Cache) Get(rscID string) (*Entry, bool) {
	e, ok := c.entries[rscID]
	return e, ok
}

// ensure returns (creating if necessary) the entry for rscID.
func (c *Cache) ensure(rscID string, desc op.ResourceDescriptor) *Entry {
	e, ok := c.entries[rscID]
	if !ok {
		e = &Entry{Descriptor: desc}
		c.entries[rscID] = e
	}
	return e
}

// Purge removes rscID's entry unconditionally — the executor has told
// us its backend record was purged (§4.4 first bullet).
func (c *Cache) Purge(rscID string) {
	delete(c.entries, rscID)
}

// Clear erases rscID's Failed and Last slots and its recurring list
// explicitly (deletion or reprobe, §3); the entry itself is kept.
func (c *Cache) Clear(rscID string) {
	if e, ok := c.entries[rscID]; ok {
		e.Failed = nil
		e.Last = nil
		e.Recurring = nil
	}
}

// Record applies a completed operation to the cache per §4.4:
//
//   - a resource-purged event removes the entry entirely (handled by
//     the caller via Purge before calling Record is also acceptable;
//     Record itself does not inspect a "deleted" flag so that callers
//     decide purge vs. record explicitly)
//   - notify completions are ignored
//   - cancelled completions are not recorded
//   - failures overwrite the Failed slot
//   - successful non-recurring completions overwrite the Last slot
//   - recurring completions are prepended to the recurring list, or
//     replace in place any existing entry with the same (verb, interval)
//   - a successful non-recurring, non-monitor completion flushes the
//     recurring list (the prior monitoring regime is invalidated)
func (c *Cache) Record(desc op.ResourceDescriptor, o op.Operation) {
	if o.Verb == op.VerbNotify {
		return
	}
	if o.Result.Status == op.StatusCancelled {
		return
	}

	e := c.ensure(desc.ID, desc)

	if o.IsFailure() {
		failedCopy := o
		e.Failed = &failedCopy
	}

	if o.IsRecurring() {
		idx := e.recurringIndex(o.OpKey())
		if idx >= 0 {
			e.Recurring[idx] = o
		} else {
			e.Recurring = append([]op.Operation{o}, e.Recurring...)
		}
		return
	}

	if o.Succeeded() {
		lastCopy := o
		e.Last = &lastCopy
		if !o.IsStatusVerb() {
			e.Recurring = nil
		}
	}
}

// IsActive reports whether rscID is active: it has a Last entry, and
// that entry is not a successful stop, successful migrate, or a
// monitor returning "not running" (§4.4, §9 design note on migrate —
// preserved verbatim: a stricter check would need DC cooperation).
func (c *Cache) IsActive(rscID string) bool {
	e, ok := c.entries[rscID]
	if !ok || e.Last == nil {
		return false
	}
	return !e.Last.StoppedResource()
}

// ActiveResources returns the ids of every resource the cache
// considers active, for shutdown diagnostics (§4.9 step 4).
func (c *Cache) ActiveResources() []string {
	var out []string
	for rscID := range c.entries {
		if c.IsActive(rscID) {
			out = append(out, rscID)
		}
	}
	return out
}
