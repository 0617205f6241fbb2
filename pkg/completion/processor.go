package completion

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/clustercore/lrmbridge/pkg/cib"
	"github.com/clustercore/lrmbridge/pkg/deletion"
	"github.com/clustercore/lrmbridge/pkg/dispatch"
	"github.com/clustercore/lrmbridge/pkg/history"
	"github.com/clustercore/lrmbridge/pkg/metrics"
	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
	"github.com/clustercore/lrmbridge/pkg/reload"
	"github.com/clustercore/lrmbridge/pkg/restart"
)

// Processor implements the §4.7 completion contract.
type Processor struct {
	CIB                   cib.Client
	Pending               *pending.Registry
	History               *history.Cache
	Reload                *reload.Cache
	Deletions             *deletion.Tracker
	Log                   logr.Logger
	FeatureSetThreshold   string
	PeerFeatureSet        string
	UpdateCallbackTimeout time.Duration
	// ReArm re-triggers the FSM so a stalled shutdown can progress
	// (§4.7 step 8). May be nil.
	ReArm func()
	// Metrics, if non-nil, receives completion counts and
	// dispatch-to-completion latency.
	Metrics *metrics.Recorder

	mu             sync.Mutex
	pendingUpdates map[int]bool
}

// New constructs a Processor and installs its CIB update-completion
// sink. The zero value of Processor is not usable; always go through
// New so the watchdog bookkeeping is wired up.
func New(c cib.Client, reg *pending.Registry, hist *history.Cache, rel *reload.Cache, del *deletion.Tracker, log logr.Logger) *Processor {
	p := &Processor{
		CIB:            c,
		Pending:        reg,
		History:        hist,
		Reload:         rel,
		Deletions:      del,
		Log:            log,
		pendingUpdates: make(map[int]bool),
	}
	if c != nil {
		c.OnUpdateComplete(p.onCIBUpdateComplete)
	}
	return p
}

// Process folds a single executor completion event through the §4.7
// contract and returns the direct ack owed to the requester, if any.
func (p *Processor) Process(ctx context.Context, desc op.ResourceDescriptor, o op.Operation) (*dispatch.Ack, error) {
	o.Result.Status = NormalizeStatus(o.Result.Status, o.Result.ReturnCode)

	if o.Deleted {
		return p.processDeletion(ctx, desc, o), nil
	}

	opKey := o.OpKey()
	stopID := o.StopID()
	pendingRec, found := p.Pending.Lookup(stopID)

	if found {
		p.Metrics.RecordCompletion(ctx, desc, o, time.Since(pendingRec.DispatchedAt))
	}

	ack := p.ackFor(ctx, desc, o, pendingRec, found)

	if found && pendingRec.RemoveOnCancel {
		if p.CIB != nil {
			if _, err := p.CIB.DeleteXPath(ctx, cib.OpEntryXPath(desc.ID, opKey), false); err != nil {
				p.Log.Error(err, "failed pruning cib entry for cancelled op", "resource", desc.ID, "op_key", opKey)
			}
		}
	}

	// A recurring op's completion restarts its own monitoring regime;
	// the pending record must survive so a later drain/cancel/shutdown
	// can still find it (§4.3, §4.7 step 3 "if recurring, stop here").
	// Only a non-recurring completion, or an explicit cancellation,
	// retires the record.
	if found && (!o.IsRecurring() || o.Result.Status == op.StatusCancelled) {
		p.Pending.Remove(stopID)
	}

	p.History.Record(desc, o)
	p.rearm()

	return ack, nil
}

// ackFor implements §4.7 steps 3-4: notify always acks without a CIB
// write; any other non-cancellation completion pushes a CIB history
// update and acks only implicitly, via CIB convergence, unless it was
// recurring (recurring completions never confirm a graph edge);
// non-recurring cancellations ack directly (typically an administrator
// cleanup mid-flight).
func (p *Processor) ackFor(ctx context.Context, desc op.ResourceDescriptor, o op.Operation, pendingRec *pending.Op, found bool) *dispatch.Ack {
	if o.Result.Status == op.StatusCancelled {
		if o.IsRecurring() {
			return nil
		}
		return &dispatch.Ack{RscID: desc.ID, Status: dispatch.AckSuccess, Message: "cancelled"}
	}

	if o.Verb == op.VerbNotify {
		return &dispatch.Ack{RscID: desc.ID, Status: ackStatusFor(o)}
	}

	attrs, hasRestart := p.buildRestartAttrs(ctx, desc, o)
	fragment := cib.BuildHistoryFragment(desc, o, attrs, hasRestart)
	if p.CIB != nil {
		updateID, err := p.CIB.UpdateStatus(ctx, fragment, true)
		if err != nil {
			p.Log.Error(err, "cib update failed", "resource", desc.ID)
		} else {
			p.armUpdateWatchdog(updateID, desc.ID)
		}
	}

	return nil
}

// processDeletion implements the "resource backend purged" branch of
// §4.4: the history entry and its CIB projection are removed
// unconditionally, and a deferred deletion is resolved if one was
// outstanding (§4.6 "delete").
func (p *Processor) processDeletion(ctx context.Context, desc op.ResourceDescriptor, o op.Operation) *dispatch.Ack {
	p.History.Purge(desc.ID)
	if p.CIB != nil {
		if _, err := p.CIB.DeleteXPath(ctx, cib.ResourceXPath(desc.ID), true); err != nil {
			p.Log.Error(err, "failed erasing cib entry for deleted resource", "resource", desc.ID)
		}
	}

	if stopID := o.StopID(); stopID != "" {
		p.Pending.Remove(stopID)
	}
	p.rearm()

	if _, wasPending := p.Deletions.Resolve(desc.ID); !wasPending {
		return nil
	}
	return &dispatch.Ack{RscID: desc.ID, Status: dispatch.AckSuccess, Message: "resource deleted"}
}

func (p *Processor) buildRestartAttrs(ctx context.Context, desc op.ResourceDescriptor, o op.Operation) (restart.Attrs, bool) {
	if o.Verb != op.VerbStart || p.Reload == nil {
		return restart.Attrs{}, false
	}
	restartParams, err := p.Reload.Lookup(ctx, desc, true)
	if err != nil {
		p.Log.Error(err, "reload meta-data lookup failed", "resource", desc.ID)
		return restart.Attrs{}, false
	}
	if len(restartParams) == 0 {
		return restart.Attrs{}, false
	}
	return restart.Build(o, restartParams, p.PeerFeatureSet, p.FeatureSetThreshold)
}

func (p *Processor) armUpdateWatchdog(updateID int, rscID string) {
	p.mu.Lock()
	p.pendingUpdates[updateID] = true
	timeout := p.UpdateCallbackTimeout
	p.mu.Unlock()

	if timeout <= 0 {
		return
	}
	time.AfterFunc(timeout, func() {
		p.mu.Lock()
		stillPending := p.pendingUpdates[updateID]
		p.mu.Unlock()
		if stillPending {
			p.Log.Info("cib update callback did not arrive within timeout", "resource", rscID, "update_id", updateID)
		}
	})
}

func (p *Processor) onCIBUpdateComplete(updateID int, err error) {
	p.mu.Lock()
	delete(p.pendingUpdates, updateID)
	p.mu.Unlock()
	if err != nil {
		p.Log.Error(err, "cib update failed", "update_id", updateID)
	}
}

func (p *Processor) rearm() {
	if p.ReArm != nil {
		p.ReArm()
	}
}

func ackStatusFor(o op.Operation) dispatch.AckStatus {
	if o.Succeeded() {
		return dispatch.AckSuccess
	}
	return dispatch.AckError
}
