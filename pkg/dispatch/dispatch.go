package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	bridgeerrors "github.com/clustercore/lrmbridge/internal/errors"
	"github.com/clustercore/lrmbridge/pkg/cib"
	"github.com/clustercore/lrmbridge/pkg/deletion"
	"github.com/clustercore/lrmbridge/pkg/metrics"
	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
)

// Executor is the combined capability surface Dispatcher needs from
// the executor: resolve/register, submit, cancel, and delete.
type Executor interface {
	Resolver
	Submitter
	Deleter
	pending.Canceller
}

// StateGate reports whether verb may run in the FSM's current state
// (§4.6: "outside [executing states] only stop and fail are accepted").
// A nil gate (the zero Dispatcher) permits every verb, which keeps the
// package independently testable without an fsm dependency.
type StateGate func(verb op.Verb) bool

// Dispatcher implements the §4.6 invocation contract.
type Dispatcher struct {
	Executor   Executor
	CIB        cib.Client
	ACL        cib.ACLChecker
	Pending    *pending.Registry
	Deletions  *deletion.Tracker
	Log        logr.Logger
	StateGate  StateGate
	// StartDelayAckThreshold is the start-delay (milliseconds) above
	// which an op's submission, recurring or not, is immediately direct-acked
	// rather than leaving the TE to wait out the delay (§4.6 step 7).
	StartDelayAckThreshold int
	// Metrics, if non-nil, receives a pending-op gauge increment on
	// every successful submission.
	Metrics *metrics.Recorder
}

func (d *Dispatcher) permitted(verb op.Verb) bool {
	if d.StateGate == nil {
		return true
	}
	return d.StateGate(verb)
}

// Dispatch runs the ordinary (non-cancel, non-delete) invocation
// contract for req and returns a synthetic ack when one is owed
// immediately — for a submission failure, a rejected verb, or a
// submission whose start-delay exceeds the threshold. A nil ack means the eventual
// completion event will produce the user-visible outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, allowRegister bool) (*Ack, error) {
	if !d.permitted(req.Verb) && req.Verb != op.VerbStop && req.Verb != op.VerbFail {
		return &Ack{RscID: req.Desc.ID, Status: AckError, Message: "verb not permitted in current state"}, bridgeerrors.ErrVerbNotPermitted
	}

	if _, ok, err := d.Executor.GetResource(ctx, req.Desc.ID); err != nil {
		return nil, err
	} else if !ok && allowRegister {
		if err := d.Executor.AddResource(ctx, req.Desc); err != nil {
			return nil, err
		}
	}

	if req.Verb.DrainsRecurring() {
		if _, err := d.Pending.DrainRecurringFor(ctx, d.Executor, req.Desc.ID, req.Desc); err != nil {
			d.Log.Error(err, "failed draining recurring ops before dispatch", "resource", req.Desc.ID)
		}
	}

	o := op.Build(req.Desc.ID, req.Verb, req.ParamsElem, req.TransitionKey)

	if o.Interval > 0 {
		if _, err := d.Pending.CancelByOpKey(ctx, d.Executor, req.Desc.ID, o.OpKey(), req.Desc); err != nil {
			d.Log.Error(err, "failed cancelling existing same-op-key registration", "resource", req.Desc.ID, "op_key", o.OpKey())
		}
	}

	callID, err := d.Executor.PerformOp(ctx, req.Desc, o)
	if err != nil || callID <= 0 {
		d.Log.Error(err, "submission failed", "resource", req.Desc.ID, "verb", req.Verb)
		return &Ack{RscID: req.Desc.ID, Status: AckError, Message: "submission failed"},
			bridgeerrors.New("dispatch.Dispatch", "submission", req.Desc.ID, bridgeerrors.ErrSubmissionFailed)
	}

	d.Pending.Insert(pending.Op{
		RscID:        req.Desc.ID,
		OpKey:        o.OpKey(),
		CallID:       callID,
		Interval:     o.Interval,
		DispatchedAt: time.Now(),
	})
	d.Metrics.RecordDispatch(ctx, req.Desc.ID)

	if o.StartDelay > d.StartDelayAckThreshold {
		return &Ack{RscID: req.Desc.ID, Status: AckSuccess, Message: "start-delay exceeds ack threshold, acking immediately"}, nil
	}

	return nil, nil
}

// Cancel implements the cancel short-circuit (§4.6 "cancel"): it always
// direct-acks success, whether or not a matching pending op existed.
// Pending ops and the CIB entry are matched by op-key alone;
// target.CallID is not consulted.
func (d *Dispatcher) Cancel(ctx context.Context, rscID string, desc op.ResourceDescriptor, target CancelTarget) (*Ack, error) {
	opKey := fmt.Sprintf("%s_%d", target.Verb, target.Interval)

	if _, err := d.Pending.CancelByOpKey(ctx, d.Executor, rscID, opKey, desc); err != nil {
		d.Log.Error(err, "cancel request failed against executor", "resource", rscID, "op_key", opKey)
	}

	if d.CIB != nil {
		if _, err := d.CIB.DeleteXPath(ctx, cib.OpEntryXPath(rscID, opKey), false); err != nil {
			d.Log.Error(err, "failed pruning cib history entry for cancelled op", "resource", rscID, "op_key", opKey)
		}
	}

	return &Ack{RscID: rscID, Status: AckSuccess}, nil
}

// Delete implements the delete short-circuit (§4.6 "delete"). A nil
// returned Ack with deferred == true means the executor reported busy;
// the caller must hold off acking until the deletion tracker's entry is
// resolved by a later "resource deleted" signal.
func (d *Dispatcher) Delete(ctx context.Context, desc op.ResourceDescriptor, transitionKey, requestedBy string) (ack *Ack, deferred bool, err error) {
	if d.ACL != nil {
		if err := d.ACL.CheckDeletePermission(ctx, desc.ID); err != nil {
			d.Log.Error(err, "delete permission denied, acking error", "resource", desc.ID)
			return &Ack{RscID: desc.ID, Status: AckError, Message: "permission denied"}, false, nil
		}
	}

	err = d.Executor.DeleteResource(ctx, desc.ID)
	switch {
	case err == nil:
		return &Ack{RscID: desc.ID, Status: AckSuccess}, false, nil
	case errors.Is(err, bridgeerrors.ErrResourceBusy):
		d.Deletions.Register(deletion.Entry{Desc: desc, TransitionKey: transitionKey, RequestedBy: requestedBy})
		return nil, true, nil
	default:
		d.Log.Error(err, "delete failed, acking error", "resource", desc.ID)
		return &Ack{RscID: desc.ID, Status: AckError, Message: "delete failed"}, false, err
	}
}
