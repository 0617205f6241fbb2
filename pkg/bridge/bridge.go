package bridge

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/clustercore/lrmbridge/internal/config"
	"github.com/clustercore/lrmbridge/pkg/cib"
	"github.com/clustercore/lrmbridge/pkg/completion"
	"github.com/clustercore/lrmbridge/pkg/deletion"
	"github.com/clustercore/lrmbridge/pkg/dispatch"
	"github.com/clustercore/lrmbridge/pkg/executor"
	"github.com/clustercore/lrmbridge/pkg/fsm"
	"github.com/clustercore/lrmbridge/pkg/history"
	"github.com/clustercore/lrmbridge/pkg/metrics"
	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
	"github.com/clustercore/lrmbridge/pkg/reload"
)

// AckSink delivers a direct ack to whatever transport carries it back
// to the requesting system/host (§6 "TE / controller input"). The
// bridge never addresses that transport itself.
type AckSink func(ack *dispatch.Ack)

// LrmBridge is the per-node subsystem: it owns the three registries,
// the reload cache, and the dispatcher/processor/FSM trio that act on
// them, all driven from a single caller-owned event loop (§5).
type LrmBridge struct {
	History   *history.Cache
	Pending   *pending.Registry
	Reload    *reload.Cache
	Deletions *deletion.Tracker

	Dispatcher *dispatch.Dispatcher
	Processor  *completion.Processor
	FSM        *fsm.Controller

	Log     logr.Logger
	AckSink AckSink

	rearmCh chan struct{}
}

// New constructs an LrmBridge wiring cfg's tunables through every
// component. exec and fetcher are typically the same object (satisfying
// executor.Executor and reload.MetadataFetcher), as are cibClient and
// acl (cib.Client and cib.ACLChecker); they are accepted separately so
// tests can supply narrower doubles for each.
func New(cfg *config.Config, exec executor.Executor, cibClient cib.Client, acl cib.ACLChecker, fetcher reload.MetadataFetcher, log logr.Logger) *LrmBridge {
	hist := history.New()
	reg := pending.New()
	del := deletion.New()
	rel := reload.New(fetcher, log, cfg.ReloadRequeryThreshold)

	b := &LrmBridge{
		History:   hist,
		Pending:   reg,
		Reload:    rel,
		Deletions: del,
		Log:       log,
		rearmCh:   make(chan struct{}, 1),
	}

	proc := completion.New(cibClient, reg, hist, rel, del, log)
	proc.FeatureSetThreshold = cfg.FeatureSetReloadThreshold
	proc.UpdateCallbackTimeout = cfg.CIBUpdateCallbackTimeout
	proc.ReArm = b.signalRearm
	b.Processor = proc

	ctrl := fsm.New(exec, hist, reg, del, log, b.handleCompletion, cfg.ReconnectMaxAttempts, cfg.ReconnectBaseDelay)
	b.FSM = ctrl

	b.Dispatcher = &dispatch.Dispatcher{
		Executor:               exec,
		CIB:                    cibClient,
		ACL:                    acl,
		Pending:                reg,
		Deletions:              del,
		Log:                    log,
		StateGate:              ctrl.StateGate,
		StartDelayAckThreshold: int(cfg.StartDelayAckThreshold.Milliseconds()),
	}

	return b
}

// SetPeerFeatureSet records the DC peer's advertised feature-set
// version, consulted by the restart-digest builder on every start
// completion (§4.5).
func (b *LrmBridge) SetPeerFeatureSet(featureSet string) {
	b.Processor.PeerFeatureSet = featureSet
}

// SetMetrics wires rec into the dispatcher and completion processor so
// every submission and completion updates it. Metrics are optional:
// a nil bridge recorder field is handled by every call site.
func (b *LrmBridge) SetMetrics(rec *metrics.Recorder) {
	b.Dispatcher.Metrics = rec
	b.Processor.Metrics = rec
}

// Connect brings the executor connection up: sign-on, completion
// callback installation, and history priming (§4.8 "connect").
func (b *LrmBridge) Connect(ctx context.Context) error {
	return b.FSM.Connect(ctx)
}

// Dispatch runs the ordinary invocation contract for req, tagging the
// attempt with a correlation id for log correlation across the
// dispatch → completion round trip.
func (b *LrmBridge) Dispatch(ctx context.Context, req dispatch.Request, allowRegister bool) (*dispatch.Ack, error) {
	corrID := uuid.NewString()
	log := b.Log.WithValues("correlation_id", corrID, "resource", req.Desc.ID, "verb", req.Verb)
	log.V(1).Info("dispatching operation")

	ack, err := b.Dispatcher.Dispatch(ctx, req, allowRegister)
	if err != nil {
		log.Error(err, "dispatch rejected")
	}
	return ack, err
}

// Cancel implements the cancel short-circuit (§4.6 "cancel").
func (b *LrmBridge) Cancel(ctx context.Context, desc op.ResourceDescriptor, target dispatch.CancelTarget) (*dispatch.Ack, error) {
	corrID := uuid.NewString()
	b.Log.WithValues("correlation_id", corrID, "resource", desc.ID).V(1).Info("cancelling operation")
	return b.Dispatcher.Cancel(ctx, desc.ID, desc, target)
}

// Delete implements the delete short-circuit (§4.6 "delete"). A nil
// ack with deferred == true means the caller owes no response yet; the
// eventual "resource deleted" completion event will produce one via
// AckSink.
func (b *LrmBridge) Delete(ctx context.Context, desc op.ResourceDescriptor, transitionKey, requestedBy string) (ack *dispatch.Ack, deferred bool, err error) {
	corrID := uuid.NewString()
	log := b.Log.WithValues("correlation_id", corrID, "resource", desc.ID)
	ack, deferred, err = b.Dispatcher.Delete(ctx, desc, transitionKey, requestedBy)
	if deferred {
		log.Info("delete deferred, executor reported busy")
	}
	return ack, deferred, err
}

// handleCompletion is installed as the executor's completion callback
// by fsm.Controller.Connect. It folds the event through the completion
// processor and forwards any resulting direct ack to AckSink.
func (b *LrmBridge) handleCompletion(desc op.ResourceDescriptor, o op.Operation) {
	ack, err := b.Processor.Process(context.Background(), desc, o)
	if err != nil {
		b.Log.Error(err, "completion processing failed", "resource", desc.ID)
		return
	}
	if ack != nil && b.AckSink != nil {
		b.AckSink(ack)
	}
}

func (b *LrmBridge) signalRearm() {
	select {
	case b.rearmCh <- struct{}{}:
	default:
	}
}

// Shutdown implements §4.9's caller-facing half: it marks the FSM
// terminating, then blocks until verify-stopped holds (re-checked
// every time a completion event re-arms it) or ctx is done, at which
// point it forces the terminal return and disconnects.
func (b *LrmBridge) Shutdown(ctx context.Context, logLevel int) error {
	b.FSM.SetState(fsm.StateTerminating)

	for {
		if b.FSM.VerifyStopped(logLevel) {
			return b.FSM.Disconnect(ctx, logLevel)
		}
		select {
		case <-b.rearmCh:
			continue
		case <-ctx.Done():
			b.FSM.SetState(fsm.StateStopped)
			if !b.FSM.VerifyStopped(logLevel) {
				return fmt.Errorf("shutdown: %w", ctx.Err())
			}
			return b.FSM.Disconnect(ctx, logLevel)
		}
	}
}
