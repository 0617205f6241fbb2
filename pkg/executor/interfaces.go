package executor

import (
	"context"

	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
)

// CancelOutcome is an alias of pending.CancelOutcome so that Executor
// satisfies pending.Canceller without a separate conversion step.
type CancelOutcome = pending.CancelOutcome

const (
	CancelCancelled       = pending.CancelCancelled
	CancelNothingToCancel = pending.CancelNothingToCancel
	CancelPending         = pending.CancelPending
)

// CompletionCallback is invoked once per finished invocation, in the
// order the executor finishes them — ordering across resources is not
// guaranteed, only per-resource FIFO for non-recurring work (§6).
type CompletionCallback func(desc op.ResourceDescriptor, result op.Operation)

// Executor is the full capability surface the bridge needs from the
// local resource executor (§6). Consumers outside this package should
// prefer the narrower slices pending.Canceller and
// reload.MetadataFetcher rather than depending on the whole interface.
type Executor interface {
	// SignOn establishes the connection and registers cb as the
	// completion sink for every subsequent PerformOp.
	SignOn(ctx context.Context, cb CompletionCallback) error
	// SignOff tears down the connection; cb will not fire again.
	SignOff(ctx context.Context) error

	// AddResource registers desc so operations can be dispatched
	// against it; a no-op if already registered.
	AddResource(ctx context.Context, desc op.ResourceDescriptor) error
	// GetResource reports whether desc is currently registered.
	GetResource(ctx context.Context, rscID string) (op.ResourceDescriptor, bool, error)
	// DeleteResource unregisters rscID. It may return ErrResourceBusy if
	// operations are still in flight, in which case the caller should
	// track the request and wait for a deletion-completed signal.
	DeleteResource(ctx context.Context, rscID string) error
	// ListResources enumerates every registered resource.
	ListResources(ctx context.Context) ([]op.ResourceDescriptor, error)

	// PerformOp submits o for asynchronous execution and returns the
	// call id the completion callback will report against.
	PerformOp(ctx context.Context, desc op.ResourceDescriptor, o op.Operation) (callID int, err error)
	// CancelOp requests cancellation of an in-flight call.
	CancelOp(ctx context.Context, desc op.ResourceDescriptor, callID int) (CancelOutcome, error)
	// GetCurrentOps enumerates rscID's completed ops in call-id order,
	// for reconnect priming (§4.8 "connect").
	GetCurrentOps(ctx context.Context, rscID string) ([]op.Operation, error)

	// GetMetadata returns the agent's meta-data XML document.
	GetMetadata(ctx context.Context, class, typ, provider string) (string, error)
	// FailResource marks rscID permanently failed without running an
	// agent action (§6 "fail-resource").
	FailResource(ctx context.Context, desc op.ResourceDescriptor, reason string) error
}
