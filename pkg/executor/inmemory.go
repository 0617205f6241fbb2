package executor

import (
	"context"
	"sync"
	"sync/atomic"

	bridgeerrors "github.com/clustercore/lrmbridge/internal/errors"
	"github.com/clustercore/lrmbridge/pkg/op"
)

// InMemory is a scriptable Executor used by the bridge's own test
// suites (dispatch, completion, fsm) in place of a real connection: it
// never runs an agent, it only records submissions and replays
// completions the test supplies. Metadata lookups are served from a
// fixed table configured via SetMetadata.
type InMemory struct {
	mu        sync.Mutex
	signedOn  bool
	cb        CompletionCallback
	resources map[string]op.ResourceDescriptor
	pending   map[int]bool
	busy      map[string]bool
	metadata  map[string]string
	current   map[string][]op.Operation
	nextCall  int32
}

// NewInMemory constructs an empty InMemory executor.
func NewInMemory() *InMemory {
	return &InMemory{
		resources: make(map[string]op.ResourceDescriptor),
		pending:   make(map[int]bool),
		busy:      make(map[string]bool),
		metadata:  make(map[string]string),
		current:   make(map[string][]op.Operation),
	}
}

// SeedCurrentOps configures the ops GetCurrentOps(rscID) returns, for
// exercising reconnect priming without a real executor history.
func (e *InMemory) SeedCurrentOps(rscID string, ops []op.Operation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current[rscID] = ops
}

// SetMetadata registers the meta-data document returned for the given
// (class, type, provider) triple.
func (e *InMemory) SetMetadata(desc op.ResourceDescriptor, doc string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metadata[desc.MetadataKey()] = doc
}

// MarkBusy forces DeleteResource to return ErrResourceBusy for rscID
// exactly once, simulating in-flight operations blocking a delete.
func (e *InMemory) MarkBusy(rscID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy[rscID] = true
}

func (e *InMemory) SignOn(ctx context.Context, cb CompletionCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signedOn = true
	e.cb = cb
	return nil
}

func (e *InMemory) SignOff(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signedOn = false
	e.cb = nil
	return nil
}

func (e *InMemory) AddResource(ctx context.Context, desc op.ResourceDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resources[desc.ID] = desc
	return nil
}

func (e *InMemory) GetResource(ctx context.Context, rscID string) (op.ResourceDescriptor, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.resources[rscID]
	return d, ok, nil
}

func (e *InMemory) DeleteResource(ctx context.Context, rscID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[rscID] {
		delete(e.busy, rscID)
		return bridgeerrors.ErrResourceBusy
	}
	delete(e.resources, rscID)
	return nil
}

func (e *InMemory) ListResources(ctx context.Context) ([]op.ResourceDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]op.ResourceDescriptor, 0, len(e.resources))
	for _, d := range e.resources {
		out = append(out, d)
	}
	return out, nil
}

func (e *InMemory) PerformOp(ctx context.Context, desc op.ResourceDescriptor, o op.Operation) (int, error) {
	callID := int(atomic.AddInt32(&e.nextCall, 1))
	e.mu.Lock()
	e.pending[callID] = true
	e.mu.Unlock()
	return callID, nil
}

func (e *InMemory) CancelOp(ctx context.Context, desc op.ResourceDescriptor, callID int) (CancelOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending[callID] {
		return CancelNothingToCancel, nil
	}
	return CancelPending, nil
}

func (e *InMemory) GetCurrentOps(ctx context.Context, rscID string) ([]op.Operation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current[rscID], nil
}

func (e *InMemory) GetMetadata(ctx context.Context, class, typ, provider string) (string, error) {
	key := op.ResourceDescriptor{Class: class, Type: typ, Provider: provider}.MetadataKey()
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.metadata[key]
	if !ok {
		return "", bridgeerrors.ErrResourceNotFound
	}
	return doc, nil
}

func (e *InMemory) FailResource(ctx context.Context, desc op.ResourceDescriptor, reason string) error {
	return nil
}

// Complete delivers result to the callback registered by SignOn and
// clears its pending-call marker, as a real executor would after an
// agent invocation finishes. Tests call this directly rather than
// waiting on a real subprocess.
func (e *InMemory) Complete(desc op.ResourceDescriptor, result op.Operation) {
	e.mu.Lock()
	delete(e.pending, result.Result.CallID)
	cb := e.cb
	e.mu.Unlock()
	if cb != nil {
		cb(desc, result)
	}
}
