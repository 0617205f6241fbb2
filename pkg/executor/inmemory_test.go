package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/clustercore/lrmbridge/internal/errors"
	"github.com/clustercore/lrmbridge/pkg/op"
)

var _ Executor = (*InMemory)(nil)

func TestInMemory_SignOnDeliversCompletionsToCallback(t *testing.T) {
	e := NewInMemory()
	var got op.Operation
	require.NoError(t, e.SignOn(context.Background(), func(desc op.ResourceDescriptor, result op.Operation) {
		got = result
	}))

	desc := op.ResourceDescriptor{ID: "web1", Class: "ocf", Type: "apache"}
	callID, err := e.PerformOp(context.Background(), desc, op.Operation{RscID: "web1", Verb: op.VerbStart})
	require.NoError(t, err)

	e.Complete(desc, op.Operation{RscID: "web1", Verb: op.VerbStart, Result: op.Result{Status: op.StatusDone, CallID: callID}})
	assert.Equal(t, op.StatusDone, got.Result.Status)
}

func TestInMemory_CancelOpReportsNothingToCancelAfterCompletion(t *testing.T) {
	e := NewInMemory()
	require.NoError(t, e.SignOn(context.Background(), func(op.ResourceDescriptor, op.Operation) {}))

	desc := op.ResourceDescriptor{ID: "web1"}
	callID, _ := e.PerformOp(context.Background(), desc, op.Operation{RscID: "web1"})
	e.Complete(desc, op.Operation{RscID: "web1", Result: op.Result{CallID: callID}})

	outcome, err := e.CancelOp(context.Background(), desc, callID)
	require.NoError(t, err)
	assert.Equal(t, CancelNothingToCancel, outcome)
}

func TestInMemory_DeleteResourceHonoursMarkBusy(t *testing.T) {
	e := NewInMemory()
	desc := op.ResourceDescriptor{ID: "web1"}
	require.NoError(t, e.AddResource(context.Background(), desc))
	e.MarkBusy("web1")

	err := e.DeleteResource(context.Background(), "web1")
	assert.ErrorIs(t, err, bridgeerrors.ErrResourceBusy)

	// resource is still registered after a deferred deletion
	_, ok, _ := e.GetResource(context.Background(), "web1")
	assert.True(t, ok)

	require.NoError(t, e.DeleteResource(context.Background(), "web1"))
	_, ok, _ = e.GetResource(context.Background(), "web1")
	assert.False(t, ok)
}

func TestInMemory_GetMetadataUnknownTypeIsNotFound(t *testing.T) {
	e := NewInMemory()
	_, err := e.GetMetadata(context.Background(), "ocf", "apache", "heartbeat")
	assert.ErrorIs(t, err, bridgeerrors.ErrResourceNotFound)
}
