package fsm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/clustercore/lrmbridge/internal/errors"
	"github.com/clustercore/lrmbridge/internal/logging"
	"github.com/clustercore/lrmbridge/pkg/deletion"
	"github.com/clustercore/lrmbridge/pkg/executor"
	"github.com/clustercore/lrmbridge/pkg/history"
	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
)

func newController(exec *executor.InMemory) *Controller {
	return New(exec, history.New(), pending.New(), deletion.New(), logging.NewDevelopment(),
		func(op.ResourceDescriptor, op.Operation) {}, 3, time.Millisecond)
}

var web1 = op.ResourceDescriptor{ID: "web1", Class: "ocf", Type: "apache"}

func TestController_ConnectPrimesHistoryFromCurrentOps(t *testing.T) {
	exec := executor.NewInMemory()
	require.NoError(t, exec.AddResource(context.Background(), web1))
	exec.SeedCurrentOps("web1", []op.Operation{
		{RscID: "web1", Verb: op.VerbStart, Result: op.Result{Status: op.StatusDone, CallID: 1}},
		{RscID: "web1", Verb: op.VerbMonitor, Interval: 10000, Result: op.Result{Status: op.StatusDone, CallID: 2}},
	})
	c := newController(exec)

	require.NoError(t, c.Connect(context.Background()))

	assert.Equal(t, StateNotDC, c.State())
	assert.True(t, c.IsConnected())

	e, ok := c.History.Get("web1")
	require.True(t, ok)
	require.NotNil(t, e.Last)
	assert.Equal(t, op.VerbStart, e.Last.Verb)
	require.Len(t, e.Recurring, 1)
}

func TestController_ConnectPrimingSkipsDuplicateAndOutOfOrderCallIDs(t *testing.T) {
	exec := executor.NewInMemory()
	require.NoError(t, exec.AddResource(context.Background(), web1))
	exec.SeedCurrentOps("web1", []op.Operation{
		{RscID: "web1", Verb: op.VerbStart, Result: op.Result{Status: op.StatusDone, CallID: 5}},
		{RscID: "web1", Verb: op.VerbStart, Result: op.Result{Status: op.StatusDone, CallID: 5}},
		{RscID: "web1", Verb: op.VerbMonitor, Interval: 10000, Result: op.Result{Status: op.StatusDone, CallID: 3}},
	})
	c := newController(exec)

	require.NoError(t, c.Connect(context.Background()))

	e, ok := c.History.Get("web1")
	require.True(t, ok)
	require.NotNil(t, e.Last)
	assert.Equal(t, 5, e.Last.Result.CallID)
	assert.Empty(t, e.Recurring, "out-of-order call id 3 after 5 is discarded, never reaching Record")
}

func TestController_StateGateReflectsExecutingAllowed(t *testing.T) {
	c := newController(executor.NewInMemory())
	assert.False(t, c.StateGate(op.VerbStart))

	c.SetState(StateTransitionEngine)
	assert.True(t, c.StateGate(op.VerbStart))

	c.SetState(StateTerminating)
	assert.False(t, c.StateGate(op.VerbStart))
}

func TestController_HandleConnectionLossWhileConnectedIsFenceWorthy(t *testing.T) {
	exec := executor.NewInMemory()
	c := newController(exec)
	require.NoError(t, c.Connect(context.Background()))

	err := c.HandleConnectionLoss()
	require.Error(t, err)
	assert.ErrorIs(t, err, bridgeerrors.ErrExecutorConnectionLost)
	assert.False(t, c.IsConnected())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestController_HandleConnectionLossWhileAlreadyDisconnectedIsBenign(t *testing.T) {
	c := newController(executor.NewInMemory())
	err := c.HandleConnectionLoss()
	assert.NoError(t, err)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestController_DisconnectDefersUntilVerifiedStopped(t *testing.T) {
	exec := executor.NewInMemory()
	c := newController(exec)
	require.NoError(t, c.Connect(context.Background()))
	c.Pending.Insert(pending.Op{RscID: "web1", OpKey: "start_0", CallID: 1, Interval: 0})

	err := c.Disconnect(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotVerifiedStopped)
	assert.True(t, c.IsConnected())

	c.Pending.Remove("web1:1")
	require.NoError(t, c.Disconnect(context.Background(), 1))
	assert.False(t, c.IsConnected())
	assert.Equal(t, StateDisconnected, c.State())
}
