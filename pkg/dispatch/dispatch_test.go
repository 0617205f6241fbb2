package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercore/lrmbridge/internal/logging"
	"github.com/clustercore/lrmbridge/pkg/cib"
	"github.com/clustercore/lrmbridge/pkg/deletion"
	"github.com/clustercore/lrmbridge/pkg/executor"
	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
)

func newDispatcher(exec *executor.InMemory, cibClient *cib.InMemory) *Dispatcher {
	return &Dispatcher{
		Executor:               exec,
		CIB:                    cibClient,
		ACL:                    cibClient,
		Pending:                pending.New(),
		Deletions:              deletion.New(),
		Log:                    logging.NewDevelopment(),
		StartDelayAckThreshold: 300000,
	}
}

func TestDispatch_RegistersUnknownResourceThenSubmits(t *testing.T) {
	exec := executor.NewInMemory()
	require.NoError(t, exec.SignOn(context.Background(), func(op.ResourceDescriptor, op.Operation) {}))
	d := newDispatcher(exec, cib.NewInMemory())

	desc := op.ResourceDescriptor{ID: "web1", Class: "ocf", Type: "apache"}
	req := Request{Desc: desc, Verb: op.VerbStart, TransitionKey: "tk:0"}

	ack, err := d.Dispatch(context.Background(), req, true)
	require.NoError(t, err)
	assert.Nil(t, ack)

	_, ok, _ := exec.GetResource(context.Background(), "web1")
	assert.True(t, ok)

	e, ok := d.Pending.Lookup("web1:1")
	require.True(t, ok)
	assert.Equal(t, "start_0", e.OpKey)
}

func TestDispatch_LongStartDelayRecurringOpAcksImmediately(t *testing.T) {
	exec := executor.NewInMemory()
	require.NoError(t, exec.SignOn(context.Background(), func(op.ResourceDescriptor, op.Operation) {}))
	d := newDispatcher(exec, cib.NewInMemory())

	desc := op.ResourceDescriptor{ID: "web1"}
	require.NoError(t, exec.AddResource(context.Background(), desc))

	paramsXML := `<params><nvpair name="CRM_meta_interval" value="10000"/><nvpair name="CRM_meta_start_delay" value="600000"/></params>`
	elem := mustParseParams(t, paramsXML)
	req := Request{Desc: desc, Verb: op.VerbMonitor, ParamsElem: elem}

	ack, err := d.Dispatch(context.Background(), req, false)
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.Equal(t, AckSuccess, ack.Status)
}

// §8 scenario 4: a one-shot start with a long start-delay acks
// immediately too, not just recurring ops (§4.6 step 7's condition is
// on start-delay alone; the interval has nothing to do with it).
func TestDispatch_LongStartDelayOnOneShotStartAcksImmediately(t *testing.T) {
	exec := executor.NewInMemory()
	require.NoError(t, exec.SignOn(context.Background(), func(op.ResourceDescriptor, op.Operation) {}))
	d := newDispatcher(exec, cib.NewInMemory())

	desc := op.ResourceDescriptor{ID: "web1"}
	require.NoError(t, exec.AddResource(context.Background(), desc))

	paramsXML := `<params><nvpair name="CRM_meta_start_delay" value="600000"/></params>`
	elem := mustParseParams(t, paramsXML)
	req := Request{Desc: desc, Verb: op.VerbStart, ParamsElem: elem}

	ack, err := d.Dispatch(context.Background(), req, false)
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.Equal(t, AckSuccess, ack.Status)

	e, ok := d.Pending.Lookup("web1:1")
	require.True(t, ok, "the submission is still registered even though it was acked immediately")
	assert.Equal(t, 0, e.Interval)
}

func TestDispatch_VerbRejectedOutsideStateGateExceptStopAndFail(t *testing.T) {
	exec := executor.NewInMemory()
	d := newDispatcher(exec, cib.NewInMemory())
	d.StateGate = func(op.Verb) bool { return false }

	desc := op.ResourceDescriptor{ID: "web1"}
	_, err := d.Dispatch(context.Background(), Request{Desc: desc, Verb: op.VerbPromote}, false)
	assert.Error(t, err)
}

func TestDispatch_DrainsRecurringBeforeStop(t *testing.T) {
	exec := executor.NewInMemory()
	require.NoError(t, exec.SignOn(context.Background(), func(op.ResourceDescriptor, op.Operation) {}))
	d := newDispatcher(exec, cib.NewInMemory())

	desc := op.ResourceDescriptor{ID: "web1"}
	require.NoError(t, exec.AddResource(context.Background(), desc))
	d.Pending.Insert(pending.Op{RscID: "web1", OpKey: "monitor_10000", CallID: 1, Interval: 10000})

	_, err := d.Dispatch(context.Background(), Request{Desc: desc, Verb: op.VerbStop}, false)
	require.NoError(t, err)

	assert.Empty(t, d.Pending.Recurring("web1"))
}

func TestCancel_UnknownOpKeyStillAcksSuccess(t *testing.T) {
	exec := executor.NewInMemory()
	d := newDispatcher(exec, cib.NewInMemory())

	ack, err := d.Cancel(context.Background(), "web1", op.ResourceDescriptor{ID: "web1"}, CancelTarget{Verb: op.VerbMonitor, Interval: 10000})
	require.NoError(t, err)
	assert.Equal(t, AckSuccess, ack.Status)
}

func TestDelete_PermissionDeniedSkipsExecutor(t *testing.T) {
	exec := executor.NewInMemory()
	cibClient := cib.NewInMemory()
	cibClient.DenyList["web1"] = true
	d := newDispatcher(exec, cibClient)

	require.NoError(t, exec.AddResource(context.Background(), op.ResourceDescriptor{ID: "web1"}))

	ack, deferred, err := d.Delete(context.Background(), op.ResourceDescriptor{ID: "web1"}, "", "")
	require.NoError(t, err)
	assert.False(t, deferred)
	assert.Equal(t, AckError, ack.Status)

	_, ok, _ := exec.GetResource(context.Background(), "web1")
	assert.True(t, ok, "resource should remain registered after a permission denial")
}

func TestDelete_BusyDefersToDeletionTracker(t *testing.T) {
	exec := executor.NewInMemory()
	d := newDispatcher(exec, cib.NewInMemory())

	desc := op.ResourceDescriptor{ID: "web1"}
	require.NoError(t, exec.AddResource(context.Background(), desc))
	exec.MarkBusy("web1")

	ack, deferred, err := d.Delete(context.Background(), desc, "tk:1", "node-a")
	require.NoError(t, err)
	assert.True(t, deferred)
	assert.Nil(t, ack)
	assert.True(t, d.Deletions.IsPending("web1"))
}
