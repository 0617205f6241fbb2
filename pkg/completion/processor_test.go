package completion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercore/lrmbridge/internal/logging"
	"github.com/clustercore/lrmbridge/pkg/cib"
	"github.com/clustercore/lrmbridge/pkg/deletion"
	"github.com/clustercore/lrmbridge/pkg/dispatch"
	"github.com/clustercore/lrmbridge/pkg/executor"
	"github.com/clustercore/lrmbridge/pkg/history"
	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
	"github.com/clustercore/lrmbridge/pkg/reload"
)

const reloadMetadata = `<resource-agent>
  <actions>
    <action name="reload"/>
  </actions>
  <parameters>
    <parameter name="configfile" unique="1"/>
  </parameters>
</resource-agent>`

func newProcessor(t *testing.T, c *cib.InMemory, exec *executor.InMemory) (*Processor, *pending.Registry, *history.Cache) {
	t.Helper()
	reg := pending.New()
	hist := history.New()
	rel := reload.New(exec, logging.NewDevelopment(), 9*time.Second)
	del := deletion.New()
	p := New(c, reg, hist, rel, del, logging.NewDevelopment())
	p.FeatureSetThreshold = "3.0.9"
	p.PeerFeatureSet = "3.2.0"
	return p, reg, hist
}

func TestProcess_SuccessfulStartWritesRestartListAndDigest(t *testing.T) {
	c := cib.NewInMemory()
	exec := executor.NewInMemory()
	desc := op.ResourceDescriptor{ID: "web1", Class: "ocf", Type: "apache"}
	exec.SetMetadata(desc, reloadMetadata)

	p, reg, hist := newProcessor(t, c, exec)
	reg.Insert(pending.Op{RscID: "web1", OpKey: "start_0", CallID: 1, Interval: 0})

	o := op.Operation{
		RscID:      "web1",
		Verb:       op.VerbStart,
		ExpectedRC: 0,
		Params:     map[string]string{"configfile": "/etc/a.conf"},
		Result:     op.Result{Status: op.StatusDone, ReturnCode: 0, CallID: 1},
	}

	ack, err := p.Process(context.Background(), desc, o)
	require.NoError(t, err)
	assert.Nil(t, ack)

	rsc := c.FindResource("web1")
	require.NotNil(t, rsc)
	rscOp := rsc.FindElement("lrm_rsc_op")
	require.NotNil(t, rscOp)
	assert.Equal(t, " configfile ", rscOp.SelectAttrValue("op-force-restart", ""))
	assert.NotEmpty(t, rscOp.SelectAttrValue("op-restart-digest", ""))

	e, ok := hist.Get("web1")
	require.True(t, ok)
	assert.True(t, e.Last.Succeeded())

	_, stillPending := reg.Lookup("web1:1")
	assert.False(t, stillPending)
}

func TestProcess_MonitorNotRunningIsRemappedToDone(t *testing.T) {
	c := cib.NewInMemory()
	exec := executor.NewInMemory()
	p, reg, hist := newProcessor(t, c, exec)
	reg.Insert(pending.Op{RscID: "web1", OpKey: "monitor_10000", CallID: 2, Interval: 10000})

	o := op.Operation{
		RscID:    "web1",
		Verb:     op.VerbMonitor,
		Interval: 10000,
		Result:   op.Result{Status: op.StatusError, ReturnCode: op.RCNotRunning, CallID: 2},
	}

	ack, err := p.Process(context.Background(), op.ResourceDescriptor{ID: "web1"}, o)
	require.NoError(t, err)
	assert.Nil(t, ack, "recurring completions never produce a direct ack")

	e, ok := hist.Get("web1")
	require.True(t, ok)
	require.Len(t, e.Recurring, 1)
	assert.Equal(t, op.StatusDone, e.Recurring[0].Result.Status)

	_, stillPending := reg.Lookup("web1:2")
	assert.True(t, stillPending, "a recurring op's own completion must not retire its pending record — the monitoring regime is still live and must remain drainable/cancellable")
}

func TestProcess_RecurringCancellationRetiresPendingRecord(t *testing.T) {
	c := cib.NewInMemory()
	exec := executor.NewInMemory()
	p, reg, _ := newProcessor(t, c, exec)
	reg.Insert(pending.Op{RscID: "web1", OpKey: "monitor_10000", CallID: 5, Interval: 10000})

	o := op.Operation{RscID: "web1", Verb: op.VerbMonitor, Interval: 10000, Result: op.Result{Status: op.StatusCancelled, CallID: 5}}
	ack, err := p.Process(context.Background(), op.ResourceDescriptor{ID: "web1"}, o)
	require.NoError(t, err)
	assert.Nil(t, ack, "recurring completions never produce a direct ack, cancelled or not")

	_, stillPending := reg.Lookup("web1:5")
	assert.False(t, stillPending, "an explicit cancellation retires the pending record even for a recurring op")
}

func TestProcess_NotifyAcksWithoutCIBWrite(t *testing.T) {
	c := cib.NewInMemory()
	exec := executor.NewInMemory()
	p, _, hist := newProcessor(t, c, exec)

	o := op.Operation{RscID: "web1", Verb: op.VerbNotify, Result: op.Result{Status: op.StatusDone}}
	ack, err := p.Process(context.Background(), op.ResourceDescriptor{ID: "web1"}, o)
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.Equal(t, dispatch.AckSuccess, ack.Status)

	assert.Nil(t, c.FindResource("web1"))
	_, ok := hist.Get("web1")
	assert.False(t, ok, "notify completions are not recorded")
}

func TestProcess_NonRecurringCancellationAcks(t *testing.T) {
	c := cib.NewInMemory()
	exec := executor.NewInMemory()
	p, reg, _ := newProcessor(t, c, exec)
	reg.Insert(pending.Op{RscID: "web1", OpKey: "start_0", CallID: 3, Interval: 0})

	o := op.Operation{RscID: "web1", Verb: op.VerbStart, Result: op.Result{Status: op.StatusCancelled, CallID: 3}}
	ack, err := p.Process(context.Background(), op.ResourceDescriptor{ID: "web1"}, o)
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.Equal(t, dispatch.AckSuccess, ack.Status)
}

func TestProcess_RemoveOnCancelPrunesTargetedCIBEntry(t *testing.T) {
	c := cib.NewInMemory()
	exec := executor.NewInMemory()
	p, reg, _ := newProcessor(t, c, exec)
	reg.Insert(pending.Op{RscID: "web1", OpKey: "monitor_10000", CallID: 4, Interval: 10000, RemoveOnCancel: true})

	o := op.Operation{RscID: "web1", Verb: op.VerbMonitor, Interval: 10000, Result: op.Result{Status: op.StatusCancelled, CallID: 4}}
	_, err := p.Process(context.Background(), op.ResourceDescriptor{ID: "web1"}, o)
	require.NoError(t, err)

	assert.Contains(t, c.Deletes, cib.OpEntryXPath("web1", "monitor_10000"))
}

func TestProcess_DeletionFlagPurgesHistoryAndResolvesPendingDeletion(t *testing.T) {
	c := cib.NewInMemory()
	exec := executor.NewInMemory()
	p, _, hist := newProcessor(t, c, exec)
	hist.Record(op.ResourceDescriptor{ID: "web1"}, op.Operation{RscID: "web1", Verb: op.VerbStart, Result: op.Result{Status: op.StatusDone}})
	p.Deletions.Register(deletion.Entry{Desc: op.ResourceDescriptor{ID: "web1"}, TransitionKey: "tk-9"})

	o := op.Operation{RscID: "web1", Verb: op.VerbStop, Deleted: true, Result: op.Result{Status: op.StatusDone}}
	ack, err := p.Process(context.Background(), op.ResourceDescriptor{ID: "web1"}, o)
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.Equal(t, dispatch.AckSuccess, ack.Status)

	_, ok := hist.Get("web1")
	assert.False(t, ok)
	assert.False(t, p.Deletions.IsPending("web1"))
	assert.Contains(t, c.Deletes, cib.ResourceXPath("web1"))
}
