package pending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercore/lrmbridge/pkg/op"
)

type scriptedCanceller struct {
	outcomes map[int]CancelOutcome
}

func (s *scriptedCanceller) CancelOp(ctx context.Context, desc op.ResourceDescriptor, callID int) (CancelOutcome, error) {
	o, ok := s.outcomes[callID]
	if !ok {
		return CancelNothingToCancel, nil
	}
	return o, nil
}

func TestRegistry_InsertLookupRemove(t *testing.T) {
	r := New()
	r.Insert(Op{RscID: "web1", OpKey: "monitor_10000", CallID: 5, Interval: 10000})

	e, ok := r.Lookup("web1:5")
	require.True(t, ok)
	assert.Equal(t, 5, e.CallID)

	r.Remove("web1:5")
	_, ok = r.Lookup("web1:5")
	assert.False(t, ok)
}

func TestRegistry_CountNonRecurring(t *testing.T) {
	r := New()
	r.Insert(Op{RscID: "web1", OpKey: "start_0", CallID: 1, Interval: 0})
	r.Insert(Op{RscID: "web1", OpKey: "monitor_10000", CallID: 2, Interval: 10000})

	assert.Equal(t, 1, r.CountNonRecurring())
}

func TestRegistry_CancelByOpKey_ImmediateRemovesEntry(t *testing.T) {
	r := New()
	r.Insert(Op{RscID: "web1", OpKey: "monitor_10000", CallID: 9, Interval: 10000})
	c := &scriptedCanceller{outcomes: map[int]CancelOutcome{9: CancelCancelled}}

	removed, err := r.CancelByOpKey(context.Background(), c, "web1", "monitor_10000", op.ResourceDescriptor{ID: "web1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"web1:9"}, removed)
	_, ok := r.Lookup("web1:9")
	assert.False(t, ok)
}

func TestRegistry_CancelByOpKey_PendingLeavesEntryCancelledFlagSet(t *testing.T) {
	r := New()
	r.Insert(Op{RscID: "web1", OpKey: "monitor_10000", CallID: 9, Interval: 10000})
	c := &scriptedCanceller{outcomes: map[int]CancelOutcome{9: CancelPending}}

	removed, err := r.CancelByOpKey(context.Background(), c, "web1", "monitor_10000", op.ResourceDescriptor{ID: "web1"})
	require.NoError(t, err)
	assert.Empty(t, removed)

	e, ok := r.Lookup("web1:9")
	require.True(t, ok)
	assert.True(t, e.Cancelled)
}

func TestRegistry_CancelUnknownOpKeyIsNoop(t *testing.T) {
	r := New()
	c := &scriptedCanceller{}

	removed, err := r.CancelByOpKey(context.Background(), c, "web1", "monitor_10000", op.ResourceDescriptor{ID: "web1"})
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestRegistry_DrainAllRecurring(t *testing.T) {
	r := New()
	r.Insert(Op{RscID: "web1", OpKey: "monitor_10000", CallID: 1, Interval: 10000})
	r.Insert(Op{RscID: "web2", OpKey: "monitor_5000", CallID: 2, Interval: 5000})
	r.Insert(Op{RscID: "web1", OpKey: "start_0", CallID: 3, Interval: 0})
	c := &scriptedCanceller{outcomes: map[int]CancelOutcome{1: CancelCancelled, 2: CancelCancelled}}

	removed, err := r.DrainAllRecurring(context.Background(), c)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web1:1", "web2:2"}, removed)

	_, ok := r.Lookup("web1:3")
	assert.True(t, ok, "one-shot entries survive a cluster-wide recurring drain")
}

func TestRegistry_DrainRecurringFor(t *testing.T) {
	r := New()
	r.Insert(Op{RscID: "web1", OpKey: "monitor_10000", CallID: 3, Interval: 10000})
	r.Insert(Op{RscID: "web1", OpKey: "start_0", CallID: 4, Interval: 0})
	c := &scriptedCanceller{outcomes: map[int]CancelOutcome{3: CancelCancelled}}

	removed, err := r.DrainRecurringFor(context.Background(), c, "web1", op.ResourceDescriptor{ID: "web1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"web1:3"}, removed)

	// The one-shot start_0 entry survives draining.
	_, ok := r.Lookup("web1:4")
	assert.True(t, ok)
}
