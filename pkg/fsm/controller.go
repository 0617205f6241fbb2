package fsm

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"

	bridgeerrors "github.com/clustercore/lrmbridge/internal/errors"
	"github.com/clustercore/lrmbridge/pkg/deletion"
	"github.com/clustercore/lrmbridge/pkg/executor"
	"github.com/clustercore/lrmbridge/pkg/history"
	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/pending"
)

// Controller implements the §4.8 control FSM hook: connect/disconnect
// against the executor, unexpected-disconnect handling, and a bounded,
// circuit-broken reconnect.
type Controller struct {
	Executor     executor.Executor
	History      *history.Cache
	Pending      *pending.Registry
	Deletions    *deletion.Tracker
	Log          logr.Logger
	OnCompletion executor.CompletionCallback

	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration

	state     atomic.Int32
	connected atomic.Bool
	breaker   *gobreaker.CircuitBreaker[any]
}

// New constructs a Controller wired against exec, with cb installed as
// the executor's completion sink on every successful connect.
func New(exec executor.Executor, hist *history.Cache, reg *pending.Registry, del *deletion.Tracker, log logr.Logger, cb executor.CompletionCallback, maxAttempts int, baseDelay time.Duration) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	c := &Controller{
		Executor:             exec,
		History:              hist,
		Pending:              reg,
		Deletions:            del,
		Log:                  log,
		OnCompletion:         cb,
		ReconnectMaxAttempts: maxAttempts,
		ReconnectBaseDelay:   baseDelay,
	}
	c.state.Store(int32(StateDisconnected))
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "executor-connection",
		MaxRequests: 1,
		Timeout:     baseDelay * time.Duration(maxAttempts) * 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("executor circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return c
}

// State returns the controller's current coarse state.
func (c *Controller) State() State { return State(c.state.Load()) }

// SetState overwrites the controller's coarse state.
func (c *Controller) SetState(s State) { c.state.Store(int32(s)) }

// IsConnected reports whether the executor connection is believed
// live.
func (c *Controller) IsConnected() bool { return c.connected.Load() }

// StateGate implements dispatch.StateGate: ordinary verb dispatch is
// permitted only while executing states hold (§4.6).
func (c *Controller) StateGate(_ op.Verb) bool {
	return c.State().ExecutingAllowed()
}

// Connect runs the bounded, circuit-broken reconnect sequence (§4.8
// "Bounded reconnect"): sign on, install the completion callback, and
// prime the history cache from the executor's current-state
// enumeration. Exceeding the configured attempt budget raises
// ErrReconnectExhausted; an already-open breaker short-circuits
// without attempting the executor at all.
func (c *Controller) Connect(ctx context.Context) error {
	c.SetState(StateConnecting)
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.reconnectWithBackoff(ctx)
	})
	if err != nil {
		c.SetState(StateDisconnected)
		return err
	}
	return nil
}

func (c *Controller) reconnectWithBackoff(ctx context.Context) error {
	attempt := func() (struct{}, error) {
		return struct{}{}, c.connectOnce(ctx)
	}
	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = c.ReconnectBaseDelay
	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(expBackOff),
		backoff.WithMaxTries(uint(c.ReconnectMaxAttempts)))
	if err != nil {
		return bridgeerrors.New("fsm.Connect", "reconnect", "", bridgeerrors.ErrReconnectExhausted)
	}
	return nil
}

func (c *Controller) connectOnce(ctx context.Context) error {
	if err := c.Executor.SignOn(ctx, c.OnCompletion); err != nil {
		return err
	}
	if err := c.primeHistory(ctx); err != nil {
		return err
	}
	c.connected.Store(true)
	c.SetState(StateNotDC)
	return nil
}

// primeHistory enumerates every resource the executor knows about and
// ingests its current-state op list in call-id order (§4.8 "connect").
// A duplicate call id logs a warning and is skipped; an out-of-order
// call id logs an error and is discarded — both are preserved exactly
// per the design notes' priming invariant (§8 "Round-trip and
// idempotence").
func (c *Controller) primeHistory(ctx context.Context) error {
	resources, err := c.Executor.ListResources(ctx)
	if err != nil {
		return err
	}
	for _, desc := range resources {
		ops, err := c.Executor.GetCurrentOps(ctx, desc.ID)
		if err != nil {
			c.Log.Error(err, "failed enumerating current ops while priming history", "resource", desc.ID)
			continue
		}
		lastCallID := -1
		for _, o := range ops {
			switch {
			case o.Result.CallID == lastCallID:
				c.Log.Info("duplicate call id while priming history, ignoring", "resource", desc.ID, "call_id", o.Result.CallID)
				continue
			case o.Result.CallID < lastCallID:
				c.Log.Error(errOutOfOrderCallID, "out-of-order call id while priming history, discarding", "resource", desc.ID, "call_id", o.Result.CallID)
				continue
			}
			lastCallID = o.Result.CallID
			c.History.Record(desc, o)
		}
	}
	return nil
}

var errOutOfOrderCallID = errors.New("call id out of order during history priming")

// ErrNotVerifiedStopped is returned by Disconnect when verify-stopped
// does not hold; the caller should retry once a pending operation
// completes (§4.8 "disconnect").
var ErrNotVerifiedStopped = errors.New("fsm: executor not verified stopped, disconnect deferred")

// Disconnect implements §4.8 "disconnect": permitted only once
// VerifyStopped holds.
func (c *Controller) Disconnect(ctx context.Context, logLevel int) error {
	if !c.VerifyStopped(logLevel) {
		return ErrNotVerifiedStopped
	}
	if err := c.Executor.SignOff(ctx); err != nil {
		return err
	}
	c.connected.Store(false)
	c.SetState(StateDisconnected)
	return nil
}

// HandleConnectionLoss implements §4.8 "unexpected loss": a loss while
// previously connected is fence-worthy and raised as a local error;
// otherwise it is an expected disconnect and only logged.
func (c *Controller) HandleConnectionLoss() error {
	wasConnected := c.connected.Swap(false)
	c.SetState(StateDisconnected)
	if wasConnected {
		return bridgeerrors.New("fsm.HandleConnectionLoss", "connection", "", bridgeerrors.ErrExecutorConnectionLost)
	}
	c.Log.V(1).Info("executor connection loss while not connected, ignoring")
	return nil
}
