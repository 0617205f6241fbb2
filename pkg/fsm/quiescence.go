package fsm

import (
	"context"
	"errors"
)

var (
	errNonRecurringPendingAtShutdown = errors.New("non-recurring operations still pending at shutdown")
	errResourcesActiveAtShutdown     = errors.New("resources still active with no pending operations at shutdown")
)

// VerifyStopped implements §4.9: it drains recurring ops if the
// executor is still connected, reports whether any non-recurring work
// remains pending, and logs resources the history cache still
// considers active once the pending count reaches zero. logLevel is
// the caller's intended log level; it is raised internally when the
// controller is terminating (step 1).
func (c *Controller) VerifyStopped(logLevel int) bool {
	terminating := c.State() == StateTerminating
	errorLevel := terminating

	if c.IsConnected() {
		if _, err := c.Pending.DrainAllRecurring(context.Background(), c.Executor); err != nil {
			c.Log.Error(err, "failed draining recurring ops during shutdown quiescence")
		}
	}

	nonRecurring := c.Pending.CountNonRecurring()
	if nonRecurring > 0 {
		dump := c.Pending.NonRecurring()
		if errorLevel {
			c.Log.Error(errNonRecurringPendingAtShutdown, "shutdown quiescence", "count", nonRecurring, "pending", dump)
		} else {
			c.Log.V(logLevel).Info("shutdown quiescence: non-recurring operations still pending", "count", nonRecurring, "pending", dump)
		}
		if !c.State().IsTerminal() {
			return false
		}
		c.Log.Info("terminal state forces stopped despite outstanding pending operations", "count", nonRecurring)
		return true
	}

	if active := c.History.ActiveResources(); len(active) > 0 {
		c.Log.Error(errResourcesActiveAtShutdown, "shutdown quiescence", "resources", active)
	}

	return true
}
