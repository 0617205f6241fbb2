// Package errors provides the bridge's structured error taxonomy.
//
// It distinguishes local errors (things the bridge itself must recover,
// typically by raising an FSM input) from cluster errors (things the DC
// must decide, reported via CIB updates and direct acks). See
// BridgeError.Kind and the Is* classifiers below.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison via errors.Is.
var (
	// Submission failure: executor rejected perform-op (non-positive call id).
	ErrSubmissionFailed = errors.New("executor rejected operation submission")

	// Agent failure: completion event carried a non-expected return code.
	ErrAgentFailure = errors.New("agent reported failure")

	// Connection loss to the executor, encountered while believed connected.
	ErrExecutorConnectionLost = errors.New("executor connection lost")

	// Executor never reached: bounded reconnect attempts exhausted.
	ErrReconnectExhausted = errors.New("executor reconnect attempts exhausted")

	// CIB update failed to land; not retried within the core.
	ErrCIBUpdateFailed = errors.New("cib update failed")

	// Permission denied on a privileged verb (delete).
	ErrPermissionDenied = errors.New("permission denied")

	// Invalid request: missing resource XML or malformed parameters.
	ErrInvalidRequest = errors.New("invalid request")

	// Verb rejected because the FSM is not in an executing state.
	ErrVerbNotPermitted = errors.New("verb not permitted in current fsm state")

	// Resource unknown to the executor and the verb does not permit registration.
	ErrResourceNotFound = errors.New("resource not found")

	// Pending record not found for a stop-id.
	ErrPendingNotFound = errors.New("pending operation not found")

	// Resource deletion deferred: operations still in flight.
	ErrResourceBusy = errors.New("resource busy, deletion deferred")
)

// BridgeError carries structured context around a sentinel error, in the
// style of an operation/kind/id triple plus a wrapped cause.
type BridgeError struct {
	Op      string // e.g. "dispatch.Invoke", "completion.Process"
	Kind    string // e.g. "submission", "agent", "cib", "permission"
	RscID   string // resource id involved, if any
	Message string
	Err     error
}

func (e *BridgeError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil && e.RscID != "":
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.RscID, e.Err)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s error", e.Kind)
	}
}

func (e *BridgeError) Unwrap() error { return e.Err }

// New constructs a BridgeError wrapping err under op/kind.
func New(op, kind, rscID string, err error) *BridgeError {
	return &BridgeError{Op: op, Kind: kind, RscID: rscID, Err: err}
}

// IsLocal reports whether err is one this subsystem must recover from
// itself (FSM input or forced disconnect/reconnect), as opposed to one
// the DC must decide.
func IsLocal(err error) bool {
	return errors.Is(err, ErrSubmissionFailed) ||
		errors.Is(err, ErrExecutorConnectionLost) ||
		errors.Is(err, ErrReconnectExhausted)
}

// IsCluster reports whether err must be surfaced to the DC via CIB
// update or direct ack rather than retried locally.
func IsCluster(err error) bool {
	return errors.Is(err, ErrAgentFailure) ||
		errors.Is(err, ErrCIBUpdateFailed) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsNotFound reports whether err represents a "no such entry" condition
// that callers (e.g. an unknown cancel) should treat as a benign no-op.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrPendingNotFound)
}
