// Package dispatch implements the invocation dispatcher (§4.6): it
// resolves a resource in the executor, drains any recurring monitor
// that would otherwise race a stop/demote/promote/migrate, cancels a
// same-op-key recurring registration, submits the new operation, and
// registers a pending record — fabricating an immediate direct ack for
// any operation (recurring or one-shot) with a long start-delay so the
// transition does not stall. It also implements the two verbs that never touch the
// executor for ordinary dispatch: cancel and delete.
package dispatch
