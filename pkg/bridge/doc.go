// Package bridge wires the operation model, reload cache, pending-op
// registry, history cache, dispatcher, completion processor, and
// control FSM into the single cohesive LrmBridge subsystem described
// by the component table: one event-loop-owned object per node,
// constructed once against an executor and a CIB capability and driven
// by the caller's transport/TE integration.
package bridge
