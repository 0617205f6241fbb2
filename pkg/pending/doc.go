// Package pending implements the pending-op registry (§4.3): the
// single source of truth for "is the node quiescent?", keyed by
// stop-id ("<resource id>:<call id>").
package pending
