// Package history implements the per-resource history cache (§4.4): the
// last non-recurring result, the last failure, and the set of
// currently-registered recurring operations for each resource.
package history
