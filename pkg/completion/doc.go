// Package completion implements the completion processor (§4.7): it
// normalises the executor's completion status, resolves the pending
// record, pushes an asynchronous CIB history update (skipping notify
// and cancelled completions; recurring completions are written but
// never produce a direct ack, since they never confirm a graph edge),
// prunes the pending record's targeted CIB entry when requested, and
// folds the result into the resource-history cache.
package completion
