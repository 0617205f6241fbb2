// Package executor defines the capability interface the bridge uses to
// talk to the local resource executor (§6): sign-on/off, resource
// registration, operation dispatch and cancellation, and meta-data
// lookup. It also provides an in-memory implementation used by tests
// and by higher-level packages' own test suites — the executor's
// process mechanics (forking agent scripts, reaping children) are out
// of scope; only the wire-shaped contract is modelled here.
package executor
