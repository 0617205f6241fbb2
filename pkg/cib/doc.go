// Package cib defines the capability interface the bridge uses to
// update the cluster's replicated configuration document (§6): a
// whole-fragment status-subtree update, an xpath-addressed delete with
// a quorum-override flag for partitioned-node writes, and a registered
// asynchronous callback on update completion. The bridge only ever
// touches its own node's status subtree; it never mutates
// configuration.
package cib
