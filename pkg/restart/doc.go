// Package restart implements the digest and restart-list builder
// (§4.5): given a start operation and the reload cache's restart
// parameter list, it produces the two CIB attributes (a space-delimited
// parameter list and a stable digest) that let a subsequent reload
// decide whether the change is restart-free.
package restart
