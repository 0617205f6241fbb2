package completion

import "github.com/clustercore/lrmbridge/pkg/op"

var knownStatuses = map[op.Status]bool{
	op.StatusPending:      true,
	op.StatusDone:         true,
	op.StatusCancelled:    true,
	op.StatusTimeout:      true,
	op.StatusError:        true,
	op.StatusNotSupported: true,
}

// NormalizeStatus applies §4.7 step 1: an unrecognised status code
// becomes error, and (status=error, rc in {running-as-master,
// not-running}) is remapped to done — these return codes are
// legitimate monitor outcomes, not failures, and it is the DC's job to
// decide what they mean for the resource's role.
func NormalizeStatus(raw op.Status, rc int) op.Status {
	st := raw
	if !knownStatuses[st] {
		st = op.StatusError
	}
	if st == op.StatusError && (rc == op.RCRunningMaster || rc == op.RCNotRunning) {
		st = op.StatusDone
	}
	return st
}
