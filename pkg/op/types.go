package op

import "fmt"

// Verb is the closed set of actions a resource agent understands.
type Verb string

const (
	VerbStart       Verb = "start"
	VerbStop        Verb = "stop"
	VerbMonitor     Verb = "monitor"
	VerbPromote     Verb = "promote"
	VerbDemote      Verb = "demote"
	VerbMigrateFrom Verb = "migrate_from"
	VerbMigrateTo   Verb = "migrate_to"
	VerbNotify      Verb = "notify"
	VerbDelete      Verb = "delete"
	VerbMetaData    Verb = "meta-data"
	VerbReload      Verb = "reload"
	VerbFail        Verb = "fail"
	VerbCancel      Verb = "cancel"
)

// IsRecurringEligible reports whether interval > 0 is legal for this verb.
// Start and stop are always one-shot (§3 invariant).
func (v Verb) IsRecurringEligible() bool {
	return v != VerbStart && v != VerbStop
}

// DrainsRecurring reports whether dispatching this verb must first
// silence any recurring monitor registered for the same resource (§4.6
// step 2).
func (v Verb) DrainsRecurring() bool {
	switch v {
	case VerbStop, VerbDemote, VerbPromote, VerbMigrateFrom, VerbMigrateTo:
		return true
	default:
		return false
	}
}

// Status is the completion status of an operation.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDone        Status = "done"
	StatusCancelled   Status = "cancelled"
	StatusTimeout     Status = "timeout"
	StatusError       Status = "error"
	StatusNotSupported Status = "not-supported"
)

// Well-known monitor return codes the spec calls out by name.
const (
	RCOK             = 0
	RCRunningMaster  = 8 // "running as master" — a legitimate non-error monitor outcome
	RCNotRunning     = 7 // "not running" — legitimate stopped-probe outcome
)

// DefaultProvider is substituted when a ResourceDescriptor's Provider is
// empty, matching the original's canonical default (§3).
const DefaultProvider = "heartbeat"

// ResourceDescriptor is the immutable (class, provider, type) triple
// plus a stable resource id.
type ResourceDescriptor struct {
	ID       string
	Class    string
	Provider string
	Type     string
}

// EffectiveProvider returns Provider, or DefaultProvider if Provider is
// empty — used when computing reload-cache keys (§3, §4.2).
func (d ResourceDescriptor) EffectiveProvider() string {
	if d.Provider == "" {
		return DefaultProvider
	}
	return d.Provider
}

// MetadataKey returns the "type::class:provider" key the reload cache
// indexes on (§4.2).
func (d ResourceDescriptor) MetadataKey() string {
	return fmt.Sprintf("%s::%s:%s", d.Type, d.Class, d.EffectiveProvider())
}

// Result holds the fields an Operation gains on completion.
type Result struct {
	Status   Status
	ReturnCode int
	Output   string
	CallID   int
}

// Operation is a single action invocation: resource id, verb, timing,
// parameters, and (once completed) a Result.
type Operation struct {
	RscID         string
	Verb          Verb
	Interval      int // milliseconds; 0 = one-shot
	Timeout       int // milliseconds
	StartDelay    int // milliseconds
	Params        map[string]string
	TransitionKey string
	ExpectedRC    int
	CopyParams    bool // instructs the executor to refresh agent params before invocation
	Deleted       bool // executor flagged this completion as having purged the resource

	Result
}

// OpKey returns the "<verb>_<interval>" string that uniquely identifies
// a recurring regime per resource (glossary: Op key).
func (o Operation) OpKey() string {
	return fmt.Sprintf("%s_%d", o.Verb, o.Interval)
}

// StopID returns "<rsc>:<call_id>", the pending-registry key (glossary:
// Stop-id). Only meaningful once CallID has been assigned.
func (o Operation) StopID() string {
	return fmt.Sprintf("%s:%d", o.RscID, o.CallID)
}

// IsRecurring reports whether this is a recurring (interval > 0) operation.
func (o Operation) IsRecurring() bool {
	return o.Interval > 0
}

// IsStatusVerb reports whether Verb is monitor-like (does not itself
// invalidate a resource's recurring regime on success, §4.4).
func (o Operation) IsStatusVerb() bool {
	return o.Verb == VerbMonitor
}

// Succeeded reports whether this completed operation counts as a
// success per §4.4: done status, and RC == expected or, for monitors,
// RC == RCRunningMaster or RC == RCNotRunning (legitimate, non-failure
// outcomes).
func (o Operation) Succeeded() bool {
	if o.Result.Status != StatusDone {
		return false
	}
	if o.Result.ReturnCode == o.ExpectedRC {
		return true
	}
	if o.Verb == VerbMonitor && (o.Result.ReturnCode == RCRunningMaster || o.Result.ReturnCode == RCNotRunning) {
		return true
	}
	return false
}

// IsFailure is the §4.4 failure predicate: status != done, or RC !=
// expected-rc without the monitor allowances.
func (o Operation) IsFailure() bool {
	return !o.Succeeded()
}

// StoppedResource reports whether this completed operation, on its
// own, indicates the resource is now inactive: a successful stop, a
// successful migrate, or a monitor returning "not running" (§3, §4.4).
// Preserved verbatim per the design notes' "a stricter check is too
// complex" comment on migrate.
func (o Operation) StoppedResource() bool {
	if !o.Succeeded() {
		return false
	}
	switch o.Verb {
	case VerbStop, VerbMigrateFrom, VerbMigrateTo:
		return true
	case VerbMonitor:
		return o.Result.ReturnCode == RCNotRunning
	default:
		return false
	}
}
