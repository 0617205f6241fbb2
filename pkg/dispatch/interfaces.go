package dispatch

import (
	"context"

	"github.com/beevik/etree"

	"github.com/clustercore/lrmbridge/pkg/op"
)

// Resolver is the slice of the executor capability dispatch consumes to
// find or register a resource before submitting work against it (§4.6
// step 1).
type Resolver interface {
	GetResource(ctx context.Context, rscID string) (op.ResourceDescriptor, bool, error)
	AddResource(ctx context.Context, desc op.ResourceDescriptor) error
}

// Submitter is the slice of the executor capability dispatch consumes
// to hand off a built Operation (§4.6 step 5).
type Submitter interface {
	PerformOp(ctx context.Context, desc op.ResourceDescriptor, o op.Operation) (callID int, err error)
}

// Deleter is the slice of the executor capability the delete verb
// consumes (§4.6 "delete").
type Deleter interface {
	DeleteResource(ctx context.Context, rscID string) error
}

// AckStatus is the outcome reported back to the requesting system/host
// via a direct ack — the protocol acknowledgement, distinct from the
// operation's eventual business result (§9 design note).
type AckStatus int

const (
	AckSuccess AckStatus = iota
	AckError
)

// Ack is a synthetic or genuine direct acknowledgement addressed back
// to the requester.
type Ack struct {
	RscID   string
	Status  AckStatus
	Message string
}

// CancelTarget is the (verb, interval, call id) triple extracted from a
// cancel request's meta-parameters (§4.6 "cancel"). CallID is optional
// and is carried for the caller's benefit only: Dispatcher.Cancel
// matches by op-key alone whatever its value.
type CancelTarget struct {
	Verb     op.Verb
	Interval int
	CallID   int
}

// Request is a single TE-originated invocation request: a resolved (or
// to-be-registered) resource descriptor, the verb to perform, its
// parameter sub-tree, and the transition key the DC will use to
// reconcile the eventual completion.
type Request struct {
	Desc          op.ResourceDescriptor
	Verb          op.Verb
	ParamsElem    *etree.Element
	TransitionKey string
}
