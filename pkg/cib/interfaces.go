package cib

import (
	"context"

	"github.com/beevik/etree"
)

// UpdateCallback fires once per submitted update or delete, in
// completion order (not necessarily submission order — updates are
// independent and asynchronous, §5).
type UpdateCallback func(updateID int, err error)

// Client is the capability surface the bridge needs from the cluster's
// configuration document (§6 "CIB interface"). Every write targets the
// local node's status subtree only.
type Client interface {
	// UpdateStatus submits fragment as a status-subtree update.
	// quorumOverride lets a partitioned node still update its own
	// status when the cluster lacks quorum.
	UpdateStatus(ctx context.Context, fragment *etree.Element, quorumOverride bool) (updateID int, err error)
	// DeleteXPath submits a delete of the node(s) matched by xpath.
	DeleteXPath(ctx context.Context, xpath string, quorumOverride bool) (updateID int, err error)
	// OnUpdateComplete installs the sink for asynchronous completions
	// of both UpdateStatus and DeleteXPath calls.
	OnUpdateComplete(cb UpdateCallback)
}

// ACLChecker is the narrow capability the delete verb consumes to
// dry-run a privileged operation against the CIB's access-control list
// before ever contacting the executor (§4.6 "delete").
type ACLChecker interface {
	CheckDeletePermission(ctx context.Context, rscID string) error
}
