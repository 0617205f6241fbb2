package cib

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/clustercore/lrmbridge/pkg/op"
	"github.com/clustercore/lrmbridge/pkg/restart"
)

// OpEntryID returns the stable id of a resource's per-op-key history
// entry, matching the naming convention a real status subtree uses
// (resource id, verb, interval).
func OpEntryID(rscID, opKey string) string {
	return fmt.Sprintf("%s_%s", rscID, opKey)
}

// ResourceXPath addresses a resource's entire status-subtree entry, for
// the whole-resource delete issued on deletion-completed (§4.9, example
// 6).
func ResourceXPath(rscID string) string {
	return fmt.Sprintf("//lrm_resource[@id='%s']", rscID)
}

// OpEntryXPath addresses a single op's history entry, for the targeted
// delete a cancellation with remove=true issues (§4.3, §4.7 step 5).
func OpEntryXPath(rscID, opKey string) string {
	return fmt.Sprintf("//lrm_resource[@id='%s']/lrm_rsc_op[@id='%s']", rscID, OpEntryID(rscID, opKey))
}

// BuildHistoryFragment constructs the <lrm_resource> status-subtree
// fragment a completion writes (§4.7 step 4): the resource descriptor,
// the completed op's outcome, and — when restartAttrs is present — the
// restart-list and digest attributes (§4.5).
func BuildHistoryFragment(desc op.ResourceDescriptor, o op.Operation, restartAttrs restart.Attrs, hasRestart bool) *etree.Element {
	rsc := etree.NewElement("lrm_resource")
	rsc.CreateAttr("id", desc.ID)
	rsc.CreateAttr("class", desc.Class)
	rsc.CreateAttr("provider", desc.EffectiveProvider())
	rsc.CreateAttr("type", desc.Type)

	rscOp := rsc.CreateElement("lrm_rsc_op")
	rscOp.CreateAttr("id", OpEntryID(desc.ID, o.OpKey()))
	rscOp.CreateAttr("operation", string(o.Verb))
	rscOp.CreateAttr("interval", fmt.Sprintf("%d", o.Interval))
	rscOp.CreateAttr("call-id", fmt.Sprintf("%d", o.Result.CallID))
	rscOp.CreateAttr("rc-code", fmt.Sprintf("%d", o.Result.ReturnCode))
	rscOp.CreateAttr("op-status", string(o.Result.Status))
	if o.TransitionKey != "" {
		rscOp.CreateAttr("transition-key", o.TransitionKey)
	}

	if hasRestart {
		rscOp.CreateAttr("op-restart-digest", restartAttrs.Digest)
		rscOp.CreateAttr("op-force-restart", restartAttrs.RestartList)
	}

	return rsc
}
