package op

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Well-known CRM_meta_* parameter names the TE embeds to carry timing
// and bookkeeping alongside user parameters (§4.1).
const (
	MetaInterval   = "CRM_meta_interval"
	MetaTimeout    = "CRM_meta_timeout"
	MetaStartDelay = "CRM_meta_start_delay"
	MetaFeatureSet = "feature-set"
)

// metaPrefix identifies the CRM_meta_* subset retained on stop actions.
const metaPrefix = "CRM_meta_"

// Build constructs an Operation from the TE's request: a resource id, a
// verb, the parameter sub-tree (a <nvpair name=".." value=".."/> list,
// Pacemaker's on-wire parameter encoding), and the transition key that
// identifies this request's graph edge (may be empty for
// system-initiated stops, §4.1).
//
// Sanity defaults are applied per §4.1: negative interval clamps to 0;
// non-positive timeout defaults to interval; negative start-delay
// clamps to 0; start/stop with a non-zero interval is a configuration
// error and the interval is forced back to 0.
func Build(rscID string, verb Verb, paramsElem *etree.Element, transitionKey string) Operation {
	params := extractParams(paramsElem)

	interval := atoiDefault(params[MetaInterval], 0)
	if interval < 0 {
		interval = 0
	}
	if !verb.IsRecurringEligible() && interval != 0 {
		// Configuration error: start/stop must be one-shot. The caller's
		// logger should record this; the core corrects it silently so
		// dispatch can proceed.
		interval = 0
	}

	timeout := atoiDefault(params[MetaTimeout], 0)
	if timeout <= 0 {
		timeout = interval
	}

	startDelay := atoiDefault(params[MetaStartDelay], 0)
	if startDelay < 0 {
		startDelay = 0
	}

	o := Operation{
		RscID:         rscID,
		Verb:          verb,
		Interval:      interval,
		Timeout:       timeout,
		StartDelay:    startDelay,
		TransitionKey: transitionKey,
		ExpectedRC:    expectedRC(transitionKey),
	}

	switch verb {
	case VerbStart, VerbMonitor:
		o.CopyParams = true
		o.Params = stripMeta(params)
	case VerbStop:
		o.CopyParams = false
		o.Params = onlyMeta(params)
	default:
		o.CopyParams = true
		o.Params = stripMeta(params)
	}

	o.Result = Result{Status: StatusPending}
	return o
}

// extractParams flattens a <nvpair name=".." value=".."/> parameter
// sub-tree into a name->value map. A nil element yields an empty map.
func extractParams(elem *etree.Element) map[string]string {
	out := make(map[string]string)
	if elem == nil {
		return out
	}
	for _, nvpair := range elem.SelectElements("nvpair") {
		name := nvpair.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		out[name] = nvpair.SelectAttrValue("value", "")
	}
	return out
}

// stripMeta drops the CRM_meta_* bookkeeping keys, leaving only the
// agent-facing (and feature-set) parameters.
func stripMeta(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if strings.HasPrefix(k, metaPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// onlyMeta keeps only the CRM_meta_* subset plus feature-set — the
// parameter set a stop action runs against, i.e. the one the resource
// was *started* with, never the newer user parameters (§4.1 invariant).
func onlyMeta(params map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range params {
		if strings.HasPrefix(k, metaPrefix) || k == MetaFeatureSet {
			out[k] = v
		}
	}
	return out
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// expectedRC derives the predicted return code encoded in the
// transition key. The TE encodes this as a trailing ":<rc>" segment;
// absence (system-initiated ops with no transition key) defaults to
// RCOK, the common case.
func expectedRC(transitionKey string) int {
	idx := strings.LastIndex(transitionKey, ":")
	if idx < 0 || idx == len(transitionKey)-1 {
		return RCOK
	}
	if n, err := strconv.Atoi(transitionKey[idx+1:]); err == nil {
		return n
	}
	return RCOK
}
