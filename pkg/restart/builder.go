package restart

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/blang/semver"

	"github.com/clustercore/lrmbridge/pkg/op"
)

// Attrs are the two CIB attributes a start completion attaches to its
// resource-history entry once a restart list applies (§4.5).
type Attrs struct {
	// RestartList is the space-delimited parameter list, padded with a
	// leading and trailing space to match the original's membership-test
	// convention (a later reload checks " name " as a substring).
	RestartList string
	Digest      string
}

// Build computes Attrs for a completed start operation, or reports ok
// == false when no restart list applies: o is not a start, the agent
// declared no restart parameters, none of them were actually supplied
// on this invocation, or the DC's advertised feature-set is older than
// the threshold that introduced restart-list support (§4.5, §9 open
// question — feature-set gating resolved as "parse failure treated as
// below threshold, never above").
func Build(o op.Operation, restartParams []string, peerFeatureSet, threshold string) (Attrs, bool) {
	if o.Verb != op.VerbStart {
		return Attrs{}, false
	}
	if len(restartParams) == 0 {
		return Attrs{}, false
	}
	if !featureSetAtLeast(peerFeatureSet, threshold) {
		return Attrs{}, false
	}

	present := presentRestartParams(o.Params, restartParams)
	if len(present) == 0 {
		return Attrs{}, false
	}

	return Attrs{
		RestartList: " " + strings.Join(present, " ") + " ",
		Digest:      digest(o.Params, present),
	}, true
}

// presentRestartParams filters restartParams down to the ones actually
// supplied on this invocation, preserving the agent's declared order.
func presentRestartParams(params map[string]string, restartParams []string) []string {
	var out []string
	for _, name := range restartParams {
		if _, ok := params[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// digest builds a synthetic <parameters> document containing only the
// restart-list keys, sorted by name so the hash is independent of map
// iteration order and of the agent metadata's declaration order, and
// returns its MD5 sum hex-encoded. A cryptographic digest is
// unnecessary here — this is a change-detection fingerprint, not a
// security boundary — but MD5 keeps it short and matches the original
// wire format closely enough for a reload peer to compare byte-for-byte.
func digest(params map[string]string, names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	doc := etree.NewDocument()
	root := doc.CreateElement("parameters")
	for _, name := range sorted {
		nv := root.CreateElement("nvpair")
		nv.CreateAttr("name", name)
		nv.CreateAttr("value", params[name])
	}
	doc.Indent(0)
	canonical, _ := doc.WriteToString()

	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// featureSetAtLeast reports whether peer is a parseable version >=
// threshold. An unparseable peer version is treated as below threshold
// — restart-list support must be positively advertised, never assumed.
func featureSetAtLeast(peer, threshold string) bool {
	p, err := semver.Make(normalize(peer))
	if err != nil {
		return false
	}
	th, err := semver.Make(normalize(threshold))
	if err != nil {
		return false
	}
	return p.GTE(th)
}

// normalize pads a two-component "major.minor" version out to the
// three-component form semver.Make requires.
func normalize(v string) string {
	if strings.Count(v, ".") == 1 {
		return v + ".0"
	}
	return v
}
