package reload

import (
	"context"
	"time"

	"github.com/beevik/etree"
	"github.com/go-logr/logr"

	"github.com/clustercore/lrmbridge/pkg/op"
)

// MetadataFetcher is the slice of the executor capability this cache
// consumes: resource-agent meta-data lookup (§6 "get-metadata").
type MetadataFetcher interface {
	GetMetadata(ctx context.Context, class, typ, provider string) (string, error)
}

// Record is the cached per-agent-type reload capability (§3 ReloadRecord).
type Record struct {
	Key           string
	LastQueried   time.Time
	CanReload     bool
	RestartParams []string // ordered, parameters marked "unique" in the agent's metadata
}

// Cache maps "type::class:provider" to a Record. Reads and writes are
// expected to happen on the bridge's single event loop (§5); it holds
// no internal lock.
type Cache struct {
	fetcher   MetadataFetcher
	log       logr.Logger
	threshold time.Duration
	now       func() time.Time
	records   map[string]*Record
}

// New constructs a Cache. threshold is the re-query gate for a cached
// "cannot reload" result on a subsequent start (§4.2 step 2), defaulting
// to ~9s per spec.
func New(fetcher MetadataFetcher, log logr.Logger, threshold time.Duration) *Cache {
	if threshold <= 0 {
		threshold = 9 * time.Second
	}
	return &Cache{
		fetcher:   fetcher,
		log:       log,
		threshold: threshold,
		now:       time.Now,
		records:   make(map[string]*Record),
	}
}

// Lookup returns the ordered restart-parameter list for desc, or nil if
// the agent does not advertise reload (or its metadata could not be
// parsed). isStart must be true only when the caller is handling a
// start operation — re-query-on-negative-result only applies to starts
// (§4.2 step 2, §8 boundary behaviour).
func (c *Cache) Lookup(ctx context.Context, desc op.ResourceDescriptor, isStart bool) ([]string, error) {
	key := desc.MetadataKey()
	rec, ok := c.records[key]

	if ok {
		if rec.CanReload {
			return rec.RestartParams, nil
		}
		if !isStart || c.now().Sub(rec.LastQueried) < c.threshold {
			return nil, nil
		}
		// Negative result is stale on a start: fall through and re-query.
	}

	text, err := c.fetcher.GetMetadata(ctx, desc.Class, desc.Type, desc.EffectiveProvider())
	if err != nil {
		c.log.V(1).Info("meta-data fetch failed, caching negative result", "key", key, "error", err)
		c.records[key] = &Record{Key: key, LastQueried: c.now(), CanReload: false}
		return nil, nil
	}

	newRec := c.parse(key, text)
	c.records[key] = newRec
	return newRec.RestartParams, nil
}

// parse extracts the restart-parameter list from a <resource-agent>
// meta-data document: find the "reload" action, then every <parameter
// unique="1"> beneath <parameters>. Any parse failure yields a
// can_reload=false record with an empty list — the cache must survive
// malformed documents (§4.2).
func (c *Cache) parse(key, text string) *Record {
	rec := &Record{Key: key, LastQueried: c.now()}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		c.log.Info("malformed meta-data document, treating as cannot-reload", "key", key, "error", err)
		return rec
	}

	actions := doc.FindElement("//actions")
	if actions == nil {
		return rec
	}

	var reloadAction *etree.Element
	for _, a := range actions.SelectElements("action") {
		if a.SelectAttrValue("name", "") == string(op.VerbReload) {
			reloadAction = a
			break
		}
	}
	if reloadAction == nil {
		return rec
	}

	rec.CanReload = true

	params := doc.FindElement("//parameters")
	if params == nil {
		return rec
	}
	for _, p := range params.SelectElements("parameter") {
		if truthy(p.SelectAttrValue("unique", "")) {
			if name := p.SelectAttrValue("name", ""); name != "" {
				rec.RestartParams = append(rec.RestartParams, name)
			}
		}
	}
	return rec
}

func truthy(v string) bool {
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
