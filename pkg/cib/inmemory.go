package cib

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/beevik/etree"

	bridgeerrors "github.com/clustercore/lrmbridge/internal/errors"
)

// InMemory is a scriptable Client used by the bridge's own test suites
// in place of a live cluster connection: submissions are recorded
// immediately, but completion is only reported once a test calls
// Complete, mirroring the asynchronous contract without a real
// quorum-bearing backend.
type InMemory struct {
	mu        sync.Mutex
	doc       *etree.Document
	cb        UpdateCallback
	nextID    int32
	Deletes   []string // xpaths submitted, in submission order
	Fragments []*etree.Element
	DenyList  map[string]bool // resource ids CheckDeletePermission should reject
}

// NewInMemory constructs an empty InMemory CIB client.
func NewInMemory() *InMemory {
	doc := etree.NewDocument()
	doc.CreateElement("status")
	return &InMemory{doc: doc, DenyList: make(map[string]bool)}
}

// CheckDeletePermission denies rscID only if the test has added it to
// DenyList; real backends would consult the CIB's ACL subsystem.
func (c *InMemory) CheckDeletePermission(ctx context.Context, rscID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DenyList[rscID] {
		return bridgeerrors.ErrPermissionDenied
	}
	return nil
}

func (c *InMemory) OnUpdateComplete(cb UpdateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

func (c *InMemory) UpdateStatus(ctx context.Context, fragment *etree.Element, quorumOverride bool) (int, error) {
	id := int(atomic.AddInt32(&c.nextID, 1))
	c.mu.Lock()
	c.Fragments = append(c.Fragments, fragment)
	c.doc.Root().AddChild(fragment.Copy())
	c.mu.Unlock()
	return id, nil
}

func (c *InMemory) DeleteXPath(ctx context.Context, xpath string, quorumOverride bool) (int, error) {
	id := int(atomic.AddInt32(&c.nextID, 1))
	c.mu.Lock()
	c.Deletes = append(c.Deletes, xpath)
	if el := c.doc.FindElement(xpath); el != nil {
		el.Parent().RemoveChild(el)
	}
	c.mu.Unlock()
	return id, nil
}

// Complete delivers a (possibly failing) completion for updateID to the
// installed callback, as a test driving timing would.
func (c *InMemory) Complete(updateID int, err error) {
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb != nil {
		cb(updateID, err)
	}
}

// FindResource returns the tracked status-subtree element for rscID, if
// any, for test assertions.
func (c *InMemory) FindResource(rscID string) *etree.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.FindElement(ResourceXPath(rscID))
}
