// Package mock provides an in-memory component tree implementing
// finder.Transport for tests and offline use.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/locator"
	"github.com/devicelab-dev/guilocator/pkg/selector"
)

// ErrNoSuchElement is returned by Element for unknown ids.
var ErrNoSuchElement = errors.New("no such element")

// Config configures mock driver behavior.
type Config struct {
	// Delay adds artificial latency per call
	Delay time.Duration
	// Err makes every call fail with this error
	Err error
}

type node struct {
	props    core.ElementProperties
	parent   int64
	hasOwner bool
}

// Driver is an in-memory component tree. Elements are kept in insertion
// order, which is the traversal order reported by FindElements.
type Driver struct {
	Config Config

	mu    sync.RWMutex
	order []int64
	nodes map[int64]*node

	findCalls    atomic.Int64
	elementCalls atomic.Int64
}

// New creates an empty mock driver.
func New(cfg Config) *Driver {
	return &Driver{Config: cfg, nodes: make(map[int64]*node)}
}

// Add inserts el under parent. A parent of 0 makes el a root. Adding an
// existing id replaces its properties.
func (d *Driver) Add(el core.ElementProperties, parent int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.nodes[el.ID]; ok {
		n.props = el.Clone()
		return
	}
	d.nodes[el.ID] = &node{props: el.Clone(), parent: parent, hasOwner: parent != 0}
	d.order = append(d.order, el.ID)
}

// Update changes the stored properties of id.
func (d *Driver) Update(id int64, fn func(*core.ElementProperties)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[id]
	if !ok {
		return false
	}
	fn(&n.props)
	return true
}

// Remove deletes id. Children are kept and become roots.
func (d *Driver) Remove(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.nodes[id]; !ok {
		return false
	}
	delete(d.nodes, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	for _, n := range d.nodes {
		if n.hasOwner && n.parent == id {
			n.hasOwner = false
			n.parent = 0
		}
	}
	return true
}

// Len returns the number of elements.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// FindCalls returns how many times FindElements was called.
func (d *Driver) FindCalls() int64 {
	return d.findCalls.Load()
}

// ElementCalls returns how many times Element was called.
func (d *Driver) ElementCalls() int64 {
	return d.elementCalls.Load()
}

// FindElements returns the ids of all elements matching loc in traversal
// order. Index locators select by position.
func (d *Driver) FindElements(ctx context.Context, loc locator.NormalizedLocator) ([]int64, error) {
	d.findCalls.Add(1)
	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if loc.Kind == locator.KindIndex {
		i, err := strconv.Atoi(loc.Value)
		if err != nil {
			return nil, fmt.Errorf("index locator %q: %w", loc.Value, err)
		}
		if i < 0 || i >= len(d.order) {
			return []int64{}, nil
		}
		return []int64{d.order[i]}, nil
	}

	ids := []int64{}
	for _, id := range d.order {
		n := d.nodes[id]
		if loc.Matches(n.props) && d.matchAncestors(loc.Ancestors, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Element returns the current properties of id.
func (d *Driver) Element(ctx context.Context, _ core.Toolkit, id int64) (core.ElementProperties, error) {
	d.elementCalls.Add(1)
	if err := d.wait(ctx); err != nil {
		return core.ElementProperties{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.nodes[id]
	if !ok {
		return core.ElementProperties{}, fmt.Errorf("%w: %d", ErrNoSuchElement, id)
	}
	return n.props.Clone(), nil
}

func (d *Driver) wait(ctx context.Context) error {
	if d.Config.Delay > 0 {
		t := time.NewTimer(d.Config.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.Config.Err
}

// matchAncestors checks scopes (outermost first) against the parents of id.
// Each scope's combinator relates it to the step that follows it.
func (d *Driver) matchAncestors(scopes []locator.Scope, id int64) bool {
	if len(scopes) == 0 {
		return true
	}
	s := scopes[len(scopes)-1]
	rest := scopes[:len(scopes)-1]

	for p, ok := d.parentOf(id); ok; p, ok = d.parentOf(p) {
		if s.Matches(d.nodes[p].props) && d.matchAncestors(rest, p) {
			return true
		}
		if s.Combinator == selector.Child {
			return false
		}
	}
	return false
}

func (d *Driver) parentOf(id int64) (int64, bool) {
	n, ok := d.nodes[id]
	if !ok || !n.hasOwner {
		return 0, false
	}
	if _, ok := d.nodes[n.parent]; !ok {
		return 0, false
	}
	return n.parent, true
}

// treeJSON is one node of a hierarchy dump: the element payload plus its
// children.
type treeJSON struct {
	Children []json.RawMessage `json:"children"`
}

// LoadHierarchy builds a driver from a JSON hierarchy dump. Each node is an
// agent element payload with an optional "children" array. Child positions
// fill in childIndex, childCount and lastChild when the payload omits them.
func LoadHierarchy(data []byte, cfg Config) (*Driver, error) {
	d := New(cfg)

	var roots []json.RawMessage
	if err := json.Unmarshal(data, &roots); err != nil {
		// A single root object is accepted too.
		roots = []json.RawMessage{data}
	}
	for i, raw := range roots {
		if err := d.load(raw, 0, i+1, len(roots)); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// LoadHierarchyFile reads a hierarchy dump from path.
func LoadHierarchyFile(path string, cfg Config) (*Driver, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided hierarchy file
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy: %w", err)
	}
	return LoadHierarchy(data, cfg)
}

func (d *Driver) load(raw json.RawMessage, parent int64, pos, siblings int) error {
	el, err := core.ParseElementProperties(raw)
	if err != nil {
		return err
	}
	var tree treeJSON
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode children: %w", err)
	}

	if el.ChildIndex == 0 {
		el.ChildIndex = pos
	}
	if _, ok := el.Property("lastChild"); !ok {
		el.SetProperty("lastChild", pos == siblings)
	}
	if _, ok := el.Property("childCount"); !ok {
		el.SetProperty("childCount", len(tree.Children))
	}

	d.mu.Lock()
	_, dup := d.nodes[el.ID]
	d.mu.Unlock()
	if dup {
		return fmt.Errorf("duplicate element id %d", el.ID)
	}
	d.Add(el, parent)

	for i, child := range tree.Children {
		if err := d.load(child, el.ID, i+1, len(tree.Children)); err != nil {
			return err
		}
	}
	return nil
}
