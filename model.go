package bindery

import (
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/pthm/bindery/lib/expr"
)

// Change is broadcast to subscribers after every model write.
type Change struct {
	Property string
	Value    any
}

type subscriber struct {
	id int
	fn func(Change)
}

// Model is a controller's observable state container.
//
// Every Set writes the value, then, once the model is live, calls the
// render callback with the written root property, then broadcasts a
// Change to subscribers in subscription order. Writes are synchronous and
// unbatched: N writes after Init produce N renders. Writes made while the
// controller is still initializing broadcast but do not render.
type Model struct {
	mu     sync.RWMutex
	data   map[string]any
	subs   []subscriber
	nextID int

	live     atomic.Bool
	onRender func(root string)
	resolver *expr.Resolver
}

// NewModel returns an empty model that is not yet live.
func NewModel() *Model {
	return &Model{data: make(map[string]any), resolver: expr.NewResolver(nil)}
}

// Lookup implements expr.Getter over the top-level keys.
func (m *Model) Lookup(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Has reports whether key is a top-level property.
func (m *Model) Has(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Get resolves path against the model.
func (m *Model) Get(path string) (any, bool) {
	return m.resolver.Lookup(m, path)
}

// Set writes value at path, creating missing intermediate maps, and
// notifies.
func (m *Model) Set(path string, value any) error {
	m.mu.Lock()
	if m.data == nil {
		m.data = make(map[string]any)
	}
	err := m.resolver.SetValue(m.data, path, value)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.Notify(path, value)
	return nil
}

// Delete removes a top-level property and notifies with a nil value.
func (m *Model) Delete(key string) {
	m.mu.Lock()
	_, ok := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()
	if ok {
		m.Notify(key, nil)
	}
}

// Notify runs the render callback for the root of path when the model is
// live and then broadcasts the change. Controllers call it after writing
// state the model does not hold itself.
func (m *Model) Notify(path string, value any) {
	if m.live.Load() && m.onRender != nil {
		m.onRender(expr.Root(path))
	}

	m.mu.RLock()
	subs := append([]subscriber(nil), m.subs...)
	m.mu.RUnlock()
	c := Change{Property: path, Value: value}
	for _, s := range subs {
		s.fn(c)
	}
}

// Clear empties the model without notifying.
func (m *Model) Clear() {
	m.mu.Lock()
	m.data = make(map[string]any)
	m.mu.Unlock()
}

// Keys returns the top-level properties in order.
func (m *Model) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of top-level properties.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Snapshot returns a shallow copy of the top-level properties.
func (m *Model) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// Subscribe registers fn for every change and returns a function that
// removes it.
func (m *Model) Subscribe(fn func(Change)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Live reports whether writes trigger renders.
func (m *Model) Live() bool { return m.live.Load() }

func (m *Model) setLive(on bool) { m.live.Store(on) }

func (m *Model) setRender(fn func(root string)) { m.onRender = fn }
