package bindery

import (
	"context"
	"sort"
	"sync"

	"github.com/pthm/bindery/lib/collab"
	"github.com/pthm/bindery/lib/encoding"
)

// FridgeKey is the storage key fridge snapshots are saved under.
const FridgeKey = "bindery.fridge"

// Fridge holds values that survive navigation. One Fridge is shared by
// every controller of an App for the App's lifetime.
//
// Values must be msgpack-encodable to be persisted.
type Fridge struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewFridge returns an empty fridge.
func NewFridge() *Fridge {
	return &Fridge{data: make(map[string]any)}
}

// Get returns the value under key.
func (f *Fridge) Get(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

// Put stores value under key.
func (f *Fridge) Put(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string]any)
	}
	f.data[key] = value
}

// Delete removes key.
func (f *Fridge) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
}

// Keys returns the stored keys in order.
func (f *Fridge) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup implements expr.Getter so "fridge.key" paths resolve.
func (f *Fridge) Lookup(key string) (any, bool) { return f.Get(key) }

// Assign implements expr.Setter.
func (f *Fridge) Assign(key string, value any) error {
	f.Put(key, value)
	return nil
}

func (f *Fridge) snapshot() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]any, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}

// Save writes a signed (or sealed) snapshot of the fridge to store.
func (f *Fridge) Save(ctx context.Context, store StorageCollaborator, codec *encoding.Codec, sealed bool) error {
	encoded, err := codec.Encode(f.snapshot(), sealed)
	if err != nil {
		return &CollaboratorError{Op: "save fridge", Err: err}
	}
	if err := store.Put(ctx, FridgeKey, []byte(encoded)); err != nil {
		return &CollaboratorError{Op: "save fridge", Err: err}
	}
	return nil
}

// Restore merges a snapshot saved by Save into the fridge. A missing
// snapshot is not an error.
func (f *Fridge) Restore(ctx context.Context, store StorageCollaborator, codec *encoding.Codec, sealed bool) error {
	data, err := store.Get(ctx, FridgeKey)
	if collab.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return &CollaboratorError{Op: "restore fridge", Err: err}
	}
	entries, err := codec.Decode(string(data), sealed)
	if err != nil {
		return &CollaboratorError{Op: "restore fridge", Err: wrapEncodingError(err)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string]any)
	}
	for k, v := range entries {
		f.data[k] = v
	}
	return nil
}
