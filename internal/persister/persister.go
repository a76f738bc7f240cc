// Package persister defines the KeyValuePersister contract the offline
// repository is built over, and a couple of reference implementations used
// by this module's own tests. Concrete platform-specific backends (SQLite,
// WebSQL, IndexedDB, ...) are out of scope for the core per the
// specification; this package only owns the interface and a pure in-memory
// implementation.
package persister

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// KeyValuePersister is the byte/JSON-level storage contract the offline
// repository is abstracted over. Keys are opaque strings of the form
// "<appKey>.<collection>[.<tag>]"; values are JSON arrays of entities or
// other JSON-serializable records, stored and returned verbatim.
type KeyValuePersister interface {
	// Get returns the raw bytes stored at key, or (nil, false) if absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores raw bytes at key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns every key with the given prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// MemoryPersister is an in-memory KeyValuePersister, safe for concurrent
// use, intended for unit tests and for processes that never persist state
// across restarts.
type MemoryPersister struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryPersister constructs an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (p *MemoryPersister) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (p *MemoryPersister) Set(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	p.data[key] = cp
	return nil
}

func (p *MemoryPersister) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}

func (p *MemoryPersister) Keys(_ context.Context, prefix string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for k := range p.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetJSON is a convenience wrapper decoding the value at key into v, and
// reporting whether the key existed.
func GetJSON(ctx context.Context, p KeyValuePersister, key string, v any) (bool, error) {
	raw, ok, err := p.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("persister get %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("persister decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, p KeyValuePersister, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persister encode %q: %w", key, err)
	}
	return p.Set(ctx, key, raw)
}
