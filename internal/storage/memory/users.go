package memory

import (
	"context"
	"sync"
)

// UserDirectory is a static id -> display name table, loaded from
// configuration or populated by tests.
type UserDirectory struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewUserDirectory(names map[string]string) *UserDirectory {
	d := &UserDirectory{names: make(map[string]string, len(names))}
	for id, name := range names {
		d.names[id] = name
	}
	return d
}

// Put adds or renames a user.
func (d *UserDirectory) Put(id, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[id] = name
}

func (d *UserDirectory) DisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := d.names[id]; ok {
			result[id] = name
		}
	}
	return result, nil
}
