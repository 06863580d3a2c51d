// internal/store/memory.go
package store

import (
	"context"
	"sync"
)

// MemoryStore is the in-process Store backend. All connected clients of a
// single gateway process share one instance; tests wire several simulated
// clients to one instance to reproduce multi-browser races.
type MemoryStore struct {
	mu       sync.Mutex
	root     map[string]any
	watchers map[int64]*memWatcher
	nextID   int64
}

type memWatcher struct {
	segs []string
	path string
	fn   func(Snapshot)
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root:     map[string]any{},
		watchers: map[int64]*memWatcher{},
	}
}

func (s *MemoryStore) Get(_ context.Context, path string) (any, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyValue(lookup(s.root, segs)), nil
}

func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	plain, err := toPlain(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	assign(s.root, segs, prune(plain))
	prune(s.root)
	notify := s.pendingNotifications(segs)
	s.mu.Unlock()
	deliver(notify)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	base, err := splitPath(path)
	if err != nil {
		return err
	}
	type write struct {
		segs  []string
		value any
	}
	writes := make([]write, 0, len(fields))
	for key, value := range fields {
		sub, err := splitPath(key)
		if err != nil {
			return err
		}
		plain, err := toPlain(value)
		if err != nil {
			return err
		}
		writes = append(writes, write{segs: append(append([]string{}, base...), sub...), value: prune(plain)})
	}
	s.mu.Lock()
	for _, w := range writes {
		assign(s.root, w.segs, w.value)
	}
	prune(s.root)
	notify := s.pendingNotifications(base)
	s.mu.Unlock()
	deliver(notify)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *MemoryStore) Watch(path string, fn func(Snapshot)) (CancelFunc, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	w := &memWatcher{segs: segs, path: path, fn: fn}
	s.watchers[id] = w
	initial := Snapshot{Path: path, Value: copyValue(lookup(s.root, segs))}
	s.mu.Unlock()

	// Initial delivery mirrors the production backend: a watcher always
	// hears the current value first.
	fn(initial)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
	return cancel, nil
}

// Redeliver pushes the current snapshot to every watcher overlapping path
// again. Tests use it to assert clients tolerate at-least-once delivery.
func (s *MemoryStore) Redeliver(path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	notify := s.pendingNotifications(segs)
	s.mu.Unlock()
	deliver(notify)
	return nil
}

type notification struct {
	fn   func(Snapshot)
	snap Snapshot
}

// pendingNotifications snapshots every watcher overlapping the changed
// path. Called with the lock held; delivery happens after unlock so a
// callback can issue its own writes without deadlocking.
func (s *MemoryStore) pendingNotifications(changed []string) []notification {
	var out []notification
	for _, w := range s.watchers {
		if overlaps(w.segs, changed) {
			out = append(out, notification{
				fn:   w.fn,
				snap: Snapshot{Path: w.path, Value: copyValue(lookup(s.root, w.segs))},
			})
		}
	}
	return out
}

func deliver(notify []notification) {
	for _, n := range notify {
		n.fn(n.snap)
	}
}
