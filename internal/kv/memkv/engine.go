// Package memkv is an in-memory kv.Engine backed by internal/radix, used by
// tests and by single-process deployments of the ledger. Sessions layer
// copy-on-write overlays over the shared radix tree so that nested
// savepoints, two-phase prepare and rollback never touch the committed
// tree until Commit/CommitPrepared actually runs.
//
// Grounded on the teacher's core/storage.go for the overall
// logger-wrapped-store-with-cache-in-front shape (see internal/kv/cache);
// the savepoint/prepare machinery itself is new, built directly from
// spec.md §4.2 since nothing in the example pack models nested
// transactional KV savepoints.
package memkv

import (
	"sync"

	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/radix"
)

// Engine is the shared, committed key space.
type Engine struct {
	mu       sync.RWMutex
	base     *radix.Tree[[]byte]
	prepared map[string][]*layer
}

// New returns an empty engine.
func New() *Engine {
	return &Engine{base: radix.New[[]byte](), prepared: map[string][]*layer{}}
}

var _ kv.Engine = (*Engine)(nil)

// Begin opens a new session layered on top of the engine's committed state.
func (e *Engine) Begin() (kv.Session, error) {
	return &session{eng: e, layers: []*layer{newLayer("")}}, nil
}

type layer struct {
	name                  string
	writes                map[string]*[]byte // nil value = tombstone
	filterDeletedPrefixes []string
}

func newLayer(name string) *layer {
	return &layer{name: name, writes: map[string]*[]byte{}}
}

func (l *layer) clone() *layer {
	c := newLayer(l.name)
	for k, v := range l.writes {
		c.writes[k] = v
	}
	c.filterDeletedPrefixes = append([]string(nil), l.filterDeletedPrefixes...)
	return c
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(key) >= len(p) && key[:len(p)] == p {
			return true
		}
	}
	return false
}

type session struct {
	eng    *Engine
	layers []*layer
	closed bool
}

var _ kv.Session = (*session)(nil)

func (s *session) top() *layer { return s.layers[len(s.layers)-1] }

func (s *session) Put(key, value []byte) error {
	v := append([]byte(nil), value...)
	s.top().writes[string(key)] = &v
	return nil
}

func (s *session) Del(key []byte) error {
	s.top().writes[string(key)] = nil
	return nil
}

func (s *session) Get(key []byte) ([]byte, error) {
	ks := string(key)
	for i := len(s.layers) - 1; i >= 0; i-- {
		l := s.layers[i]
		if v, ok := l.writes[ks]; ok {
			if v == nil {
				return nil, kv.ErrNotFound
			}
			return append([]byte(nil), *v...), nil
		}
		if hasAnyPrefix(ks, l.filterDeletedPrefixes) {
			return nil, kv.ErrNotFound
		}
	}
	s.eng.mu.RLock()
	defer s.eng.mu.RUnlock()
	v, ok := s.eng.base.Find(ks)
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), *v...), nil
}

func (s *session) FilterDelete(prefix []byte) error {
	ps := string(prefix)
	top := s.top()
	for k := range top.writes {
		if hasAnyPrefix(k, []string{ps}) {
			delete(top.writes, k)
		}
	}
	top.filterDeletedPrefixes = append(top.filterDeletedPrefixes, ps)
	return nil
}

func (s *session) Seek(prefix []byte) (kv.Cursor, error) {
	ps := string(prefix)
	seen := map[string]bool{}
	type kvpair struct {
		key   string
		value []byte
	}
	var result []kvpair

	s.eng.mu.RLock()
	s.eng.base.FilterEnumerate(ps, func(k string, v *[]byte) {
		if seen[k] {
			return
		}
		seen[k] = true
		val, err := s.Get([]byte(k))
		if err == nil {
			result = append(result, kvpair{k, val})
		}
	})
	s.eng.mu.RUnlock()

	for _, l := range s.layers {
		for k := range l.writes {
			if seen[k] || !hasAnyPrefix(k, []string{ps}) {
				continue
			}
			seen[k] = true
			val, err := s.Get([]byte(k))
			if err == nil {
				result = append(result, kvpair{k, val})
			}
		}
	}

	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if radix.Compare([]byte(result[j].key), []byte(result[i].key)) < 0 {
				result[i], result[j] = result[j], result[i]
			}
		}
	}

	keys := make([][]byte, len(result))
	vals := make([][]byte, len(result))
	for i, p := range result {
		keys[i] = []byte(p.key)
		vals[i] = p.value
	}
	return &sliceCursor{keys: keys, vals: vals, idx: -1}, nil
}

type sliceCursor struct {
	keys [][]byte
	vals [][]byte
	idx  int
}

func (c *sliceCursor) Next() bool {
	c.idx++
	return c.idx < len(c.keys)
}

func (c *sliceCursor) Key() []byte   { return c.keys[c.idx] }
func (c *sliceCursor) Value() []byte { return c.vals[c.idx] }

func (s *session) Savepoint(name string) error {
	s.layers = append(s.layers, newLayer(name))
	return nil
}

func (s *session) findSavepoint(name string) int {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if s.layers[i].name == name {
			return i
		}
	}
	return -1
}

func (s *session) ReleaseSavepoint(name string) error {
	idx := s.findSavepoint(name)
	if idx <= 0 {
		return kv.ErrNoSavepoint
	}
	child := s.layers[idx]
	parent := s.layers[idx-1]
	for k := range parent.writes {
		if hasAnyPrefix(k, child.filterDeletedPrefixes) {
			delete(parent.writes, k)
		}
	}
	for k, v := range child.writes {
		parent.writes[k] = v
	}
	parent.filterDeletedPrefixes = append(parent.filterDeletedPrefixes, child.filterDeletedPrefixes...)
	s.layers = append(s.layers[:idx], s.layers[idx+1:]...)
	return nil
}

func (s *session) RollbackToSavepoint(name string) error {
	idx := s.findSavepoint(name)
	if idx < 0 {
		return kv.ErrNoSavepoint
	}
	s.layers = append(s.layers[:idx], newLayer(name))
	return nil
}

// replay applies a session's layers, in creation order, onto base: each
// layer's filter-deletes first, then its writes, matching how the layer
// was actually populated.
func replay(base *radix.Tree[[]byte], layers []*layer) {
	for _, l := range layers {
		for _, p := range l.filterDeletedPrefixes {
			base.FilterDelete(p)
		}
		for k, v := range l.writes {
			if v == nil {
				base.Erase(k)
			} else {
				val := append([]byte(nil), *v...)
				base.Insert(k, val)
			}
		}
	}
}

func (s *session) Commit() error {
	if s.closed {
		return kv.ErrNotFound
	}
	s.eng.mu.Lock()
	replay(s.eng.base, s.layers)
	s.eng.mu.Unlock()
	s.closed = true
	return nil
}

func (s *session) Rollback() error {
	s.closed = true
	s.layers = nil
	return nil
}

func (s *session) Prepare(name string) error {
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	if _, exists := s.eng.prepared[name]; exists {
		return kv.ErrAlreadyPrepared
	}
	snapshot := make([]*layer, len(s.layers))
	for i, l := range s.layers {
		snapshot[i] = l.clone()
	}
	s.eng.prepared[name] = snapshot
	s.closed = true
	return nil
}

func (s *session) CommitPrepared(name string) error {
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	layers, ok := s.eng.prepared[name]
	if !ok {
		return kv.ErrNotPrepared
	}
	replay(s.eng.base, layers)
	delete(s.eng.prepared, name)
	return nil
}

func (s *session) RollbackPrepared(name string) error {
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	if _, ok := s.eng.prepared[name]; !ok {
		return kv.ErrNotPrepared
	}
	delete(s.eng.prepared, name)
	return nil
}
