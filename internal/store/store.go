// Package store keeps each node's config blobs.
//
// A node holds the authoritative copy of every kind it owns. Inbound blobs
// of an owned kind replace that copy whole (last writer wins) and stay in
// memory until an explicit Save hands them to the persister. Blobs of kinds
// owned elsewhere are kept only as a mirror for local readers.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/protocol"
)

var (
	ErrNotOwned = errors.New("store: kind not owned by this node")
	ErrNotFound = errors.New("store: not found")
	ErrKindBody = errors.New("store: body does not match kind")
)

// Persister is the explicit-save backend.
type Persister interface {
	Name() string
	Load(ctx context.Context, kind protocol.ConfigKind) (protocol.Body, error)
	Save(ctx context.Context, kind protocol.ConfigKind, body protocol.Body) error
}

// Observer is told about every accepted blob, owned or mirrored.
type Observer func(kind protocol.ConfigKind, body protocol.Body, owned bool)

type entry struct {
	body      protocol.Body
	dirty     bool
	updatedAt time.Time
	savedAt   time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	owned     map[protocol.ConfigKind]bool
	live      map[protocol.ConfigKind]entry
	mirror    map[protocol.ConfigKind]entry
	persister Persister
	observers []Observer
	now       func() time.Time
}

func New(owned []protocol.ConfigKind, p Persister) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	s := &Store{
		owned:     make(map[protocol.ConfigKind]bool, len(owned)),
		live:      make(map[protocol.ConfigKind]entry),
		mirror:    make(map[protocol.ConfigKind]entry),
		persister: p,
		now:       time.Now,
	}
	for _, k := range owned {
		s.owned[k] = true
		s.live[k] = entry{body: Default(k)}
	}
	return s
}

// Default returns the factory blob for kind, nil for unknown kinds.
func Default(kind protocol.ConfigKind) protocol.Body {
	switch kind {
	case protocol.ConfigPack:
		return protocol.DefaultPackConfig()
	case protocol.ConfigWand:
		return protocol.DefaultWandConfig()
	case protocol.ConfigSmoke:
		return protocol.DefaultSmokeConfig()
	default:
		return nil
	}
}

func checkBody(kind protocol.ConfigKind, body protocol.Body) error {
	if body == nil {
		return fmt.Errorf("%w: nil body for %s", ErrKindBody, kind)
	}
	want, err := kind.Shape()
	if err != nil {
		return err
	}
	if body.Shape() != want {
		return fmt.Errorf("%w: kind=%s shape=%s", ErrKindBody, kind, body.Shape())
	}
	return nil
}

// Load replaces every owned kind with its persisted copy. Kinds never
// saved keep their defaults.
func (s *Store) Load(ctx context.Context) error {
	for _, kind := range s.Owned() {
		body, err := s.persister.Load(ctx, kind)
		if errors.Is(err, ErrNotFound) {
			logs.Debugf("store.Store.Load kind=%s persister=%s defaults", kind, s.persister.Name())
			continue
		}
		if err != nil {
			return fmt.Errorf("store load %s (%s): %w", kind, s.persister.Name(), err)
		}
		if err := checkBody(kind, body); err != nil {
			return fmt.Errorf("store load %s: %w", kind, err)
		}
		s.mu.Lock()
		s.live[kind] = entry{body: body, savedAt: s.now()}
		s.mu.Unlock()
		logs.Infof("store.Store.Load kind=%s persister=%s", kind, s.persister.Name())
	}
	return nil
}

func (s *Store) Owns(kind protocol.ConfigKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned[kind]
}

func (s *Store) Owned() []protocol.ConfigKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.ConfigKind, 0, len(s.owned))
	for k := range s.owned {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns the owned copy of kind, or the last mirrored copy.
func (s *Store) Get(kind protocol.ConfigKind) (protocol.Body, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.live[kind]; ok {
		return e.body, true
	}
	if e, ok := s.mirror[kind]; ok {
		return e.body, true
	}
	return nil, false
}

// Apply replaces the owned copy of kind. Nothing is persisted.
func (s *Store) Apply(kind protocol.ConfigKind, body protocol.Body) error {
	if err := checkBody(kind, body); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.owned[kind] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOwned, kind)
	}
	s.live[kind] = entry{body: body, dirty: true, updatedAt: s.now(), savedAt: s.live[kind].savedAt}
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	logs.Infof("store.Store.Apply kind=%s", kind)
	for _, fn := range observers {
		fn(kind, body, true)
	}
	return nil
}

// Mirror records a relayed copy of a kind owned elsewhere.
func (s *Store) Mirror(kind protocol.ConfigKind, body protocol.Body) error {
	if err := checkBody(kind, body); err != nil {
		return err
	}
	s.mu.Lock()
	if s.owned[kind] {
		s.mu.Unlock()
		return s.Apply(kind, body)
	}
	s.mirror[kind] = entry{body: body, updatedAt: s.now()}
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	logs.Debugf("store.Store.Mirror kind=%s", kind)
	for _, fn := range observers {
		fn(kind, body, false)
	}
	return nil
}

// Save persists the owned copy of kind.
func (s *Store) Save(ctx context.Context, kind protocol.ConfigKind) error {
	s.mu.RLock()
	e, ok := s.live[kind]
	owned := s.owned[kind]
	s.mu.RUnlock()
	if !owned || !ok {
		return fmt.Errorf("%w: %s", ErrNotOwned, kind)
	}
	if err := s.persister.Save(ctx, kind, e.body); err != nil {
		return fmt.Errorf("store save %s (%s): %w", kind, s.persister.Name(), err)
	}
	s.mu.Lock()
	cur := s.live[kind]
	if cur.body == e.body {
		cur.dirty = false
	}
	cur.savedAt = s.now()
	s.live[kind] = cur
	s.mu.Unlock()
	logs.Infof("store.Store.Save kind=%s persister=%s", kind, s.persister.Name())
	return nil
}

// Observe registers fn for every later Apply and Mirror.
func (s *Store) Observe(fn Observer) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Pack returns the pack blob: owned, mirrored, or factory default.
func (s *Store) Pack() protocol.PackConfig {
	if b, ok := s.Get(protocol.ConfigPack); ok {
		if c, ok := b.(protocol.PackConfig); ok {
			return c
		}
	}
	return protocol.DefaultPackConfig()
}

// Wand returns the wand blob: owned, mirrored, or factory default.
func (s *Store) Wand() protocol.WandConfig {
	if b, ok := s.Get(protocol.ConfigWand); ok {
		if c, ok := b.(protocol.WandConfig); ok {
			return c
		}
	}
	return protocol.DefaultWandConfig()
}

// Info describes one kind for status readers.
type Info struct {
	Kind      string    `json:"kind"`
	Owned     bool      `json:"owned"`
	Dirty     bool      `json:"dirty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	SavedAt   time.Time `json:"saved_at,omitempty"`
}

func (s *Store) Info() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.live)+len(s.mirror))
	for k, e := range s.live {
		out = append(out, Info{Kind: k.String(), Owned: true, Dirty: e.dirty, UpdatedAt: e.updatedAt, SavedAt: e.savedAt})
	}
	for k, e := range s.mirror {
		out = append(out, Info{Kind: k.String(), UpdatedAt: e.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
