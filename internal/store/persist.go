package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/packlink/internal/protocol"
)

// MemoryPersister keeps saved blobs for the process lifetime.
type MemoryPersister struct {
	mu    sync.RWMutex
	items map[protocol.ConfigKind]protocol.Body
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{items: make(map[protocol.ConfigKind]protocol.Body)}
}

func (m *MemoryPersister) Name() string { return "memory" }

func (m *MemoryPersister) Load(_ context.Context, kind protocol.ConfigKind) (protocol.Body, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.items[kind]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *MemoryPersister) Save(_ context.Context, kind protocol.ConfigKind, body protocol.Body) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[kind] = body
	return nil
}

// FilePersister writes one TOML document per kind under Dir.
type FilePersister struct {
	Dir string
}

func NewFilePersister(dir string) (*FilePersister, error) {
	if dir == "" {
		return nil, errors.New("store: file persister dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &FilePersister{Dir: dir}, nil
}

func (f *FilePersister) Name() string { return "file" }

func (f *FilePersister) path(kind protocol.ConfigKind) string {
	return filepath.Join(f.Dir, kind.String()+".toml")
}

func (f *FilePersister) Load(_ context.Context, kind protocol.ConfigKind) (protocol.Body, error) {
	data, err := os.ReadFile(f.path(kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	switch kind {
	case protocol.ConfigPack:
		var c protocol.PackConfig
		err = toml.Unmarshal(data, &c)
		return c, err
	case protocol.ConfigWand:
		var c protocol.WandConfig
		err = toml.Unmarshal(data, &c)
		return c, err
	case protocol.ConfigSmoke:
		var c protocol.SmokeConfig
		err = toml.Unmarshal(data, &c)
		return c, err
	default:
		return nil, fmt.Errorf("%w: %d", protocol.ErrUnknownConfigKind, uint8(kind))
	}
}

// Save writes through a temp file so a crash never leaves a torn blob.
func (f *FilePersister) Save(_ context.Context, kind protocol.ConfigKind, body protocol.Body) error {
	data, err := toml.Marshal(body)
	if err != nil {
		return err
	}
	tmp := f.path(kind) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(kind))
}
