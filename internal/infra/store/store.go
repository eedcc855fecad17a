// Package store provides settings.Store implementations.
package store

import (
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/app/settings"
	"github.com/osa030/bgmbox/internal/infra/config"
)

// Store is a settings.Store that may hold resources.
type Store interface {
	settings.Store
	io.Closer
}

// Open creates the store selected by configuration.
func Open(cfg config.SettingsConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "memory":
		s = NewMemory()
	case "file", "":
		s, err = NewFile(cfg.Path)
	case "sqlite":
		s, err = NewSQLite(cfg.Path)
	default:
		return nil, errors.Newf("unsupported settings backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open settings store (backend %s)", cfg.Backend)
	}

	zlog.Info().Msgf("opened settings store: backend=%s path=%s", cfg.Backend, cfg.Path)
	return s, nil
}

// Memory keeps records in a map. Nothing survives the process.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Read(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Write(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Close() error {
	return nil
}
