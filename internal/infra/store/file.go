package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// File keeps records in a YAML document mapping keys to values. The whole
// document is rewritten on every write.
type File struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFile opens the document at path. A missing or unparsable file is an
// empty store; the next write replaces it.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("settings file path is empty")
	}
	f := &File{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := yaml.Unmarshal(raw, &f.data); err != nil {
		zlog.Warn().Msgf("store: ignoring malformed settings file: path=%s error=%v", path, err)
		f.data = make(map[string]string)
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}
	return f, nil
}

func (f *File) Read(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *File) Write(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	f.data[key] = value
	if err := f.flushLocked(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *File) Close() error {
	return nil
}

// flushLocked writes a temp file next to the target and renames it over.
func (f *File) flushLocked() error {
	out, err := yaml.Marshal(f.data)
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", f.path)
	}
	return nil
}
