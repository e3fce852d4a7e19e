package kv

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// File persists all keys in a single JSON document on disk. Writes go to a
// temporary file first and are renamed into place.
type File struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// NewFile loads path if it exists. The parent directory is created.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, goerr.New("file path is required")
	}

	f := &File{
		path:   path,
		values: make(map[string]string),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.values[key]
	f.values[key] = value
	if err := f.saveLocked(); err != nil {
		if existed {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.values[key]
	if !existed {
		return nil
	}
	delete(f.values, key)
	if err := f.saveLocked(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

func (f *File) load() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create storage directory", goerr.V("path", f.path))
	}

	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to open storage file", goerr.V("path", f.path))
	}
	defer file.Close()

	var payload struct {
		Values map[string]string `json:"values"`
	}
	if err := json.NewDecoder(file).Decode(&payload); err != nil {
		return goerr.Wrap(err, "failed to decode storage file", goerr.V("path", f.path))
	}
	for k, v := range payload.Values {
		f.values[k] = v
	}
	return nil
}

func (f *File) saveLocked() error {
	payload := struct {
		Values map[string]string `json:"values"`
	}{Values: f.values}

	tmpPath := f.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return goerr.Wrap(err, "failed to open temporary storage file", goerr.V("path", tmpPath))
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&payload); err != nil {
		file.Close()
		return goerr.Wrap(err, "failed to encode storage file", goerr.V("path", tmpPath))
	}
	if err := file.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temporary storage file", goerr.V("path", tmpPath))
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return goerr.Wrap(err, "failed to replace storage file", goerr.V("path", f.path))
	}
	return nil
}
