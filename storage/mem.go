package storage

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Mem is an in-memory Store, mostly useful for tests and dry runs.
type Mem struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMem returns an empty Mem store.
func NewMem() *Mem {
	return &Mem{objects: make(map[string][]byte)}
}

// Put stores data at key.
func (m *Mem) Put(key string, data []byte) {
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), data...)
	m.mu.Unlock()
}

// Get returns the object at key.
func (m *Mem) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// List implements Store.
func (m *Mem) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Open implements Store.
func (m *Mem) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.Get(key)
	if !ok {
		return nil, errors.Errorf("opening %s: no such object", key)
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

// Create implements Store. The object becomes visible on Close.
func (m *Mem) Create(ctx context.Context, key string) (Writer, error) {
	return &memWriter{m: m, key: key}, nil
}

// RemoveAll implements Store.
func (m *Mem) RemoveAll(ctx context.Context, prefix string) error {
	m.mu.Lock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	m.mu.Unlock()
	return nil
}

type memWriter struct {
	bytes.Buffer
	m   *Mem
	key string
}

func (w *memWriter) Close() error {
	w.m.Put(w.key, w.Bytes())
	return nil
}

func (w *memWriter) Abort(cause error) error {
	w.Reset()
	return nil
}
