package keystore

import "sync"

// Map is an in-memory Store. It is threadsafe.
type Map struct {
	lock sync.RWMutex
	m    map[string][]byte
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{m: make(map[string][]byte)}
}

// Get implements Store.
func (m *Map) Get(key []byte) ([]byte, bool, error) {
	m.lock.RLock()
	val, ok := m.m[string(key)]
	m.lock.RUnlock()
	return val, ok, nil
}

// Put implements Store.
func (m *Map) Put(key, val []byte) error {
	m.lock.Lock()
	m.m[string(key)] = append([]byte(nil), val...)
	m.lock.Unlock()
	return nil
}

// Close implements Store.
func (m *Map) Close() error {
	m.lock.Lock()
	m.m = nil
	m.lock.Unlock()
	return nil
}
