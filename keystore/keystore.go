// Package keystore provides the scratch key/value indexes used while shaping
// tables: the "seen" sets behind deduplication and the lookup side of joins.
// Indexes live for the duration of one stage and are thrown away afterwards.
package keystore

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Store is a byte-keyed index. Implementations need not be threadsafe
// unless they say so.
type Store interface {
	// Get returns the value stored at key and whether there was one.
	Get(key []byte) (val []byte, ok bool, err error)
	// Put stores val at key, replacing any previous value.
	Put(key, val []byte) error
	// Close releases the index and anything it wrote to disk.
	Close() error
}

// Kind names a Store implementation.
type Kind string

// Available kinds.
const (
	Memory  Kind = "memory"
	Bolt    Kind = "bolt"
	LevelDB Kind = "leveldb"
)

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case Memory, "":
		return Memory, nil
	case Bolt:
		return Bolt, nil
	case LevelDB:
		return LevelDB, nil
	}
	return "", errors.Errorf("unknown index store '%s'", s)
}

// Opener creates named indexes of a single kind. On-disk indexes are placed
// in a private scratch directory which Close removes.
type Opener struct {
	kind Kind
	dir  string
}

// NewOpener returns an Opener for kind. For on-disk kinds a scratch
// directory is created under dir (the system temp dir if dir is empty).
func NewOpener(kind Kind, dir string) (*Opener, error) {
	o := &Opener{kind: kind}
	if kind == Memory {
		return o, nil
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.Wrap(err, "making index directory")
		}
	}
	scratch, err := ioutil.TempDir(dir, "datalake-index-")
	if err != nil {
		return nil, errors.Wrap(err, "making scratch directory")
	}
	o.dir = scratch
	return o, nil
}

// Kind returns the kind of Store o opens.
func (o *Opener) Kind() Kind { return o.kind }

// Open returns a new, empty index. Names must be unique among open indexes.
func (o *Opener) Open(name string) (Store, error) {
	switch o.kind {
	case Memory:
		return NewMap(), nil
	case Bolt:
		return OpenBolt(o.dir, name)
	case LevelDB:
		return OpenLevelDB(o.dir, name)
	}
	return nil, errors.Errorf("unknown index store '%s'", o.kind)
}

// Close removes the scratch directory, if any.
func (o *Opener) Close() error {
	if o.dir == "" {
		return nil
	}
	return errors.Wrap(os.RemoveAll(o.dir), "removing scratch directory")
}
