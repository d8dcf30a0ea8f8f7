package keystore

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelStore is a Store kept in a leveldb database.
type LevelStore struct {
	db      *leveldb.DB
	dirname string
}

// OpenLevelDB creates a leveldb backed Store in dir.
func OpenLevelDB(dir, name string) (*LevelStore, error) {
	dirname := filepath.Join(dir, name)
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &LevelStore{db: db, dirname: dirname}, nil
}

// Get implements Store.
func (l *LevelStore) Get(key []byte) ([]byte, bool, error) {
	data, err := l.db.Get(key, &opt.ReadOptions{})
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrap(err, "reading index")
	}
	return data, true, nil
}

// Put implements Store.
func (l *LevelStore) Put(key, val []byte) error {
	return errors.Wrap(l.db.Put(key, val, &opt.WriteOptions{}), "writing index")
}

// Close implements Store and deletes the database directory.
func (l *LevelStore) Close() error {
	if err := l.db.Close(); err != nil {
		return errors.Wrap(err, "closing leveldb")
	}
	return errors.Wrap(os.RemoveAll(l.dirname), "removing leveldb")
}
