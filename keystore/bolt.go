package keystore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var indexBucket = []byte("index")

// BoltStore is a Store kept in a bolt database file.
type BoltStore struct {
	Db       *bolt.DB
	filename string
}

// OpenBolt creates a bolt backed Store in dir.
func OpenBolt(dir, name string) (*BoltStore, error) {
	filename := filepath.Join(dir, name+".bolt")
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second, NoGrowSync: true})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	// scratch data; durability buys nothing here
	db.NoSync = true
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return errors.Wrap(err, "creating index bucket")
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &BoltStore{Db: db, filename: filename}, nil
}

// Get implements Store.
func (b *BoltStore) Get(key []byte) (val []byte, ok bool, err error) {
	err = b.Db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(indexBucket).Get(key)
		if v != nil {
			// v is only valid for the life of the transaction
			val = append([]byte{}, v...)
			ok = true
		}
		return nil
	})
	return val, ok, errors.Wrap(err, "reading index")
}

// Put implements Store.
func (b *BoltStore) Put(key, val []byte) error {
	if val == nil {
		val = []byte{}
	}
	err := b.Db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put(key, val)
	})
	return errors.Wrap(err, "writing index")
}

// Close implements Store and deletes the database file.
func (b *BoltStore) Close() error {
	if err := b.Db.Close(); err != nil {
		return errors.Wrap(err, "closing db")
	}
	return errors.Wrap(os.Remove(b.filename), "removing db file")
}
