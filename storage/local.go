package storage

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Local is a Store backed by a directory on the local filesystem.
type Local struct {
	root string
}

// NewLocal returns a Local store rooted at dir. The directory does not need to
// exist yet; it is created on the first write.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("empty local store root")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", dir)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute directory the store is rooted at.
func (l *Local) Root() string { return l.root }

func (l *Local) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// List implements Store.
func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	// walk from the deepest directory the prefix names, then filter on the
	// full prefix so partial names ("log_data/2018-11-0") still work.
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
		if dir == "." {
			dir = ""
		}
	}
	start := l.path(dir)
	info, err := os.Stat(start)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", start)
	}

	keys := make([]string, 0)
	err = filepath.Walk(start, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", start)
	}
	sort.Strings(keys)
	return keys, nil
}

// Open implements Store.
func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", key)
	}
	return f, nil
}

// Create implements Store. Data is written to a temporary file next to the
// destination and renamed into place on Close.
func (l *Local) Create(ctx context.Context, key string) (Writer, error) {
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	f, err := ioutil.TempFile(filepath.Dir(dst), ".tmp-")
	if err != nil {
		return nil, errors.Wrapf(err, "creating temp file for %s", key)
	}
	return &localFile{File: f, dst: dst}, nil
}

// RemoveAll implements Store.
func (l *Local) RemoveAll(ctx context.Context, prefix string) error {
	if strings.HasSuffix(prefix, "/") || prefix == "" {
		return errors.Wrapf(os.RemoveAll(l.path(prefix)), "removing %s", prefix)
	}
	keys, err := l.List(ctx, prefix)
	if err != nil {
		return errors.Wrap(err, "listing")
	}
	for _, key := range keys {
		if err := os.Remove(l.path(key)); err != nil {
			return errors.Wrapf(err, "removing %s", key)
		}
	}
	return nil
}

type localFile struct {
	*os.File
	dst string
}

func (f *localFile) Close() error {
	if err := f.File.Close(); err != nil {
		os.Remove(f.File.Name())
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(f.File.Name(), f.dst); err != nil {
		os.Remove(f.File.Name())
		return errors.Wrapf(err, "renaming into %s", f.dst)
	}
	return nil
}

// Abort removes the temp file without touching the destination.
func (f *localFile) Abort(cause error) error {
	f.File.Close()
	return errors.Wrap(os.Remove(f.File.Name()), "removing temp file")
}
