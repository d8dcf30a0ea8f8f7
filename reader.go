package datalake

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sparkify/datalake/storage"
)

// ReadSongs loads every song record under prefix in the input store.
func ReadSongs(ctx context.Context, s *Session, prefix string) ([]SongRecord, error) {
	recs, err := readAll[SongRecord](ctx, s, "songs", prefix)
	return recs, errors.Wrap(err, "reading songs")
}

// ReadEvents loads every activity log event under prefix in the input store.
func ReadEvents(ctx context.Context, s *Session, prefix string) ([]LogEvent, error) {
	recs, err := readAll[LogEvent](ctx, s, "events", prefix)
	return recs, errors.Wrap(err, "reading events")
}

// readAll decodes every object under prefix. Records come back in key order,
// then in the order they appear within each object.
func readAll[T any](ctx context.Context, s *Session, what, prefix string) ([]T, error) {
	start := time.Now()
	all, err := s.Input.List(ctx, prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "listing '%s'", prefix)
	}
	keys := all[:0:0]
	for _, k := range all {
		if strings.HasSuffix(k, s.FileSuffix) {
			keys = append(keys, k)
		}
	}
	s.Log.Printf("reading %d %s files from '%s'", len(keys), what, prefix)

	results := make([][]T, len(keys))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.Concurrency)
	for i, key := range keys {
		i, key := i, key
		eg.Go(func() error {
			recs, err := readObject[T](ctx, s.Input, key)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, r := range results {
		n += len(r)
	}
	recs := make([]T, 0, n)
	for _, r := range results {
		recs = append(recs, r...)
	}
	s.Stats.Count("reader.files", int64(len(keys)), 1, "input:"+what)
	s.Stats.Count("reader.records", int64(len(recs)), 1, "input:"+what)
	s.Stats.Timing("reader.duration", time.Since(start), 1, "input:"+what)
	return recs, nil
}

func readObject[T any](ctx context.Context, store storage.Store, key string) (_ []T, err error) {
	r, err := store.Open(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "opening '%s'", key)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing '%s'", key)
		}
	}()
	return decode[T](r, key)
}

// decode reads a stream of JSON objects, one per line or simply
// concatenated.
func decode[T any](r io.Reader, key string) ([]T, error) {
	dec := json.NewDecoder(r)
	var recs []T
	for n := 1; ; n++ {
		var rec T
		err := dec.Decode(&rec)
		if err == io.EOF {
			return recs, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "decoding %s#%d", key, n)
		}
		recs = append(recs, rec)
	}
}
