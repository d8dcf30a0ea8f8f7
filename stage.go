package datalake

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// Stage is one named step in shaping a table.
type Stage[T any] struct {
	Name string
	Fn   func([]T) ([]T, error)
}

// Chain is an ordered list of stages applied to the rows of one table.
type Chain[T any] struct {
	Table  string
	Stages []Stage[T]
}

// Run applies every stage in order, stopping at the first error.
func (c Chain[T]) Run(s *Session, rows []T) (_ []T, err error) {
	for _, st := range c.Stages {
		in := len(rows)
		start := time.Now()
		rows, err = st.Fn(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "running stage %s/%s", c.Table, st.Name)
		}
		s.Log.Debugf("%s/%s: %d -> %d rows in %v", c.Table, st.Name, in, len(rows), time.Since(start))
		s.Stats.Count("stage.rows", int64(len(rows)), 1, "table:"+c.Table, "stage:"+st.Name)
	}
	return rows, nil
}

// Project maps rows of one type onto another, dropping those for which fn
// returns false. It is logged as a stage of table.
func Project[In, Out any](s *Session, table, name string, rows []In, fn func(In) (Out, bool)) []Out {
	out := make([]Out, 0, len(rows))
	for _, r := range rows {
		if o, ok := fn(r); ok {
			out = append(out, o)
		}
	}
	s.Log.Debugf("%s/%s: %d -> %d rows", table, name, len(rows), len(out))
	s.Stats.Count("stage.rows", int64(len(out)), 1, "table:"+table, "stage:"+name)
	return out
}

// Filter returns a stage keeping the rows for which keep returns true.
func Filter[T any](name string, keep func(T) bool) Stage[T] {
	return Stage[T]{
		Name: name,
		Fn: func(rows []T) ([]T, error) {
			out := rows[:0:0]
			for _, r := range rows {
				if keep(r) {
					out = append(out, r)
				}
			}
			return out, nil
		},
	}
}

// Dedup returns a stage keeping the first row seen for each key. The set of
// seen keys is kept in a scratch index opened from the session.
func Dedup[T any](s *Session, name string, key func(T) []byte) Stage[T] {
	return Stage[T]{
		Name: name,
		Fn: func(rows []T) (_ []T, err error) {
			seen, err := s.Indexes.Open(indexName(name))
			if err != nil {
				return nil, errors.Wrap(err, "opening index")
			}
			defer func() {
				if cerr := seen.Close(); cerr != nil && err == nil {
					err = errors.Wrap(cerr, "closing index")
				}
			}()
			out := rows[:0:0]
			for _, r := range rows {
				k := key(r)
				_, ok, err := seen.Get(k)
				if err != nil {
					return nil, errors.Wrap(err, "checking index")
				}
				if ok {
					continue
				}
				if err := seen.Put(k, nil); err != nil {
					return nil, errors.Wrap(err, "updating index")
				}
				out = append(out, r)
			}
			return out, nil
		},
	}
}

// Latest returns a stage keeping, for each key, the row with the greatest
// version. Ties go to the row that comes later. Surviving rows are returned in
// the order their keys were first seen.
func Latest[T any](s *Session, name string, key func(T) []byte, version func(T) int64) Stage[T] {
	return Stage[T]{
		Name: name,
		Fn: func(rows []T) (_ []T, err error) {
			slots, err := s.Indexes.Open(indexName(name))
			if err != nil {
				return nil, errors.Wrap(err, "opening index")
			}
			defer func() {
				if cerr := slots.Close(); cerr != nil && err == nil {
					err = errors.Wrap(cerr, "closing index")
				}
			}()
			out := rows[:0:0]
			buf := make([]byte, 8)
			for _, r := range rows {
				k := key(r)
				val, ok, err := slots.Get(k)
				if err != nil {
					return nil, errors.Wrap(err, "checking index")
				}
				if !ok {
					binary.BigEndian.PutUint64(buf, uint64(len(out)))
					if err := slots.Put(k, buf); err != nil {
						return nil, errors.Wrap(err, "updating index")
					}
					out = append(out, r)
					continue
				}
				slot := binary.BigEndian.Uint64(val)
				if version(r) >= version(out[slot]) {
					out[slot] = r
				}
			}
			return out, nil
		},
	}
}

// indexName turns a stage name into something safe to use as a file name.
func indexName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') {
			b[i] = '_'
		}
	}
	return string(b)
}
