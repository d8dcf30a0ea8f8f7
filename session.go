package datalake

import (
	"time"

	"github.com/google/uuid"
	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake/columnar"
	"github.com/sparkify/datalake/keystore"
	"github.com/sparkify/datalake/storage"
)

// Session is the execution context of one run. It is created once and handed
// to every component; nothing in this package keeps state outside of it.
type Session struct {
	Input  storage.Store
	Output storage.Store

	Log   logger.Logger
	Stats Statter

	// Indexes opens the scratch indexes behind deduplication and joins.
	Indexes *keystore.Opener

	Mode        WriteMode
	Compression columnar.Codec
	// MaxRecordsPerFile splits partitions into several files. 0 means no
	// limit.
	MaxRecordsPerFile int

	// Location is the zone timestamps are decomposed in.
	Location *time.Location

	// Concurrency bounds the number of objects fetched at once.
	Concurrency int
	// FileSuffix selects which input objects are read.
	FileSuffix string

	// GeohashPrecision adds a geohash of that many characters to artists.
	// 0 leaves it out.
	GeohashPrecision uint

	// RunID is part of every file name written by the run.
	RunID string
}

// SessionOption is a functional option for NewSession.
type SessionOption func(s *Session) error

// OptSessionLogger sets the logger.
func OptSessionLogger(l logger.Logger) SessionOption {
	return func(s *Session) error {
		s.Log = l
		return nil
	}
}

// OptSessionStatter sets the stats collector.
func OptSessionStatter(st Statter) SessionOption {
	return func(s *Session) error {
		s.Stats = st
		return nil
	}
}

// OptSessionIndexes sets the opener for scratch indexes. The session takes
// ownership and closes it.
func OptSessionIndexes(o *keystore.Opener) SessionOption {
	return func(s *Session) error {
		s.Indexes = o
		return nil
	}
}

// OptSessionWriteMode sets what happens to tables which already exist.
func OptSessionWriteMode(m WriteMode) SessionOption {
	return func(s *Session) error {
		s.Mode = m
		return nil
	}
}

// OptSessionCompression sets the parquet compression codec.
func OptSessionCompression(c columnar.Codec) SessionOption {
	return func(s *Session) error {
		s.Compression = c
		return nil
	}
}

// OptSessionMaxRecordsPerFile caps the rows written to one file.
func OptSessionMaxRecordsPerFile(n int) SessionOption {
	return func(s *Session) error {
		if n < 0 {
			return errors.Errorf("max records per file must not be negative, got %d", n)
		}
		s.MaxRecordsPerFile = n
		return nil
	}
}

// OptSessionLocation sets the zone timestamps are decomposed in.
func OptSessionLocation(loc *time.Location) SessionOption {
	return func(s *Session) error {
		if loc == nil {
			return errors.New("nil location")
		}
		s.Location = loc
		return nil
	}
}

// OptSessionConcurrency sets how many objects are fetched at once.
func OptSessionConcurrency(c int) SessionOption {
	return func(s *Session) error {
		if c < 1 {
			return errors.Errorf("concurrency must be positive, got %d", c)
		}
		s.Concurrency = c
		return nil
	}
}

// OptSessionFileSuffix sets the suffix of input objects to read. Empty reads
// everything.
func OptSessionFileSuffix(suffix string) SessionOption {
	return func(s *Session) error {
		s.FileSuffix = suffix
		return nil
	}
}

// OptSessionGeohashPrecision enables artist geohashes.
func OptSessionGeohashPrecision(p uint) SessionOption {
	return func(s *Session) error {
		if p > 12 {
			return errors.Errorf("geohash precision must be at most 12, got %d", p)
		}
		s.GeohashPrecision = p
		return nil
	}
}

// OptSessionRunID fixes the run id instead of generating one.
func OptSessionRunID(id string) SessionOption {
	return func(s *Session) error {
		if id == "" {
			return errors.New("empty run id")
		}
		s.RunID = id
		return nil
	}
}

// NewSession returns a Session reading from input and writing to output.
// Unless configured otherwise it logs nothing, overwrites existing tables,
// writes snappy compressed files, decomposes timestamps in UTC and keeps its
// indexes in memory.
func NewSession(input, output storage.Store, opts ...SessionOption) (*Session, error) {
	if input == nil || output == nil {
		return nil, errors.New("input and output stores are required")
	}
	s := &Session{
		Input:       input,
		Output:      output,
		Log:         logger.NopLogger,
		Stats:       NopStatter{},
		Mode:        Overwrite,
		Compression: columnar.Snappy,
		Location:    time.UTC,
		Concurrency: 8,
		FileSuffix:  ".json",
		RunID:       uuid.New().String(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	if s.Indexes == nil {
		o, err := keystore.NewOpener(keystore.Memory, "")
		if err != nil {
			return nil, errors.Wrap(err, "getting index opener")
		}
		s.Indexes = o
	}
	return s, nil
}

// Close releases the session's indexes.
func (s *Session) Close() error {
	return errors.Wrap(s.Indexes.Close(), "closing indexes")
}
