package datalake

import (
	"context"
	"os"
	"time"

	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"

	"github.com/sparkify/datalake/columnar"
	"github.com/sparkify/datalake/keystore"
	"github.com/sparkify/datalake/metrics"
	"github.com/sparkify/datalake/storage"
	"github.com/sparkify/datalake/termstat"
)

// Main holds all config for a run of the job.
type Main struct {
	Input      string `help:"Root location of the raw data: s3a://bucket/prefix, file:///path or a local path."`
	SongPrefix string `help:"Prefix of the song catalogue under the input root."`
	LogPrefix  string `help:"Prefix of the activity logs under the input root."`
	Output     string `help:"Root location analytics/<table>/ directories are written under."`
	FileSuffix string `help:"Only input objects with this suffix are read."`

	AWSAccessKeyID     string `flag:"aws-access-key-id" help:"AWS access key. Empty uses the default credential chain."`
	AWSSecretAccessKey string `flag:"aws-secret-access-key" help:"AWS secret key."`
	AWSRegion          string `flag:"aws-region" help:"AWS region of the input and output buckets."`
	S3Endpoint         string `flag:"s3-endpoint" help:"Custom S3 compatible endpoint, e.g. a local minio."`

	WriteMode         string `help:"What to do with tables that already exist: overwrite, append, error-if-exists or ignore."`
	Compression       string `help:"Parquet compression codec: snappy, gzip or uncompressed."`
	MaxRecordsPerFile int    `help:"Split partitions into files of at most this many rows. 0 means no limit."`
	Concurrency       int    `help:"Number of input objects fetched at once."`
	TimeZone          string `help:"Time zone timestamps are decomposed in."`

	IndexStore string `help:"Where deduplication and join indexes are kept: memory, bolt or leveldb."`
	IndexDir   string `help:"Directory for on-disk indexes. Empty uses the system temp directory."`

	ArtistGeohashPrecision uint `help:"Add a geohash of this many characters to artists. 0 disables it."`

	Pushgateway string `help:"Prometheus Pushgateway URL metrics are pushed to when the run ends. Empty disables pushing."`
	Progress    bool   `help:"Keep a running line of counts on stderr."`
	LogPath     string `help:"Log file to write to. Empty means stderr."`
	Verbose     bool   `help:"Enable verbose logging."`

	// InputStore and OutputStore replace the stores opened from Input and
	// Output when set.
	InputStore  storage.Store `flag:"-"`
	OutputStore storage.Store `flag:"-"`

	log      logger.Logger
	logFile  *os.File
	stats    *metrics.Collector
	progress *termstat.Collector
}

// NewMain returns a Main with the default configuration, which reads the
// public Sparkify dataset.
func NewMain() *Main {
	return &Main{
		Input:       "s3a://udacity-dend/",
		SongPrefix:  "song_data/",
		LogPrefix:   "log_data/",
		Output:      "s3a://sparkify-lake/",
		FileSuffix:  ".json",
		AWSRegion:   "us-west-2",
		WriteMode:   string(Overwrite),
		Compression: string(columnar.Snappy),
		Concurrency: 8,
		TimeZone:    "UTC",
		IndexStore:  string(keystore.Memory),
	}
}

// Log returns the logger set up by Run.
func (m *Main) Log() logger.Logger { return m.log }

// Validate checks the configuration without doing any I/O.
func (m *Main) Validate() error {
	if m.Input == "" && m.InputStore == nil {
		return errors.New("no input location")
	}
	if m.Output == "" && m.OutputStore == nil {
		return errors.New("no output location")
	}
	if _, err := ParseWriteMode(m.WriteMode); err != nil {
		return err
	}
	if _, err := columnar.ParseCodec(m.Compression); err != nil {
		return err
	}
	if _, err := keystore.ParseKind(m.IndexStore); err != nil {
		return err
	}
	if m.Concurrency < 1 {
		return errors.Errorf("concurrency must be positive, got %d", m.Concurrency)
	}
	if m.MaxRecordsPerFile < 0 {
		return errors.Errorf("max records per file must not be negative, got %d", m.MaxRecordsPerFile)
	}
	if _, err := time.LoadLocation(m.TimeZone); err != nil {
		return errors.Wrapf(err, "loading time zone '%s'", m.TimeZone)
	}
	if m.ArtistGeohashPrecision > 12 {
		return errors.Errorf("geohash precision must be at most 12, got %d", m.ArtistGeohashPrecision)
	}
	return nil
}

// Run executes the job once.
func (m *Main) Run() (err error) {
	ctx := context.Background()
	start := time.Now()
	sess, err := m.setup()
	defer m.teardown()
	if err != nil {
		return errors.Wrap(err, "setting up")
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res, err := Execute(ctx, sess, m.SongPrefix, m.LogPrefix)
	m.stats.Timing("job.duration", time.Since(start), 1)
	if m.Pushgateway != "" {
		perr := m.stats.Push(ctx, m.Pushgateway, metrics.Namespace, map[string]string{"run_id": sess.RunID})
		if perr != nil {
			m.log.Printf("%v", perr)
		}
	}
	if err != nil {
		return err
	}
	m.log.Printf("run %s done in %v: %d songs, %d artists, %d users, %d times, %d songplays",
		sess.RunID, time.Since(start), res.Songs, res.Artists, res.Users, res.Times, res.Songplays)
	return nil
}

// teardown stops the progress line and closes the log file once everything
// else has finished logging.
func (m *Main) teardown() {
	if m.progress != nil {
		m.progress.Close()
		m.progress = nil
	}
	if m.logFile != nil {
		m.logFile.Close()
		m.logFile = nil
	}
}

func (m *Main) setup() (*Session, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating configuration")
	}

	// setup logging
	logOut := os.Stderr
	if m.LogPath != "" {
		f, err := os.OpenFile(m.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, errors.Wrap(err, "opening log file")
		}
		m.logFile = f
		logOut = f
	}
	if m.Verbose {
		m.log = logger.NewVerboseLogger(logOut)
	} else {
		m.log = logger.NewStandardLogger(logOut)
	}
	m.stats = metrics.NewCollector()
	var stats Statter = m.stats
	if m.Progress {
		m.progress = termstat.NewCollector(os.Stderr, 2*time.Second)
		stats = MultiStatter{m.stats, m.progress}
	}

	storeOpts := []storage.Option{
		storage.OptRegion(m.AWSRegion),
		storage.OptEndpoint(m.S3Endpoint),
		storage.OptCredentials(m.AWSAccessKeyID, m.AWSSecretAccessKey),
	}
	input, output := m.InputStore, m.OutputStore
	var err error
	if input == nil {
		if input, err = storage.Open(m.Input, storeOpts...); err != nil {
			return nil, errors.Wrap(err, "opening input")
		}
	}
	if output == nil {
		if output, err = storage.Open(m.Output, storeOpts...); err != nil {
			return nil, errors.Wrap(err, "opening output")
		}
	}

	// Validate has already checked these.
	mode, _ := ParseWriteMode(m.WriteMode)
	codec, _ := columnar.ParseCodec(m.Compression)
	kind, _ := keystore.ParseKind(m.IndexStore)
	loc, _ := time.LoadLocation(m.TimeZone)

	indexes, err := keystore.NewOpener(kind, m.IndexDir)
	if err != nil {
		return nil, errors.Wrap(err, "setting up indexes")
	}
	sess, err := NewSession(input, output,
		OptSessionLogger(m.log),
		OptSessionStatter(stats),
		OptSessionIndexes(indexes),
		OptSessionWriteMode(mode),
		OptSessionCompression(codec),
		OptSessionMaxRecordsPerFile(m.MaxRecordsPerFile),
		OptSessionLocation(loc),
		OptSessionConcurrency(m.Concurrency),
		OptSessionFileSuffix(m.FileSuffix),
		OptSessionGeohashPrecision(m.ArtistGeohashPrecision),
	)
	if err != nil {
		indexes.Close()
		return nil, errors.Wrap(err, "creating session")
	}
	return sess, nil
}

// Result holds the number of rows written to each table.
type Result struct {
	Songs     int
	Artists   int
	Users     int
	Times     int
	Songplays int
}

// Execute runs the whole pipeline on s: read both inputs, build all five
// tables, then write them. Any failure stops the run; tables written before
// the failure are left in place.
func Execute(ctx context.Context, s *Session, songPrefix, logPrefix string) (*Result, error) {
	s.Log.Printf("processing song data from '%s'", songPrefix)
	catalogue, err := ReadSongs(ctx, s, songPrefix)
	if err != nil {
		return nil, err
	}
	s.Log.Printf("processing log data from '%s'", logPrefix)
	events, err := ReadEvents(ctx, s, logPrefix)
	if err != nil {
		return nil, err
	}

	songs, err := SongsTable(s, catalogue)
	if err != nil {
		return nil, err
	}
	artists, err := ArtistsTable(s, catalogue)
	if err != nil {
		return nil, err
	}

	users, err := UsersTable(s, events)
	if err != nil {
		return nil, err
	}
	plays, err := Plays(s, events)
	if err != nil {
		return nil, err
	}
	times, err := TimeTable(s, plays)
	if err != nil {
		return nil, err
	}
	songplays, err := SongplaysTable(s, plays, songs, artists)
	if err != nil {
		return nil, err
	}

	err = WriteAll(ctx, s,
		SongsOutput(songs),
		ArtistsOutput(artists, s.GeohashPrecision > 0),
		UsersOutput(users),
		TimeOutput(times),
		SongplaysOutput(songplays),
	)
	if err != nil {
		return nil, err
	}
	return &Result{
		Songs:     len(songs),
		Artists:   len(artists),
		Users:     len(users),
		Times:     len(times),
		Songplays: len(songplays),
	}, nil
}
