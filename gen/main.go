package gen

import (
	"context"
	"os"
	"time"

	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"

	"github.com/sparkify/datalake/storage"
)

// Main holds all config for generating a dataset.
type Main struct {
	Output       string  `help:"Location to write the dataset to: s3a://bucket/prefix, file:///path or a local path."`
	SongPrefix   string  `help:"Prefix the song catalogue is written under."`
	LogPrefix    string  `help:"Prefix the activity logs are written under."`
	Seed         int64   `help:"Random seed for generating data. -1 will use current nanosecond."`
	Songs        int     `help:"Number of songs in the catalogue."`
	Artists      int     `help:"Number of distinct artists."`
	Users        int     `help:"Number of distinct users."`
	Days         int     `help:"Number of days of activity logs."`
	EventsPerDay int     `help:"Approximate number of events per day."`
	MatchRate    float64 `help:"Fraction of plays which name a song from the catalogue."`
	Start        string  `help:"First day of activity, as YYYY-MM-DD."`

	AWSAccessKeyID     string `flag:"aws-access-key-id" help:"AWS access key. Empty uses the default credential chain."`
	AWSSecretAccessKey string `flag:"aws-secret-access-key" help:"AWS secret key."`
	AWSRegion          string `flag:"aws-region" help:"AWS region of the output bucket."`
	S3Endpoint         string `flag:"s3-endpoint" help:"Custom S3 compatible endpoint, e.g. a local minio."`

	// Store replaces the store opened from Output when set.
	Store storage.Store `flag:"-"`
}

// NewMain returns a Main with defaults roughly the size of the public
// sample dataset.
func NewMain() *Main {
	return &Main{
		Output:       "sparkify-sample",
		SongPrefix:   "song_data/",
		LogPrefix:    "log_data/",
		Songs:        70,
		Artists:      60,
		Users:        100,
		Days:         30,
		EventsPerDay: 270,
		MatchRate:    0.5,
		Start:        "2018-11-01",
		AWSRegion:    "us-west-2",
	}
}

// Run generates the dataset and writes it out.
func (m *Main) Run() error {
	log := logger.NewStandardLogger(os.Stderr)
	if m.Seed == -1 {
		m.Seed = time.Now().UnixNano()
	}
	start, err := time.Parse("2006-01-02", m.Start)
	if err != nil {
		return errors.Wrap(err, "parsing start date")
	}
	store := m.Store
	if store == nil {
		store, err = storage.Open(m.Output,
			storage.OptRegion(m.AWSRegion),
			storage.OptEndpoint(m.S3Endpoint),
			storage.OptCredentials(m.AWSAccessKeyID, m.AWSSecretAccessKey),
		)
		if err != nil {
			return errors.Wrap(err, "opening output")
		}
	}

	d, err := Generate(Config{
		Seed:         m.Seed,
		Songs:        m.Songs,
		Artists:      m.Artists,
		Users:        m.Users,
		Days:         m.Days,
		EventsPerDay: m.EventsPerDay,
		MatchRate:    m.MatchRate,
		Start:        start,
	})
	if err != nil {
		return errors.Wrap(err, "generating dataset")
	}
	if err := d.Write(context.Background(), store, m.SongPrefix, m.LogPrefix); err != nil {
		return errors.Wrap(err, "writing dataset")
	}
	log.Printf("wrote %d songs and %d days of logs (%d plays) to '%s' with seed %d", len(d.Songs), len(d.Days), d.Plays(), m.Output, m.Seed)
	return nil
}
