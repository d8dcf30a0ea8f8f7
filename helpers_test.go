package datalake_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/mock"
	"github.com/sparkify/datalake/storage"
)

type fixture struct {
	sess   *datalake.Session
	input  *storage.Mem
	output *storage.Mem
	stats  *mock.RecordingStatter
}

func newFixture(t *testing.T, opts ...datalake.SessionOption) *fixture {
	t.Helper()
	f := &fixture{
		input:  storage.NewMem(),
		output: storage.NewMem(),
		stats:  &mock.RecordingStatter{},
	}
	opts = append([]datalake.SessionOption{
		datalake.OptSessionStatter(f.stats),
		datalake.OptSessionRunID("run0"),
	}, opts...)
	sess, err := datalake.NewSession(f.input, f.output, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, sess.Close()) })
	f.sess = sess
	return f
}

func str(s string) *string { return &s }
func f64(v float64) *float64 { return &v }

func play(ts int64, user, song, artist string, length float64) datalake.LogEvent {
	return datalake.LogEvent{
		TS:        ts,
		UserID:    user,
		Page:      datalake.NextSong,
		Song:      str(song),
		Artist:    str(artist),
		Length:    f64(length),
		Level:     "free",
		SessionID: 1,
	}
}

// setanta is the catalogue row and play from the reference example.
var setanta = datalake.SongRecord{
	SongID:     "SOZCTXZ12AB0182364",
	Title:      "Setanta matins",
	ArtistID:   "AR5KOSW1187FB35FF4",
	ArtistName: "Elena",
	Duration:   269.58322,
	Year:       0,
}

var setantaPlay = datalake.LogEvent{
	TS:        1541990258796,
	UserID:    "26",
	FirstName: "Ryan",
	LastName:  "Smith",
	Gender:    "M",
	Page:      datalake.NextSong,
	Song:      str("Setanta matins"),
	Artist:    str("Elena"),
	Length:    f64(269.58322),
	SessionID: 583,
	Level:     "paid",
	Location:  "San Jose-Sunnyvale-Santa Clara, CA",
	UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
}
