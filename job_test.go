package datalake_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/gen"
	"github.com/sparkify/datalake/keystore"
	"github.com/sparkify/datalake/storage"
	"github.com/sparkify/datalake/test"
)

func TestExecuteReferenceExample(t *testing.T) {
	f := newFixture(t)
	test.PutJSON(t, f.input, "song_data/A/B/C/TRABCEI128F424C983.json", setanta)
	test.PutJSON(t, f.input, "log_data/2018/11/2018-11-12-events.json",
		setantaPlay,
		datalake.LogEvent{UserID: "26", TS: 1541990000000, Page: "Home", Level: "free"},
	)

	res, err := datalake.Execute(context.Background(), f.sess, "song_data/", "log_data/")
	require.NoError(t, err)
	require.Equal(t, &datalake.Result{Songs: 1, Artists: 1, Users: 1, Times: 1, Songplays: 1}, res)

	plays := test.ReadTable[test.SongplayRow](t, f.output, "analytics/songplays/")
	require.Len(t, plays["year=2018/month=11/"], 1)
	sp := plays["year=2018/month=11/"][0]
	require.Equal(t, "SOZCTXZ12AB0182364", *sp.SongID)
	require.Equal(t, "AR5KOSW1187FB35FF4", *sp.ArtistID)
	require.Equal(t, "26", sp.UserID)
	require.Equal(t, "paid", sp.Level)
	require.Equal(t, int64(583), sp.SessionID)
	require.Equal(t, int64(1541990258796), sp.StartTime)

	times := test.ReadTable[test.TimeRow](t, f.output, "analytics/time/")
	require.Equal(t, []test.TimeRow{{StartTime: 1541990258796, Hour: 2, Day: 12, Week: 46, Weekday: 0}}, times["year=2018/month=11/"])

	songs := test.ReadTable[test.SongRow](t, f.output, "analytics/songs/")
	require.Len(t, songs["year=0/artist_id=AR5KOSW1187FB35FF4/"], 1)

	users := test.ReadTable[test.UserRow](t, f.output, "analytics/users/")
	require.Equal(t, []test.UserRow{{UserID: "26", FirstName: "Ryan", LastName: "Smith", Gender: "M", Level: "paid"}}, users[""])

	for _, table := range []string{"songs", "artists", "users", "time", "songplays"} {
		_, ok := f.output.Get("analytics/" + table + "/_SUCCESS")
		require.True(t, ok, table)
	}
}

func TestExecuteGenerated(t *testing.T) {
	for _, kind := range []keystore.Kind{keystore.Memory, keystore.Bolt} {
		t.Run(string(kind), func(t *testing.T) {
			o, err := keystore.NewOpener(kind, t.TempDir())
			require.NoError(t, err)
			f := newFixture(t, datalake.OptSessionIndexes(o), datalake.OptSessionMaxRecordsPerFile(40))

			d, err := gen.Generate(gen.Config{
				Seed: 11, Songs: 30, Artists: 10, Users: 12, Days: 3, EventsPerDay: 80, MatchRate: 0.7,
				Start: time.Date(2018, 11, 29, 0, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)
			require.NoError(t, d.Write(context.Background(), f.input, "song_data/", "log_data/"))

			res, err := datalake.Execute(context.Background(), f.sess, "song_data/", "log_data/")
			require.NoError(t, err)
			require.Equal(t, 30, res.Songs)
			require.Equal(t, d.Plays(), res.Songplays)

			var plays []test.SongplayRow
			for dir, rows := range test.ReadTable[test.SongplayRow](t, f.output, "analytics/songplays/") {
				require.Contains(t, []string{"year=2018/month=11/", "year=2018/month=12/"}, dir)
				plays = append(plays, rows...)
			}
			require.Len(t, plays, res.Songplays)

			ids := make(map[int64]bool)
			starts := make(map[int64]bool)
			matched := 0
			for _, p := range plays {
				require.False(t, ids[p.SongplayID], "duplicate songplay_id")
				ids[p.SongplayID] = true
				starts[p.StartTime] = true
				if p.SongID != nil {
					matched++
				}
			}
			require.Greater(t, matched, 0)

			timeStarts := make(map[int64]bool)
			for _, rows := range test.ReadTable[test.TimeRow](t, f.output, "analytics/time/") {
				for _, r := range rows {
					require.False(t, timeStarts[r.StartTime], "duplicate start_time")
					timeStarts[r.StartTime] = true
				}
			}
			require.Equal(t, starts, timeStarts)
			require.Len(t, timeStarts, res.Times)

			players := make(map[string]bool)
			for _, p := range plays {
				players[p.UserID] = true
			}
			userIDs := make(map[string]bool)
			for _, u := range test.ReadTable[test.UserRow](t, f.output, "analytics/users/")[""] {
				require.False(t, userIDs[u.UserID], "duplicate user_id")
				userIDs[u.UserID] = true
			}
			require.Equal(t, players, userIDs)
			require.Len(t, userIDs, res.Users)
		})
	}
}

func TestExecuteIsRepeatable(t *testing.T) {
	d, err := gen.Generate(gen.Config{
		Seed: 5, Songs: 10, Artists: 4, Users: 5, Days: 1, EventsPerDay: 40, MatchRate: 0.5,
		Start: time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	run := func() *storage.Mem {
		f := newFixture(t)
		require.NoError(t, d.Write(context.Background(), f.input, "song_data/", "log_data/"))
		_, err := datalake.Execute(context.Background(), f.sess, "song_data/", "log_data/")
		require.NoError(t, err)
		return f.output
	}
	a, b := run(), run()
	keys, err := a.List(context.Background(), "analytics/")
	require.NoError(t, err)
	bkeys, err := b.List(context.Background(), "analytics/")
	require.NoError(t, err)
	require.Equal(t, keys, bkeys)
	for _, k := range keys {
		av, _ := a.Get(k)
		bv, _ := b.Get(k)
		require.Equal(t, av, bv, k)
	}
}

func TestExecuteFailsOnBadInput(t *testing.T) {
	f := newFixture(t)
	f.input.Put("log_data/2018/11/bad.json", []byte(`{"page":"NextSong","userId":"1"}`))
	_, err := datalake.Execute(context.Background(), f.sess, "song_data/", "log_data/")
	require.Error(t, err)
	out, err := f.output.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestMainRunLocal(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src, err := storage.NewLocal(in)
	require.NoError(t, err)
	d, err := gen.Generate(gen.Config{
		Seed: 2, Songs: 8, Artists: 3, Users: 4, Days: 2, EventsPerDay: 20, MatchRate: 0.5,
		Start: time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, d.Write(context.Background(), src, "song_data/", "log_data/"))

	m := datalake.NewMain()
	m.Input = in
	m.Output = "file://" + out
	m.IndexStore = "leveldb"
	m.IndexDir = t.TempDir()
	m.LogPath = filepath.Join(t.TempDir(), "etl.log")
	m.Compression = "gzip"
	m.Progress = true
	require.NoError(t, m.Run())

	for _, table := range []string{"songs", "artists", "users", "time", "songplays"} {
		_, err := os.Stat(filepath.Join(out, "analytics", table, "_SUCCESS"))
		require.NoError(t, err, table)
	}
	matches, err := filepath.Glob(filepath.Join(out, "analytics", "users", "part-*.gz.parquet"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	logged, err := os.ReadFile(m.LogPath)
	require.NoError(t, err)
	require.Contains(t, string(logged), "processing song data")

	require.Zero(t, openHandles(t, m.LogPath), "log file left open")

	// a second run overwrites rather than accumulating files
	require.NoError(t, m.Run())
	matches, err = filepath.Glob(filepath.Join(out, "analytics", "users", "part-*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Zero(t, openHandles(t, m.LogPath), "log file left open")
}

// openHandles counts this process's file descriptors pointing at path.
func openHandles(t *testing.T, path string) int {
	t.Helper()
	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd")
	}
	n := 0
	for _, fd := range fds {
		if target, err := os.Readlink(filepath.Join("/proc/self/fd", fd.Name())); err == nil && target == path {
			n++
		}
	}
	return n
}

func TestMainValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(m *datalake.Main)
	}{
		{name: "write mode", mod: func(m *datalake.Main) { m.WriteMode = "merge" }},
		{name: "compression", mod: func(m *datalake.Main) { m.Compression = "lzo" }},
		{name: "index store", mod: func(m *datalake.Main) { m.IndexStore = "redis" }},
		{name: "concurrency", mod: func(m *datalake.Main) { m.Concurrency = 0 }},
		{name: "max records", mod: func(m *datalake.Main) { m.MaxRecordsPerFile = -1 }},
		{name: "time zone", mod: func(m *datalake.Main) { m.TimeZone = "Mars/Olympus_Mons" }},
		{name: "geohash", mod: func(m *datalake.Main) { m.ArtistGeohashPrecision = 13 }},
		{name: "no input", mod: func(m *datalake.Main) { m.Input = "" }},
	}
	require.NoError(t, datalake.NewMain().Validate())
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			m := datalake.NewMain()
			tst.mod(m)
			require.Error(t, m.Validate())
		})
	}
}
