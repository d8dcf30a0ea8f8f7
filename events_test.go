package datalake_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake"
)

func TestUsersTable(t *testing.T) {
	f := newFixture(t)
	events := []datalake.LogEvent{
		{UserID: "8", FirstName: "Kaylee", Level: "free", TS: 100, Page: "Home"},
		{UserID: "", FirstName: "Ghost", Level: "free", TS: 150, Page: "Home"},
		{UserID: "26", FirstName: "Ryan", Level: "free", TS: 120, Page: datalake.NextSong},
		{UserID: "8", FirstName: "Kaylee", Level: "paid", TS: 300, Page: datalake.NextSong},
		{UserID: "26", FirstName: "Ryan", Level: "paid", TS: 90, Page: datalake.NextSong},
		{UserID: "8", FirstName: "Kaylee", Level: "free", TS: 400, Page: "Logout"},
		{UserID: "51", FirstName: "Maia", Level: "free", TS: 500, Page: "Home"},
	}
	users, err := datalake.UsersTable(f.sess, events)
	require.NoError(t, err)
	// a later non-play event doesn't change the level, and browsing alone
	// makes no user
	require.Equal(t, []datalake.User{
		{UserID: "26", FirstName: "Ryan", Level: "free"},
		{UserID: "8", FirstName: "Kaylee", Level: "paid"},
	}, users)
}

func TestPlays(t *testing.T) {
	f := newFixture(t)
	events := []datalake.LogEvent{
		play(1, "1", "a", "b", 1),
		{UserID: "1", TS: 2, Page: "Home"},
		play(3, "", "a", "b", 1),
		play(4, "2", "a", "b", 1),
	}
	plays, err := datalake.Plays(f.sess, events)
	require.NoError(t, err)
	require.Len(t, plays, 2)
	require.Equal(t, int64(1), plays[0].TS)
	require.Equal(t, int64(4), plays[1].TS)
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		ts  int64
		exp datalake.Time
	}{
		{
			ts:  1541990258796,
			exp: datalake.Time{Hour: 2, Day: 12, Week: 46, Month: 11, Year: 2018, Weekday: 0},
		},
		{
			ts:  1542241826796,
			exp: datalake.Time{Hour: 0, Day: 15, Week: 46, Month: 11, Year: 2018, Weekday: 3},
		},
		{
			// ISO week 1 of the next year
			ts:  1546250400000,
			exp: datalake.Time{Hour: 10, Day: 31, Week: 1, Month: 12, Year: 2018, Weekday: 0},
		},
		{
			ts:  1609718399000,
			exp: datalake.Time{Hour: 23, Day: 3, Week: 53, Month: 1, Year: 2021, Weekday: 6},
		},
	}
	for _, tst := range tests {
		start := datalake.StartTime(tst.ts, time.UTC)
		require.Equal(t, tst.ts, start.UnixMilli())
		got := datalake.Decompose(start)
		tst.exp.StartTime = start
		require.Equal(t, tst.exp, got, "ts %d", tst.ts)
	}
}

func TestDecomposeInZone(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	got := datalake.Decompose(datalake.StartTime(1541990258796, loc))
	require.Equal(t, 18, got.Hour)
	require.Equal(t, 11, got.Day)
	require.Equal(t, 6, got.Weekday)
}

func TestTimeTable(t *testing.T) {
	f := newFixture(t)
	plays := []datalake.LogEvent{
		play(1541990258796, "1", "a", "b", 1),
		play(1542241826796, "2", "a", "b", 1),
		play(1541990258796, "3", "c", "d", 1),
	}
	times, err := datalake.TimeTable(f.sess, plays)
	require.NoError(t, err)
	require.Len(t, times, 2)
	require.Equal(t, int64(1541990258796), times[0].StartTime.UnixMilli())
	require.Equal(t, int64(1542241826796), times[1].StartTime.UnixMilli())
}

func TestSongplaysReferenceExample(t *testing.T) {
	f := newFixture(t)
	recs := []datalake.SongRecord{setanta}
	songs, err := datalake.SongsTable(f.sess, recs)
	require.NoError(t, err)
	artists, err := datalake.ArtistsTable(f.sess, recs)
	require.NoError(t, err)

	plays, err := datalake.Plays(f.sess, []datalake.LogEvent{setantaPlay})
	require.NoError(t, err)
	songplays, err := datalake.SongplaysTable(f.sess, plays, songs, artists)
	require.NoError(t, err)
	require.Len(t, songplays, 1)

	sp := songplays[0]
	require.NotNil(t, sp.SongID)
	require.NotNil(t, sp.ArtistID)
	require.Equal(t, "SOZCTXZ12AB0182364", *sp.SongID)
	require.Equal(t, "AR5KOSW1187FB35FF4", *sp.ArtistID)
	require.Equal(t, "26", sp.UserID)
	require.Equal(t, "paid", sp.Level)
	require.Equal(t, int64(583), sp.SessionID)
	require.Equal(t, "San Jose-Sunnyvale-Santa Clara, CA", sp.Location)
	require.Equal(t, int64(1541990258796), sp.StartTime.UnixMilli())
	require.Equal(t, int64(0), sp.SongplayID)
	require.Equal(t, 2018, sp.Year)
	require.Equal(t, 11, sp.Month)
	require.Equal(t, int64(1), f.stats.Get("join.matched"))
}

func TestSongplaysJoin(t *testing.T) {
	f := newFixture(t)
	songs := []datalake.Song{
		{SongID: "S9", Title: "Dup", ArtistID: "A1", Duration: 10},
		{SongID: "S2", Title: "Dup", ArtistID: "A1", Duration: 10},
		{SongID: "S5", Title: "Dup", ArtistID: "A1", Duration: 10},
		{SongID: "S3", Title: "Orphan", ArtistID: "A404", Duration: 10},
		{SongID: "S4", Title: "Exact", ArtistID: "A2", Duration: 238.07955},
	}
	artists := []datalake.Artist{
		{ArtistID: "A1", Name: "Ann"},
		{ArtistID: "A2", Name: "Bob"},
	}
	plays := []datalake.LogEvent{
		play(1000, "1", "Dup", "Ann", 10),
		play(2000, "1", "Orphan", "", 10),
		play(3000, "2", "Exact", "Bob", 238.0795),
		play(4000, "2", "Exact", "Bob", 238.07955),
		play(5000, "3", "exact", "Bob", 238.07955),
		{TS: 6000, UserID: "3", Page: datalake.NextSong},
	}
	songplays, err := datalake.SongplaysTable(f.sess, plays, songs, artists)
	require.NoError(t, err)
	require.Len(t, songplays, len(plays))

	ids := func(i int) (string, string) {
		sp := songplays[i]
		if sp.SongID == nil {
			require.Nil(t, sp.ArtistID)
			return "", ""
		}
		return *sp.SongID, *sp.ArtistID
	}
	for i, exp := range [][2]string{{"S2", "A1"}, {"", ""}, {"", ""}, {"S4", "A2"}, {"", ""}, {"", ""}} {
		s, a := ids(i)
		require.Equal(t, exp[0], s, "play %d", i)
		require.Equal(t, exp[1], a, "play %d", i)
		require.Equal(t, int64(i), songplays[i].SongplayID)
	}
}

func TestEventInvariants(t *testing.T) {
	f := newFixture(t)
	events := []datalake.LogEvent{
		setantaPlay,
		{UserID: "26", TS: 1541990000000, Page: "Home"},
		play(1542241826796, "8", "Nope", "Nobody", 1),
		play(1541990258796, "9", "Setanta matins", "Elena", 269.58322),
		play(1543279932796, "", "Setanta matins", "Elena", 269.58322),
		{UserID: "", TS: 1543279932000, Page: "Home"},
	}
	plays, err := datalake.Plays(f.sess, events)
	require.NoError(t, err)
	times, err := datalake.TimeTable(f.sess, plays)
	require.NoError(t, err)
	songplays, err := datalake.SongplaysTable(f.sess, plays, nil, nil)
	require.NoError(t, err)

	require.Len(t, songplays, 3)
	timeSet := make(map[int64]bool)
	for _, tm := range times {
		require.False(t, timeSet[tm.StartTime.UnixMilli()], "duplicate start_time")
		timeSet[tm.StartTime.UnixMilli()] = true
	}
	playSet := make(map[int64]bool)
	for _, sp := range songplays {
		playSet[sp.StartTime.UnixMilli()] = true
		require.Nil(t, sp.SongID)
	}
	require.Equal(t, playSet, timeSet)
	require.False(t, timeSet[1541990000000])
	require.False(t, timeSet[1543279932796])
}

func TestTransformsAreRepeatable(t *testing.T) {
	run := func() ([]datalake.Song, []datalake.Artist, []datalake.User, []datalake.Time, []datalake.Songplay) {
		f := newFixture(t)
		recs := append(catalogue(), setanta)
		events := []datalake.LogEvent{setantaPlay, play(1542241826796, "8", "One", "Ann", 100.5), {UserID: "8", TS: 5, Page: "Home"}}
		songs, err := datalake.SongsTable(f.sess, recs)
		require.NoError(t, err)
		artists, err := datalake.ArtistsTable(f.sess, recs)
		require.NoError(t, err)
		users, err := datalake.UsersTable(f.sess, events)
		require.NoError(t, err)
		plays, err := datalake.Plays(f.sess, events)
		require.NoError(t, err)
		times, err := datalake.TimeTable(f.sess, plays)
		require.NoError(t, err)
		songplays, err := datalake.SongplaysTable(f.sess, plays, songs, artists)
		require.NoError(t, err)
		return songs, artists, users, times, songplays
	}
	s1, a1, u1, t1, p1 := run()
	s2, a2, u2, t2, p2 := run()
	require.Equal(t, s1, s2)
	require.Equal(t, a1, a2)
	require.Equal(t, u1, u2)
	require.Equal(t, t1, t2)
	require.Equal(t, p1, p2)
	require.Equal(t, "S1", *p1[1].SongID)
}
