package datalake

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/sparkify/datalake/keystore"
)

// NextSong is the page of events which record a song being played.
const NextSong = "NextSong"

// UsersTable derives the users dimension from the song plays of known users,
// so someone who only browsed gets no row. A user's row comes from their most
// recent play; of two plays with the same ts the one read later wins.
func UsersTable(s *Session, events []LogEvent) ([]User, error) {
	latest, err := Chain[LogEvent]{
		Table: "users",
		Stages: []Stage[LogEvent]{
			Filter("page "+NextSong, func(e LogEvent) bool { return e.Page == NextSong }),
			Filter("drop anonymous", func(e LogEvent) bool { return e.UserID != "" }),
			Latest(s, "latest user_id",
				func(e LogEvent) []byte { return []byte(e.UserID) },
				func(e LogEvent) int64 { return e.TS }),
		},
	}.Run(s, events)
	if err != nil {
		return nil, errors.Wrap(err, "building users")
	}
	return Project(s, "users", "select", latest, SelectUser), nil
}

// SelectUser projects an event onto the users columns.
func SelectUser(e LogEvent) (User, bool) {
	return User{
		UserID:    e.UserID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Gender:    e.Gender,
		Level:     e.Level,
	}, true
}

// Plays returns the events which are song plays by a known user. The time
// and songplays tables are both derived from exactly this set.
func Plays(s *Session, events []LogEvent) ([]LogEvent, error) {
	plays, err := Chain[LogEvent]{
		Table: "plays",
		Stages: []Stage[LogEvent]{
			Filter("page "+NextSong, func(e LogEvent) bool { return e.Page == NextSong }),
			Filter("drop anonymous", func(e LogEvent) bool { return e.UserID != "" }),
		},
	}.Run(s, events)
	return plays, errors.Wrap(err, "filtering plays")
}

// TimeTable derives the time dimension: one row per distinct play timestamp.
func TimeTable(s *Session, plays []LogEvent) ([]Time, error) {
	times := Project(s, "time", "decompose", plays, func(e LogEvent) (Time, bool) {
		return Decompose(StartTime(e.TS, s.Location)), true
	})
	times, err := Chain[Time]{
		Table: "time",
		Stages: []Stage[Time]{
			Dedup(s, "dedup start_time", func(t Time) []byte { return msKey(t.StartTime) }),
		},
	}.Run(s, times)
	return times, errors.Wrap(err, "building time")
}

// StartTime converts an event ts, in milliseconds since the epoch, to a time
// in loc.
func StartTime(ts int64, loc *time.Location) time.Time {
	return time.UnixMilli(ts).In(loc)
}

// Decompose splits a timestamp into the columns of the time dimension.
func Decompose(t time.Time) Time {
	_, week := t.ISOWeek()
	return Time{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   (int(t.Weekday()) + 6) % 7,
	}
}

func msKey(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixMilli()))
	return b
}

// SongplaysTable derives the songplays fact table: one row per play, matched
// against the catalogue and numbered from 0 in play order.
func SongplaysTable(s *Session, plays []LogEvent, songs []Song, artists []Artist) ([]Songplay, error) {
	rows, err := JoinCatalogue(s, plays, songs, artists)
	if err != nil {
		return nil, errors.Wrap(err, "building songplays")
	}
	rows, err = Chain[Songplay]{
		Table: "songplays",
		Stages: []Stage[Songplay]{
			AssignSongplayIDs(NewNexter()),
		},
	}.Run(s, rows)
	return rows, errors.Wrap(err, "building songplays")
}

// JoinCatalogue turns plays into songplays, filling in song_id and artist_id
// for those whose song, artist and length exactly match a song's title, its
// artist's name and its duration. When several songs match, the lowest
// song_id is used. Unmatched plays are kept with nil ids.
func JoinCatalogue(s *Session, plays []LogEvent, songs []Song, artists []Artist) (_ []Songplay, err error) {
	idx, err := catalogueIndex(s, songs, artists)
	if err != nil {
		return nil, errors.Wrap(err, "indexing catalogue")
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing catalogue index")
		}
	}()

	matched := 0
	out := make([]Songplay, 0, len(plays))
	for _, e := range plays {
		start := StartTime(e.TS, s.Location)
		sp := Songplay{
			StartTime: start,
			UserID:    e.UserID,
			Level:     e.Level,
			SessionID: e.SessionID,
			Location:  e.Location,
			UserAgent: e.UserAgent,
			Year:      start.Year(),
			Month:     int(start.Month()),
		}
		if e.Song != nil && e.Artist != nil && e.Length != nil {
			val, ok, err := idx.Get(joinKey(*e.Song, *e.Artist, *e.Length))
			if err != nil {
				return nil, errors.Wrap(err, "looking up play")
			}
			if ok {
				songID, artistID := splitMatch(val)
				sp.SongID, sp.ArtistID = &songID, &artistID
				matched++
			}
		}
		out = append(out, sp)
	}
	s.Log.Debugf("songplays/join: %d -> %d rows, %d matched", len(plays), len(out), matched)
	s.Stats.Count("stage.rows", int64(len(out)), 1, "table:songplays", "stage:join")
	s.Stats.Count("join.matched", int64(matched), 1, "table:songplays")
	return out, nil
}

// AssignSongplayIDs returns a stage numbering rows with ids from n.
func AssignSongplayIDs(n INexter) Stage[Songplay] {
	return Stage[Songplay]{
		Name: "assign songplay_id",
		Fn: func(rows []Songplay) ([]Songplay, error) {
			out := make([]Songplay, len(rows))
			for i, sp := range rows {
				sp.SongplayID = int64(n.Next())
				out[i] = sp
			}
			return out, nil
		},
	}
}

// catalogueIndex maps join keys to "song_id\x00artist_id" for every song
// whose artist is known. The caller must close the returned index.
func catalogueIndex(s *Session, songs []Song, artists []Artist) (_ keystore.Store, err error) {
	names, err := s.Indexes.Open("artist_names")
	if err != nil {
		return nil, errors.Wrap(err, "opening artist index")
	}
	idx, err := s.Indexes.Open("catalogue")
	if err != nil {
		names.Close()
		return nil, errors.Wrap(err, "opening catalogue index")
	}
	defer func() {
		if cerr := names.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing artist index")
		}
		if err != nil {
			idx.Close()
		}
	}()

	for _, a := range artists {
		if err := names.Put([]byte(a.ArtistID), []byte(a.Name)); err != nil {
			return nil, errors.Wrap(err, "indexing artist")
		}
	}
	for _, sg := range songs {
		name, ok, err := names.Get([]byte(sg.ArtistID))
		if err != nil {
			return nil, errors.Wrap(err, "looking up artist")
		}
		if !ok {
			continue
		}
		key := joinKey(sg.Title, string(name), sg.Duration)
		prev, ok, err := idx.Get(key)
		if err != nil {
			return nil, errors.Wrap(err, "looking up song")
		}
		if ok {
			if prevID, _ := splitMatch(prev); prevID <= sg.SongID {
				continue
			}
		}
		if err := idx.Put(key, []byte(sg.SongID+"\x00"+sg.ArtistID)); err != nil {
			return nil, errors.Wrap(err, "indexing song")
		}
	}
	return idx, nil
}

func joinKey(title, artist string, duration float64) []byte {
	key := make([]byte, 0, len(title)+len(artist)+10)
	key = append(key, title...)
	key = append(key, 0)
	key = append(key, artist...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, math.Float64bits(duration))
}

func splitMatch(val []byte) (songID, artistID string) {
	i := bytes.IndexByte(val, 0)
	if i < 0 {
		return string(val), ""
	}
	return string(val[:i]), string(val[i+1:])
}
