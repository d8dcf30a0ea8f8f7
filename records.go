package datalake

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// SongRecord is one entry of the song catalogue: a song and the artist who
// performed it. Unknown fields in the source JSON are ignored.
type SongRecord struct {
	NumSongs        int      `json:"num_songs"`
	ArtistID        string   `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistLocation  string   `json:"artist_location"`
	ArtistName      string   `json:"artist_name"`
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	Duration        float64  `json:"duration"`
	Year            int      `json:"year"`
}

// LogEvent is one user action from the activity log. Song, Artist and Length
// are only set for NextSong events.
type LogEvent struct {
	Artist        *string  `json:"artist"`
	Auth          string   `json:"auth"`
	FirstName     string   `json:"firstName"`
	Gender        string   `json:"gender"`
	ItemInSession int      `json:"itemInSession"`
	LastName      string   `json:"lastName"`
	Length        *float64 `json:"length"`
	Level         string   `json:"level"`
	Location      string   `json:"location"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	Registration  *float64 `json:"registration"`
	SessionID     int64    `json:"sessionId"`
	Song          *string  `json:"song"`
	Status        int      `json:"status"`
	// TS is the event time in milliseconds since the epoch.
	TS        int64  `json:"ts"`
	UserAgent string `json:"userAgent"`
	UserID    string `json:"userId"`
}

// UnmarshalJSON decodes an event, failing if ts is missing or null. An event
// without a time can't be placed in the time table.
func (e *LogEvent) UnmarshalJSON(data []byte) error {
	type plain LogEvent
	aux := struct {
		*plain
		TS *int64 `json:"ts"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.TS == nil {
		return errors.New("event has no ts")
	}
	e.TS = *aux.TS
	return nil
}

// Song is a row of the songs dimension.
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int
	Duration float64
}

// Artist is a row of the artists dimension.
type Artist struct {
	ArtistID  string
	Name      string
	Location  string
	Latitude  *float64
	Longitude *float64
	// Geohash is only computed when the session asks for it.
	Geohash *string
}

// User is a row of the users dimension.
type User struct {
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

// Time is a row of the time dimension. Weekday runs from 0 (Monday) to 6
// (Sunday) and Week is the ISO 8601 week number.
type Time struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int
}

// Songplay is a row of the songplays fact table. SongID and ArtistID are nil
// when the play could not be matched against the catalogue.
type Songplay struct {
	SongplayID int64
	StartTime  time.Time
	UserID     string
	Level      string
	SongID     *string
	ArtistID   *string
	SessionID  int64
	Location   string
	UserAgent  string
	Year       int
	Month      int
}
