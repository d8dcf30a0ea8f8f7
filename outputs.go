package datalake

import (
	"github.com/sparkify/datalake/columnar"
)

// Table is a named set of rows ready to be written. Each row holds one value
// per schema column, in schema order.
type Table struct {
	Name        string
	Schema      columnar.Schema
	PartitionBy []string
	Rows        [][]interface{}
}

// Table names, which are also their directory names under analytics/.
const (
	SongsName     = "songs"
	ArtistsName   = "artists"
	UsersName     = "users"
	TimeName      = "time"
	SongplaysName = "songplays"
)

var songsSchema = columnar.Schema{
	{Name: "song_id", Type: columnar.String},
	{Name: "title", Type: columnar.String},
	{Name: "artist_id", Type: columnar.String},
	{Name: "year", Type: columnar.Int32},
	{Name: "duration", Type: columnar.Double},
}

// SongsOutput returns the songs table, partitioned by year and artist_id.
func SongsOutput(songs []Song) Table {
	rows := make([][]interface{}, len(songs))
	for i, s := range songs {
		rows[i] = []interface{}{s.SongID, s.Title, s.ArtistID, s.Year, s.Duration}
	}
	return Table{Name: SongsName, Schema: songsSchema, PartitionBy: []string{"year", "artist_id"}, Rows: rows}
}

var artistsSchema = columnar.Schema{
	{Name: "artist_id", Type: columnar.String},
	{Name: "name", Type: columnar.String},
	{Name: "location", Type: columnar.String},
	{Name: "latitude", Type: columnar.Double, Nullable: true},
	{Name: "longitude", Type: columnar.Double, Nullable: true},
}

// ArtistsOutput returns the unpartitioned artists table. The geohash column is
// only included when withGeohash is set.
func ArtistsOutput(artists []Artist, withGeohash bool) Table {
	schema := artistsSchema
	if withGeohash {
		schema = append(schema[:len(schema):len(schema)], columnar.Column{Name: "geohash", Type: columnar.String, Nullable: true})
	}
	rows := make([][]interface{}, len(artists))
	for i, a := range artists {
		row := []interface{}{a.ArtistID, a.Name, a.Location, a.Latitude, a.Longitude}
		if withGeohash {
			row = append(row, a.Geohash)
		}
		rows[i] = row
	}
	return Table{Name: ArtistsName, Schema: schema, Rows: rows}
}

var usersSchema = columnar.Schema{
	{Name: "user_id", Type: columnar.String},
	{Name: "first_name", Type: columnar.String},
	{Name: "last_name", Type: columnar.String},
	{Name: "gender", Type: columnar.String},
	{Name: "level", Type: columnar.String},
}

// UsersOutput returns the unpartitioned users table.
func UsersOutput(users []User) Table {
	rows := make([][]interface{}, len(users))
	for i, u := range users {
		rows[i] = []interface{}{u.UserID, u.FirstName, u.LastName, u.Gender, u.Level}
	}
	return Table{Name: UsersName, Schema: usersSchema, Rows: rows}
}

var timeSchema = columnar.Schema{
	{Name: "start_time", Type: columnar.Timestamp},
	{Name: "hour", Type: columnar.Int32},
	{Name: "day", Type: columnar.Int32},
	{Name: "week", Type: columnar.Int32},
	{Name: "month", Type: columnar.Int32},
	{Name: "year", Type: columnar.Int32},
	{Name: "weekday", Type: columnar.Int32},
}

// TimeOutput returns the time table, partitioned by year and month.
func TimeOutput(times []Time) Table {
	rows := make([][]interface{}, len(times))
	for i, t := range times {
		rows[i] = []interface{}{t.StartTime, t.Hour, t.Day, t.Week, t.Month, t.Year, t.Weekday}
	}
	return Table{Name: TimeName, Schema: timeSchema, PartitionBy: []string{"year", "month"}, Rows: rows}
}

var songplaysSchema = columnar.Schema{
	{Name: "songplay_id", Type: columnar.Int64},
	{Name: "start_time", Type: columnar.Timestamp},
	{Name: "user_id", Type: columnar.String},
	{Name: "level", Type: columnar.String},
	{Name: "song_id", Type: columnar.String, Nullable: true},
	{Name: "artist_id", Type: columnar.String, Nullable: true},
	{Name: "session_id", Type: columnar.Int64},
	{Name: "location", Type: columnar.String},
	{Name: "user_agent", Type: columnar.String},
	{Name: "year", Type: columnar.Int32},
	{Name: "month", Type: columnar.Int32},
}

// SongplaysOutput returns the songplays table, partitioned by year and month.
func SongplaysOutput(plays []Songplay) Table {
	rows := make([][]interface{}, len(plays))
	for i, p := range plays {
		rows[i] = []interface{}{p.SongplayID, p.StartTime, p.UserID, p.Level, p.SongID, p.ArtistID,
			p.SessionID, p.Location, p.UserAgent, p.Year, p.Month}
	}
	return Table{Name: SongplaysName, Schema: songplaysSchema, PartitionBy: []string{"year", "month"}, Rows: rows}
}
