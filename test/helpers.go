// Package test holds helpers shared by tests across packages: raw input
// fixtures and readers for the parquet tables the job writes.
package test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/sparkify/datalake/storage"
)

// PutJSON writes recs to key as newline delimited JSON.
func PutJSON(t *testing.T, store *storage.Mem, key string, recs ...interface{}) {
	t.Helper()
	var sb strings.Builder
	for _, r := range recs {
		buf, err := json.Marshal(r)
		require.NoError(t, err)
		sb.Write(buf)
		sb.WriteByte('\n')
	}
	store.Put(key, []byte(sb.String()))
}

// ParquetKeys returns the parquet files under dir, sorted.
func ParquetKeys(t *testing.T, store storage.Store, dir string) []string {
	t.Helper()
	all, err := store.List(context.Background(), dir)
	require.NoError(t, err)
	var keys []string
	for _, k := range all {
		if strings.HasSuffix(k, ".parquet") {
			keys = append(keys, k)
		}
	}
	return keys
}

// ReadParquet decodes every row of the parquet file at key into T, which must
// carry parquet struct tags matching the file's columns.
func ReadParquet[T any](t *testing.T, store *storage.Mem, key string) []T {
	t.Helper()
	data, ok := store.Get(key)
	require.True(t, ok, "no object at %s", key)
	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(data), new(T), 1)
	require.NoError(t, err, "opening %s", key)
	defer pr.ReadStop()
	rows := make([]T, int(pr.GetNumRows()))
	if len(rows) > 0 {
		require.NoError(t, pr.Read(&rows), "reading %s", key)
	}
	return rows
}

// ReadTable reads every file of a table, keyed by the file's directory
// relative to dir.
func ReadTable[T any](t *testing.T, store *storage.Mem, dir string) map[string][]T {
	t.Helper()
	out := make(map[string][]T)
	for _, key := range ParquetKeys(t, store, dir) {
		rel := strings.TrimPrefix(key, dir)
		part := ""
		if i := strings.LastIndexByte(rel, '/'); i >= 0 {
			part = rel[:i+1]
		}
		out[part] = append(out[part], ReadParquet[T](t, store, key)...)
	}
	return out
}

// SongRow is a file row of the songs table.
type SongRow struct {
	SongID   string  `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title    string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Duration float64 `parquet:"name=duration, type=DOUBLE"`
}

// ArtistRow is a file row of the artists table.
type ArtistRow struct {
	ArtistID  string   `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Location  string   `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude  *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// UserRow is a file row of the users table.
type UserRow struct {
	UserID    string `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	FirstName string `parquet:"name=first_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName  string `parquet:"name=last_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gender    string `parquet:"name=gender, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// TimeRow is a file row of the time table.
type TimeRow struct {
	StartTime int64 `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Hour      int32 `parquet:"name=hour, type=INT32"`
	Day       int32 `parquet:"name=day, type=INT32"`
	Week      int32 `parquet:"name=week, type=INT32"`
	Weekday   int32 `parquet:"name=weekday, type=INT32"`
}

// SongplayRow is a file row of the songplays table.
type SongplayRow struct {
	SongplayID int64   `parquet:"name=songplay_id, type=INT64"`
	StartTime  int64   `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	UserID     string  `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level      string  `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
	SongID     *string `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ArtistID   *string `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	SessionID  int64   `parquet:"name=session_id, type=INT64"`
	Location   string  `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserAgent  string  `parquet:"name=user_agent, type=BYTE_ARRAY, convertedtype=UTF8"`
}
