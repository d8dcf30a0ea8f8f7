package datalake_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake"
)

func catalogue() []datalake.SongRecord {
	return []datalake.SongRecord{
		{SongID: "S1", Title: "One", ArtistID: "A1", ArtistName: "Ann", ArtistLocation: "Oslo", ArtistLatitude: f64(59.9), ArtistLongitude: f64(10.7), Year: 1999, Duration: 100.5},
		{SongID: "S2", Title: "Two", ArtistID: "A1", ArtistName: "Ann", ArtistLocation: "Bergen", Year: 0, Duration: 200},
		{SongID: "S1", Title: "One again", ArtistID: "A1", ArtistName: "Ann", Year: 2001, Duration: 1},
		{SongID: "S3", Title: "Three", ArtistID: "A2", ArtistName: "Bob", Year: 2005, Duration: 300.25},
		{SongID: "", Title: "Nameless", ArtistID: "", ArtistName: "Nobody"},
	}
}

func TestSongsTable(t *testing.T) {
	f := newFixture(t)
	recs := catalogue()
	songs, err := datalake.SongsTable(f.sess, recs)
	require.NoError(t, err)
	require.Equal(t, []datalake.Song{
		{SongID: "S1", Title: "One", ArtistID: "A1", Year: 1999, Duration: 100.5},
		{SongID: "S2", Title: "Two", ArtistID: "A1", Year: 0, Duration: 200},
		{SongID: "S3", Title: "Three", ArtistID: "A2", Year: 2005, Duration: 300.25},
	}, songs)
	require.Equal(t, catalogue(), recs)
}

func TestArtistsTable(t *testing.T) {
	f := newFixture(t)
	artists, err := datalake.ArtistsTable(f.sess, catalogue())
	require.NoError(t, err)
	require.Equal(t, []datalake.Artist{
		{ArtistID: "A1", Name: "Ann", Location: "Oslo", Latitude: f64(59.9), Longitude: f64(10.7)},
		{ArtistID: "A2", Name: "Bob"},
	}, artists)
}

func TestArtistsTableGeohash(t *testing.T) {
	f := newFixture(t, datalake.OptSessionGeohashPrecision(5))
	artists, err := datalake.ArtistsTable(f.sess, catalogue())
	require.NoError(t, err)
	require.Len(t, artists, 2)
	require.NotNil(t, artists[0].Geohash)
	require.Equal(t, "u4xsg", *artists[0].Geohash)
	require.Nil(t, artists[1].Geohash)
}
