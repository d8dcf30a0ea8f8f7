package datalake

import (
	"github.com/pkg/errors"

	"github.com/sparkify/datalake/geohash"
)

// SongsTable derives the songs dimension from the catalogue: one row per
// song_id, the first occurrence in read order winning.
func SongsTable(s *Session, recs []SongRecord) ([]Song, error) {
	songs := Project(s, "songs", "select", recs, SelectSong)
	songs, err := Chain[Song]{
		Table: "songs",
		Stages: []Stage[Song]{
			Dedup(s, "dedup song_id", func(sg Song) []byte { return []byte(sg.SongID) }),
		},
	}.Run(s, songs)
	return songs, errors.Wrap(err, "building songs")
}

// SelectSong projects a catalogue record onto the songs columns. Records with
// no song_id are dropped.
func SelectSong(r SongRecord) (Song, bool) {
	if r.SongID == "" {
		return Song{}, false
	}
	return Song{
		SongID:   r.SongID,
		Title:    r.Title,
		ArtistID: r.ArtistID,
		Year:     r.Year,
		Duration: r.Duration,
	}, true
}

// ArtistsTable derives the artists dimension from the catalogue: one row per
// artist_id, the first occurrence in read order winning.
func ArtistsTable(s *Session, recs []SongRecord) ([]Artist, error) {
	artists := Project(s, "artists", "select", recs, SelectArtist)
	stages := []Stage[Artist]{
		Dedup(s, "dedup artist_id", func(a Artist) []byte { return []byte(a.ArtistID) }),
	}
	if s.GeohashPrecision > 0 {
		stages = append(stages, GeohashArtists(s.GeohashPrecision))
	}
	artists, err := Chain[Artist]{Table: "artists", Stages: stages}.Run(s, artists)
	return artists, errors.Wrap(err, "building artists")
}

// SelectArtist projects a catalogue record onto the artists columns, renaming
// as it goes. Records with no artist_id are dropped.
func SelectArtist(r SongRecord) (Artist, bool) {
	if r.ArtistID == "" {
		return Artist{}, false
	}
	return Artist{
		ArtistID:  r.ArtistID,
		Name:      r.ArtistName,
		Location:  r.ArtistLocation,
		Latitude:  r.ArtistLatitude,
		Longitude: r.ArtistLongitude,
	}, true
}

// GeohashArtists returns a stage filling in each artist's geohash. Artists
// without coordinates keep a nil hash.
func GeohashArtists(precision uint) Stage[Artist] {
	return Stage[Artist]{
		Name: "geohash",
		Fn: func(artists []Artist) ([]Artist, error) {
			out := make([]Artist, len(artists))
			for i, a := range artists {
				a.Geohash = geohash.Encode(a.Latitude, a.Longitude, precision)
				out[i] = a
			}
			return out, nil
		},
	}
}
