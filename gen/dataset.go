// Package gen generates synthetic Sparkify input: a song catalogue and a
// month of activity logs laid out the way the real dataset is.
package gen

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/storage"
)

// Config sizes a synthetic dataset.
type Config struct {
	Seed         int64
	Songs        int
	Artists      int
	Users        int
	Days         int
	EventsPerDay int
	// MatchRate is the fraction of plays that name a song from the catalogue.
	MatchRate float64
	Start     time.Time
}

// Dataset is a generated catalogue and activity log.
type Dataset struct {
	// Songs holds one record per catalogue file.
	Songs []datalake.SongRecord
	// Days holds each day's events in time order.
	Days [][]datalake.LogEvent
	// TrackIDs names the file of each song.
	TrackIDs []string
	Start    time.Time
}

var (
	firstNames = []string{"Ryan", "Kaylee", "Lily", "Jacob", "Chloe", "Aleena", "Tegan", "Jayden", "Mohammad", "Sara"}
	lastNames  = []string{"Smith", "Summers", "Koch", "Klein", "Cuevas", "Kirby", "Levine", "Graves", "Rodriguez", "Johnson"}
	locations  = []string{
		"San Jose-Sunnyvale-Santa Clara, CA",
		"Lansing-East Lansing, MI",
		"Waterloo-Cedar Falls, IA",
		"Chicago-Naperville-Elgin, IL-IN-WI",
		"New York-Newark-Jersey City, NY-NJ-PA",
	}
	agents = []string{
		"Mozilla/5.0 (X11; Linux x86_64; rv:31.0) Gecko/20100101 Firefox/31.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/36.0.1985.143 Safari/537.36",
		"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:31.0) Gecko/20100101 Firefox/31.0",
	}
	otherPages = []string{"Home", "About", "Settings", "Help", "Upgrade", "Logout"}
)

type user struct {
	id           string
	first, last  string
	gender       string
	level        string
	location     string
	agent        string
	registration float64
	session      int64
}

// Generate builds a dataset from cfg. The same cfg always gives the same
// dataset.
func Generate(cfg Config) (*Dataset, error) {
	if cfg.Songs < 1 || cfg.Artists < 1 || cfg.Users < 1 || cfg.Days < 1 || cfg.EventsPerDay < 0 {
		return nil, errors.New("songs, artists, users and days must be positive")
	}
	if cfg.MatchRate < 0 || cfg.MatchRate > 1 {
		return nil, errors.Errorf("match rate must be in [0, 1], got %v", cfg.MatchRate)
	}
	g := NewGenerator(cfg.Seed)
	d := &Dataset{Start: cfg.Start}

	type artist struct {
		id, name, location string
		lat, lon           *float64
	}
	artists := make([]artist, cfg.Artists)
	for i := range artists {
		a := artist{
			id:       "AR" + g.ID(uint64(i), 16),
			name:     fmt.Sprintf("Artist %s", g.ID(uint64(i)+1<<32, 6)),
			location: locations[g.Intn(len(locations))],
		}
		if g.Intn(2) == 0 {
			lat, lon := g.Float64()*180-90, g.Float64()*360-180
			a.lat, a.lon = &lat, &lon
		}
		artists[i] = a
	}
	for i := 0; i < cfg.Songs; i++ {
		a := artists[g.Uint64(cfg.Artists)]
		d.TrackIDs = append(d.TrackIDs, "TR"+g.ID(uint64(i)+2<<32, 16))
		d.Songs = append(d.Songs, datalake.SongRecord{
			NumSongs:        1,
			ArtistID:        a.id,
			ArtistLatitude:  a.lat,
			ArtistLongitude: a.lon,
			ArtistLocation:  a.location,
			ArtistName:      a.name,
			SongID:          "SO" + g.ID(uint64(i)+3<<32, 16),
			Title:           fmt.Sprintf("Song %s", g.ID(uint64(i)+4<<32, 8)),
			Duration:        math.Round((60+g.Float64()*300)*1e5) / 1e5,
			Year:            []int{0, 1969, 1985, 1999, 2004, 2008}[g.Intn(6)],
		})
	}

	users := make([]*user, cfg.Users)
	for i := range users {
		users[i] = &user{
			id:           fmt.Sprintf("%d", i+1),
			first:        firstNames[g.Intn(len(firstNames))],
			last:         lastNames[g.Intn(len(lastNames))],
			gender:       []string{"F", "M"}[g.Intn(2)],
			level:        "free",
			location:     locations[g.Intn(len(locations))],
			agent:        agents[g.Intn(len(agents))],
			registration: float64(cfg.Start.Add(-time.Duration(g.Intn(1000)) * time.Hour).UnixMilli()),
			session:      int64(i * 1000),
		}
	}

	for day := 0; day < cfg.Days; day++ {
		from := cfg.Start.AddDate(0, 0, day)
		maxDelta := 2 * 24 * time.Hour / time.Duration(cfg.EventsPerDay+1)
		events := make([]datalake.LogEvent, 0, cfg.EventsPerDay)
		for n := 0; n < cfg.EventsPerDay; n++ {
			ts := g.Time(from, maxDelta)
			if !ts.Before(from.AddDate(0, 0, 1)) {
				break
			}
			events = append(events, d.event(g, cfg, users, ts))
		}
		sort.SliceStable(events, func(i, j int) bool { return events[i].TS < events[j].TS })
		d.Days = append(d.Days, events)
	}
	return d, nil
}

func (d *Dataset) event(g *Generator, cfg Config, users []*user, ts time.Time) datalake.LogEvent {
	if g.Intn(10) == 0 {
		return datalake.LogEvent{
			Auth:      "Logged Out",
			Level:     "free",
			Method:    "GET",
			Page:      "Home",
			SessionID: int64(g.Intn(1000)),
			Status:    200,
			TS:        ts.UnixMilli(),
		}
	}
	u := users[g.Uint64(len(users))]
	if g.Intn(50) == 0 {
		u.session++
		if u.level == "free" {
			u.level = "paid"
		} else if g.Intn(4) == 0 {
			u.level = "free"
		}
	}
	reg := u.registration
	e := datalake.LogEvent{
		Auth:         "Logged In",
		FirstName:    u.first,
		Gender:       u.gender,
		LastName:     u.last,
		Level:        u.level,
		Location:     u.location,
		Method:       "PUT",
		Page:         datalake.NextSong,
		Registration: &reg,
		SessionID:    u.session,
		Status:       200,
		TS:           ts.UnixMilli(),
		UserAgent:    u.agent,
		UserID:       u.id,
	}
	if g.Intn(5) == 0 {
		e.Method = "GET"
		e.Page = otherPages[g.Intn(len(otherPages))]
		return e
	}
	var song, artist string
	var length float64
	if g.Float64() < cfg.MatchRate {
		s := d.Songs[g.Uint64(len(d.Songs))]
		song, artist, length = s.Title, s.ArtistName, s.Duration
	} else {
		song = fmt.Sprintf("Unknown %s", g.String(8, 5000))
		artist = fmt.Sprintf("Stranger %s", g.String(6, 500))
		length = math.Round((60+g.Float64()*300)*1e5) / 1e5
	}
	e.Song, e.Artist, e.Length = &song, &artist, &length
	return e
}

// SongKey returns the catalogue key of the i'th song, nested three levels
// deep by track id like the real dataset.
func (d *Dataset) SongKey(prefix string, i int) string {
	id := d.TrackIDs[i]
	return storage.Join(prefix, id[2:3], id[3:4], id[4:5], id+".json")
}

// LogKey returns the key of the i'th day's log.
func (d *Dataset) LogKey(prefix string, i int) string {
	day := d.Start.AddDate(0, 0, i)
	return storage.Join(prefix, day.Format("2006"), day.Format("01"), day.Format("2006-01-02")+"-events.json")
}

// Plays returns the number of generated NextSong events by known users.
func (d *Dataset) Plays() int {
	n := 0
	for _, day := range d.Days {
		for _, e := range day {
			if e.Page == datalake.NextSong && e.UserID != "" {
				n++
			}
		}
	}
	return n
}

// Write stores the dataset under the given prefixes.
func (d *Dataset) Write(ctx context.Context, store storage.Store, songPrefix, logPrefix string) error {
	for i, s := range d.Songs {
		if err := writeJSON(ctx, store, d.SongKey(songPrefix, i), s); err != nil {
			return errors.Wrap(err, "writing song")
		}
	}
	for i, day := range d.Days {
		recs := make([]interface{}, len(day))
		for j := range day {
			recs[j] = day[j]
		}
		if err := writeJSON(ctx, store, d.LogKey(logPrefix, i), recs...); err != nil {
			return errors.Wrap(err, "writing log")
		}
	}
	return nil
}

func writeJSON(ctx context.Context, store storage.Store, key string, recs ...interface{}) (err error) {
	w, err := store.Create(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "creating '%s'", key)
	}
	defer func() {
		if err != nil {
			w.Abort(err)
			return
		}
		if cerr := w.Close(); cerr != nil {
			err = errors.Wrapf(cerr, "closing '%s'", key)
		}
	}()
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return errors.Wrapf(err, "encoding '%s'", key)
		}
	}
	return nil
}
