package gen

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"hash"
	"math/rand"
	"time"
)

// Generator produces skewed random values. It is not threadsafe.
type Generator struct {
	r     *rand.Rand
	zs    map[int]*rand.Zipf
	times map[time.Time]time.Duration
	hsh   hash.Hash
}

// NewGenerator returns a Generator whose output is fixed by seed.
func NewGenerator(seed int64) *Generator {
	r := rand.New(rand.NewSource(seed))
	return &Generator{
		r:     r,
		zs:    make(map[int]*rand.Zipf),
		times: make(map[time.Time]time.Duration),
		hsh:   sha1.New(),
	}
}

// String returns a string of length characters drawn from a Zipf distributed
// set of cardinality values.
func (g *Generator) String(length, cardinality int) string {
	if length > 32 {
		length = 32
	}
	return g.hashString(g.Uint64(cardinality), length)
}

// ID returns the length character uppercase identifier of n. Distinct n give
// distinct identifiers with overwhelming probability.
func (g *Generator) ID(n uint64, length int) string {
	if length > 32 {
		length = 32
	}
	return g.hashString(n, length)
}

func (g *Generator) hashString(val uint64, length int) string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	_, _ = g.hsh.Write(b) // no need to check err
	hashed := g.hsh.Sum(nil)
	g.hsh.Reset()
	return base32.StdEncoding.EncodeToString(hashed)[:length]
}

// Uint64 returns a Zipf distributed value in [0, cardinality).
func (g *Generator) Uint64(cardinality int) uint64 {
	if cardinality <= 1 {
		return 0
	}
	z, ok := g.zs[cardinality]
	if !ok {
		// rand.Zipf generates values in [0, imax], so one is subtracted to
		// get [0, cardinality) like rand.Intn.
		imax := uint64(cardinality) - 1
		v := 0.05 * float64(imax)
		if v < 1.0 {
			v = 1.0
		}
		z = rand.NewZipf(g.r, 1.1, v, imax)
		g.zs[cardinality] = z
	}
	return z.Uint64()
}

// Intn returns a uniformly distributed value in [0, n).
func (g *Generator) Intn(n int) int { return g.r.Intn(n) }

// Float64 returns a uniformly distributed value in [0, 1).
func (g *Generator) Float64() float64 { return g.r.Float64() }

// Time returns a time after from which is never earlier than the previous
// time returned for the same from, and at most maxDelta later.
func (g *Generator) Time(from time.Time, maxDelta time.Duration) time.Time {
	delta := g.times[from] + time.Duration(g.r.Uint64()%uint64(maxDelta))
	g.times[from] = delta
	return from.Add(delta)
}
