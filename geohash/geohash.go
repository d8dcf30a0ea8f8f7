// Package geohash encodes coordinates as geohash strings.
package geohash

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

// MaxPrecision is the longest hash Encode produces.
const MaxPrecision = 12

// Encode returns the geohash of the point with the given number of
// characters. It returns nil if either coordinate is missing or out of range,
// or if precision is 0.
func Encode(lat, lon *float64, precision uint) *string {
	if lat == nil || lon == nil || precision == 0 {
		return nil
	}
	if !valid(*lat, 90) || !valid(*lon, 180) {
		return nil
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}
	hsh := geohash.EncodeWithPrecision(*lat, *lon, precision)
	return &hsh
}

func valid(v, bound float64) bool {
	return !math.IsNaN(v) && v >= -bound && v <= bound
}
