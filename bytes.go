package datalake

import (
	"strconv"
	"strings"
)

// Bytes is a size which prints in the largest unit it reaches, e.g. 1.5K.
type Bytes uint64

var byteUnits = []struct {
	size   float64
	suffix string
}{
	{1 << 40, "T"},
	{1 << 30, "G"},
	{1 << 20, "M"},
	{1 << 10, "K"},
}

func (b Bytes) String() string {
	if b == 0 {
		return "0"
	}
	for _, u := range byteUnits {
		if float64(b) >= u.size {
			v := strconv.FormatFloat(float64(b)/u.size, 'f', 1, 64)
			return strings.TrimSuffix(v, ".0") + u.suffix
		}
	}
	return strconv.FormatUint(uint64(b), 10) + "B"
}
