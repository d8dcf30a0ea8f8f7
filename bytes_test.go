package datalake

import "testing"

func TestBytesString(t *testing.T) {
	tests := []struct {
		b   Bytes
		exp string
	}{
		{0, "0"},
		{1, "1B"},
		{1023, "1023B"},
		{1024, "1K"},
		{1536, "1.5K"},
		{5 * 1024 * 1024, "5M"},
		{3 * 1024 * 1024 * 1024, "3G"},
		{2 * 1024 * 1024 * 1024 * 1024, "2T"},
	}
	for _, tst := range tests {
		if got := tst.b.String(); got != tst.exp {
			t.Errorf("%d: expected %s, got %s", uint64(tst.b), tst.exp, got)
		}
	}
}
