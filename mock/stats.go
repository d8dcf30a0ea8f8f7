package mock

import (
	"strings"
	"sync"
	"time"
)

// RecordingStatter keeps the running total of every count, both per name and
// per name plus tags ("sink.rows|table:songs"). It is threadsafe.
type RecordingStatter struct {
	mu     sync.Mutex
	Counts map[string]int64
}

// Count implements Statter.
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Counts == nil {
		r.Counts = make(map[string]int64)
	}
	r.Counts[name] += value
	if len(tags) > 0 {
		r.Counts[name+"|"+strings.Join(tags, "|")] += value
	}
}

// Get returns the total for name, optionally narrowed to tags.
func (r *RecordingStatter) Get(name string, tags ...string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(tags) == 0 {
		return r.Counts[name]
	}
	return r.Counts[name+"|"+strings.Join(tags, "|")]
}

func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

func (r *RecordingStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

func (r *RecordingStatter) Set(name string, value string, rate float64, tags ...string) {}

func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}
