package datalake

import (
	"time"
)

// Statter is the interface that stats collectors must implement to get stats
// out of the job.
type Statter interface {
	Count(name string, value int64, rate float64, tags ...string)
	Gauge(name string, value float64, rate float64, tags ...string)
	Histogram(name string, value float64, rate float64, tags ...string)
	Set(name string, value string, rate float64, tags ...string)
	Timing(name string, value time.Duration, rate float64, tags ...string)
}

// NopStatter does nothing.
type NopStatter struct{}

// Count does nothing.
func (NopStatter) Count(name string, value int64, rate float64, tags ...string) {}

// Gauge does nothing.
func (NopStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Histogram does nothing.
func (NopStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set does nothing.
func (NopStatter) Set(name string, value string, rate float64, tags ...string) {}

// Timing does nothing.
func (NopStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}

// MultiStatter sends every stat to each of its Statters in turn.
type MultiStatter []Statter

// Count calls Count on each Statter.
func (ms MultiStatter) Count(name string, value int64, rate float64, tags ...string) {
	for _, s := range ms {
		s.Count(name, value, rate, tags...)
	}
}

// Gauge calls Gauge on each Statter.
func (ms MultiStatter) Gauge(name string, value float64, rate float64, tags ...string) {
	for _, s := range ms {
		s.Gauge(name, value, rate, tags...)
	}
}

// Histogram calls Histogram on each Statter.
func (ms MultiStatter) Histogram(name string, value float64, rate float64, tags ...string) {
	for _, s := range ms {
		s.Histogram(name, value, rate, tags...)
	}
}

// Set calls Set on each Statter.
func (ms MultiStatter) Set(name string, value string, rate float64, tags ...string) {
	for _, s := range ms {
		s.Set(name, value, rate, tags...)
	}
}

// Timing calls Timing on each Statter.
func (ms MultiStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	for _, s := range ms {
		s.Timing(name, value, rate, tags...)
	}
}
