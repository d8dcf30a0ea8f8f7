// Package termstat provides a stats collector which keeps a running line of
// counts on a terminal while the job runs.
package termstat

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Collector sums counts by name and rewrites them on one line of out every
// interval. Gauges, histograms, sets and timings are ignored.
type Collector struct {
	lock    sync.Mutex
	indexes map[string]int
	names   []string
	stats   []int64
	changed bool
	out     io.Writer

	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

// NewCollector starts a Collector writing to out. Close must be called to
// stop it.
func NewCollector(out io.Writer, interval time.Duration) *Collector {
	ts := &Collector{
		indexes: make(map[string]int),
		out:     out,
		done:    make(chan struct{}),
	}
	ts.stopped.Add(1)
	go func() {
		defer ts.stopped.Done()
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				ts.write()
			case <-ts.done:
				return
			}
		}
	}()
	return ts
}

// Count adds value to the running total for name. Tags are not broken out.
func (t *Collector) Count(name string, value int64, rate float64, tags ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.changed = true

	idx, ok := t.indexes[name]
	if !ok {
		idx = len(t.stats)
		t.stats = append(t.stats, 0)
		t.names = append(t.names, name)
		t.indexes[name] = idx
	}
	t.stats[idx] += value
}

// Total returns the running total for name.
func (t *Collector) Total(name string) int64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	idx, ok := t.indexes[name]
	if !ok {
		return 0
	}
	return t.stats[idx]
}

func (t *Collector) write() {
	sb := strings.Builder{}
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.changed {
		return
	}
	for i := 0; i < len(t.stats); i++ {
		_, _ = sb.WriteString(fmt.Sprintf("%s: %d ", t.names[i], t.stats[i]))
	}
	t.changed = false
	fmt.Fprint(t.out, "\r"+sb.String())
}

// Close stops the ticker, writes the final totals and ends the line.
func (t *Collector) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.stopped.Wait()
		t.write()
		fmt.Fprintln(t.out)
	})
	return nil
}

func (t *Collector) Gauge(name string, value float64, rate float64, tags ...string) {}

func (t *Collector) Histogram(name string, value float64, rate float64, tags ...string) {}

func (t *Collector) Set(name string, value string, rate float64, tags ...string) {}

func (t *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {}
