package metrics

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCount(t *testing.T) {
	c := NewCollector()
	c.Count("sink.rows", 3, 1, "table:songs")
	c.Count("sink.rows", 4, 1, "table:songs")
	c.Count("sink.rows", 1, 1, "table:users", "bogus", "other:x")

	require.Equal(t, 7.0, testutil.ToFloat64(c.counts.With(labels("sink.rows", []string{"table:songs"}))))
	require.Equal(t, 1.0, testutil.ToFloat64(c.counts.With(labels("sink.rows", []string{"table:users"}))))
}

func TestCollectorGaugeAndSet(t *testing.T) {
	c := NewCollector()
	c.Gauge("rows", 2, 1)
	c.Gauge("rows", 5, 1)
	require.Equal(t, 5.0, testutil.ToFloat64(c.gauges.With(labels("rows", nil))))

	c.Set("users", "26", 1)
	c.Set("users", "26", 1)
	c.Set("users", "8", 1)
	require.Equal(t, 2.0, testutil.ToFloat64(c.sets.With(labels("users", nil))))
}

func TestCollectorTiming(t *testing.T) {
	c := NewCollector()
	c.Timing("sink.duration", 1500*time.Millisecond, 1, "table:time")
	c.Histogram("size", 10, 1)
	n, err := testutil.GatherAndCount(c.Registry(), Namespace+"_duration_seconds", Namespace+"_histogram")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestCollectorPush(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := ioutil.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(buf)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCollector()
	c.Count("sink.files", 2, 1, "table:songs")
	err := c.Push(context.Background(), srv.URL, "sparkify_etl", map[string]string{"run_id": "abc"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "/metrics/job/sparkify_etl/run_id/abc", path)
	require.True(t, strings.Contains(body, Namespace+"_count_total"), "pushed body lacks the counter")
}
