package datalake_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/keystore"
)

type kv struct {
	k string
	v int64
}

func kvKey(r kv) []byte { return []byte(r.k) }
func kvVersion(r kv) int64 { return r.v }

func TestFilter(t *testing.T) {
	in := []kv{{"a", 1}, {"b", 2}, {"c", 3}}
	out, err := datalake.Filter("odd", func(r kv) bool { return r.v%2 == 1 }).Fn(in)
	require.NoError(t, err)
	require.Equal(t, []kv{{"a", 1}, {"c", 3}}, out)
	require.Equal(t, []kv{{"a", 1}, {"b", 2}, {"c", 3}}, in)
}

func TestDedup(t *testing.T) {
	for _, kind := range []keystore.Kind{keystore.Memory, keystore.Bolt, keystore.LevelDB} {
		t.Run(string(kind), func(t *testing.T) {
			o, err := keystore.NewOpener(kind, t.TempDir())
			require.NoError(t, err)
			f := newFixture(t, datalake.OptSessionIndexes(o))

			in := []kv{{"a", 1}, {"b", 2}, {"a", 3}, {"c", 4}, {"b", 5}}
			st := datalake.Dedup(f.sess, "dedup k", kvKey)
			out, err := st.Fn(in)
			require.NoError(t, err)
			require.Equal(t, []kv{{"a", 1}, {"b", 2}, {"c", 4}}, out)

			// the index is scratch: a second run starts from nothing
			out, err = st.Fn(in)
			require.NoError(t, err)
			require.Len(t, out, 3)
		})
	}
}

func TestLatest(t *testing.T) {
	f := newFixture(t)
	in := []kv{{"a", 5}, {"b", 1}, {"a", 3}, {"b", 9}, {"a", 5}}
	out, err := datalake.Latest(f.sess, "latest k", kvKey, kvVersion).Fn(in)
	require.NoError(t, err)
	require.Equal(t, []kv{{"a", 5}, {"b", 9}}, out)
}

func TestLatestTieGoesToLaterRow(t *testing.T) {
	type row struct {
		k     string
		ts    int64
		level string
	}
	f := newFixture(t)
	in := []row{{"u", 10, "free"}, {"u", 10, "paid"}}
	out, err := datalake.Latest(f.sess, "latest u",
		func(r row) []byte { return []byte(r.k) },
		func(r row) int64 { return r.ts }).Fn(in)
	require.NoError(t, err)
	require.Equal(t, []row{{"u", 10, "paid"}}, out)
}

func TestChain(t *testing.T) {
	f := newFixture(t)
	double := datalake.Stage[kv]{Name: "double", Fn: func(rows []kv) ([]kv, error) {
		out := make([]kv, len(rows))
		for i, r := range rows {
			out[i] = kv{r.k, r.v * 2}
		}
		return out, nil
	}}
	out, err := datalake.Chain[kv]{
		Table:  "t",
		Stages: []datalake.Stage[kv]{datalake.Filter("big", func(r kv) bool { return r.v > 1 }), double},
	}.Run(f.sess, []kv{{"a", 1}, {"b", 2}})
	require.NoError(t, err)
	require.Equal(t, []kv{{"b", 4}}, out)
	require.Equal(t, int64(1), f.stats.Get("stage.rows", "table:t", "stage:big"))
	require.Equal(t, int64(1), f.stats.Get("stage.rows", "table:t", "stage:double"))

	boom := errors.New("boom")
	_, err = datalake.Chain[kv]{
		Table:  "t",
		Stages: []datalake.Stage[kv]{{Name: "explode", Fn: func([]kv) ([]kv, error) { return nil, boom }}},
	}.Run(f.sess, nil)
	require.Equal(t, boom, errors.Cause(err))
	require.Contains(t, err.Error(), "t/explode")
}

func TestProject(t *testing.T) {
	f := newFixture(t)
	out := datalake.Project(f.sess, "t", "select", []kv{{"a", 1}, {"", 2}}, func(r kv) (string, bool) {
		return r.k, r.k != ""
	})
	require.Equal(t, []string{"a"}, out)
}
