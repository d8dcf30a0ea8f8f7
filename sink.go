package datalake

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sparkify/datalake/columnar"
	"github.com/sparkify/datalake/storage"
)

// WriteMode decides what happens when a table's directory already holds
// data.
type WriteMode string

// Write modes.
const (
	// Overwrite removes everything under the table's directory first.
	Overwrite WriteMode = "overwrite"
	// Append adds new files next to the existing ones.
	Append WriteMode = "append"
	// ErrorIfExists fails the write.
	ErrorIfExists WriteMode = "error-if-exists"
	// Ignore skips the table, leaving existing data alone.
	Ignore WriteMode = "ignore"
)

// ParseWriteMode returns the WriteMode named by s.
func ParseWriteMode(s string) (WriteMode, error) {
	switch m := WriteMode(strings.ToLower(s)); m {
	case Overwrite, Append, ErrorIfExists, Ignore:
		return m, nil
	case "errorifexists", "error":
		return ErrorIfExists, nil
	}
	return "", errors.Errorf("unknown write mode '%s'", s)
}

// ErrTableExists is returned when writing with ErrorIfExists to a table which
// already has data.
var ErrTableExists = errors.New("table already exists")

const (
	// AnalyticsDir is where tables are written in the output store.
	AnalyticsDir = "analytics"
	// DefaultPartition names the directory for null or empty partition
	// values.
	DefaultPartition = "__HIVE_DEFAULT_PARTITION__"
	// SuccessMarker is written once a table is complete.
	SuccessMarker = "_SUCCESS"
)

// TableDir returns the directory, relative to the output root, of the named
// table.
func TableDir(name string) string {
	return storage.Join(AnalyticsDir, name) + "/"
}

// WriteAll writes tables one after the other, stopping at the first failure.
// Tables already written are left in place.
func WriteAll(ctx context.Context, s *Session, tables ...Table) error {
	for _, t := range tables {
		if err := WriteTable(ctx, s, t); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable writes t as parquet files under analytics/<name>/, one
// directory level per partition column.
func WriteTable(ctx context.Context, s *Session, t Table) error {
	start := time.Now()
	dir := TableDir(t.Name)
	existing, err := s.Output.List(ctx, dir)
	if err != nil {
		return errors.Wrapf(err, "listing table %s", t.Name)
	}
	if len(existing) > 0 {
		switch s.Mode {
		case Overwrite:
			s.Log.Printf("removing %d existing objects under '%s'", len(existing), dir)
			if err := s.Output.RemoveAll(ctx, dir); err != nil {
				return errors.Wrapf(err, "clearing table %s", t.Name)
			}
		case Append:
		case ErrorIfExists:
			return errors.Wrapf(ErrTableExists, "writing table %s", t.Name)
		case Ignore:
			s.Log.Printf("table %s exists, skipping", t.Name)
			return nil
		default:
			return errors.Errorf("unknown write mode '%s'", s.Mode)
		}
	}

	parts, fileSchema, err := partition(t)
	if err != nil {
		return errors.Wrapf(err, "partitioning table %s", t.Name)
	}
	files := 0
	var size Bytes
	for _, p := range parts {
		for _, chunk := range split(p.rows, s.MaxRecordsPerFile) {
			key := dir + p.dir + fmt.Sprintf("part-%05d-%s%s", files, s.RunID, s.Compression.Ext())
			n, err := writeFile(ctx, s, key, fileSchema, chunk)
			if err != nil {
				return errors.Wrapf(err, "writing table %s", t.Name)
			}
			size += n
			files++
		}
	}
	if err := writeMarker(ctx, s.Output, dir+SuccessMarker); err != nil {
		return errors.Wrapf(err, "writing table %s", t.Name)
	}

	s.Log.Printf("wrote %d rows of %s in %d files (%s) under '%s'", len(t.Rows), t.Name, files, size, dir)
	s.Stats.Count("sink.rows", int64(len(t.Rows)), 1, "table:"+t.Name)
	s.Stats.Count("sink.files", int64(files), 1, "table:"+t.Name)
	s.Stats.Count("sink.bytes", int64(size), 1, "table:"+t.Name)
	s.Stats.Timing("sink.duration", time.Since(start), 1, "table:"+t.Name)
	return nil
}

type part struct {
	dir  string
	rows [][]interface{}
}

// partition groups rows by their partition values and strips the partition
// columns. Groups come back sorted by directory. An unpartitioned table
// always has exactly one group, even when it has no rows.
func partition(t Table) ([]part, columnar.Schema, error) {
	pcols := make([]int, len(t.PartitionBy))
	isPart := make(map[int]bool)
	for i, name := range t.PartitionBy {
		idx := t.Schema.Index(name)
		if idx < 0 {
			return nil, nil, errors.Errorf("no partition column %s", name)
		}
		pcols[i] = idx
		isPart[idx] = true
	}
	var schema columnar.Schema
	for i, c := range t.Schema {
		if !isPart[i] {
			schema = append(schema, c)
		}
	}
	if len(schema) == 0 {
		return nil, nil, errors.New("every column is a partition column")
	}

	groups := make(map[string][][]interface{})
	if len(pcols) == 0 {
		groups[""] = nil
	}
	for n, row := range t.Rows {
		if len(row) != len(t.Schema) {
			return nil, nil, errors.Errorf("row %d has %d values, schema has %d columns", n, len(row), len(t.Schema))
		}
		var dir strings.Builder
		for i, idx := range pcols {
			dir.WriteString(EscapePathName(t.PartitionBy[i]))
			dir.WriteByte('=')
			dir.WriteString(partitionValue(row[idx]))
			dir.WriteByte('/')
		}
		stripped := make([]interface{}, 0, len(schema))
		for i, v := range row {
			if !isPart[i] {
				stripped = append(stripped, v)
			}
		}
		groups[dir.String()] = append(groups[dir.String()], stripped)
	}

	parts := make([]part, 0, len(groups))
	for dir, rows := range groups {
		parts = append(parts, part{dir: dir, rows: rows})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].dir < parts[j].dir })
	return parts, schema, nil
}

// split breaks rows into chunks of at most max rows. A max of 0 means one
// chunk, which is returned even when rows is empty.
func split(rows [][]interface{}, max int) [][][]interface{} {
	if max <= 0 || len(rows) <= max {
		return [][][]interface{}{rows}
	}
	var chunks [][][]interface{}
	for len(rows) > max {
		chunks = append(chunks, rows[:max])
		rows = rows[max:]
	}
	return append(chunks, rows)
}

func partitionValue(v interface{}) string {
	var s string
	switch v := v.(type) {
	case nil:
	case string:
		s = v
	case *string:
		if v != nil {
			s = *v
		}
	case int:
		s = strconv.Itoa(v)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		s = fmt.Sprint(v)
	}
	if s == "" {
		return DefaultPartition
	}
	return EscapePathName(s)
}

// EscapePathName percent-encodes the characters which can't appear in a
// partition directory name.
func EscapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	return strings.IndexByte("\"#%'*/:=?\\{[]^", c) >= 0
}

// writeFile encodes rows into a single parquet object at key and returns its
// size. The object is only published when every row was encoded.
func writeFile(ctx context.Context, s *Session, key string, schema columnar.Schema, rows [][]interface{}) (_ Bytes, err error) {
	w, err := s.Output.Create(ctx, key)
	if err != nil {
		return 0, errors.Wrapf(err, "creating '%s'", key)
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
	cw := &countingWriter{w: w}
	pw, err := columnar.NewWriter(cw, schema, s.Compression)
	if err != nil {
		return 0, errors.Wrapf(err, "starting '%s'", key)
	}
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return 0, errors.Wrapf(err, "encoding '%s'", key)
		}
	}
	if err := pw.Close(); err != nil {
		return 0, errors.Wrapf(err, "finishing '%s'", key)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n Bytes
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += Bytes(n)
	return n, err
}

func writeMarker(ctx context.Context, store storage.Store, key string) error {
	w, err := store.Create(ctx, key)
	if err != nil {
		return errors.Wrap(err, "creating success marker")
	}
	return errors.Wrap(w.Close(), "closing success marker")
}
