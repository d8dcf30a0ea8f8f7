// Package columnar encodes rows of loosely typed values into Apache Parquet
// files with a schema that is only known at runtime.
package columnar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Type is the logical type of a column.
type Type int

// Supported column types.
const (
	String Type = iota
	Int32
	Int64
	Double
	Bool
	// Timestamp columns are stored as milliseconds since the epoch.
	Timestamp
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

func (t Type) tag() string {
	switch t {
	case String:
		return "type=BYTE_ARRAY, convertedtype=UTF8"
	case Int32:
		return "type=INT32"
	case Int64:
		return "type=INT64"
	case Double:
		return "type=DOUBLE"
	case Bool:
		return "type=BOOLEAN"
	case Timestamp:
		return "type=INT64, convertedtype=TIMESTAMP_MILLIS"
	}
	panic(fmt.Sprintf("unknown column type %d", int(t)))
}

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema is an ordered list of columns.
type Schema []Column

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Metadata returns the parquet-go schema metadata for the columns.
func (s Schema) Metadata() []string {
	md := make([]string, len(s))
	for i, c := range s {
		rep := "REQUIRED"
		if c.Nullable {
			rep = "OPTIONAL"
		}
		md[i] = fmt.Sprintf("name=%s, %s, repetitiontype=%s", c.Name, c.Type.tag(), rep)
	}
	return md
}

// Codec is a parquet compression codec.
type Codec string

// Supported codecs.
const (
	Snappy       Codec = "snappy"
	Gzip         Codec = "gzip"
	Uncompressed Codec = "uncompressed"
)

// ParseCodec returns the Codec named by s (case insensitive). "none" is
// accepted for Uncompressed.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "snappy":
		return Snappy, nil
	case "gzip":
		return Gzip, nil
	case "uncompressed", "none":
		return Uncompressed, nil
	}
	return "", errors.Errorf("unknown compression codec '%s'", s)
}

// Ext returns the file name extension used for files written with c.
func (c Codec) Ext() string {
	switch c {
	case Snappy:
		return ".snappy.parquet"
	case Gzip:
		return ".gz.parquet"
	}
	return ".parquet"
}

func (c Codec) parquet() parquet.CompressionCodec {
	switch c {
	case Snappy:
		return parquet.CompressionCodec_SNAPPY
	case Gzip:
		return parquet.CompressionCodec_GZIP
	}
	return parquet.CompressionCodec_UNCOMPRESSED
}

// Writer writes rows to a single parquet file.
type Writer struct {
	schema Schema
	pw     *writer.CSVWriter
	rows   int
}

// NewWriter returns a Writer which encodes rows conforming to schema into w.
// The caller still owns w and must close it after Close.
func NewWriter(w io.Writer, schema Schema, codec Codec) (*Writer, error) {
	if len(schema) == 0 {
		return nil, errors.New("can't write a file with no columns")
	}
	pw, err := writer.NewCSVWriterFromWriter(schema.Metadata(), w, 1)
	if err != nil {
		return nil, errors.Wrap(err, "creating parquet writer")
	}
	pw.CompressionType = codec.parquet()
	return &Writer{
		schema: schema,
		pw:     pw,
	}, nil
}

// Write appends a row. Values must be in schema order; nil is only allowed
// for nullable columns. Go ints are narrowed or widened to the column type.
func (w *Writer) Write(row []interface{}) error {
	if len(row) != len(w.schema) {
		return errors.Errorf("row has %d values, schema has %d columns", len(row), len(w.schema))
	}
	rec := make([]interface{}, len(row))
	for i, val := range row {
		v, err := convert(w.schema[i], val)
		if err != nil {
			return errors.Wrapf(err, "row %d", w.rows)
		}
		rec[i] = v
	}
	if err := w.pw.Write(rec); err != nil {
		return errors.Wrapf(err, "writing row %d", w.rows)
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int { return w.rows }

// Close flushes buffered rows and writes the file footer.
func (w *Writer) Close() error {
	return errors.Wrap(w.pw.WriteStop(), "finishing parquet file")
}

func convert(c Column, val interface{}) (interface{}, error) {
	if val == nil {
		if !c.Nullable {
			return nil, errors.Errorf("null value for non-nullable column %s", c.Name)
		}
		return nil, nil
	}
	switch c.Type {
	case String:
		switch v := val.(type) {
		case string:
			return v, nil
		case *string:
			return deref(c, v)
		}
	case Int32:
		switch v := val.(type) {
		case int32:
			return v, nil
		case int:
			return int32(v), nil
		case int64:
			return int32(v), nil
		}
	case Int64:
		switch v := val.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case uint64:
			return int64(v), nil
		}
	case Double:
		switch v := val.(type) {
		case float64:
			return v, nil
		case *float64:
			return deref(c, v)
		case float32:
			return float64(v), nil
		}
	case Bool:
		if v, ok := val.(bool); ok {
			return v, nil
		}
	case Timestamp:
		switch v := val.(type) {
		case time.Time:
			return v.UnixNano() / int64(time.Millisecond), nil
		case int64:
			return v, nil
		}
	}
	return nil, errors.Errorf("can't store %v of %[1]T in %s column %s", val, c.Type, c.Name)
}

func deref[T any](c Column, p *T) (interface{}, error) {
	if p == nil {
		if !c.Nullable {
			return nil, errors.Errorf("null value for non-nullable column %s", c.Name)
		}
		return nil, nil
	}
	return *p, nil
}
