// Package storage provides the object stores the ETL job reads raw data from
// and writes analytics tables to. Keys are slash separated and relative to the
// root the store was opened with, regardless of backend.
package storage

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Store is a flat, prefix-listable key space of immutable objects.
type Store interface {
	// List returns every key under prefix (recursively), sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Open returns a reader for the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Create returns a writer for a new object at key, replacing any
	// existing object. The object is complete once Close returns nil.
	Create(ctx context.Context, key string) (Writer, error)
	// RemoveAll deletes every object under prefix.
	RemoveAll(ctx context.Context, prefix string) error
}

// Writer is an object being created. Nothing is visible under its key until
// Close returns nil. Abort throws away what was written instead, leaving any
// previous object in place; Close must not be called after it.
type Writer interface {
	io.WriteCloser
	Abort(cause error) error
}

// Options configure how Open builds a Store.
type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Option is a functional option for Open.
type Option func(o *Options)

// OptRegion sets the AWS region for S3 stores.
func OptRegion(region string) Option {
	return func(o *Options) {
		o.Region = region
	}
}

// OptEndpoint points S3 stores at a custom, S3 compatible endpoint (minio,
// localstack). Path style addressing is used when it is set.
func OptEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.Endpoint = endpoint
	}
}

// OptCredentials sets static credentials for S3 stores. When either value is
// empty the default AWS credential chain is used.
func OptCredentials(accessKeyID, secretAccessKey string) Option {
	return func(o *Options) {
		o.AccessKeyID = accessKeyID
		o.SecretAccessKey = secretAccessKey
	}
}

// Open returns a Store for the given location. s3://, s3a:// and s3n://
// locations are served from S3, file:// locations and bare paths from the
// local filesystem.
func Open(location string, opts ...Option) (Store, error) {
	o := &Options{Region: "us-west-2"}
	for _, opt := range opts {
		opt(o)
	}
	if !strings.Contains(location, "://") {
		return NewLocal(location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing location '%s'", location)
	}
	switch u.Scheme {
	case "s3", "s3a", "s3n":
		if u.Host == "" {
			return nil, errors.Errorf("no bucket in location '%s'", location)
		}
		return NewS3(u.Host, strings.TrimPrefix(u.Path, "/"), o)
	case "file":
		return NewLocal(u.Path)
	default:
		return nil, errors.Errorf("unsupported scheme '%s' in location '%s'", u.Scheme, location)
	}
}

// Join joins key elements with slashes, keeping a trailing slash if the last
// element has one so the result can still be used as a listing prefix.
func Join(elem ...string) string {
	if len(elem) == 0 {
		return ""
	}
	joined := path.Join(elem...)
	if joined == "." {
		joined = ""
	}
	if strings.HasSuffix(elem[len(elem)-1], "/") && joined != "" {
		joined += "/"
	}
	return strings.TrimPrefix(joined, "/")
}
