package storage

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
)

// maxDeleteKeys is the most keys a single DeleteObjects request accepts.
const maxDeleteKeys = 1000

// S3 is a Store backed by a bucket, rooted at a key prefix.
type S3 struct {
	bucket string
	root   string

	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// NewS3 returns an S3 store for bucket with all keys under root.
func NewS3(bucket, root string, o *Options) (*S3, error) {
	cfg := &aws.Config{Region: aws.String(o.Region)}
	if o.Endpoint != "" {
		cfg.Endpoint = aws.String(o.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(o.AccessKeyID, o.SecretAccessKey, "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	client := s3.New(sess)
	return NewS3WithClient(bucket, root, client, s3manager.NewUploaderWithClient(client)), nil
}

// NewS3WithClient returns an S3 store using the given client and uploader.
func NewS3WithClient(bucket, root string, client s3iface.S3API, uploader s3manageriface.UploaderAPI) *S3 {
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &S3{
		bucket:   bucket,
		root:     root,
		client:   client,
		uploader: uploader,
	}
}

func (s *S3) key(key string) string {
	return s.root + key
}

// List implements Store.
func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := s.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.key(prefix)),
		},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				key := strings.TrimPrefix(aws.StringValue(obj.Key), s.root)
				// "directory" placeholder objects
				if strings.HasSuffix(key, "/") {
					continue
				}
				keys = append(keys, key)
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrapf(err, "listing objects in s3://%s/%s", s.bucket, s.key(prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

// Open implements Store.
func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", s.key(key))
	}
	return result.Body, nil
}

// Create implements Store. Writes are streamed to a multipart upload through a
// pipe; the upload is finished (or its error reported) by Close.
func (s *S3) Create(ctx context.Context, key string) (Writer, error) {
	pr, pw := io.Pipe()
	w := &objWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(key)),
			Body:   pr,
		})
		if err != nil {
			err = errors.Wrapf(err, "uploading %s", s.key(key))
		}
		// unblock any pending Write if the upload gave up early
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// RemoveAll implements Store.
func (s *S3) RemoveAll(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return errors.Wrap(err, "listing for removal")
	}
	for start := 0; start < len(keys); start += maxDeleteKeys {
		end := start + maxDeleteKeys
		if end > len(keys) {
			end = len(keys)
		}
		objs := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objs = append(objs, &s3.ObjectIdentifier{Key: aws.String(s.key(key))})
		}
		out, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: objs, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Wrapf(err, "deleting objects under %s", s.key(prefix))
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return errors.Errorf("deleting %s: %s", aws.StringValue(e.Key), aws.StringValue(e.Message))
		}
	}
	return nil
}

var errAborted = errors.New("upload aborted")

type objWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (o *objWriter) Write(buf []byte) (n int, err error) {
	return o.pw.Write(buf)
}

func (o *objWriter) Close() error {
	if err := o.pw.Close(); err != nil {
		return errors.Wrap(err, "closing pipe")
	}
	return <-o.done
}

// Abort fails the upload's body so the uploader gives up, and s3manager
// aborts the multipart upload, rather than completing a partial object.
func (o *objWriter) Abort(cause error) error {
	if cause == nil {
		cause = errAborted
	}
	o.pw.CloseWithError(cause)
	<-o.done
	return nil
}
