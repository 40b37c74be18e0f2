package fetcher

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/capstone-impacta/engagement-cli/internal/resilience"
)

// ErrNotFound is returned by Fetch when the key does not exist.
var ErrNotFound = eris.New("fetcher: object not found")

// S3Options configures the S3 object store.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // optional S3-compatible endpoint; enables path-style addressing
	AccessKey string // optional; the default credential chain is used when empty
	SecretKey string
	PageSize  int64
	MaxRPS    float64 // 0 = unlimited
}

// S3Store implements ObjectStore over an S3 bucket.
type S3Store struct {
	client   s3iface.S3API
	bucket   string
	pageSize int64
	limiter  *rate.Limiter
}

// NewS3Store builds an S3 client from opts.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, eris.New("fetcher: s3: bucket is required")
	}

	awsCfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.Endpoint != "" {
		awsCfg.Endpoint = aws.String(opts.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if opts.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: s3: create session")
	}
	return NewS3StoreWithClient(s3.New(sess), opts), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client s3iface.S3API, opts S3Options) *S3Store {
	limit := rate.Inf
	if opts.MaxRPS > 0 {
		limit = rate.Limit(opts.MaxRPS)
	}
	return &S3Store{
		client:   client,
		bucket:   opts.Bucket,
		pageSize: opts.PageSize,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// List pages through ListObjectsV2 and yields each object in key order.
func (s *S3Store) List(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		}
		if s.pageSize > 0 {
			input.MaxKeys = aws.Int64(s.pageSize)
		}

		stopped := false
		var waitErr error
		err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, obj := range page.Contents {
				info := ObjectInfo{
					Key:  aws.StringValue(obj.Key),
					Size: aws.Int64Value(obj.Size),
				}
				if obj.LastModified != nil {
					info.LastModified = *obj.LastModified
				}
				if !yield(info, nil) {
					stopped = true
					return false
				}
			}
			// Throttle page requests along with fetches.
			if err := s.limiter.Wait(ctx); err != nil {
				waitErr = err
				return false
			}
			return true
		})
		if stopped {
			return
		}
		if err == nil {
			err = waitErr
		}
		if err != nil {
			yield(ObjectInfo{}, classifyS3(err, "list "+prefix))
		}
	}
}

// Fetch downloads the object body at key.
func (s *S3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: s3: rate limit wait")
	}

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3(err, "get "+key)
	}
	defer out.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classifyS3(err, "read "+key)
	}
	return body, nil
}

// classifyS3 maps SDK errors onto the fetcher / resilience taxonomy.
func classifyS3(err error, op string) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return eris.Wrapf(ErrNotFound, "fetcher: s3: %s", op)
		case request.ErrCodeRequestError, request.ErrCodeResponseTimeout, "NoCredentialProviders", s3.ErrCodeNoSuchBucket:
			return &resilience.ConnectivityError{Op: "s3 " + op, Err: err}
		}
	}
	if resilience.IsConnectivity(err) {
		return &resilience.ConnectivityError{Op: "s3 " + op, Err: err}
	}
	return eris.Wrapf(err, "fetcher: s3: %s", op)
}
