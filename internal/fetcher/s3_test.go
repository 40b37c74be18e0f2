package fetcher

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstone-impacta/engagement-cli/internal/resilience"
)

// fakeS3 serves a fixed set of listing pages and object bodies.
type fakeS3 struct {
	s3iface.S3API
	pages   [][]string
	objects map[string]string
	listErr error
	getErr  error

	pagesServed int
	lastInput   *s3.ListObjectsV2Input
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	f.lastInput = in
	for i, keys := range f.pages {
		out := &s3.ListObjectsV2Output{}
		for _, k := range keys {
			out.Contents = append(out.Contents, &s3.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k])))})
		}
		f.pagesServed++
		if !fn(out, i == len(f.pages)-1) {
			return nil
		}
	}
	return f.listErr
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func newFakeStore(f *fakeS3) *S3Store {
	return NewS3StoreWithClient(f, S3Options{Bucket: "capstone-impacta", PageSize: 2})
}

func TestS3Store_ListFollowsPagination(t *testing.T) {
	fake := &fakeS3{pages: [][]string{
		{"Capstone/gold/a.csv", "Capstone/gold/b.csv"},
		{"Capstone/gold/c.csv", "Capstone/gold/_SUCCESS"},
		{"Capstone/gold/d.csv"},
	}}
	st := newFakeStore(fake)

	var keys []string
	for obj, err := range st.List(context.Background(), "Capstone/gold/") {
		require.NoError(t, err)
		keys = append(keys, obj.Key)
	}
	assert.Equal(t, []string{
		"Capstone/gold/a.csv", "Capstone/gold/b.csv", "Capstone/gold/c.csv", "Capstone/gold/_SUCCESS", "Capstone/gold/d.csv",
	}, keys)
	assert.Equal(t, 3, fake.pagesServed)
	assert.Equal(t, "capstone-impacta", aws.StringValue(fake.lastInput.Bucket))
	assert.Equal(t, "Capstone/gold/", aws.StringValue(fake.lastInput.Prefix))
	assert.Equal(t, int64(2), aws.Int64Value(fake.lastInput.MaxKeys))
}

func TestS3Store_ListStopsWhenConsumerBreaks(t *testing.T) {
	fake := &fakeS3{pages: [][]string{{"a.csv", "b.csv"}, {"c.csv"}}}
	st := newFakeStore(fake)

	for range st.List(context.Background(), "") {
		break
	}
	assert.Equal(t, 1, fake.pagesServed)
}

func TestS3Store_ListError(t *testing.T) {
	fake := &fakeS3{
		pages:   [][]string{{"a.csv"}},
		listErr: awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("dial tcp: i/o timeout")),
	}
	st := newFakeStore(fake)

	var errs []error
	var keys []string
	for obj, err := range st.List(context.Background(), "") {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keys = append(keys, obj.Key)
	}
	assert.Equal(t, []string{"a.csv"}, keys)
	require.Len(t, errs, 1)
	var ce *resilience.ConnectivityError
	assert.True(t, errors.As(errs[0], &ce))
}

func TestS3Store_Fetch(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"a.csv": "data_postagem\n"}}
	st := newFakeStore(fake)

	body, err := st.Fetch(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "data_postagem\n", string(body))
}

func TestS3Store_FetchNotFound(t *testing.T) {
	st := newFakeStore(&fakeS3{objects: map[string]string{}})

	_, err := st.Fetch(context.Background(), "missing.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, resilience.IsConnectivity(err))
}

func TestS3Store_FetchUnreachable(t *testing.T) {
	st := newFakeStore(&fakeS3{getErr: awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("connection refused"))})

	_, err := st.Fetch(context.Background(), "a.csv")
	var ce *resilience.ConnectivityError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Op, "a.csv")
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Options{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}
