package remote

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, f.err
}

func TestUploadAsset(t *testing.T) {
	f := &fakePutter{}
	s := &S3Storage{bucket: "notes", publicURL: "http://minio:9000", client: f}

	url, err := s.UploadAsset(context.Background(), "/covers/n1/a b.png", []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	require.Equal(t, "http://minio:9000/notes/covers/n1/a%20b.png", url)

	require.Equal(t, "notes", aws.ToString(f.in.Bucket))
	require.Equal(t, "covers/n1/a b.png", aws.ToString(f.in.Key))
	require.Equal(t, "image/png", aws.ToString(f.in.ContentType))
	require.EqualValues(t, 3, aws.ToInt64(f.in.ContentLength))
	require.Equal(t, []byte{1, 2, 3}, f.body)
}

func TestUploadAsset_Error(t *testing.T) {
	s := &S3Storage{bucket: "notes", client: &fakePutter{err: errors.New("connection reset")}}

	_, err := s.UploadAsset(context.Background(), "x", nil, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewS3Storage(t *testing.T) {
	s, err := NewS3Storage(context.Background(), S3Config{
		Endpoint:  "http://localhost:9000/",
		Region:    "us-east-1",
		Bucket:    "notes",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000/notes/a.png", s.GetPublicURL("a.png"))

	s, err = NewS3Storage(context.Background(), S3Config{
		Endpoint: "http://localhost:9000", Region: "us-east-1", Bucket: "notes",
		PublicURL: "https://cdn.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/notes/a.png", s.GetPublicURL("a.png"))
}

func TestClientComposite(t *testing.T) {
	var store NoteStore = NewClient(&GRPCClient{}, &S3Storage{publicURL: "http://h", bucket: "b"})
	require.Equal(t, "http://h/b/k", store.GetPublicURL("k"))
}
