package gpas3

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/lemmego/gpadmin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records deleted keys and fails for keys in errs
type fakeS3 struct {
	deleted []string
	buckets []string
	errs    map[string]error
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	f.deleted = append(f.deleted, key)
	f.buckets = append(f.buckets, aws.ToString(in.Bucket))
	return &s3.DeleteObjectOutput{}, nil
}

type testBanner struct {
	Image string `json:"image"`
}

func TestObjectKey(t *testing.T) {
	s := New(&fakeS3{}, "media", "/uploads/")
	assert.Equal(t, "uploads/banners/a.png", s.ObjectKey("banners/a.png"))
	assert.Equal(t, "uploads/a.png", s.ObjectKey("../../a.png"))

	s = New(&fakeS3{}, "media", "")
	assert.Equal(t, "banners/a.png", s.ObjectKey("/banners/a.png"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{errs: map[string]error{
		"uploads/gone.png":   &types.NoSuchKey{},
		"uploads/locked.png": errors.New("access denied"),
	}}
	s := New(client, "media", "uploads")

	require.NoError(t, s.Delete(ctx, "a.png"))
	assert.Equal(t, []string{"uploads/a.png"}, client.deleted)
	assert.Equal(t, []string{"media"}, client.buckets)

	assert.NoError(t, s.Delete(ctx, "gone.png"), "missing objects are ignored")

	err := s.Delete(ctx, "locked.png")
	assert.True(t, gpadmin.IsErrorType(err, gpadmin.ErrorTypeInternal))
	assert.Contains(t, err.Error(), "uploads/locked.png")

	assert.True(t, gpadmin.IsErrorType(s.Delete(ctx, ""), gpadmin.ErrorTypeInvalidArgument))
}

func TestImagePruneDeletesVariants(t *testing.T) {
	client := &fakeS3{}
	image := gpadmin.NewImage("image").
		WithStorage(New(client, "media", "")).
		WithFolder("banners").
		WithVariants("thumb", "wide")

	require.NoError(t, image.Prune(context.Background(), &testBanner{Image: "sale.jpg"}))
	assert.Equal(t, []string{"banners/sale.jpg", "banners/thumb/sale.jpg", "banners/wide/sale.jpg"}, client.deleted)
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(Config{Bucket: "media"})
	assert.True(t, gpadmin.IsConfiguration(err))

	_, err = NewFromConfig(Config{Bucket: "media", Region: "eu-west-1", AccessKeyID: "AKIA"})
	assert.True(t, gpadmin.IsConfiguration(err))

	s, err := NewFromConfig(Config{
		Bucket:          "media",
		Region:          "auto",
		Endpoint:        "minio.local:9000",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		Prefix:          "uploads",
	})
	require.NoError(t, err)

	client, ok := s.client.(*s3.Client)
	require.True(t, ok)
	opts := client.Options()
	assert.Equal(t, "https://minio.local:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "uploads/x", s.ObjectKey("x"))
}
