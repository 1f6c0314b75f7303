package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/contract.pdf", want: "user/contract.pdf"},
		{name: "simple prefix", prefix: "docs", key: "user/contract.pdf", want: "docs/user/contract.pdf"},
		{name: "prefix trailing slash", prefix: "docs/", key: "user/contract.pdf", want: "docs/user/contract.pdf"},
		{name: "prefix and key slashes", prefix: "/docs/", key: "/user/contract.pdf", want: "docs/user/contract.pdf"},
		{name: "empty key", prefix: "docs", key: "", want: "docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, applyPrefix(tt.prefix, tt.key))
		})
	}
}

func TestSaveOpenSizeDelete(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store := NewWithClient(client, "bucket", "/docs/", "")

	key, n, mime, err := store.Save(ctx, "user-1", "contract.pdf", strings.NewReader("%PDF-1.7\nbody"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("%PDF-1.7\nbody")), n)
	assert.Equal(t, "application/pdf", mime)
	assert.True(t, strings.HasSuffix(key, "_contract.pdf"), key)
	assert.False(t, strings.HasPrefix(key, "docs/"), "returned keys are relative to the prefix")

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "docs/"+key, aws.ToString(put.Key))
	assert.Equal(t, s3types.ServerSideEncryptionAes256, put.ServerSideEncryption)
	assert.Nil(t, put.SSEKMSKeyId)

	size, err := store.Size(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, n, size)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "%PDF-1.7\nbody", string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.Error(t, err)
}

func TestSaveWithKeyUsesKMS(t *testing.T) {
	client := newFakeS3()
	store := NewWithClient(client, "bucket", "", " kms-key ")

	n, err := store.SaveWithKey(context.Background(), "certs/abc.der", "application/pkix-cert", strings.NewReader("der"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	put := client.puts[0]
	assert.Equal(t, s3types.ServerSideEncryptionAwsKms, put.ServerSideEncryption)
	assert.Equal(t, "kms-key", aws.ToString(put.SSEKMSKeyId))
	assert.Equal(t, "application/pkix-cert", aws.ToString(put.ContentType))
}

func TestErrorsNameBucketAndKey(t *testing.T) {
	client := newFakeS3()
	client.err = errors.New("throttled")
	store := NewWithClient(client, "bucket", "docs", "")

	_, err := store.SaveWithKey(context.Background(), "k", "text/plain", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket=bucket key=docs/k")
	assert.ErrorIs(t, err, client.err)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), "us-east-1", " ", "", "")
	assert.Error(t, err)
}
