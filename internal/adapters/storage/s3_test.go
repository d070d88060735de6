package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/storefront-cart/internal/adapters/storage"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/test/helpers"
)

// fakeS3 keeps objects in memory
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	failPut  error
	headErr  error
	lastType string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]string)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = string(data)
	f.lastType = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()

	store, err := storage.NewS3Store(ctx, api, "carts", "carts/", helpers.TestLogger())
	require.NoError(t, err)

	_, err = store.GetItem(ctx, "session:abc:cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)

	require.NoError(t, store.SetItem(ctx, "session:abc:cart:v1", `[{"id":1,"amount":1}]`))
	assert.Contains(t, api.objects, "carts/session/abc/cart/v1.json")
	assert.Equal(t, "application/json", api.lastType)

	value, err := store.GetItem(ctx, "session:abc:cart:v1")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"amount":1}]`, value)

	require.NoError(t, store.RemoveItem(ctx, "session:abc:cart:v1"))
	_, err = store.GetItem(ctx, "session:abc:cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()

	api := newFakeS3()
	api.headErr = errors.New("forbidden")
	_, err := storage.NewS3Store(ctx, api, "carts", "", helpers.TestLogger())
	assert.ErrorContains(t, err, "bucket carts is not accessible")

	api = newFakeS3()
	api.failPut = errors.New("slow down")
	store, err := storage.NewS3Store(ctx, api, "carts", "", helpers.TestLogger())
	require.NoError(t, err)

	err = store.SetItem(ctx, "cart:v1", `[]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
	assert.Empty(t, api.objects)
}

func TestS3Store_OversizedObject(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	store, err := storage.NewS3Store(ctx, api, "carts", "carts/", helpers.TestLogger())
	require.NoError(t, err)

	api.objects["carts/cart/v1.json"] = `[` + strings.Repeat(" ", 1<<20) + `]`

	_, err = store.GetItem(ctx, "cart:v1")
	assert.ErrorIs(t, err, storage.ErrObjectTooLarge)
}
