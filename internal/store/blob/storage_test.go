package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packtrack/internal/encryption"
	"packtrack/internal/inventory"
)

// fakeS3 is an in-memory S3API keyed by bucket/key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	fs, err := NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)

	enc := encryption.NewTestEncryptor()
	dc, err := enc.Unlock("")
	require.NoError(t, err)

	return map[string]Storage{
		"memory":     NewMemoryStorage(),
		"filesystem": fs,
		"s3":         NewS3Storage(newFakeS3(), "bucket", "packtrack/"),
		"encrypted":  NewEncryptedStorage(NewMemoryStorage(), enc, dc),
	}
}

func TestStorage_Contract(t *testing.T) {
	ctx := context.Background()

	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.Get(ctx, KeyBoxes)
			require.NoError(t, err)
			assert.False(t, found, "Get() on empty storage")

			require.NoError(t, s.Set(ctx, KeyBoxes, []byte(`[1]`)))
			require.NoError(t, s.Set(ctx, KeyBoxes, []byte(`[1,2]`)))

			data, found, err := s.Get(ctx, KeyBoxes)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[1,2]`, string(data))

			require.NoError(t, s.Remove(ctx, KeyBoxes))
			require.NoError(t, s.Remove(ctx, KeyBoxes), "second Remove() must succeed")

			_, found, err = s.Get(ctx, KeyBoxes)
			require.NoError(t, err)
			assert.False(t, found, "Get() after Remove()")

			assert.Error(t, s.Set(ctx, "../escape", []byte("x")))
		})
	}
}

func TestS3Storage_Prefix(t *testing.T) {
	client := newFakeS3()
	s := NewS3Storage(client, "bucket", "home/")

	require.NoError(t, s.Set(context.Background(), KeyItems, []byte("[]")))
	assert.Contains(t, client.objects, "bucket/home/packtrack.items")
}

func TestS3Storage_Unavailable(t *testing.T) {
	client := newFakeS3()
	client.err = errors.New("dial tcp: connection refused")
	s := NewS3Storage(client, "bucket", "")

	_, _, err := s.Get(context.Background(), KeyBoxes)
	assert.ErrorIs(t, err, inventory.ErrStorageUnavailable)

	err = s.Set(context.Background(), KeyBoxes, []byte("[]"))
	assert.ErrorIs(t, err, inventory.ErrStorageUnavailable)
}

func TestEncryptedStorage_SealsValues(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	enc := encryption.NewTestEncryptor()
	dc, _ := enc.Unlock("")
	s := NewEncryptedStorage(inner, enc, dc)

	require.NoError(t, s.Set(ctx, KeyItems, []byte("secret")))

	raw, _, err := inner.Get(ctx, KeyItems)
	require.NoError(t, err)
	assert.NotEqual(t, "secret", string(raw))

	// A value written without encryption cannot be opened
	require.NoError(t, inner.Set(ctx, KeyBoxes, []byte("plain")))
	_, _, err = s.Get(ctx, KeyBoxes)
	assert.ErrorIs(t, err, inventory.ErrMalformedData)
}
