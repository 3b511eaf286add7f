package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// memS3 is an in-memory S3API that pages ListObjectsV2 results two at a time.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}}
}

func notFound(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "not found"}
}

func (m *memS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, notFound("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[aws.ToString(in.Key)]; !ok {
		return nil, notFound("NotFound")
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	// deterministic order
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, k := range keys {
			if k == tok {
				start = i
			}
		}
	}
	end := start + 2
	out := &s3.ListObjectsV2Output{}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	now := time.Now()
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(m.objects[k]))),
			LastModified: &now,
		})
	}
	return out, nil
}

func TestS3Storage_WriteReadExists(t *testing.T) {
	ctx := context.Background()
	client := newMemS3()
	store := NewS3StorageWithClient(client, "reports", "/stormbot/")

	if err := store.Write(ctx, "test-1/test-results.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, ok := client.objects["stormbot/test-1/test-results.json"]; !ok {
		t.Fatalf("object not stored under prefix: %v", client.objects)
	}

	data, err := store.Read(ctx, "test-1/test-results.json")
	if err != nil || string(data) != `{"ok":true}` {
		t.Errorf("Read = %q, %v", data, err)
	}

	if _, err := store.Read(ctx, "test-1/missing.json"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}

	ok, err := store.Exists(ctx, "test-1/test-results.json")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, "test-2/test-results.json")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}

	if got := store.Location("test-1/test-results.json"); got != "s3://reports/stormbot/test-1/test-results.json" {
		t.Errorf("Location = %s", got)
	}
}

func TestS3Storage_WriteError(t *testing.T) {
	client := newMemS3()
	client.putErr = errors.New("access denied")
	store := NewS3StorageWithClient(client, "reports", "")

	if err := store.Write(context.Background(), "a.json", nil); err == nil {
		t.Error("expected error but got none")
	}
	if err := store.Write(context.Background(), "../a.json", nil); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestS3Storage_ListPaginates(t *testing.T) {
	ctx := context.Background()
	client := newMemS3()
	store := NewS3StorageWithClient(client, "reports", "runs")

	paths := []string{"test-1/a.json", "test-1/b.json", "test-2/a.json", "test-3/a.json", "test-3/b.png"}
	for _, p := range paths {
		if err := store.Write(ctx, p, []byte("data")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	objects, err := store.List(ctx, "test-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objects) != len(paths) {
		t.Fatalf("got %d objects, want %d", len(objects), len(paths))
	}
	for i, o := range objects {
		if o.Path != paths[i] {
			t.Errorf("object %d = %s, want %s", i, o.Path, paths[i])
		}
		if o.Size != 4 {
			t.Errorf("object %d size = %d", i, o.Size)
		}
	}
}

func TestNewS3Storage_Validation(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
		region string
	}{
		{"empty bucket", "", "us-east-1"},
		{"empty region", "bucket", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewS3Storage(context.Background(), tt.bucket, tt.region, ""); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError bool
	}{
		{name: "local", cfg: Config{Type: "local", BaseDir: t.TempDir()}},
		{name: "default type is local", cfg: Config{BaseDir: t.TempDir()}},
		{name: "local without dir", cfg: Config{Type: "local"}, wantError: true},
		{name: "s3 without bucket", cfg: Config{Type: "s3", Region: "us-east-1"}, wantError: true},
		{name: "s3 without region", cfg: Config{Type: "s3", Bucket: "b"}, wantError: true},
		{name: "unknown", cfg: Config{Type: "gcs"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(context.Background(), tt.cfg)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil || store == nil {
				t.Fatalf("New = %v, %v", store, err)
			}
		})
	}
}

func TestIsS3NotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", notFound("NoSuchKey"), true},
		{"not found", notFound("NotFound"), true},
		{"access denied", notFound("AccessDenied"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFoundError(tt.err); got != tt.want {
				t.Errorf("isS3NotFoundError = %v, want %v", got, tt.want)
			}
		})
	}
}
