package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/config"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"front view.jpg":        "front-view.jpg",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\photo.png`: "photo.png",
		"ñandú.webp":            "and-.webp",
		"...":                   "image",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "u1/1700000000123-my-house.jpg", ObjectKey("u1", "my house.jpg", at))
}

func TestPublicBaseURL(t *testing.T) {
	cfg := config.S3Config{Bucket: "listings", Region: "eu-west-1"}
	assert.Equal(t, "https://listings.s3.eu-west-1.amazonaws.com", PublicBaseURL(cfg))

	cfg.Endpoint = "http://minio:9000/"
	assert.Equal(t, "http://minio:9000/listings", PublicBaseURL(cfg))

	cfg.PublicBaseURL = "https://cdn.example.com/"
	assert.Equal(t, "https://cdn.example.com", PublicBaseURL(cfg))
}

func TestMemoryStore_UploadAndDelete(t *testing.T) {
	store := NewMemoryStore("https://cdn.example.com/", 1024)
	store.now = func() time.Time { return time.UnixMilli(42) }
	ctx := context.Background()

	url, err := store.Upload(ctx, "u1", "front.jpg", "image/jpeg", strings.NewReader("jpeg"), 4)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/u1/42-front.jpg", url)
	assert.True(t, store.Has("u1/42-front.jpg"))

	require.NoError(t, store.DeleteByURL(ctx, url))
	assert.False(t, store.Has("u1/42-front.jpg"))

	assert.ErrorIs(t, store.DeleteByURL(ctx, "https://elsewhere.com/u1/42-front.jpg"), ErrForeignURL)
}

func TestMemoryStore_Rejections(t *testing.T) {
	store := NewMemoryStore("https://cdn.example.com", 4)
	ctx := context.Background()

	_, err := store.Upload(ctx, "u1", "notes.txt", "text/plain", strings.NewReader("hi"), 2)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = store.Upload(ctx, "u1", "big.png", "image/png", strings.NewReader("too large"), 9)
	assert.ErrorIs(t, err, ErrTooLarge)
}
