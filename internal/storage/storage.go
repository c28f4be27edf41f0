package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnsupportedType = errors.New("only image uploads are accepted")
	ErrTooLarge        = errors.New("file exceeds the upload size limit")
	ErrForeignURL      = errors.New("url does not belong to this store")
)

// ImageStore keeps uploaded property images
type ImageStore interface {
	Upload(ctx context.Context, userID, filename, contentType string, body io.Reader, size int64) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-]
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeKeyChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "image"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

// ObjectKey builds <userID>/<unixMillis>-<filename>
func ObjectKey(userID, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s", userID, at.UnixMilli(), SanitizeFilename(filename))
}

// IsImage reports whether the content type is an image type
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func keyFromURL(baseURL, url string) (string, error) {
	prefix := strings.TrimSuffix(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", ErrForeignURL
	}
	return key, nil
}

// MemoryStore is an in-process ImageStore for development and tests
type MemoryStore struct {
	baseURL string
	maxSize int64

	mu      sync.Mutex
	objects map[string][]byte
	now     func() time.Time
}

func NewMemoryStore(baseURL string, maxSize int64) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: maxSize,
		objects: make(map[string][]byte),
		now:     time.Now,
	}
}

func (m *MemoryStore) Upload(ctx context.Context, userID, filename, contentType string, body io.Reader, size int64) (string, error) {
	if !IsImage(contentType) {
		return "", ErrUnsupportedType
	}
	data, err := io.ReadAll(io.LimitReader(body, m.maxSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > m.maxSize {
		return "", ErrTooLarge
	}

	key := ObjectKey(userID, filename, m.now())
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return m.baseURL + "/" + key, nil
}

func (m *MemoryStore) DeleteByURL(ctx context.Context, url string) error {
	key, err := keyFromURL(m.baseURL, url)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Has reports whether an object exists under key
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
