package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// imagePathSegment is the path component every public image URL carries before the key.
const imagePathSegment = "/images/"

var ErrInvalidKey = errors.New("invalid blob key")

// BlobInfo describes one stored image.
type BlobInfo struct {
	Key          string
	LastModified time.Time
}

// BlobStore persists image payloads under flat keys.
// Delete of a missing key is not an error.
type BlobStore interface {
	// Put stores data under key and returns the public URL clients will see.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]BlobInfo, error)
}

// KeyFromURL recovers the blob key from a public image URL.
func KeyFromURL(imageURL string) (string, bool) {
	idx := strings.LastIndex(imageURL, imagePathSegment)
	if idx < 0 {
		return "", false
	}

	key := imageURL[idx+len(imagePathSegment):]
	if err := ValidateKey(key); err != nil {
		return "", false
	}
	return key, true
}

// ValidateKey rejects anything that could escape the images namespace.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, `/\?#`) {
		return ErrInvalidKey
	}
	return nil
}
