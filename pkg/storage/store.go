package stores

import (
	"context"
	"io"
)

// Store is a write-only object store with public read URLs.
type Store interface {
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PublicURL(key string) string
}

// NewStore picks a backend by kind ("minio" or "cos").
func NewStore(kind string) (Store, error) {
	switch kind {
	case "", "minio":
		return NewMinioStore(), nil
	case "cos":
		return NewCOSStore()
	}
	return nil, &UnknownKindError{Kind: kind}
}

type UnknownKindError struct{ Kind string }

func (e *UnknownKindError) Error() string { return "unknown storage kind: " + e.Kind }
