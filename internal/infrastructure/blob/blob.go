package blob

import (
	"context"
	"io"
)

// Store persists uploaded audio files and hands back a URL any room
// member can stream from.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
