// Package snapshot archives raw page captures taken during enrichment.
package snapshot

import (
	"context"
	"io"
)

// Store persists one blob per captured page and returns a URI the job row
// can carry.
type Store interface {
	Put(ctx context.Context, path, contentType string, data io.Reader) (uri string, err error)
}
