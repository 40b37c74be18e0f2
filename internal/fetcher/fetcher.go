package fetcher

import (
	"context"
	"iter"
	"time"
)

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore lists and downloads source objects.
type ObjectStore interface {
	// List yields every object under prefix, following pagination until the
	// listing is exhausted. A listing failure is yielded once and ends the sequence.
	List(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error]

	// Fetch returns the full body of the object at key.
	Fetch(ctx context.Context, key string) ([]byte, error)
}
