// Package blob stores the inventory as whole-collection JSON documents in a
// key-value blob storage.
package blob

import (
	"context"
	"fmt"
	"strings"
)

// Well-known keys holding the box and item collections.
const (
	KeyBoxes = "packtrack.boxes"
	KeyItems = "packtrack.items"
)

// Storage is a minimal key to bytes store.
type Storage interface {
	// Get returns the value stored under key. found is false when the key
	// is absent; that is not an error.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Set stores data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte) error

	// Remove deletes key. Removing an absent key succeeds.
	Remove(ctx context.Context, key string) error
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid blob key: %q", key)
	}
	return nil
}
