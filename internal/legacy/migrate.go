// Package legacy moves inventory collections written by the blob-keyed
// backend into the transactional store.
package legacy

import (
	"context"
	"errors"
	"fmt"

	"packtrack/internal/inventory"
	"packtrack/internal/store/blob"
	"packtrack/internal/store/codec"
)

// CollectionReport describes what happened to one legacy collection.
type CollectionReport struct {
	Key      string
	Found    bool // the key existed in the source
	Total    int  // records decoded from the source
	Migrated int  // records written to the destination
	Removed  bool // the source key was removed
	Err      error
}

// Report summarises a migration run.
type Report struct {
	Boxes CollectionReport
	Items CollectionReport
}

// Done reports whether nothing is left to migrate.
func (r Report) Done() bool {
	return (!r.Boxes.Found || r.Boxes.Removed) && (!r.Items.Found || r.Items.Removed)
}

// Migrate copies the legacy box and item collections from src into dst.
//
// Each collection is handled independently. A missing key is a no-op. A
// collection that cannot be decoded is skipped and its key left in place.
// Records are written one at a time; the first failed write stops that
// collection and leaves its key in place so the next run retries it. The key
// is removed only after every record was written. Running Migrate again after
// a complete run finds nothing to do.
//
// The returned error joins the per-collection failures; the Report is always
// populated.
func Migrate(ctx context.Context, src blob.Storage, dst inventory.Store, logger inventory.Logger) (Report, error) {
	report := Report{
		Boxes: migrateCollection(ctx, src, blob.KeyBoxes, logger, func(data []byte) ([]func(context.Context) error, error) {
			boxes, err := codec.DecodeBoxes(data)
			if err != nil {
				return nil, err
			}
			writes := make([]func(context.Context) error, 0, len(boxes))
			for _, b := range boxes {
				writes = append(writes, func(ctx context.Context) error { return dst.PutBox(ctx, b) })
			}
			return writes, nil
		}),
		Items: migrateCollection(ctx, src, blob.KeyItems, logger, func(data []byte) ([]func(context.Context) error, error) {
			items, err := codec.DecodeItems(data)
			if err != nil {
				return nil, err
			}
			writes := make([]func(context.Context) error, 0, len(items))
			for _, it := range items {
				writes = append(writes, func(ctx context.Context) error { return dst.PutItem(ctx, it) })
			}
			return writes, nil
		}),
	}

	return report, errors.Join(report.Boxes.Err, report.Items.Err)
}

type decodeFunc func(data []byte) ([]func(context.Context) error, error)

func migrateCollection(ctx context.Context, src blob.Storage, key string, logger inventory.Logger, decode decodeFunc) CollectionReport {
	rep := CollectionReport{Key: key}

	data, found, err := src.Get(ctx, key)
	if err != nil {
		rep.Err = fmt.Errorf("reading legacy %s: %w", key, err)
		logger.Error("legacy read failed", "key", key, "error", err)
		return rep
	}
	if !found {
		logger.Debug("no legacy data", "key", key)
		return rep
	}
	rep.Found = true

	writes, err := decode(data)
	if err != nil {
		rep.Err = fmt.Errorf("decoding legacy %s: %w", key, err)
		logger.Error("legacy data malformed, leaving it in place", "key", key, "error", err)
		return rep
	}
	rep.Total = len(writes)

	for i, write := range writes {
		if err := write(ctx); err != nil {
			rep.Err = fmt.Errorf("writing legacy %s record %d: %w", key, i, err)
			logger.Error("legacy write failed, will retry on next start", "key", key, "migrated", rep.Migrated, "total", rep.Total, "error", err)
			return rep
		}
		rep.Migrated++
	}

	if err := src.Remove(ctx, key); err != nil {
		rep.Err = fmt.Errorf("removing legacy %s: %w", key, err)
		logger.Error("legacy cleanup failed", "key", key, "error", err)
		return rep
	}
	rep.Removed = true
	logger.Info("legacy data migrated", "key", key, "records", rep.Migrated)
	return rep
}
