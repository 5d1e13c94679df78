// Package codec defines the JSON layout used for boxes and items wherever
// they are stored as documents: the blob-keyed store, the legacy collections
// and exports. Times are Unix milliseconds.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"packtrack/internal/inventory"
	"packtrack/internal/model"
)

type boxRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsFull    bool   `json:"isFull"`
	CreatedAt int64  `json:"createdAt"`
}

type itemRecord struct {
	ID          string   `json:"id"`
	BoxID       string   `json:"boxId"`
	BoxName     string   `json:"boxName"`
	ImageURL    string   `json:"imageUrl"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Timestamp   int64    `json:"timestamp"`
}

// EncodeBoxes serializes boxes as a JSON array. A nil slice encodes as [].
func EncodeBoxes(boxes []model.Box) ([]byte, error) {
	recs := make([]boxRecord, 0, len(boxes))
	for _, b := range boxes {
		recs = append(recs, boxRecord{
			ID:        b.ID,
			Name:      b.Name,
			IsFull:    b.IsFull,
			CreatedAt: b.CreatedAt.UnixMilli(),
		})
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encoding boxes: %w", err)
	}
	return data, nil
}

// DecodeBoxes parses a JSON array of boxes. Any syntax or type error is
// reported as inventory.ErrMalformedData.
func DecodeBoxes(data []byte) ([]model.Box, error) {
	var recs []boxRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: boxes: %v", inventory.ErrMalformedData, err)
	}
	boxes := make([]model.Box, 0, len(recs))
	for i, r := range recs {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: boxes[%d]: missing id", inventory.ErrMalformedData, i)
		}
		boxes = append(boxes, model.Box{
			ID:        r.ID,
			Name:      r.Name,
			IsFull:    r.IsFull,
			CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		})
	}
	return boxes, nil
}

// EncodeItems serializes items as a JSON array. Nil tags encode as [].
func EncodeItems(items []model.Item) ([]byte, error) {
	recs := make([]itemRecord, 0, len(items))
	for _, it := range items {
		tags := it.Tags
		if tags == nil {
			tags = []string{}
		}
		recs = append(recs, itemRecord{
			ID:          it.ID,
			BoxID:       it.BoxID,
			BoxName:     it.BoxName,
			ImageURL:    it.ImageURL,
			Name:        it.Name,
			Description: it.Description,
			Tags:        tags,
			Timestamp:   it.Timestamp.UnixMilli(),
		})
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encoding items: %w", err)
	}
	return data, nil
}

// DecodeItems parses a JSON array of items. Missing tags decode as an empty
// slice.
func DecodeItems(data []byte) ([]model.Item, error) {
	var recs []itemRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: items: %v", inventory.ErrMalformedData, err)
	}
	items := make([]model.Item, 0, len(recs))
	for i, r := range recs {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: items[%d]: missing id", inventory.ErrMalformedData, i)
		}
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		items = append(items, model.Item{
			ID:          r.ID,
			BoxID:       r.BoxID,
			BoxName:     r.BoxName,
			ImageURL:    r.ImageURL,
			Name:        r.Name,
			Description: r.Description,
			Tags:        tags,
			Timestamp:   time.UnixMilli(r.Timestamp).UTC(),
		})
	}
	return items, nil
}
