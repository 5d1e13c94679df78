package model

import "time"

// DefaultItemName is used when an item is added without a name.
const DefaultItemName = "Unknown Item"

// Box represents a labeled box that items are packed into.
type Box struct {
	ID        string // UUID
	Name      string
	IsFull    bool      // Sealed flag
	CreatedAt time.Time // UTC, millisecond precision
}

// Item represents a photographed item packed into a box.
type Item struct {
	ID          string // UUID
	BoxID       string // Foreign key to Box
	BoxName     string // Box name at creation time, never re-synced
	ImageURL    string // data URL or base64 payload
	Name        string
	Description string
	Tags        []string
	Timestamp   time.Time // Creation time, UTC, millisecond precision
}

// Clone returns a copy of the item that shares no memory with the original.
func (i Item) Clone() Item {
	if i.Tags != nil {
		i.Tags = append([]string{}, i.Tags...)
	}
	return i
}

// ItemDraft carries the optional fields used to create an Item.
// Empty fields are defaulted when the item is created.
type ItemDraft struct {
	ImageURL    string
	Name        string
	Description string
	Tags        []string
}

// ItemPatch is a partial update for an Item. Nil fields are left unchanged.
// There is deliberately no ID field.
type ItemPatch struct {
	Name        *string
	Description *string
	ImageURL    *string
	Tags        *[]string
	BoxID       *string
	BoxName     *string
}

// Apply returns a copy of item with the non-nil patch fields merged in.
func (p ItemPatch) Apply(item Item) Item {
	out := item.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	if p.Tags != nil {
		out.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.BoxID != nil {
		out.BoxID = *p.BoxID
	}
	if p.BoxName != nil {
		out.BoxName = *p.BoxName
	}
	return out
}
