package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// identityFields are never taken from a payload; the server derives them.
var identityFields = []string{"id", "_id", "ownerId", "owner_id", "userId", "_userId"}

// =====================================================
// REQUEST DTOs
// =====================================================

// CreateBookRequest is the allow-listed create payload.
type CreateBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

func (r *CreateBookRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	r.Description = strings.TrimSpace(r.Description)
}

func (r CreateBookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Author, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Description, validation.Required, validation.Length(1, 5000)),
	)
}

// UpdateBookRequest is a partial update; nil means "leave unchanged".
type UpdateBookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
}

func (r *UpdateBookRequest) Normalize() {
	for _, f := range []*string{r.Title, r.Author, r.Description} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func (r UpdateBookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Author, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Description, validation.NilOrNotEmpty, validation.Length(1, 5000)),
	)
}

// ToUpdate converts the request into the column allow-list.
func (r UpdateBookRequest) ToUpdate() BookUpdate {
	return BookUpdate{
		Title:       r.Title,
		Author:      r.Author,
		Description: r.Description,
	}
}

// RatingRequest is the rating payload. A userId key is tolerated and ignored;
// the rater is always the authenticated caller.
type RatingRequest struct {
	Rating *int   `json:"rating"`
	UserID string `json:"userId,omitempty"`
}

func (r RatingRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Rating,
			validation.NotNil.Error("rating is required"),
			validation.By(func(v interface{}) error {
				if n, ok := v.(*int); ok && n != nil && (*n < MinRatingValue || *n > MaxRatingValue) {
					return errRatingRange
				}
				return nil
			}),
		),
	)
}

// =====================================================
// PERSISTENCE DTOs
// =====================================================

// BookUpdate is the exact set of columns an update may write.
// id, owner, ratings and average are structurally absent.
type BookUpdate struct {
	Title       *string
	Author      *string
	Description *string
	ImageURL    *string
}

func (u BookUpdate) IsEmpty() bool {
	return u.Title == nil && u.Author == nil && u.Description == nil && u.ImageURL == nil
}

// Apply copies the set fields onto b.
func (u BookUpdate) Apply(b *Book) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.ImageURL != nil {
		b.ImageURL = *u.ImageURL
	}
}

// ImageUpload is a raw image file received from a client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DecodeBookPayload unmarshals a JSON object into dst and reports which
// identity keys the caller tried to supply. Those keys are never applied.
func DecodeBookPayload(raw []byte, dst interface{}) ([]string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, NewValidationError(fmt.Errorf("book payload must be a JSON object: %w", err))
	}

	var ignored []string
	for _, field := range identityFields {
		if _, ok := keys[field]; ok {
			ignored = append(ignored, field)
		}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return ignored, NewValidationError(fmt.Errorf("invalid book payload: %w", err))
	}
	return ignored, nil
}
