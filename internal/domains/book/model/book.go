package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// Rating is one caller's score for a book.
type Rating struct {
	RaterID string `json:"raterId"`
	Value   int    `json:"value"`
}

// Book is the catalog record. Version is the optimistic concurrency token
// for rating writes and never leaves the server.
type Book struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Author        string    `json:"author" db:"author"`
	Description   string    `json:"description" db:"description"`
	ImageURL      string    `json:"imageUrl" db:"image_url"`
	OwnerID       string    `json:"ownerId" db:"owner_id"`
	Ratings       []Rating  `json:"ratings" db:"ratings"`
	AverageRating float64   `json:"averageRating" db:"average_rating"`
	Version       int       `json:"-" db:"version"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

func (b *Book) IsOwnedBy(callerID string) bool {
	return callerID != "" && b.OwnerID == callerID
}

func (b *Book) HasRatingFrom(raterID string) bool {
	for _, r := range b.Ratings {
		if r.RaterID == raterID {
			return true
		}
	}
	return false
}

// AddRating appends raterID's score and recomputes the average.
// The duplicate check runs before value validation.
func (b *Book) AddRating(raterID string, value int) error {
	if b.HasRatingFrom(raterID) {
		return ErrDuplicateRating
	}
	if err := ValidateRatingValue(value); err != nil {
		return err
	}

	// fresh backing array: callers may still hold the previous slice
	ratings := make([]Rating, len(b.Ratings), len(b.Ratings)+1)
	copy(ratings, b.Ratings)
	b.Ratings = append(ratings, Rating{RaterID: raterID, Value: value})
	b.AverageRating = AverageOf(b.Ratings)
	return nil
}

// ValidateRatingValue rejects anything outside 1..5, zero included.
func ValidateRatingValue(value int) error {
	if value < MinRatingValue || value > MaxRatingValue {
		return NewValidationError(errRatingRange)
	}
	return nil
}

// AverageOf is the arithmetic mean rounded half away from zero to one decimal.
// No ratings averages to 0.
func AverageOf(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}

	var sum int64
	for _, r := range ratings {
		sum += int64(r.Value)
	}

	mean := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(ratings))))
	return mean.Round(1).InexactFloat64()
}
