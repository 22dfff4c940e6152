package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratingsOf(values ...int) []Rating {
	out := make([]Rating, 0, len(values))
	for i, v := range values {
		out = append(out, Rating{RaterID: string(rune('a' + i)), Value: v})
	}
	return out
}

func TestAverageOf(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   float64
	}{
		{"no ratings", nil, 0},
		{"single", []int{4}, 4},
		{"exact", []int{4, 5}, 4.5},
		{"three three four", []int{3, 3, 4}, 3.3},
		{"half rounds away from zero", []int{4, 4, 4, 5}, 4.3},
		{"repeating decimal", []int{4, 5, 5}, 4.7},
		{"rounds down", []int{1, 2, 2}, 1.7},
		{"all max", []int{5, 5, 5}, 5},
		{"one third", []int{1, 1, 2}, 1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AverageOf(ratingsOf(tt.values...)))
		})
	}
}

func TestBook_AddRating(t *testing.T) {
	t.Run("appends and recomputes", func(t *testing.T) {
		b := &Book{Ratings: []Rating{{RaterID: "u1", Value: 4}}, AverageRating: 4}

		require.NoError(t, b.AddRating("u2", 5))

		assert.Len(t, b.Ratings, 2)
		assert.Equal(t, Rating{RaterID: "u2", Value: 5}, b.Ratings[1])
		assert.Equal(t, 4.5, b.AverageRating)
	})

	t.Run("duplicate rater", func(t *testing.T) {
		b := &Book{Ratings: []Rating{{RaterID: "u1", Value: 4}}, AverageRating: 4}

		err := b.AddRating("u1", 2)

		assert.ErrorIs(t, err, ErrDuplicateRating)
		assert.Len(t, b.Ratings, 1)
		assert.Equal(t, 4.0, b.AverageRating)
	})

	t.Run("duplicate wins over invalid value", func(t *testing.T) {
		b := &Book{Ratings: []Rating{{RaterID: "u1", Value: 4}}}

		assert.ErrorIs(t, b.AddRating("u1", 9), ErrDuplicateRating)
	})

	t.Run("out of range", func(t *testing.T) {
		for _, v := range []int{0, -1, 6, 100} {
			b := &Book{Ratings: []Rating{}}

			err := b.AddRating("u1", v)

			assert.ErrorIs(t, err, ErrValidation, "value %d", v)
			assert.Empty(t, b.Ratings)
		}
	})

	t.Run("does not alias previous slice", func(t *testing.T) {
		original := make([]Rating, 1, 4)
		original[0] = Rating{RaterID: "u1", Value: 3}
		b := &Book{Ratings: original}

		require.NoError(t, b.AddRating("u2", 5))

		assert.Len(t, original, 1)
		assert.Equal(t, Rating{}, original[:2][1])
	})
}

func TestBook_IsOwnedBy(t *testing.T) {
	b := &Book{OwnerID: "owner"}

	assert.True(t, b.IsOwnedBy("owner"))
	assert.False(t, b.IsOwnedBy("someone-else"))
	assert.False(t, (&Book{}).IsOwnedBy(""))
}

func TestDecodeBookPayload(t *testing.T) {
	t.Run("drops identity keys", func(t *testing.T) {
		var req CreateBookRequest
		raw := []byte(`{"title":"Dune","author":"Herbert","description":"Spice","_id":"x","ownerId":"intruder","userId":"intruder"}`)

		ignored, err := DecodeBookPayload(raw, &req)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"_id", "ownerId", "userId"}, ignored)
		assert.Equal(t, CreateBookRequest{Title: "Dune", Author: "Herbert", Description: "Spice"}, req)
	})

	t.Run("empty body is an empty object", func(t *testing.T) {
		var req UpdateBookRequest

		ignored, err := DecodeBookPayload(nil, &req)

		require.NoError(t, err)
		assert.Empty(t, ignored)
		assert.True(t, req.ToUpdate().IsEmpty())
	})

	t.Run("not an object", func(t *testing.T) {
		var req CreateBookRequest

		_, err := DecodeBookPayload([]byte(`["title"]`), &req)

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("wrong field type", func(t *testing.T) {
		var req CreateBookRequest

		_, err := DecodeBookPayload([]byte(`{"title":42}`), &req)

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestCreateBookRequest_Validate(t *testing.T) {
	valid := CreateBookRequest{Title: "Dune", Author: "Herbert", Description: "Spice"}
	assert.NoError(t, valid.Validate())

	missing := CreateBookRequest{Title: "Dune", Description: "Spice"}
	assert.Error(t, missing.Validate())

	blank := CreateBookRequest{Title: "  ", Author: "Herbert", Description: "Spice"}
	blank.Normalize()
	assert.Error(t, blank.Validate())
}

func TestUpdateBookRequest_Validate(t *testing.T) {
	empty := ""
	title := "New title"

	assert.NoError(t, UpdateBookRequest{}.Validate())
	assert.NoError(t, UpdateBookRequest{Title: &title}.Validate())
	assert.Error(t, UpdateBookRequest{Title: &empty}.Validate())
}

func TestRatingRequest_Validate(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	assert.NoError(t, RatingRequest{Rating: intPtr(1)}.Validate())
	assert.NoError(t, RatingRequest{Rating: intPtr(5)}.Validate())
	assert.Error(t, RatingRequest{}.Validate())

	for _, v := range []int{0, -3, 6} {
		err := RatingRequest{Rating: intPtr(v)}.Validate()
		assert.ErrorContains(t, err, "rating must be between 1 and 5", "value %d", v)
	}
}

func TestValidateRatingValue_Zero(t *testing.T) {
	err := ValidateRatingValue(0)

	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "validation failed: rating must be between 1 and 5")
}

func TestErrorCode(t *testing.T) {
	wrapped := errors.Join(ErrLookupFailed, errors.New("connection refused"))

	assert.Equal(t, "BOOK_NOT_FOUND", ErrorCode(ErrBookNotFound))
	assert.Equal(t, "VALIDATION_ERROR", ErrorCode(NewValidationError(errors.New("bad"))))
	assert.Equal(t, "LOOKUP_FAILED", ErrorCode(wrapped))
	assert.Equal(t, "INTERNAL_ERROR", ErrorCode(errors.New("boom")))
}
