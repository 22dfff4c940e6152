package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/domains/book/model"
)

// AddRating records callerID's rating. The write is a compare-and-swap on the
// book version; on a lost race the whole read-check-append cycle is repeated
// against fresh state, so a rater can never be recorded twice.
func (s *BookService) AddRating(ctx context.Context, callerID, id string, value int) (*model.Book, error) {
	if !isValidBookID(id) {
		return nil, model.ErrBookNotFound
	}

	for attempt := 1; attempt <= s.opts.MaxRatingRetries; attempt++ {
		book, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := book.AddRating(callerID, value); err != nil {
			return nil, err
		}

		updated, err := s.repo.ReplaceRatings(ctx, id, book.Version, book.Ratings, book.AverageRating)
		if err == nil {
			s.invalidate(ctx, id)

			log.Info().
				Str("book_id", id).
				Int("rating", value).
				Float64("average", updated.AverageRating).
				Int("attempt", attempt).
				Msg("Rating recorded")
			return updated, nil
		}

		if !errors.Is(err, model.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: %w", model.ErrPersistFailed, err)
		}

		log.Debug().
			Str("book_id", id).
			Int("attempt", attempt).
			Msg("Rating write lost a race, retrying")

		if attempt < s.opts.MaxRatingRetries {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	log.Warn().
		Str("book_id", id).
		Int("attempts", s.opts.MaxRatingRetries).
		Msg("Rating retries exhausted")

	return nil, model.ErrRatingConflict
}

// backoff sleeps base*attempt plus up to base of jitter.
func (s *BookService) backoff(ctx context.Context, attempt int) error {
	base := s.opts.RetryBaseDelay
	if base <= 0 {
		return ctx.Err()
	}

	delay := base*time.Duration(attempt) + time.Duration(rand.Int64N(int64(base)))

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
