package repository

import (
	"context"

	"bookreview-backend/internal/domains/book/model"
)

// RepositoryInterface is the durable keyed store of Books.
// Methods return model.ErrBookNotFound for absent ids; all other failures
// are returned wrapped.
type RepositoryInterface interface {
	FindAll(ctx context.Context) ([]model.Book, error)
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// FindTopRated orders by average rating desc, then creation order, then id.
	FindTopRated(ctx context.Context, limit int) ([]model.Book, error)

	// Insert assigns id, version and timestamps and returns the stored record.
	Insert(ctx context.Context, book *model.Book) (*model.Book, error)

	// UpdateFields writes only the allow-listed columns, conditioned on
	// id AND owner_id. Zero affected rows is ErrBookNotFound.
	UpdateFields(ctx context.Context, id, ownerID string, upd model.BookUpdate) error

	// ReplaceRatings is a compare-and-swap on version. A stale
	// expectedVersion (or a vanished row) yields ErrVersionConflict.
	ReplaceRatings(ctx context.Context, id string, expectedVersion int, ratings []model.Rating, average float64) (*model.Book, error)

	// Delete removes the record when ownerID owns it.
	Delete(ctx context.Context, id, ownerID string) error

	// ListImageURLs returns every image URL still referenced by a Book.
	ListImageURLs(ctx context.Context) ([]string, error)
}
