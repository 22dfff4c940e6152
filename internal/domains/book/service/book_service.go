package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/domains/book/model"
	"bookreview-backend/internal/domains/book/repository"
	"bookreview-backend/internal/infrastructure/storage"
	"bookreview-backend/pkg/cache"
)

const (
	DefaultTopRatedLimit = 3
	MaxTopRatedLimit     = 50
)

type Options struct {
	MaxRatingRetries int
	RetryBaseDelay   time.Duration
	CacheTTL         time.Duration
}

type BookService struct {
	repo    repository.RepositoryInterface
	blobs   storage.BlobStore
	images  ImagePreparer
	cache   cache.Cache
	cleanup CleanupQueue
	opts    Options
}

// NewBookService wires the service. cache and cleanup may be nil.
func NewBookService(
	repo repository.RepositoryInterface,
	blobs storage.BlobStore,
	images ImagePreparer,
	cache cache.Cache,
	cleanup CleanupQueue,
	opts Options,
) *BookService {
	if opts.MaxRatingRetries < 1 {
		opts.MaxRatingRetries = 1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}

	return &BookService{
		repo:    repo,
		blobs:   blobs,
		images:  images,
		cache:   cache,
		cleanup: cleanup,
		opts:    opts,
	}
}

// isValidBookID: ids are UUIDs, anything else cannot exist.
func isValidBookID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ================================================
// READS
// ================================================

func (s *BookService) ListBooks(ctx context.Context) ([]model.Book, error) {
	gen, cacheable := s.cacheGeneration(ctx)

	var books []model.Book
	if cacheable && s.cacheGet(ctx, listCacheKey(gen), &books) {
		return books, nil
	}

	books, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrLookupFailed, err)
	}
	if books == nil {
		books = []model.Book{}
	}

	if cacheable {
		s.cacheSet(ctx, listCacheKey(gen), books)
	}
	return books, nil
}

func (s *BookService) GetBook(ctx context.Context, id string) (*model.Book, error) {
	if !isValidBookID(id) {
		return nil, model.ErrBookNotFound
	}

	gen, cacheable := s.cacheGeneration(ctx)

	var cached model.Book
	if cacheable && s.cacheGet(ctx, bookCacheKey(gen, id), &cached) {
		return &cached, nil
	}

	book, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cacheSet(ctx, bookCacheKey(gen, id), book)
	}
	return book, nil
}

// TopRated returns up to limit books by average rating. limit <= 0 means the default.
func (s *BookService) TopRated(ctx context.Context, limit int) ([]model.Book, error) {
	if limit <= 0 {
		limit = DefaultTopRatedLimit
	}
	if limit > MaxTopRatedLimit {
		limit = MaxTopRatedLimit
	}

	gen, cacheable := s.cacheGeneration(ctx)

	var books []model.Book
	if cacheable && s.cacheGet(ctx, topRatedCacheKey(gen, limit), &books) {
		return books, nil
	}

	books, err := s.repo.FindTopRated(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrLookupFailed, err)
	}
	if books == nil {
		books = []model.Book{}
	}

	if cacheable {
		s.cacheSet(ctx, topRatedCacheKey(gen, limit), books)
	}
	return books, nil
}

// ================================================
// MUTATIONS
// ================================================

func (s *BookService) CreateBook(ctx context.Context, ownerID string, req model.CreateBookRequest, image *model.ImageUpload) (*model.Book, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}
	if image == nil || len(image.Data) == 0 {
		return nil, model.ErrImageRequired
	}

	imageURL, err := s.storeImage(ctx, image)
	if err != nil {
		return nil, err
	}

	book := &model.Book{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		ImageURL:      imageURL,
		OwnerID:       ownerID,
		Ratings:       []model.Rating{},
		AverageRating: 0,
	}

	created, err := s.repo.Insert(ctx, book)
	if err != nil {
		s.removeImage(ctx, imageURL)
		return nil, fmt.Errorf("%w: %w", model.ErrPersistFailed, err)
	}

	s.invalidate(ctx, created.ID)

	log.Info().
		Str("book_id", created.ID).
		Str("owner_id", ownerID).
		Msg("Book created")

	return created, nil
}

// UpdateBook persists the new image reference before the old blob is removed,
// so a failure at any point leaves the record pointing at a stored image.
func (s *BookService) UpdateBook(ctx context.Context, callerID, id string, req model.UpdateBookRequest, image *model.ImageUpload) error {
	if !isValidBookID(id) {
		return model.ErrBookNotFound
	}

	book, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !book.IsOwnedBy(callerID) {
		return model.ErrNotOwner
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return model.NewValidationError(err)
	}

	upd := req.ToUpdate()
	var newImageURL string
	if image != nil {
		newImageURL, err = s.storeImage(ctx, image)
		if err != nil {
			return err
		}
		upd.ImageURL = &newImageURL
	}

	if upd.IsEmpty() {
		return nil
	}

	if err := s.repo.UpdateFields(ctx, id, callerID, upd); err != nil {
		if newImageURL != "" {
			s.removeImage(ctx, newImageURL)
		}
		if errors.Is(err, model.ErrBookNotFound) {
			return model.ErrBookNotFound
		}
		return fmt.Errorf("%w: %w", model.ErrPersistFailed, err)
	}

	s.invalidate(ctx, id)

	if newImageURL != "" && book.ImageURL != "" && book.ImageURL != newImageURL {
		s.removeImage(ctx, book.ImageURL)
	}

	log.Info().
		Str("book_id", id).
		Bool("image_replaced", newImageURL != "").
		Msg("Book updated")

	return nil
}

func (s *BookService) DeleteBook(ctx context.Context, callerID, id string) error {
	if !isValidBookID(id) {
		return model.ErrBookNotFound
	}

	book, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !book.IsOwnedBy(callerID) {
		return model.ErrNotOwner
	}

	if err := s.repo.Delete(ctx, id, callerID); err != nil {
		if errors.Is(err, model.ErrBookNotFound) {
			return model.ErrBookNotFound
		}
		return fmt.Errorf("%w: %w", model.ErrPersistFailed, err)
	}

	s.invalidate(ctx, id)
	s.removeImage(ctx, book.ImageURL)

	log.Info().Str("book_id", id).Msg("Book deleted")
	return nil
}

// load reads straight from the repository, bypassing the cache.
func (s *BookService) load(ctx context.Context, id string) (*model.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrBookNotFound) {
			return nil, model.ErrBookNotFound
		}
		return nil, fmt.Errorf("%w: %w", model.ErrLookupFailed, err)
	}
	return book, nil
}
