package service

import (
	"context"

	"bookreview-backend/internal/domains/book/model"
	"bookreview-backend/internal/infrastructure/storage"
)

// ServiceInterface is the book catalog business layer.
type ServiceInterface interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id string) (*model.Book, error)
	TopRated(ctx context.Context, limit int) ([]model.Book, error)

	CreateBook(ctx context.Context, ownerID string, req model.CreateBookRequest, image *model.ImageUpload) (*model.Book, error)
	UpdateBook(ctx context.Context, callerID, id string, req model.UpdateBookRequest, image *model.ImageUpload) error
	DeleteBook(ctx context.Context, callerID, id string) error

	AddRating(ctx context.Context, callerID, id string, value int) (*model.Book, error)
}

// ImagePreparer validates and normalises an uploaded image.
type ImagePreparer interface {
	Prepare(data []byte) (*storage.PreparedImage, error)
}

// CleanupQueue defers blob removals that failed inline.
type CleanupQueue interface {
	EnqueueImageDeletion(ctx context.Context, key string) error
}
