package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookreview-backend/internal/domains/book/model"
	"bookreview-backend/internal/infrastructure/database"
)

// newTestRepository connects to TEST_DATABASE_URL and starts from an empty books table.
func newTestRepository(t *testing.T) RepositoryInterface {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := &database.PostgresDB{Pool: pool}
	require.NoError(t, db.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, "TRUNCATE books")
	require.NoError(t, err)

	return NewPostgresRepository(pool)
}

func insertBook(t *testing.T, repo RepositoryInterface, owner, title string) *model.Book {
	t.Helper()
	book, err := repo.Insert(context.Background(), &model.Book{
		Title:       title,
		Author:      "Author",
		Description: "Description",
		ImageURL:    "http://localhost:8080/images/" + title + ".jpg",
		OwnerID:     owner,
	})
	require.NoError(t, err)
	return book
}

func TestPostgresRepository_CRUD(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := insertBook(t, repo, "u1", "first")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []model.Rating{}, created.Ratings)
	assert.Equal(t, 0, created.Version)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", found.Title)

	_, err = repo.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, model.ErrBookNotFound)

	title := "renamed"
	assert.ErrorIs(t, repo.UpdateFields(ctx, created.ID, "u2", model.BookUpdate{Title: &title}), model.ErrBookNotFound)
	require.NoError(t, repo.UpdateFields(ctx, created.ID, "u1", model.BookUpdate{Title: &title}))

	found, err = repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", found.Title)
	assert.Equal(t, "Author", found.Author)

	urls, err := repo.ListImageURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ImageURL}, urls)

	assert.ErrorIs(t, repo.Delete(ctx, created.ID, "u2"), model.ErrBookNotFound)
	require.NoError(t, repo.Delete(ctx, created.ID, "u1"))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPostgresRepository_ReplaceRatings(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	book := insertBook(t, repo, "u1", "rated")

	ratings := []model.Rating{{RaterID: "u2", Value: 4}, {RaterID: "u3", Value: 5}}
	updated, err := repo.ReplaceRatings(ctx, book.ID, 0, ratings, 4.5)
	require.NoError(t, err)
	assert.Equal(t, ratings, updated.Ratings)
	assert.Equal(t, 4.5, updated.AverageRating)
	assert.Equal(t, 1, updated.Version)

	_, err = repo.ReplaceRatings(ctx, book.ID, 0, ratings, 4.5)
	assert.ErrorIs(t, err, model.ErrVersionConflict, "stale version must not overwrite")
}

func TestPostgresRepository_FindTopRated(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	low := insertBook(t, repo, "u1", "low")
	high := insertBook(t, repo, "u1", "high")
	mid := insertBook(t, repo, "u1", "mid")
	insertBook(t, repo, "u1", "unrated")

	_, err := repo.ReplaceRatings(ctx, low.ID, 0, []model.Rating{{RaterID: "a", Value: 2}}, 2)
	require.NoError(t, err)
	_, err = repo.ReplaceRatings(ctx, high.ID, 0, []model.Rating{{RaterID: "a", Value: 5}}, 5)
	require.NoError(t, err)
	_, err = repo.ReplaceRatings(ctx, mid.ID, 0, []model.Rating{{RaterID: "a", Value: 4}}, 4)
	require.NoError(t, err)

	top, err := repo.FindTopRated(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{top[0].Title, top[1].Title, top[2].Title})
}
