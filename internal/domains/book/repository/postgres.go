package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookreview-backend/internal/domains/book/model"
)

const (
	dialectPostgres = "postgres"
	tableBooks      = "books"

	colID            = "id"
	colTitle         = "title"
	colAuthor        = "author"
	colDescription   = "description"
	colImageURL      = "image_url"
	colOwnerID       = "owner_id"
	colRatings       = "ratings"
	colAverageRating = "average_rating"
	colVersion       = "version"
	colCreatedAt     = "created_at"
	colUpdatedAt     = "updated_at"

	castJsonb = "?::jsonb"
)

// bookColumns is the projection every read scans with pgx.RowToStructByName.
var bookColumns = []interface{}{
	goqu.L("id::text").As(colID),
	colTitle,
	colAuthor,
	colDescription,
	colImageURL,
	colOwnerID,
	colRatings,
	goqu.L("average_rating::float8").As(colAverageRating),
	colVersion,
	colCreatedAt,
	colUpdatedAt,
}

// postgresRepository implements RepositoryInterface with pgx and goqu
type postgresRepository struct {
	pool    *pgxpool.Pool
	dialect goqu.DialectWrapper
}

func NewPostgresRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{
		pool:    pool,
		dialect: goqu.Dialect(dialectPostgres),
	}
}

// idEquals compares against the uuid column through an explicit cast so the
// parameter travels as text.
func idEquals(id string) goqu.Expression {
	return goqu.C(colID).Eq(goqu.Cast(goqu.V(id), "uuid"))
}

func (r *postgresRepository) FindAll(ctx context.Context) ([]model.Book, error) {
	query, args, err := r.dialect.From(tableBooks).
		Prepared(true).
		Select(bookColumns...).
		Order(goqu.C(colCreatedAt).Asc(), goqu.C(colID).Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	return r.queryBooks(ctx, query, args)
}

func (r *postgresRepository) FindByID(ctx context.Context, id string) (*model.Book, error) {
	query, args, err := r.dialect.From(tableBooks).
		Prepared(true).
		Select(bookColumns...).
		Where(idEquals(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query book %s: %w", id, err)
	}

	book, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Book])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan book %s: %w", id, err)
	}
	return book, nil
}

func (r *postgresRepository) FindTopRated(ctx context.Context, limit int) ([]model.Book, error) {
	query, args, err := r.dialect.From(tableBooks).
		Prepared(true).
		Select(bookColumns...).
		Order(
			goqu.I(colAverageRating).Desc(),
			goqu.I(colCreatedAt).Asc(),
			goqu.I(colID).Asc(),
		).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build top rated query: %w", err)
	}

	return r.queryBooks(ctx, query, args)
}

func (r *postgresRepository) Insert(ctx context.Context, book *model.Book) (*model.Book, error) {
	ratings, err := marshalRatings(book.Ratings)
	if err != nil {
		return nil, err
	}

	query, args, err := r.dialect.Insert(tableBooks).
		Prepared(true).
		Rows(goqu.Record{
			colTitle:         book.Title,
			colAuthor:        book.Author,
			colDescription:   book.Description,
			colImageURL:      book.ImageURL,
			colOwnerID:       book.OwnerID,
			colRatings:       goqu.L(castJsonb, ratings),
			colAverageRating: book.AverageRating,
			colVersion:       0,
		}).
		Returning(bookColumns...).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Book])
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return created, nil
}

func (r *postgresRepository) UpdateFields(ctx context.Context, id, ownerID string, upd model.BookUpdate) error {
	record := goqu.Record{colUpdatedAt: goqu.L("NOW()")}
	if upd.Title != nil {
		record[colTitle] = *upd.Title
	}
	if upd.Author != nil {
		record[colAuthor] = *upd.Author
	}
	if upd.Description != nil {
		record[colDescription] = *upd.Description
	}
	if upd.ImageURL != nil {
		record[colImageURL] = *upd.ImageURL
	}

	query, args, err := r.dialect.Update(tableBooks).
		Prepared(true).
		Set(record).
		Where(idEquals(id), goqu.C(colOwnerID).Eq(ownerID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update book %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrBookNotFound
	}
	return nil
}

func (r *postgresRepository) ReplaceRatings(ctx context.Context, id string, expectedVersion int, ratings []model.Rating, average float64) (*model.Book, error) {
	encoded, err := marshalRatings(ratings)
	if err != nil {
		return nil, err
	}

	query, args, err := r.dialect.Update(tableBooks).
		Prepared(true).
		Set(goqu.Record{
			colRatings:       goqu.L(castJsonb, encoded),
			colAverageRating: average,
			colVersion:       goqu.L("version + 1"),
			colUpdatedAt:     goqu.L("NOW()"),
		}).
		Where(idEquals(id), goqu.C(colVersion).Eq(expectedVersion)).
		Returning(bookColumns...).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build rating update: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update ratings %s: %w", id, err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Book])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update ratings %s: %w", id, err)
	}
	return updated, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query, args, err := r.dialect.Delete(tableBooks).
		Prepared(true).
		Where(idEquals(id), goqu.C(colOwnerID).Eq(ownerID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrBookNotFound
	}
	return nil
}

func (r *postgresRepository) ListImageURLs(ctx context.Context) ([]string, error) {
	query, args, err := r.dialect.From(tableBooks).
		Prepared(true).
		Select(colImageURL).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build image query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list image urls: %w", err)
	}

	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan image urls: %w", err)
	}
	return urls, nil
}

func (r *postgresRepository) queryBooks(ctx context.Context, query string, args []interface{}) ([]model.Book, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}

	books, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return nil, fmt.Errorf("scan books: %w", err)
	}
	return books, nil
}

func marshalRatings(ratings []model.Rating) (string, error) {
	if ratings == nil {
		ratings = []model.Rating{}
	}
	encoded, err := json.Marshal(ratings)
	if err != nil {
		return "", fmt.Errorf("encode ratings: %w", err)
	}
	return string(encoded), nil
}
