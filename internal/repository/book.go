package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookstore/internal/domain/catalog"
)

const (
	selectBooksSQL = `SELECT b.id, b.name, b.price, c.name, b.description, b.image, b.is_sale, b.sale_price
		FROM books b JOIN categories c ON c.id = b.category_id`

	listBooksSQL = selectBooksSQL + ` ORDER BY b.id`

	listBooksByCategorySQL = selectBooksSQL + ` WHERE c.name = $1 ORDER BY b.id`

	listCategoriesSQL = `SELECT c.id, c.name, count(b.id)
		FROM categories c LEFT JOIN books b ON b.category_id = c.id
		GROUP BY c.id, c.name ORDER BY c.name`

	categoryExistsSQL = `SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1)`

	getBookByIDSQL = selectBooksSQL + ` WHERE b.id = $1`

	getBooksByIDsSQL = selectBooksSQL + ` WHERE b.id = ANY($1)`

	upsertCategorySQL = `INSERT INTO categories (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`

	upsertBookSQL = `INSERT INTO books (id, name, price, category_id, description, image, is_sale, sale_price)
		VALUES ($1, $2, $3, (SELECT id FROM categories WHERE name = $4), $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			is_sale = EXCLUDED.is_sale,
			sale_price = EXCLUDED.sale_price`

	// Explicit ids bypass the sequence, so move it past the largest id.
	syncBookSequenceSQL = `SELECT setval(pg_get_serial_sequence('books', 'id'), GREATEST((SELECT max(id) FROM books), 1))`
)

var _ catalog.Repository = (*BookRepository)(nil)

// BookRepository implements catalog.Repository backed by PostgreSQL.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository returns a BookRepository that uses the given pool.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// List returns every book ordered by ID.
func (r *BookRepository) List(ctx context.Context) ([]catalog.Book, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listBooksSQL)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

// Categories returns every category with its number of books.
func (r *BookRepository) Categories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.Name, &c.Books)
		return c, err
	})
}

// ListByCategory returns the books of the named category.
func (r *BookRepository) ListByCategory(ctx context.Context, category string) ([]catalog.Book, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, listBooksByCategorySQL, category)
	if err != nil {
		return nil, fmt.Errorf("listing books of category %q: %w", category, err)
	}
	books, err := pgx.CollectRows(rows, scanBook)
	if err != nil {
		return nil, fmt.Errorf("listing books of category %q: %w", category, err)
	}
	if len(books) > 0 {
		return books, nil
	}

	var exists bool
	if err := q.QueryRow(ctx, categoryExistsSQL, category).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking category %q: %w", category, err)
	}
	if !exists {
		return nil, catalog.ErrCategoryNotFound
	}
	return books, nil
}

// GetByID returns a single book by its identifier.
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*catalog.Book, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getBookByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting book %d: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBook)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting book %d: %w", id, err)
	}
	return &b, nil
}

// GetByIDs returns the books matching any of the given IDs.
func (r *BookRepository) GetByIDs(ctx context.Context, ids []int64) ([]catalog.Book, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getBooksByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting books by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

// UpsertBooks inserts or replaces books by id, creating missing categories
// by name. All books are written in one transaction.
func (r *BookRepository) UpsertBooks(ctx context.Context, books []catalog.Book) error {
	if len(books) == 0 {
		return nil
	}
	return NewTransactor(r.pool).InTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.pool)

		categories := &pgx.Batch{}
		seen := make(map[string]struct{})
		for _, b := range books {
			if _, ok := seen[b.Category]; ok {
				continue
			}
			seen[b.Category] = struct{}{}
			categories.Queue(upsertCategorySQL, b.Category)
		}
		if err := q.SendBatch(ctx, categories).Close(); err != nil {
			return fmt.Errorf("upserting categories: %w", err)
		}

		rows := &pgx.Batch{}
		for _, b := range books {
			rows.Queue(upsertBookSQL,
				b.ID, b.Name, b.Price, b.Category, b.Description, b.Image, b.OnSale, b.SalePrice,
			)
		}
		if err := q.SendBatch(ctx, rows).Close(); err != nil {
			return fmt.Errorf("upserting %d books: %w", len(books), err)
		}

		if _, err := q.Exec(ctx, syncBookSequenceSQL); err != nil {
			return fmt.Errorf("syncing book id sequence: %w", err)
		}
		return nil
	})
}

func scanBook(row pgx.CollectableRow) (catalog.Book, error) {
	var b catalog.Book
	err := row.Scan(
		&b.ID, &b.Name, &b.Price, &b.Category,
		&b.Description, &b.Image, &b.OnSale, &b.SalePrice,
	)
	return b, err
}
