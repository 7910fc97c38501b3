// Command seed-db loads a small demo catalog into the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookstore/internal/domain/cart"
	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/repository"
)

type bookJSON struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	IsSale      bool            `json:"is_sale"`
	SalePrice   decimal.Decimal `json:"sale_price"`
}

func main() {
	var (
		databaseURL string
		booksFile   string
		demoUser    int64
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&booksFile, "books-file", "db/seed/books.json", "path to books JSON file")
	flag.Int64Var(&demoUser, "demo-user", 0, "if set, give this user id a saved cart with two books")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, booksFile, demoUser); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, booksFile string, demoUser int64) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	books, err := readBooks(booksFile)
	if err != nil {
		return errors.Wrap(err, "read books")
	}

	slog.Info("upserting books", slog.Int("count", len(books)))

	if err := repository.NewBookRepository(pool).UpsertBooks(ctx, books); err != nil {
		return errors.Wrap(err, "upsert books")
	}

	if demoUser > 0 && len(books) >= 2 {
		if err := seedSavedCart(ctx, repository.NewProfileRepository(pool), demoUser, books[:2]); err != nil {
			return errors.Wrap(err, "seed saved cart")
		}
	}

	return nil
}

func readBooks(path string) ([]catalog.Book, error) {
	slog.Info("reading books file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read books file")
	}

	var raw []bookJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse books JSON")
	}

	books := make([]catalog.Book, 0, len(raw))
	for _, b := range raw {
		books = append(books, catalog.Book{
			ID:          b.ID,
			Name:        b.Name,
			Price:       b.Price,
			Category:    b.Category,
			Description: b.Description,
			Image:       b.Image,
			OnSale:      b.IsSale,
			SalePrice:   b.SalePrice,
		})
	}
	return books, nil
}

// seedSavedCart stores a mirror for userID as if they had left items in
// their cart, so a later login can restore it.
func seedSavedCart(ctx context.Context, profiles *repository.ProfileRepository, userID int64, books []catalog.Book) error {
	lines := make(cart.Lines, len(books))
	for i, b := range books {
		lines[b.ID] = i + 1
	}

	if err := profiles.WriteMirror(ctx, userID, cart.EncodeMirror(lines)); err != nil {
		return err
	}

	slog.Info("seeded saved cart", slog.Int64("user_id", userID), slog.Int("lines", len(books)))
	return nil
}
