// Command catalog-ingest loads supplier book feeds into the catalog.
//
// Each feed is a gzip-compressed JSON-lines file with one book per line.
// Feeds are scanned concurrently. A book id that shows up in more than one
// feed is a conflict between suppliers; such ids are reported and skipped
// unless -last-wins is set, in which case the feed listed last wins.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/repository"
)

const (
	bloomFPR      = 0.001
	maxFeeds      = bits.UintSize
	logInvalidMax = 20
)

type options struct {
	databaseURL string
	expected    uint
	batchSize   int
	lastWins    bool
	dryRun      bool
}

// feedStats summarizes the first pass over a feed.
type feedStats struct {
	books   int
	invalid int
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.expected, "expected", 1_000_000, "expected number of books per feed, sizes the bloom filters")
	flag.IntVar(&opts.batchSize, "batch", 500, "books per upsert transaction")
	flag.BoolVar(&opts.lastWins, "last-wins", false, "on id conflicts keep the book from the feed listed last")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "validate feeds and report conflicts without writing")
	flag.Parse()

	feeds := flag.Args()
	if len(feeds) == 0 {
		slog.Error("usage: catalog-ingest [flags] feed1.jsonl.gz [feed2.jsonl.gz ...]")
		os.Exit(2)
	}

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feeds, opts); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feeds []string, opts options) error {
	if len(feeds) > maxFeeds {
		return errors.Errorf("at most %d feeds are supported, got %d", maxFeeds, len(feeds))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	// Pass 1: validate feeds and build one bloom filter of ids per feed.
	slog.Info("pass 1: scanning feeds", slog.Int("feeds", len(feeds)))

	filters, stats, err := buildFilters(ctx, feeds, opts.expected)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: ids present in two or more feeds.
	var conflicts map[int64]struct{}
	if len(feeds) > 1 {
		slog.Info("pass 2: finding ids shared between feeds")

		conflicts, err = findConflicts(ctx, feeds, filters)
		if err != nil {
			return errors.Wrap(err, "find conflicts")
		}
	}

	total := 0
	for i, s := range stats {
		total += s.books
		slog.Info("feed summary",
			slog.String("feed", feeds[i]),
			slog.Int("books", s.books),
			slog.Int("invalid", s.invalid),
		)
	}
	slog.Info("conflicting ids", slog.Int("count", len(conflicts)), slog.Bool("last_wins", opts.lastWins))

	if opts.dryRun {
		slog.Info("dry run, nothing written", slog.Int("books", total))
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	w := &writer{
		books:     repository.NewBookRepository(pool),
		batchSize: opts.batchSize,
	}
	for i, feed := range feeds {
		skip := conflictFilter(conflicts, i, len(feeds), opts.lastWins, filters)
		if err := w.writeFeed(ctx, feed, skip); err != nil {
			return errors.Wrapf(err, "write feed %s", feed)
		}
	}
	slog.Info("books written", slog.Int("count", w.written), slog.Int("skipped", w.skipped))
	return nil
}

// buildFilters scans every feed concurrently, counting valid and invalid
// lines and adding every valid id to the feed's bloom filter.
func buildFilters(ctx context.Context, feeds []string, expected uint) ([]*bloom.BloomFilter, []feedStats, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))
	stats := make([]feedStats, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			var s feedStats

			err := streamFeed(ctx, feed, func(lineNo int, b catalog.Book, parseErr error) error {
				if parseErr != nil {
					s.invalid++
					if s.invalid <= logInvalidMax {
						slog.Warn("invalid feed line",
							slog.String("feed", feed),
							slog.Int("line", lineNo),
							slog.String("error", parseErr.Error()),
						)
					}
					return nil
				}
				filter.AddString(strconv.FormatInt(b.ID, 10))
				s.books++
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan feed %d", i+1)
			}

			filters[i] = filter
			stats[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return filters, stats, nil
}

// findConflicts re-scans each feed and tests its ids against the filters of
// the other feeds. An id is a conflict when at least two feeds flag it, which
// rules out most single-filter false positives.
func findConflicts(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) (map[int64]struct{}, error) {
	candidates := make([]map[int64]uint, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			found := make(map[int64]uint)
			feedBit := uint(1) << uint(i)

			err := streamFeed(ctx, feed, func(_ int, b catalog.Book, parseErr error) error {
				if parseErr != nil {
					return nil
				}
				key := strconv.FormatInt(b.ID, 10)
				for j, f := range filters {
					if j != i && f.TestString(key) {
						found[b.ID] |= feedBit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan feed %d for conflicts", i+1)
			}

			candidates[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[int64]uint)
	for _, found := range candidates {
		for id, mask := range found {
			merged[id] |= mask
		}
	}

	conflicts := make(map[int64]struct{})
	for id, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			conflicts[id] = struct{}{}
		}
	}
	return conflicts, nil
}

// conflictFilter returns the predicate that tells whether feed idx must skip
// a book. With lastWins a conflicting id is written only by the last feed
// that contains it.
func conflictFilter(
	conflicts map[int64]struct{},
	idx, n int,
	lastWins bool,
	filters []*bloom.BloomFilter,
) func(id int64) bool {
	return func(id int64) bool {
		if _, ok := conflicts[id]; !ok {
			return false
		}
		if !lastWins {
			return true
		}
		key := strconv.FormatInt(id, 10)
		for j := idx + 1; j < n; j++ {
			if filters[j].TestString(key) {
				return true
			}
		}
		return false
	}
}

type writer struct {
	books     *repository.BookRepository
	batchSize int

	batch   []catalog.Book
	written int
	skipped int
}

func (w *writer) writeFeed(ctx context.Context, feed string, skip func(id int64) bool) error {
	err := streamFeed(ctx, feed, func(_ int, b catalog.Book, parseErr error) error {
		if parseErr != nil {
			return nil
		}
		if skip(b.ID) {
			w.skipped++
			return nil
		}
		w.batch = append(w.batch, b)
		if len(w.batch) >= w.batchSize {
			return w.flush(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return w.flush(ctx)
}

func (w *writer) flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}
	if err := w.books.UpsertBooks(ctx, w.batch); err != nil {
		return err
	}
	w.written += len(w.batch)
	slog.Info("write progress", slog.Int("written", w.written))
	w.batch = w.batch[:0]
	return nil
}
