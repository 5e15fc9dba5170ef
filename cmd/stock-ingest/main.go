// Command stock-ingest loads gzipped supplier stock feeds into the inventory
// table. Feeds are large (hundreds of millions of lines) and a SKU may appear
// in several feeds; bloom filters identify the cross-feed SKUs so only those
// need exact in-memory merging, while single-feed SKUs stream straight to the
// database.
//
// Feed line format: SKU,QUANTITY
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/tillworks/lanepos/internal/storage/postgres"
)

const (
	bloomCapacity = 100_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	maxSKULen     = 64
	writeBatch    = 500
)

const upsertStockSQL = `INSERT INTO inventory_items (id, sku, owner_kind, owner_id, quantity, reserved, updated_at)
	VALUES ($1, $2, 'product', $2, $3, 0, now())
	ON CONFLICT (sku) DO UPDATE SET
		quantity = inventory_items.quantity + EXCLUDED.quantity,
		updated_at = now()`

// fileResult holds the cross-feed SKU quantities found in a single feed.
type fileResult struct {
	crossFeed map[string]int
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz stock feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("stock ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("stock ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz feed files in %s", dataDir)
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Pass 1: one bloom filter of SKUs per feed, built concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: stream each feed again. SKUs present only in this feed go
	// straight to the database; SKUs flagged by another feed's filter are
	// collected for exact merging.
	slog.Info("pass 2: ingesting feeds")
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(ingestFile(gctx, pool, i, f, filters, results))
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "ingest feeds")
	}

	// Merge cross-feed quantities and write them once.
	merged := make(map[string]int)
	for _, r := range results {
		for sku, qty := range r.crossFeed {
			merged[sku] += qty
		}
	}
	slog.Info("merging cross-feed SKUs", slog.Int("count", len(merged)))

	written := 0
	for sku, qty := range merged {
		if _, err := pool.Exec(ctx, upsertStockSQL, uuid.New().String(), sku, qty); err != nil {
			return errors.Wrapf(err, "upsert %s", sku)
		}
		written++
		if written%writeBatch == 0 || written == len(merged) {
			slog.Info("merge progress", slog.Int("written", written), slog.Int("total", len(merged)))
		}
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(gctx, i, f, filters))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(sku string, _ int) {
			filter.AddString(sku)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress", slog.Int("file", idx+1), slog.Uint64("skus", count))
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete", slog.Int("file", idx+1), slog.Uint64("total_skus", count))
		filters[idx] = filter
		return nil
	}
}

func ingestFile(
	ctx context.Context,
	pool *pgxpool.Pool,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		crossFeed := make(map[string]int)
		var count uint64
		var ingestErr error

		err := streamGzFile(ctx, path, func(sku string, qty int) {
			if ingestErr != nil {
				return
			}
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress", slog.Int("file", idx+1), slog.Uint64("lines", count))
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(sku) {
					crossFeed[sku] += qty
					return
				}
			}
			if _, err := pool.Exec(ctx, upsertStockSQL, uuid.New().String(), sku, qty); err != nil {
				ingestErr = errors.Wrapf(err, "upsert %s", sku)
			}
		})
		if err != nil {
			return errors.Wrapf(err, "ingest file %d", idx+1)
		}
		if ingestErr != nil {
			return ingestErr
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_lines", count),
			slog.Int("cross_feed", len(crossFeed)),
		)
		results[idx] = fileResult{crossFeed: crossFeed}
		return nil
	}
}

// streamGzFile opens a gzip-compressed feed and calls fn for each valid line.
func streamGzFile(ctx context.Context, path string, fn func(sku string, qty int)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		sku, qtyStr, ok := strings.Cut(scanner.Text(), ",")
		if !ok || sku == "" || len(sku) > maxSKULen {
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(qtyStr))
		if err != nil || qty < 0 {
			continue
		}
		fn(sku, qty)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
