// Command seed-db loads sample inventory and customers for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillworks/lanepos/internal/domain/customer"
	"github.com/tillworks/lanepos/internal/domain/inventory"
	"github.com/tillworks/lanepos/internal/storage/postgres"
)

type stockJSON struct {
	SKU       string `json:"sku"`
	OwnerKind string `json:"owner_kind"`
	OwnerID   string `json:"owner_id"`
	Quantity  int    `json:"quantity"`
}

type customerJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type seedJSON struct {
	Stock     []stockJSON    `json:"stock"`
	Customers []customerJSON `json:"customers"`
}

func main() {
	var (
		databaseURL string
		seedFile    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/sample.json", "path to seed JSON file")
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

	if err := run(ctx, databaseURL, seedFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile string) error {
	slog.Info("reading seed file", slog.String("path", seedFile))

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedJSON
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	db := postgres.NewDB(pool)

	if err := seedStock(ctx, postgres.NewInventoryLedger(db), seed.Stock); err != nil {
		return errors.Wrap(err, "seed stock")
	}
	if err := seedCustomers(ctx, postgres.NewCustomerRepository(db), seed.Customers); err != nil {
		return errors.Wrap(err, "seed customers")
	}

	return nil
}

func seedStock(ctx context.Context, ledger *postgres.InventoryLedger, stock []stockJSON) error {
	slog.Info("upserting stock", slog.Int("count", len(stock)))

	for _, s := range stock {
		kind := inventory.OwnerKind(s.OwnerKind)
		if kind == "" {
			kind = inventory.OwnerProduct
		}
		ownerID := s.OwnerID
		if ownerID == "" {
			ownerID = s.SKU
		}
		err := ledger.Create(ctx, &inventory.Item{
			SKU:      s.SKU,
			Owner:    inventory.OwnerRef{Kind: kind, ID: ownerID},
			Quantity: s.Quantity,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert stock %s", s.SKU)
		}
		slog.Info("upserted stock", slog.String("sku", s.SKU), slog.Int("quantity", s.Quantity))
	}
	return nil
}

func seedCustomers(ctx context.Context, repo *postgres.CustomerRepository, customers []customerJSON) error {
	slog.Info("creating customers", slog.Int("count", len(customers)))

	for _, c := range customers {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		if existing, err := repo.Get(ctx, id); err == nil && existing != nil {
			slog.Info("customer exists", slog.String("id", id))
			continue
		}
		err := repo.Create(ctx, &customer.Customer{
			ID:         id,
			Name:       c.Name,
			Email:      c.Email,
			TotalSpent: decimal.Zero,
		})
		if err != nil {
			return errors.Wrapf(err, "create customer %s", c.Name)
		}
		slog.Info("created customer", slog.String("id", id), slog.String("name", c.Name))
	}
	return nil
}
