package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/basket-service/internal/optimizer"
)

// SourcePostgres is the snapshot source name for database-backed snapshots.
const SourcePostgres = "postgres"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS shops (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	free_shipping_threshold BIGINT,
	shipping_cost BIGINT
);

CREATE TABLE IF NOT EXISTS prices (
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	shop_id TEXT NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
	price BIGINT NOT NULL CHECK (price >= 0),
	currency TEXT NOT NULL DEFAULT 'EUR',
	observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS prices_latest_idx ON prices(product_id, shop_id, observed_at DESC);

CREATE TABLE IF NOT EXISTS substitute_groups (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS substitute_group_members (
	group_id TEXT NOT NULL REFERENCES substitute_groups(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL UNIQUE REFERENCES products(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (group_id, product_id)
);

CREATE TABLE IF NOT EXISTS baskets (
	id TEXT PRIMARY KEY,
	settings JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS basket_lines (
	basket_id TEXT NOT NULL REFERENCES baskets(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	product_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	allow_substitutes BOOLEAN,
	max_price_increase_percent DOUBLE PRECISION,
	PRIMARY KEY (basket_id, position)
);
`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads baskets and catalog data from PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore creates a store over a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: log.With().Str("component", "catalog_store").Logger(),
	}
}

// EnsureSchema creates the catalog and basket tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadBasket loads a stored basket with its lines and settings.
func (s *Store) LoadBasket(ctx context.Context, basketID string) (*BasketDocument, error) {
	doc := &BasketDocument{ID: basketID}

	var settings []byte
	err := s.pool.QueryRow(ctx, `SELECT settings FROM baskets WHERE id = $1`, basketID).Scan(&settings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBasketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query basket: %w", err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &doc.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode basket settings: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT product_id, name, quantity, allow_substitutes, max_price_increase_percent
		FROM basket_lines
		WHERE basket_id = $1
		ORDER BY position
	`, basketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query basket lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line LineDocument
		if err := rows.Scan(&line.ProductID, &line.Name, &line.Quantity, &line.AllowSubstitutes, &line.MaxPriceIncreasePercent); err != nil {
			return nil, fmt.Errorf("failed to scan basket line: %w", err)
		}
		doc.Lines = append(doc.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating basket lines: %w", err)
	}

	return doc, nil
}

// LatestPrices returns the most recent price per product and shop.
func (s *Store) LatestPrices(ctx context.Context) ([]optimizer.PriceRecord, error) {
	return latestPrices(ctx, s.pool)
}

// ShopRules returns the delivery rules of every shop.
func (s *Store) ShopRules(ctx context.Context) (map[string]optimizer.ShopRule, error) {
	return shopRules(ctx, s.pool)
}

// SubstituteGroups returns every substitute group with members ranked by priority.
func (s *Store) SubstituteGroups(ctx context.Context) ([]Group, error) {
	return substituteGroups(ctx, s.pool)
}

// ProductNames returns the display name of every product.
func (s *Store) ProductNames(ctx context.Context) (map[string]string, error) {
	return productNames(ctx, s.pool)
}

// LoadSnapshot reads prices, shop rules, groups and names in one read-only
// repeatable-read transaction, so all four views are consistent.
func (s *Store) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	prices, err := latestPrices(ctx, tx)
	if err != nil {
		return nil, err
	}
	rules, err := shopRules(ctx, tx)
	if err != nil {
		return nil, err
	}
	groups, err := substituteGroups(ctx, tx)
	if err != nil {
		return nil, err
	}
	names, err := productNames(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	snapshot := NewSnapshot(SourcePostgres, prices, rules, groups, names)
	stats := snapshot.Stats()
	s.logger.Info().
		Int("prices", stats.Prices).
		Int("shops", stats.Shops).
		Int("groups", stats.Groups).
		Dur("duration", time.Since(start)).
		Msg("Loaded catalog snapshot")

	return snapshot, nil
}

// SaveBasket stores a basket, replacing any existing lines.
func (s *Store) SaveBasket(ctx context.Context, doc *BasketDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("basket id is required")
	}
	settings, err := json.Marshal(doc.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode basket settings: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO baskets (id, settings) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()
	`, doc.ID, settings); err != nil {
		return fmt.Errorf("failed to upsert basket: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM basket_lines WHERE basket_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear basket lines: %w", err)
	}

	batch := &pgx.Batch{}
	for i, line := range doc.Lines {
		batch.Queue(`
			INSERT INTO basket_lines (basket_id, position, product_id, name, quantity, allow_substitutes, max_price_increase_percent)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, doc.ID, i, line.ProductID, line.Name, line.Quantity, line.AllowSubstitutes, line.MaxPriceIncreasePercent)
	}
	if err := execBatch(ctx, tx, batch, "basket line"); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ImportSnapshot upserts products, shops and groups from a snapshot document
// and bulk-copies its prices with the current time as observation time.
func (s *Store) ImportSnapshot(ctx context.Context, doc *SnapshotDocument) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	names := make(map[string]string)
	for _, p := range doc.Prices {
		names[p.ProductID] = ""
	}
	for _, g := range doc.Groups {
		for _, m := range g.Members {
			names[m.ProductID] = ""
		}
	}
	for _, p := range doc.Products {
		names[p.ID] = p.Name
	}

	batch := &pgx.Batch{}
	for id, name := range names {
		batch.Queue(`
			INSERT INTO products (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = CASE WHEN EXCLUDED.name = '' THEN products.name ELSE EXCLUDED.name END
		`, id, name)
	}
	if err := execBatch(ctx, tx, batch, "product"); err != nil {
		return err
	}

	shops := make(map[string]ShopDocument)
	for _, p := range doc.Prices {
		shops[p.ShopID] = ShopDocument{ID: p.ShopID}
	}
	for _, sh := range doc.Shops {
		shops[sh.ID] = sh
	}
	batch = &pgx.Batch{}
	for _, sh := range shops {
		batch.Queue(`
			INSERT INTO shops (id, name, free_shipping_threshold, shipping_cost) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				free_shipping_threshold = EXCLUDED.free_shipping_threshold,
				shipping_cost = EXCLUDED.shipping_cost
		`, sh.ID, sh.Name, sh.FreeShippingThreshold, sh.ShippingCost)
	}
	if err := execBatch(ctx, tx, batch, "shop"); err != nil {
		return err
	}

	batch = &pgx.Batch{}
	for _, g := range doc.Groups {
		batch.Queue(`INSERT INTO substitute_groups (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, g.ID)
		for _, m := range g.Members {
			batch.Queue(`
				INSERT INTO substitute_group_members (group_id, product_id, priority) VALUES ($1, $2, $3)
				ON CONFLICT (product_id) DO UPDATE SET group_id = EXCLUDED.group_id, priority = EXCLUDED.priority
			`, g.ID, m.ProductID, m.Priority)
		}
	}
	if err := execBatch(ctx, tx, batch, "substitute group"); err != nil {
		return err
	}

	now := time.Now()
	rows := make([][]any, len(doc.Prices))
	for i, p := range doc.Prices {
		currency := p.Currency
		if currency == "" {
			currency = optimizer.DefaultReferenceCurrency
		}
		rows[i] = []any{p.ProductID, p.ShopID, p.Price, currency, now}
	}
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"prices"},
		[]string{"product_id", "shop_id", "price", "currency", "observed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Int("products", len(names)).
		Int("shops", len(shops)).
		Int("groups", len(doc.Groups)).
		Int64("prices", copied).
		Msg("Imported catalog snapshot")
	return nil
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert %s %d: %w", what, i, err)
		}
	}
	return br.Close()
}

func latestPrices(ctx context.Context, q querier) ([]optimizer.PriceRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT DISTINCT ON (product_id, shop_id) product_id, shop_id, price, currency
		FROM prices
		ORDER BY product_id, shop_id, observed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []optimizer.PriceRecord
	for rows.Next() {
		var p optimizer.PriceRecord
		if err := rows.Scan(&p.ProductID, &p.ShopID, &p.Price, &p.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return prices, nil
}

func shopRules(ctx context.Context, q querier) (map[string]optimizer.ShopRule, error) {
	rows, err := q.Query(ctx, `SELECT id, free_shipping_threshold, shipping_cost FROM shops`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shops: %w", err)
	}
	defer rows.Close()

	rules := make(map[string]optimizer.ShopRule)
	for rows.Next() {
		var id string
		var rule optimizer.ShopRule
		if err := rows.Scan(&id, &rule.FreeShippingThreshold, &rule.ShippingCost); err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		rules[id] = rule
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shops: %w", err)
	}
	return rules, nil
}

func substituteGroups(ctx context.Context, q querier) ([]Group, error) {
	rows, err := q.Query(ctx, `
		SELECT group_id, product_id, priority
		FROM substitute_group_members
		ORDER BY group_id, priority, product_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query substitute groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var groupID string
		var m Member
		if err := rows.Scan(&groupID, &m.ProductID, &m.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		if n := len(groups); n == 0 || groups[n-1].ID != groupID {
			groups = append(groups, Group{ID: groupID})
		}
		groups[len(groups)-1].Members = append(groups[len(groups)-1].Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group members: %w", err)
	}
	return groups, nil
}

func productNames(ctx context.Context, q querier) (map[string]string, error) {
	rows, err := q.Query(ctx, `SELECT id, name FROM products WHERE name <> ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return names, nil
}
