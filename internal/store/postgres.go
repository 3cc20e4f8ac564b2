// Package store provides the product persistence gateways used by the
// import pipeline: a PostgreSQL implementation and an in-memory one.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/stockimport/internal/config"
	"github.com/JonMunkholm/stockimport/internal/core"
)

// insertBatchRows keeps a multi-row INSERT under PostgreSQL's 65535
// bind parameter limit.
const insertBatchRows = 5000

var productColumns = []string{"sku", "name", "stock_quantity"}

// Postgres stores products in a single PostgreSQL table.
type Postgres struct {
	pool    *pgxpool.Pool
	table   string
	useCopy bool
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

var _ core.Gateway = (*Postgres)(nil)

// NewPool opens a connection pool sized from cfg and verifies it with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewPostgres creates a gateway over table. When useCopy is false rows are
// written with batched multi-row INSERT statements instead of COPY.
func NewPostgres(pool *pgxpool.Pool, table string, useCopy bool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		pool:    pool,
		table:   table,
		useCopy: useCopy,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  logger,
	}
}

// BulkInsert writes every record in one transaction.
func (p *Postgres) BulkInsert(ctx context.Context, records []core.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Error("rollback failed", "error", rbErr)
		}
	}()

	if p.useCopy {
		err = p.copyRecords(ctx, tx, records)
	} else {
		err = p.insertRecords(ctx, tx, records)
	}
	if err != nil {
		return p.classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return p.classify(fmt.Errorf("commit: %w", err))
	}

	p.logger.Debug("products inserted", "table", p.table, "rows", len(records), "copy", p.useCopy)
	return nil
}

// classify attaches domain meaning to driver errors the caller can act on.
func (p *Postgres) classify(err error) error {
	switch {
	case IsPgDuplicateError(err):
		return fmt.Errorf("%w: %w", core.ErrDuplicateProduct, err)
	case IsPgUndefinedTableError(err):
		return fmt.Errorf("table %q does not exist: %w", p.table, err)
	default:
		return err
	}
}

func (p *Postgres) copyRecords(ctx context.Context, tx pgx.Tx, records []core.ProductRecord) error {
	n, err := tx.CopyFrom(ctx, pgx.Identifier{p.table}, productColumns, pgx.CopyFromRows(copyRows(records)))
	if err != nil {
		return fmt.Errorf("copy products: %w", err)
	}
	if int(n) != len(records) {
		return fmt.Errorf("copy products: wrote %d of %d rows", n, len(records))
	}
	return nil
}

func (p *Postgres) insertRecords(ctx context.Context, tx pgx.Tx, records []core.ProductRecord) error {
	for start := 0; start < len(records); start += insertBatchRows {
		end := min(start+insertBatchRows, len(records))

		query, args, err := p.insertQuery(records[start:end]).ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert products: %w", err)
		}
	}
	return nil
}

// FindAll returns every product ordered by ID, which is insertion order.
func (p *Postgres) FindAll(ctx context.Context) ([]core.Product, error) {
	query, args, err := p.selectQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	products, err := pgx.CollectRows(rows, pgx.RowToStructByPos[core.Product])
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) tableName() string {
	return pgx.Identifier{p.table}.Sanitize()
}

func (p *Postgres) selectQuery() sq.SelectBuilder {
	return p.builder.
		Select("id", "sku", "name", "stock_quantity").
		From(p.tableName()).
		OrderBy("id")
}

func (p *Postgres) insertQuery(records []core.ProductRecord) sq.InsertBuilder {
	q := p.builder.Insert(p.tableName()).Columns(productColumns...)
	for _, rec := range records {
		q = q.Values(rec.SKU, rec.Name, rec.StockQuantity)
	}
	return q
}

func copyRows(records []core.ProductRecord) [][]any {
	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = []any{rec.SKU, rec.Name, rec.StockQuantity}
	}
	return rows
}
