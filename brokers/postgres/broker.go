// Package postgres inserts generated jobs straight into an Oban jobs table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	"github.com/BranchIntl/jobforge/serializers/oban"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
	colState        = "state"
	colQueue        = "queue"
	colWorker       = "worker"
	colArgs         = "args"
	colMaxAttempts  = "max_attempts"
	colScheduledAt  = "scheduled_at"
	colInsertedAt   = "inserted_at"
)

// DB is the subset of *pgxpool.Pool the broker uses
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresBroker writes each batch as one multi-row INSERT
type PostgresBroker struct {
	mu         sync.RWMutex
	db         DB
	options    Options
	serializer *oban.ObanSerializer
}

// NewBroker creates a new Postgres broker
func NewBroker(options Options, serializer *oban.ObanSerializer) *PostgresBroker {
	return &PostgresBroker{
		options:    options,
		serializer: serializer,
	}
}

// NewBrokerFromDB creates a broker over an existing pool
func NewBrokerFromDB(db DB, options Options, serializer *oban.ObanSerializer) *PostgresBroker {
	b := NewBroker(options, serializer)
	b.db = db
	return b
}

// Connect opens the pool and pings the server
func (p *PostgresBroker) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return p.ping(ctx)
	}

	cfg, err := pgxpool.ParseConfig(p.options.URI)
	if err != nil {
		return errors.NewConnectionError("postgres", fmt.Errorf("invalid URI: %w", err))
	}
	if p.options.MaxConnections > 0 {
		cfg.MaxConns = p.options.MaxConnections
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return errors.NewConnectionError(cfg.ConnConfig.Host, fmt.Errorf("failed to create pool: %w", err))
	}
	p.db = pool

	if err := p.ping(ctx); err != nil {
		pool.Close()
		p.db = nil
		return err
	}

	slog.Debug("Connected to Postgres", "table", p.tableName())
	return nil
}

func (p *PostgresBroker) ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return errors.NewConnectionError("postgres", fmt.Errorf("ping failed: %w", err))
	}
	return nil
}

// Close closes the pool
func (p *PostgresBroker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		p.db.Close()
		p.db = nil
	}
	return nil
}

// Health pings the database
func (p *PostgresBroker) Health() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return errors.ErrNotConnected
	}
	return p.ping(context.Background())
}

// Type returns the broker type
func (p *PostgresBroker) Type() string {
	return "postgres"
}

// EnqueueBatch inserts the batch in a single statement
func (p *PostgresBroker) EnqueueBatch(ctx context.Context, jobs []*job.Job) error {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()

	if db == nil {
		return errors.ErrNotConnected
	}
	if err := job.ValidateBatch(jobs); err != nil {
		return errors.NewBrokerError("enqueue", "", err)
	}

	query, args, err := p.buildInsertQuery(jobs)
	if err != nil {
		return err
	}

	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return errors.NewBrokerError("enqueue", jobs[0].Queue, err)
	}
	if tag.RowsAffected() != int64(len(jobs)) {
		slog.Warn("Unexpected insert count", "expected", len(jobs), "rows_affected", tag.RowsAffected())
	}
	return nil
}

// buildInsertQuery renders the prepared INSERT for a batch
func (p *PostgresBroker) buildInsertQuery(jobs []*job.Job) (string, []interface{}, error) {
	values := make([][]interface{}, len(jobs))
	for i, j := range jobs {
		row, err := p.serializer.Row(j)
		if err != nil {
			return "", nil, err
		}
		values[i] = []interface{}{
			row.State,
			row.Queue,
			row.Worker,
			goqu.L(castJsonb, string(row.Args)),
			row.MaxAttempts,
			row.ScheduledAt,
			row.InsertedAt,
		}
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(goqu.S(p.options.Prefix).Table(p.options.Table)).
		Cols(colState, colQueue, colWorker, colArgs, colMaxAttempts, colScheduledAt, colInsertedAt).
		Vals(values...).
		Prepared(true)

	query, args, err := insertStmt.ToSQL()
	if err != nil {
		return "", nil, errors.NewBrokerError("build_insert", jobs[0].Queue, err)
	}
	return query, args, nil
}

func (p *PostgresBroker) tableName() string {
	return p.options.Prefix + "." + p.options.Table
}
