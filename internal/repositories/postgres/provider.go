package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/spokeworks/api/internal/repositories"
)

type txContextKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to Postgres and verifies the connection before returning it.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Registry bundles the Postgres repositories over a shared connection pool.
type Registry struct {
	db     *sql.DB
	orders *OrderRepository
	users  *UserRepository
	bikes  *BikeRepository
	health *HealthRepository
}

// NewRegistry wires repositories over the supplied database handle.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{
		db:     db,
		orders: &OrderRepository{db: db},
		users:  &UserRepository{db: db},
		bikes:  &BikeRepository{db: db},
		health: &HealthRepository{db: db},
	}
}

// Close releases the underlying connection pool.
func (r *Registry) Close(context.Context) error {
	return r.db.Close()
}

// Orders returns the service order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Bikes returns the bike repository.
func (r *Registry) Bikes() repositories.BikeRepository { return r.bikes }

// Health returns the health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside a single database transaction. Repository calls
// made with the derived context share the transaction. Nested calls reuse the
// ambient transaction rather than opening a new one.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return WrapError("postgres: begin tx", err)
	}

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return WrapError("postgres: commit tx", err)
	}
	return nil
}

func runner(ctx context.Context, db *sql.DB) querier {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return ok
}
