package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/reservation-engine/internal/store"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the MySQL unit of work.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

var _ store.UnitOfWork = (*Store)(nil)

// InTx begins a transaction, runs fn and commits.  Any error from fn, or
// a panic, rolls the transaction back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, repos{q: tx, forUpdate: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// View runs every call on the pool in autocommit mode.
func (s *Store) View() store.Tx { return repos{q: s.db} }

type repos struct {
	q         dbtx
	forUpdate bool
}

func (r repos) Slots() store.SlotStore       { return &SlotRepo{q: r.q} }
func (r repos) Holds() store.HoldStore       { return &HoldRepo{q: r.q} }
func (r repos) Bookings() store.BookingStore { return &BookingRepo{q: r.q, lock: r.forUpdate} }
