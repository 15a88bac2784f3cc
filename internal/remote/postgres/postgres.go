// Package postgres is the Postgres-backed remote store adapter. Every
// mutation kind maps to one keyed statement; upserts use ON CONFLICT on the
// payload's primary key so replaying a confirmed mutation is a no-op.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kudi/internal/mutation"
	"kudi/internal/remote"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ remote.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// NewStore opens the remote datastore and ensures the collection tables
// exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres remote requires a DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '', currency TEXT NOT NULL DEFAULT 'GHS')`,
		`CREATE TABLE IF NOT EXISTS income_sources (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, name TEXT NOT NULL,
			amount_pesewas BIGINT NOT NULL, cadence TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS cycles (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL, end_date TIMESTAMPTZ NOT NULL,
			expected_income_pesewas BIGINT NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, cycle_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL, limit_pesewas BIGINT NOT NULL DEFAULT 0)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, category_id TEXT NOT NULL,
			cycle_id TEXT NOT NULL DEFAULT '', description TEXT NOT NULL,
			amount_pesewas BIGINT NOT NULL, occurred_at TIMESTAMPTZ NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS budget_resets (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, cycle_id TEXT NOT NULL,
			reset_at TIMESTAMPTZ NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS reallocations (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, cycle_id TEXT NOT NULL DEFAULT '',
			from_category_id TEXT NOT NULL, to_category_id TEXT NOT NULL,
			amount_pesewas BIGINT NOT NULL, moved_at TIMESTAMPTZ NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS debts (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, name TEXT NOT NULL,
			principal_pesewas BIGINT NOT NULL, balance_pesewas BIGINT NOT NULL,
			interest_rate_bps BIGINT NOT NULL DEFAULT 0, due_date TIMESTAMPTZ)`,
		`CREATE TABLE IF NOT EXISTS debt_payments (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, debt_id TEXT NOT NULL,
			amount_pesewas BIGINT NOT NULL, paid_at TIMESTAMPTZ NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS recurring_expenses (
			id TEXT PRIMARY KEY, user_id TEXT NOT NULL, category_id TEXT NOT NULL,
			description TEXT NOT NULL, amount_pesewas BIGINT NOT NULL,
			cadence TEXT NOT NULL, start_date TIMESTAMPTZ NOT NULL,
			last_applied_at TIMESTAMPTZ)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure remote schema: %w", err)
		}
	}
	return nil
}

// Apply executes the keyed statement for the record's kind. A server-side
// rejection surfaces as-is (per-record failure); a connection-level error is
// wrapped as remote.ErrUnavailable so the executor stops the pass.
func (s *Store) Apply(ctx context.Context, rec *mutation.Record) error {
	var err error
	switch p := rec.Payload.(type) {
	case *mutation.ProfileRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO profiles (id, user_id, display_name, currency)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET display_name = $3, currency = $4`,
			p.ID, p.UserID, p.DisplayName, p.Currency)
	case *mutation.IncomeSourceRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO income_sources (id, user_id, name, amount_pesewas, cadence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = $3, amount_pesewas = $4, cadence = $5`,
			p.ID, p.UserID, p.Name, p.AmountPesewas, p.Cadence)
	case *mutation.CycleRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO cycles (id, user_id, start_date, end_date, expected_income_pesewas)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET start_date = $3, end_date = $4, expected_income_pesewas = $5`,
			p.ID, p.UserID, p.StartDate, p.EndDate, p.ExpectedIncomePesewas)
	case *mutation.CategoryRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO categories (id, user_id, cycle_id, name, limit_pesewas)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET cycle_id = $3, name = $4, limit_pesewas = $5`,
			p.ID, p.UserID, p.CycleID, p.Name, p.LimitPesewas)
	case *mutation.TransactionRow:
		// Insert-once: a replayed transaction must not duplicate.
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO transactions (id, user_id, category_id, cycle_id, description, amount_pesewas, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.UserID, p.CategoryID, p.CycleID, p.Description, p.AmountPesewas, p.OccurredAt)
	case *mutation.CategoryDelete:
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM categories WHERE id = $1 AND user_id = $2`, p.ID, p.UserID)
	case *mutation.IncomeSourceDelete:
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM income_sources WHERE id = $1 AND user_id = $2`, p.ID, p.UserID)
	case *mutation.BudgetReset:
		err = s.applyReset(ctx, p)
	case *mutation.ReallocationRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO reallocations (id, user_id, cycle_id, from_category_id, to_category_id, amount_pesewas, moved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.UserID, p.CycleID, p.FromCategoryID, p.ToCategoryID, p.AmountPesewas, p.MovedAt)
	case *mutation.DebtRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO debts (id, user_id, name, principal_pesewas, balance_pesewas, interest_rate_bps, due_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET name = $3, principal_pesewas = $4, balance_pesewas = $5, interest_rate_bps = $6, due_date = $7`,
			p.ID, p.UserID, p.Name, p.PrincipalPesewas, p.BalancePesewas, p.InterestRateBps, p.DueDate)
	case *mutation.DebtDelete:
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM debts WHERE id = $1 AND user_id = $2`, p.ID, p.UserID)
	case *mutation.DebtPaymentRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO debt_payments (id, user_id, debt_id, amount_pesewas, paid_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.UserID, p.DebtID, p.AmountPesewas, p.PaidAt)
	case *mutation.RecurringExpenseRow:
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO recurring_expenses (id, user_id, category_id, description, amount_pesewas, cadence, start_date, last_applied_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET category_id = $3, description = $4, amount_pesewas = $5, cadence = $6, start_date = $7, last_applied_at = $8`,
			p.ID, p.UserID, p.CategoryID, p.Description, p.AmountPesewas, p.Cadence, p.StartDate, p.LastAppliedAt)
	case *mutation.RecurringExpenseDelete:
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM recurring_expenses WHERE id = $1 AND user_id = $2`, p.ID, p.UserID)
	default:
		return fmt.Errorf("unsupported payload %T for kind %s", rec.Payload, rec.Kind)
	}

	if err != nil {
		return classify(fmt.Errorf("apply %s: %w", rec.Kind, err))
	}
	return nil
}

// applyReset removes the cycle's transactions and records the reset row in
// one transaction; both statements are idempotent.
func (s *Store) applyReset(ctx context.Context, p *mutation.BudgetReset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = $1 AND cycle_id = $2`, p.UserID, p.CycleID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO budget_resets (id, user_id, cycle_id, reset_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.UserID, p.CycleID, p.ResetAt); err != nil {
		return err
	}
	return tx.Commit()
}

// classify separates server-side rejections from transport outages. A
// *pgconn.PgError means the server processed and refused the statement;
// everything else (dial failure, timeout, dropped connection) is treated as
// the remote being unreachable.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
}
