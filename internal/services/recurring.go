package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"kudi/internal/core"
)

// Materializer turns due recurring expense templates into queued transactions.
// It works entirely off the optimistic state, so an offline device still
// materializes its subscriptions and the resulting transactions sync later
// like any other mutation.
//
// Users are tracked as they touch the API; a user nobody has seen this
// process lifetime has no cached state to materialize against.
type Materializer struct {
	service *BudgetService

	mu    sync.Mutex
	users map[string]bool
}

func NewMaterializer(service *BudgetService) *Materializer {
	return &Materializer{
		service: service,
		users:   make(map[string]bool),
	}
}

// Track registers a user for periodic materialization.
func (m *Materializer) Track(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = true
}

// ProcessDue materializes every due recurring expense across tracked users
// and returns how many transactions were created.
func (m *Materializer) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	users := make([]string, 0, len(m.users))
	for id := range m.users {
		users = append(users, id)
	}
	m.mu.Unlock()
	sort.Strings(users)

	total := 0
	for _, userID := range users {
		n, err := m.ProcessUser(ctx, userID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring expenses",
				"user_id", userID, "error", err)
			continue
		}
		total += n
	}

	if total > 0 {
		slog.InfoContext(ctx, "Recurring expense materialization complete",
			"created", total, "users", len(users))
	}
	return total, nil
}

// ProcessUser materializes due recurring expenses for a single user. Each due
// template produces two mutations: the transaction itself and a template
// update advancing LastAppliedAt, so a replayed queue never double-spends.
func (m *Materializer) ProcessUser(ctx context.Context, userID string, now time.Time) (int, error) {
	snapshot, err := m.service.Snapshot(userID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, re := range sortedRecurring(snapshot) {
		if re.StartDate.After(now) {
			continue
		}
		checker, err := GetDuenessChecker(re.Cadence)
		if err != nil {
			slog.WarnContext(ctx, "Recurring expense has unknown cadence",
				"recurring_id", re.ID, "cadence", re.Cadence)
			continue
		}
		if !checker.IsDue(re.LastAppliedAt, now, re.StartDate) {
			continue
		}

		tx := core.Transaction{
			UserID:      userID,
			CategoryID:  re.CategoryID,
			Description: re.Description,
			Amount:      re.Amount,
			OccurredAt:  core.Date{Time: now},
		}
		if _, err := m.service.RecordTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from recurring template",
				"recurring_id", re.ID,
				"description", re.Description,
				"error", err)
			continue
		}

		updated := *re
		updated.LastAppliedAt = now
		if _, err := m.service.UpdateRecurringExpense(ctx, updated); err != nil {
			slog.ErrorContext(ctx, "Failed to advance recurring template",
				"recurring_id", re.ID, "error", err)
			continue
		}

		created++
		slog.InfoContext(ctx, "Materialized recurring expense",
			"recurring_id", re.ID,
			"description", re.Description,
			"amount_pesewas", re.Amount.Pesewas,
			"cadence", re.Cadence)
	}

	return created, nil
}

// Run materializes on a fixed interval until the context ends.
func (m *Materializer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := m.ProcessDue(ctx, now.UTC()); err != nil {
				slog.ErrorContext(ctx, "Materialization pass failed", "error", err)
			}
		}
	}
}

func sortedRecurring(snapshot *core.BudgetState) []*core.RecurringExpense {
	out := make([]*core.RecurringExpense, 0, len(snapshot.RecurringExpenses))
	for _, re := range snapshot.RecurringExpenses {
		out = append(out, re)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
