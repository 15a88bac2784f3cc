package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kudi/internal/amqp"
	"kudi/internal/core"
	"kudi/internal/mutation"
	"kudi/internal/queue"
	"kudi/internal/state"
	"kudi/internal/syncer"

	"github.com/google/uuid"
)

var (
	ErrUnknownCategory   = errors.New("category does not exist")
	ErrUnknownCycle      = errors.New("budget cycle does not exist")
	ErrUnknownDebt       = errors.New("debt does not exist")
	ErrSameCategory      = errors.New("cannot reallocate a category to itself")
	ErrInsufficientLimit = errors.New("source category limit too small for reallocation")
)

// TriggerPublisher notifies the sync worker that a user's queue has pending
// work. Nil-safe at the service level so the API runs without a broker.
type TriggerPublisher interface {
	PublishSyncTrigger(ctx context.Context, userID, reason string) error
}

// BudgetService is the write surface of the client. Every domain hook follows
// the same path: validate against the optimistic state, durably enqueue the
// mutation, project it onto in-memory state, then trigger a flush. The hook
// returns as soon as the enqueue is durable; it never waits on the network.
//
// With a publisher configured the trigger is a broker message and the sync
// worker is the only process draining the queue; two drainers over the same
// store could replay a stale upsert over a newer one. Without a broker the
// service flushes in-process.
type BudgetService struct {
	queue     *queue.Store
	states    *state.Manager
	executor  *syncer.Executor
	publisher TriggerPublisher
}

func NewBudgetService(queueStore *queue.Store, states *state.Manager, executor *syncer.Executor, publisher TriggerPublisher) *BudgetService {
	return &BudgetService{
		queue:     queueStore,
		states:    states,
		executor:  executor,
		publisher: publisher,
	}
}

// Snapshot returns the user's current optimistic budget state.
func (s *BudgetService) Snapshot(userID string) (*core.BudgetState, error) {
	return s.states.Snapshot(userID)
}

// ResetState discards the user's cached projection so the next read rebuilds
// it from the durable queue. Called after a queue clear, whose dropped
// mutations would otherwise linger in the projection.
func (s *BudgetService) ResetState(userID string) {
	s.states.Reset(userID)
}

// Flush drains the user's queue on demand, for the manual retry surface. In
// broker mode it hands the work to the sync worker instead of draining
// in-process, keeping the drainer single.
func (s *BudgetService) Flush(ctx context.Context, userID string) error {
	if s.publisher != nil {
		return s.publisher.PublishSyncTrigger(ctx, userID, amqp.ReasonManual)
	}
	err := s.executor.FlushQueue(ctx, userID)
	if errors.Is(err, syncer.ErrFlushInFlight) {
		return nil
	}
	return err
}

// UpsertProfile sets the user's profile.
func (s *BudgetService) UpsertProfile(ctx context.Context, p core.Profile) (*mutation.Record, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.DisplayName == "" {
		return nil, core.ErrEmptyName
	}
	return s.submit(ctx, mutation.KindUpsertProfile, p.UserID, &mutation.ProfileRow{
		ID:          p.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Currency:    p.Currency,
	})
}

// UpsertIncomeSource creates or updates an income source.
func (s *BudgetService) UpsertIncomeSource(ctx context.Context, src core.IncomeSource) (*mutation.Record, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return s.submit(ctx, mutation.KindUpsertIncomeSource, src.UserID, &mutation.IncomeSourceRow{
		ID:            src.ID,
		UserID:        src.UserID,
		Name:          src.Name,
		AmountPesewas: src.Amount.Pesewas,
		Cadence:       string(src.Cadence),
	})
}

// UpsertCycle creates or updates a budget cycle.
func (s *BudgetService) UpsertCycle(ctx context.Context, cycle core.BudgetCycle) (*mutation.Record, error) {
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	if err := cycle.StartDate.Validate(); err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	if err := cycle.EndDate.Validate(); err != nil {
		return nil, fmt.Errorf("invalid end date: %w", err)
	}
	if cycle.EndDate.Before(cycle.StartDate.Time) {
		return nil, errors.New("cycle end date before start date")
	}
	return s.submit(ctx, mutation.KindUpsertCycle, cycle.UserID, &mutation.CycleRow{
		ID:                    cycle.ID,
		UserID:                cycle.UserID,
		StartDate:             cycle.StartDate.Time,
		EndDate:               cycle.EndDate.Time,
		ExpectedIncomePesewas: cycle.ExpectedIncome.Pesewas,
	})
}

// UpsertCategory creates or updates a spending category within a cycle.
func (s *BudgetService) UpsertCategory(ctx context.Context, cat core.Category) (*mutation.Record, error) {
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	snapshot, err := s.states.Snapshot(cat.UserID)
	if err != nil {
		return nil, err
	}
	if cat.CycleID != "" {
		if _, ok := snapshot.Cycles[cat.CycleID]; !ok {
			return nil, ErrUnknownCycle
		}
	}
	return s.submit(ctx, mutation.KindUpsertCategory, cat.UserID, &mutation.CategoryRow{
		ID:           cat.ID,
		UserID:       cat.UserID,
		CycleID:      cat.CycleID,
		Name:         cat.Name,
		LimitPesewas: cat.Limit.Pesewas,
	})
}

// RecordTransaction records a spend against a category. The category must
// exist in the optimistic state, which includes categories still waiting in
// the queue.
func (s *BudgetService) RecordTransaction(ctx context.Context, tx core.Transaction) (*mutation.Record, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	snapshot, err := s.states.Snapshot(tx.UserID)
	if err != nil {
		return nil, err
	}
	cat, ok := snapshot.Categories[tx.CategoryID]
	if !ok {
		return nil, ErrUnknownCategory
	}
	if tx.CycleID == "" {
		tx.CycleID = cat.CycleID
	}
	return s.submit(ctx, mutation.KindInsertTransaction, tx.UserID, &mutation.TransactionRow{
		ID:            tx.ID,
		UserID:        tx.UserID,
		CategoryID:    tx.CategoryID,
		CycleID:       tx.CycleID,
		Description:   tx.Description,
		AmountPesewas: tx.Amount.Pesewas,
		OccurredAt:    tx.OccurredAt.Time,
	})
}

// DeleteCategory removes a category and, in the projection, its transactions.
func (s *BudgetService) DeleteCategory(ctx context.Context, userID, id string) (*mutation.Record, error) {
	return s.submit(ctx, mutation.KindDeleteCategory, userID, &mutation.CategoryDelete{ID: id, UserID: userID})
}

// DeleteIncomeSource removes an income source.
func (s *BudgetService) DeleteIncomeSource(ctx context.Context, userID, id string) (*mutation.Record, error) {
	return s.submit(ctx, mutation.KindDeleteIncomeSource, userID, &mutation.IncomeSourceDelete{ID: id, UserID: userID})
}

// ResetBudget wipes a cycle's transactions and zeroes every category's spent
// total. The reset is itself a queued mutation so an offline reset reaches
// the remote store exactly once.
func (s *BudgetService) ResetBudget(ctx context.Context, userID, cycleID string) (*mutation.Record, error) {
	snapshot, err := s.states.Snapshot(userID)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Cycles[cycleID]; !ok {
		return nil, ErrUnknownCycle
	}
	return s.submit(ctx, mutation.KindResetBudget, userID, &mutation.BudgetReset{
		ID:      uuid.NewString(),
		UserID:  userID,
		CycleID: cycleID,
		ResetAt: time.Now().UTC(),
	})
}

// Reallocate moves budget limit from one category to another within a cycle.
// Validated against the optimistic state so an offline user cannot move more
// than the source category holds.
func (s *BudgetService) Reallocate(ctx context.Context, userID, cycleID, fromID, toID string, amount core.Money) (*mutation.Record, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, ErrSameCategory
	}
	snapshot, err := s.states.Snapshot(userID)
	if err != nil {
		return nil, err
	}
	from, ok := snapshot.Categories[fromID]
	if !ok {
		return nil, ErrUnknownCategory
	}
	if _, ok := snapshot.Categories[toID]; !ok {
		return nil, ErrUnknownCategory
	}
	if from.Limit.Pesewas < amount.Pesewas {
		return nil, ErrInsufficientLimit
	}
	return s.submit(ctx, mutation.KindApplyReallocation, userID, &mutation.ReallocationRow{
		ID:             uuid.NewString(),
		UserID:         userID,
		CycleID:        cycleID,
		FromCategoryID: fromID,
		ToCategoryID:   toID,
		AmountPesewas:  amount.Pesewas,
		MovedAt:        time.Now().UTC(),
	})
}

// CreateDebt records a new debt.
func (s *BudgetService) CreateDebt(ctx context.Context, debt core.Debt) (*mutation.Record, error) {
	if debt.ID == "" {
		debt.ID = uuid.NewString()
	}
	if debt.Balance.Pesewas == 0 {
		debt.Balance = debt.Principal
	}
	if err := debt.Validate(); err != nil {
		return nil, err
	}
	return s.submit(ctx, mutation.KindInsertDebt, debt.UserID, debtRow(debt))
}

// UpdateDebt replaces an existing debt's fields.
func (s *BudgetService) UpdateDebt(ctx context.Context, debt core.Debt) (*mutation.Record, error) {
	if err := debt.Validate(); err != nil {
		return nil, err
	}
	snapshot, err := s.states.Snapshot(debt.UserID)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Debts[debt.ID]; !ok {
		return nil, ErrUnknownDebt
	}
	return s.submit(ctx, mutation.KindUpdateDebt, debt.UserID, debtRow(debt))
}

// DeleteDebt removes a debt and, in the projection, its payments.
func (s *BudgetService) DeleteDebt(ctx context.Context, userID, id string) (*mutation.Record, error) {
	return s.submit(ctx, mutation.KindDeleteDebt, userID, &mutation.DebtDelete{ID: id, UserID: userID})
}

// RecordDebtPayment records a payment against a debt, shrinking its balance
// in the optimistic projection.
func (s *BudgetService) RecordDebtPayment(ctx context.Context, payment core.DebtPayment) (*mutation.Record, error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if err := payment.Amount.Validate(); err != nil {
		return nil, err
	}
	snapshot, err := s.states.Snapshot(payment.UserID)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Debts[payment.DebtID]; !ok {
		return nil, ErrUnknownDebt
	}
	if payment.PaidAt.IsEmpty() {
		payment.PaidAt = core.Date{Time: time.Now().UTC()}
	}
	return s.submit(ctx, mutation.KindRecordDebtPayment, payment.UserID, &mutation.DebtPaymentRow{
		ID:            payment.ID,
		UserID:        payment.UserID,
		DebtID:        payment.DebtID,
		AmountPesewas: payment.Amount.Pesewas,
		PaidAt:        payment.PaidAt.Time,
	})
}

// CreateRecurringExpense records a new recurring expense template.
func (s *BudgetService) CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (*mutation.Record, error) {
	if re.ID == "" {
		re.ID = uuid.NewString()
	}
	if err := re.Validate(); err != nil {
		return nil, err
	}
	snapshot, err := s.states.Snapshot(re.UserID)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot.Categories[re.CategoryID]; !ok {
		return nil, ErrUnknownCategory
	}
	return s.submit(ctx, mutation.KindInsertRecurringExpense, re.UserID, recurringRow(re))
}

// UpdateRecurringExpense replaces an existing recurring expense template.
func (s *BudgetService) UpdateRecurringExpense(ctx context.Context, re core.RecurringExpense) (*mutation.Record, error) {
	if err := re.Validate(); err != nil {
		return nil, err
	}
	return s.submit(ctx, mutation.KindUpdateRecurringExpense, re.UserID, recurringRow(re))
}

// DeleteRecurringExpense removes a recurring expense template.
func (s *BudgetService) DeleteRecurringExpense(ctx context.Context, userID, id string) (*mutation.Record, error) {
	return s.submit(ctx, mutation.KindDeleteRecurringExpense, userID, &mutation.RecurringExpenseDelete{ID: id, UserID: userID})
}

// submit is the single write path behind every hook. The enqueue is the
// durability point: once it succeeds the hook reports success even if the
// projection or the background flush later fails. A failed projection resets
// the cached state, which rebuilds from the queue on next read.
func (s *BudgetService) submit(ctx context.Context, kind mutation.Kind, userID string, payload mutation.Payload) (*mutation.Record, error) {
	rec, err := mutation.Build(kind, userID, payload)
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, rec); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}

	if err := s.states.Apply(rec); err != nil {
		slog.WarnContext(ctx, "Projection failed after durable enqueue, resetting state",
			"mutation_id", rec.ID, "user_id", userID, "error", err)
		s.states.Reset(userID)
	}

	s.triggerFlush(userID, amqp.ReasonMutationEnqueued)
	return rec, nil
}

// triggerFlush fires a background flush trigger. Fire and forget: the queue
// is durable, so a failed or coalesced trigger costs nothing. In broker mode
// only the message is sent; the sync worker owns the actual drain.
func (s *BudgetService) triggerFlush(userID, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if s.publisher != nil {
			if err := s.publisher.PublishSyncTrigger(ctx, userID, reason); err != nil {
				slog.WarnContext(ctx, "Failed to publish sync trigger",
					"user_id", userID, "error", err)
			}
			return
		}

		err := s.executor.FlushQueue(ctx, userID)
		if err != nil && !errors.Is(err, syncer.ErrFlushInFlight) {
			slog.WarnContext(ctx, "Background flush failed",
				"user_id", userID, "error", err)
		}
	}()
}

func debtRow(debt core.Debt) *mutation.DebtRow {
	return &mutation.DebtRow{
		ID:               debt.ID,
		UserID:           debt.UserID,
		Name:             debt.Name,
		PrincipalPesewas: debt.Principal.Pesewas,
		BalancePesewas:   debt.Balance.Pesewas,
		InterestRateBps:  debt.InterestRateBps,
		DueDate:          debt.DueDate.Time,
	}
}

func recurringRow(re core.RecurringExpense) *mutation.RecurringExpenseRow {
	return &mutation.RecurringExpenseRow{
		ID:            re.ID,
		UserID:        re.UserID,
		CategoryID:    re.CategoryID,
		Description:   re.Description,
		AmountPesewas: re.Amount.Pesewas,
		Cadence:       string(re.Cadence),
		StartDate:     re.StartDate.Time,
		LastAppliedAt: re.LastAppliedAt,
	}
}
