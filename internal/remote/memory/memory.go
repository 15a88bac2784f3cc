// Package memory provides an in-memory remote store used as the development
// default and in tests. It counts Apply calls so tests can assert that
// local-only operations never touch the remote, and can be switched offline
// to simulate a connectivity outage.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kudi/internal/mutation"
	"kudi/internal/remote"
)

type Store struct {
	mu      sync.Mutex
	offline bool
	calls   int

	profiles      map[string]*mutation.ProfileRow
	incomeSources map[string]*mutation.IncomeSourceRow
	cycles        map[string]*mutation.CycleRow
	categories    map[string]*mutation.CategoryRow
	transactions  map[string]*mutation.TransactionRow
	resets        map[string]*mutation.BudgetReset
	reallocations map[string]*mutation.ReallocationRow
	debts         map[string]*mutation.DebtRow
	debtPayments  map[string]*mutation.DebtPaymentRow
	recurring     map[string]*mutation.RecurringExpenseRow
}

func New() *Store {
	return &Store{
		profiles:      make(map[string]*mutation.ProfileRow),
		incomeSources: make(map[string]*mutation.IncomeSourceRow),
		cycles:        make(map[string]*mutation.CycleRow),
		categories:    make(map[string]*mutation.CategoryRow),
		transactions:  make(map[string]*mutation.TransactionRow),
		resets:        make(map[string]*mutation.BudgetReset),
		reallocations: make(map[string]*mutation.ReallocationRow),
		debts:         make(map[string]*mutation.DebtRow),
		debtPayments:  make(map[string]*mutation.DebtPaymentRow),
		recurring:     make(map[string]*mutation.RecurringExpenseRow),
	}
}

var _ remote.Store = (*Store)(nil)

// SetOffline toggles outage simulation; while offline every Apply fails with
// remote.ErrUnavailable without being recorded as a delivered call.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Calls returns how many Apply calls reached the store (outage attempts
// included).
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) Apply(_ context.Context, rec *mutation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.offline {
		return fmt.Errorf("apply %s: %w", rec.Kind, remote.ErrUnavailable)
	}

	switch p := rec.Payload.(type) {
	case *mutation.ProfileRow:
		s.profiles[p.ID] = p
	case *mutation.IncomeSourceRow:
		s.incomeSources[p.ID] = p
	case *mutation.CycleRow:
		s.cycles[p.ID] = p
	case *mutation.CategoryRow:
		s.categories[p.ID] = p
	case *mutation.TransactionRow:
		s.transactions[p.ID] = p
	case *mutation.CategoryDelete:
		delete(s.categories, p.ID)
	case *mutation.IncomeSourceDelete:
		delete(s.incomeSources, p.ID)
	case *mutation.BudgetReset:
		s.resets[p.ID] = p
		for id, tx := range s.transactions {
			if tx.UserID == p.UserID && tx.CycleID == p.CycleID {
				delete(s.transactions, id)
			}
		}
	case *mutation.ReallocationRow:
		s.reallocations[p.ID] = p
	case *mutation.DebtRow:
		s.debts[p.ID] = p
	case *mutation.DebtDelete:
		delete(s.debts, p.ID)
	case *mutation.DebtPaymentRow:
		s.debtPayments[p.ID] = p
	case *mutation.RecurringExpenseRow:
		s.recurring[p.ID] = p
	case *mutation.RecurringExpenseDelete:
		delete(s.recurring, p.ID)
	default:
		return fmt.Errorf("unsupported payload %T for kind %s", rec.Payload, rec.Kind)
	}

	return nil
}

// Category returns the stored category row, if any.
func (s *Store) Category(id string) (*mutation.CategoryRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.categories[id]
	return row, ok
}

// Transaction returns the stored transaction row, if any.
func (s *Store) Transaction(id string) (*mutation.TransactionRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.transactions[id]
	return row, ok
}

// Debt returns the stored debt row, if any.
func (s *Store) Debt(id string) (*mutation.DebtRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.debts[id]
	return row, ok
}

// TransactionCount returns the number of stored transaction rows.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}
