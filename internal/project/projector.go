// Package project applies a mutation's user-visible effect to in-memory
// budget state before remote confirmation. Reducers are pure: they clone the
// incoming state, never touch storage, and are invoked only at enqueue time —
// the sync executor moves bytes to the remote store and never re-derives
// state here.
package project

import (
	"fmt"

	"kudi/internal/core"
	"kudi/internal/mutation"
)

// Apply computes the next state for one mutation. The input state is not
// modified. An unknown payload is a programming error surfaced as an error,
// not a panic.
func Apply(state *core.BudgetState, rec *mutation.Record) (*core.BudgetState, error) {
	next := state.Clone()

	switch p := rec.Payload.(type) {
	case *mutation.ProfileRow:
		next.Profile = &core.Profile{
			ID:          p.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Currency:    p.Currency,
		}
	case *mutation.IncomeSourceRow:
		next.IncomeSources[p.ID] = &core.IncomeSource{
			ID:      p.ID,
			UserID:  p.UserID,
			Name:    p.Name,
			Amount:  core.Money{Pesewas: p.AmountPesewas},
			Cadence: core.Cadence(p.Cadence),
		}
	case *mutation.CycleRow:
		next.Cycles[p.ID] = &core.BudgetCycle{
			ID:             p.ID,
			UserID:         p.UserID,
			StartDate:      core.Date{Time: p.StartDate},
			EndDate:        core.Date{Time: p.EndDate},
			ExpectedIncome: core.Money{Pesewas: p.ExpectedIncomePesewas},
		}
	case *mutation.CategoryRow:
		spent := core.Money{}
		if existing, ok := next.Categories[p.ID]; ok {
			// Upserting a category keeps its derived spent total.
			spent = existing.Spent
		}
		next.Categories[p.ID] = &core.Category{
			ID:      p.ID,
			UserID:  p.UserID,
			CycleID: p.CycleID,
			Name:    p.Name,
			Limit:   core.Money{Pesewas: p.LimitPesewas},
			Spent:   spent,
		}
	case *mutation.TransactionRow:
		next.Transactions[p.ID] = &core.Transaction{
			ID:          p.ID,
			UserID:      p.UserID,
			CategoryID:  p.CategoryID,
			CycleID:     p.CycleID,
			Description: p.Description,
			Amount:      core.Money{Pesewas: p.AmountPesewas},
			OccurredAt:  core.Date{Time: p.OccurredAt},
		}
		if cat, ok := next.Categories[p.CategoryID]; ok {
			cat.Spent.Pesewas += p.AmountPesewas
		}
	case *mutation.CategoryDelete:
		delete(next.Categories, p.ID)
		for id, tx := range next.Transactions {
			if tx.CategoryID == p.ID {
				delete(next.Transactions, id)
			}
		}
	case *mutation.IncomeSourceDelete:
		delete(next.IncomeSources, p.ID)
	case *mutation.BudgetReset:
		for id, tx := range next.Transactions {
			if tx.CycleID == p.CycleID {
				delete(next.Transactions, id)
			}
		}
		for _, cat := range next.Categories {
			if cat.CycleID == p.CycleID {
				cat.Spent = core.Money{}
			}
		}
	case *mutation.ReallocationRow:
		from, okFrom := next.Categories[p.FromCategoryID]
		to, okTo := next.Categories[p.ToCategoryID]
		if okFrom && okTo {
			from.Limit.Pesewas -= p.AmountPesewas
			to.Limit.Pesewas += p.AmountPesewas
		}
	case *mutation.DebtRow:
		next.Debts[p.ID] = &core.Debt{
			ID:              p.ID,
			UserID:          p.UserID,
			Name:            p.Name,
			Principal:       core.Money{Pesewas: p.PrincipalPesewas},
			Balance:         core.Money{Pesewas: p.BalancePesewas},
			InterestRateBps: p.InterestRateBps,
			DueDate:         core.Date{Time: p.DueDate},
		}
	case *mutation.DebtDelete:
		delete(next.Debts, p.ID)
		for id, pay := range next.DebtPayments {
			if pay.DebtID == p.ID {
				delete(next.DebtPayments, id)
			}
		}
	case *mutation.DebtPaymentRow:
		if _, seen := next.DebtPayments[p.ID]; !seen {
			if debt, ok := next.Debts[p.DebtID]; ok {
				debt.Balance.Pesewas -= p.AmountPesewas
				if debt.Balance.Pesewas < 0 {
					debt.Balance.Pesewas = 0
				}
			}
		}
		next.DebtPayments[p.ID] = &core.DebtPayment{
			ID:     p.ID,
			UserID: p.UserID,
			DebtID: p.DebtID,
			Amount: core.Money{Pesewas: p.AmountPesewas},
			PaidAt: core.Date{Time: p.PaidAt},
		}
	case *mutation.RecurringExpenseRow:
		next.RecurringExpenses[p.ID] = &core.RecurringExpense{
			ID:            p.ID,
			UserID:        p.UserID,
			CategoryID:    p.CategoryID,
			Description:   p.Description,
			Amount:        core.Money{Pesewas: p.AmountPesewas},
			Cadence:       core.Cadence(p.Cadence),
			StartDate:     core.Date{Time: p.StartDate},
			LastAppliedAt: p.LastAppliedAt,
		}
	case *mutation.RecurringExpenseDelete:
		delete(next.RecurringExpenses, p.ID)
	default:
		return nil, fmt.Errorf("no reducer for payload %T (kind %s)", rec.Payload, rec.Kind)
	}

	return next, nil
}

// Replay folds a queue snapshot over a base state, oldest first. Used to
// rebuild the disposable in-memory cache after a restart or clear.
func Replay(base *core.BudgetState, recs []mutation.Record) (*core.BudgetState, error) {
	state := base
	if state == nil {
		state = core.NewBudgetState()
	}
	for i := range recs {
		next, err := Apply(state, &recs[i])
		if err != nil {
			return nil, fmt.Errorf("replay mutation %s: %w", recs[i].ID, err)
		}
		state = next
	}
	return state, nil
}
