package http

import (
	"net/http"
	"sort"
	"time"

	"kudi/internal/core"
)

// queuedMutationView is the inspection surface's row: enough to debug a stuck
// queue without exposing raw payload bytes.
type queuedMutationView struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	EntityID      string     `json:"entity_id"`
	CreatedAt     time.Time  `json:"created_at"`
	RetryCount    int        `json:"retry_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	recs, err := s.queue.List(r.Context(), r.PathValue("user"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	views := make([]queuedMutationView, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		views = append(views, queuedMutationView{
			ID:            rec.ID,
			Kind:          string(rec.Kind),
			EntityID:      rec.Payload.PrimaryKey(),
			CreatedAt:     rec.CreatedAt,
			RetryCount:    rec.RetryCount,
			LastAttemptAt: rec.LastAttemptAt,
			LastError:     rec.LastError,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":   len(views),
		"mutations": views,
	})
}

func (s *Server) handleFlushQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Flush(r.Context(), r.PathValue("user")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	depth, err := s.queue.Depth(r.Context(), r.PathValue("user"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": depth})
}

func (s *Server) handleRetryMutation(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if err := s.executor.RetryOne(r.Context(), userID, r.PathValue("id")); err != nil {
		// The mutation stays queued with updated retry metadata.
		writeJSON(w, http.StatusConflict, map[string]string{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if err := s.queue.Clear(r.Context(), userID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	// Cached state was projected from the dropped mutations; rebuild it.
	s.service.ResetState(userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type stateResponse struct {
	Profile           *core.Profile            `json:"profile,omitempty"`
	IncomeSources     []*core.IncomeSource     `json:"income_sources"`
	Cycles            []*core.BudgetCycle      `json:"cycles"`
	Categories        []*core.Category         `json:"categories"`
	Transactions      []*core.Transaction      `json:"transactions"`
	Debts             []*core.Debt             `json:"debts"`
	DebtPayments      []*core.DebtPayment      `json:"debt_payments"`
	RecurringExpenses []*core.RecurringExpense `json:"recurring_expenses"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.Snapshot(r.PathValue("user"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Profile:           snapshot.Profile,
		IncomeSources:     sortedValues(snapshot.IncomeSources, func(v *core.IncomeSource) string { return v.ID }),
		Cycles:            sortedValues(snapshot.Cycles, func(v *core.BudgetCycle) string { return v.ID }),
		Categories:        sortedValues(snapshot.Categories, func(v *core.Category) string { return v.ID }),
		Transactions:      sortedValues(snapshot.Transactions, func(v *core.Transaction) string { return v.ID }),
		Debts:             sortedValues(snapshot.Debts, func(v *core.Debt) string { return v.ID }),
		DebtPayments:      sortedValues(snapshot.DebtPayments, func(v *core.DebtPayment) string { return v.ID }),
		RecurringExpenses: sortedValues(snapshot.RecurringExpenses, func(v *core.RecurringExpense) string { return v.ID }),
	})
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}
