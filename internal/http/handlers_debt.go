package http

import (
	"net/http"

	"kudi/internal/core"
)

type debtRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Principal       string `json:"principal"`
	Balance         string `json:"balance"`
	InterestRateBps int64  `json:"interest_rate_bps"`
	DueDate         string `json:"due_date"`
}

func (s *Server) debtFromRequest(r *http.Request, req debtRequest) (core.Debt, error) {
	principal, err := parseAmount(req.Principal)
	if err != nil {
		return core.Debt{}, err
	}
	debt := core.Debt{
		ID:              req.ID,
		UserID:          r.PathValue("user"),
		Name:            sanitizeInput(req.Name),
		Principal:       principal,
		InterestRateBps: req.InterestRateBps,
	}
	if req.Balance != "" {
		balance, err := parseAmount(req.Balance)
		if err != nil {
			return core.Debt{}, err
		}
		debt.Balance = balance
	}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			return core.Debt{}, err
		}
		debt.DueDate = due
	}
	return debt, nil
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	debt, err := s.debtFromRequest(r, req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rec, err := s.service.CreateDebt(r.Context(), debt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

func (s *Server) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ID = r.PathValue("id")
	debt, err := s.debtFromRequest(r, req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rec, err := s.service.UpdateDebt(r.Context(), debt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.DeleteDebt(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

type debtPaymentRequest struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
	PaidAt string `json:"paid_at"`
}

func (s *Server) handleRecordDebtPayment(w http.ResponseWriter, r *http.Request) {
	var req debtPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	payment := core.DebtPayment{
		ID:     req.ID,
		UserID: r.PathValue("user"),
		DebtID: r.PathValue("id"),
		Amount: amount,
	}
	if req.PaidAt != "" {
		paidAt, err := parseDate(req.PaidAt)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid paid_at")
			return
		}
		payment.PaidAt = paidAt
	}
	rec, err := s.service.RecordDebtPayment(r.Context(), payment)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

type recurringExpenseRequest struct {
	ID          string `json:"id"`
	CategoryID  string `json:"category_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Cadence     string `json:"cadence"`
	StartDate   string `json:"start_date"`
}

func (s *Server) recurringFromRequest(r *http.Request, req recurringExpenseRequest) (core.RecurringExpense, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	return core.RecurringExpense{
		ID:          req.ID,
		UserID:      r.PathValue("user"),
		CategoryID:  req.CategoryID,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Cadence:     core.Cadence(req.Cadence),
		StartDate:   start,
	}, nil
}

func (s *Server) handleCreateRecurringExpense(w http.ResponseWriter, r *http.Request) {
	var req recurringExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	re, err := s.recurringFromRequest(r, req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rec, err := s.service.CreateRecurringExpense(r.Context(), re)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

func (s *Server) handleUpdateRecurringExpense(w http.ResponseWriter, r *http.Request) {
	var req recurringExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ID = r.PathValue("id")
	re, err := s.recurringFromRequest(r, req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	// Preserve the materializer's bookkeeping across template edits.
	if snapshot, err := s.service.Snapshot(re.UserID); err == nil {
		if existing, ok := snapshot.RecurringExpenses[re.ID]; ok {
			re.LastAppliedAt = existing.LastAppliedAt
		}
	}
	rec, err := s.service.UpdateRecurringExpense(r.Context(), re)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

func (s *Server) handleDeleteRecurringExpense(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.DeleteRecurringExpense(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}
