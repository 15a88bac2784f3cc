package http

import (
	"net/http"

	"kudi/internal/core"
	"kudi/internal/mutation"
)

// mutationResponse is returned by every write endpoint. The 202 status is
// honest: the mutation is durably queued and projected, not yet remotely
// confirmed.
type mutationResponse struct {
	MutationID string `json:"mutation_id"`
	Kind       string `json:"kind"`
	EntityID   string `json:"entity_id"`
}

func writeAccepted(w http.ResponseWriter, rec *mutation.Record) {
	writeJSON(w, http.StatusAccepted, mutationResponse{
		MutationID: rec.ID,
		Kind:       string(rec.Kind),
		EntityID:   rec.Payload.PrimaryKey(),
	})
}

type profileRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Currency    string `json:"currency"`
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "GHS"
	}
	rec, err := s.service.UpsertProfile(r.Context(), core.Profile{
		ID:          req.ID,
		UserID:      r.PathValue("user"),
		DisplayName: sanitizeInput(req.DisplayName),
		Currency:    currency,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

type incomeSourceRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Cadence string `json:"cadence"`
}

func (s *Server) handleUpsertIncomeSource(w http.ResponseWriter, r *http.Request) {
	var req incomeSourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	rec, err := s.service.UpsertIncomeSource(r.Context(), core.IncomeSource{
		ID:      req.ID,
		UserID:  r.PathValue("user"),
		Name:    sanitizeInput(req.Name),
		Amount:  amount,
		Cadence: core.Cadence(req.Cadence),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

func (s *Server) handleDeleteIncomeSource(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.DeleteIncomeSource(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

type cycleRequest struct {
	ID             string `json:"id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	ExpectedIncome string `json:"expected_income"`
}

func (s *Server) handleUpsertCycle(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid start_date")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid end_date")
		return
	}
	expected, err := parseAmount(req.ExpectedIncome)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid expected_income")
		return
	}
	rec, err := s.service.UpsertCycle(r.Context(), core.BudgetCycle{
		ID:             req.ID,
		UserID:         r.PathValue("user"),
		StartDate:      start,
		EndDate:        end,
		ExpectedIncome: expected,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

func (s *Server) handleResetBudget(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.ResetBudget(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

type categoryRequest struct {
	ID      string `json:"id"`
	CycleID string `json:"cycle_id"`
	Name    string `json:"name"`
	Limit   string `json:"limit"`
}

func (s *Server) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// A missing limit means a track-only category with no cap.
	limit := core.Money{}
	if req.Limit != "" {
		parsed, err := parseAmount(req.Limit)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid limit")
			return
		}
		limit = parsed
	}
	rec, err := s.service.UpsertCategory(r.Context(), core.Category{
		ID:      req.ID,
		UserID:  r.PathValue("user"),
		CycleID: req.CycleID,
		Name:    sanitizeInput(req.Name),
		Limit:   limit,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.DeleteCategory(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

type transactionRequest struct {
	ID          string `json:"id"`
	CategoryID  string `json:"category_id"`
	CycleID     string `json:"cycle_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	OccurredAt  string `json:"occurred_at"`
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	occurred, err := parseDate(req.OccurredAt)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid occurred_at")
		return
	}
	rec, err := s.service.RecordTransaction(r.Context(), core.Transaction{
		ID:          req.ID,
		UserID:      r.PathValue("user"),
		CategoryID:  req.CategoryID,
		CycleID:     req.CycleID,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		OccurredAt:  occurred,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}

type reallocationRequest struct {
	CycleID        string `json:"cycle_id"`
	FromCategoryID string `json:"from_category_id"`
	ToCategoryID   string `json:"to_category_id"`
	Amount         string `json:"amount"`
}

func (s *Server) handleReallocate(w http.ResponseWriter, r *http.Request) {
	var req reallocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	rec, err := s.service.Reallocate(r.Context(), r.PathValue("user"),
		req.CycleID, req.FromCategoryID, req.ToCategoryID, amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAccepted(w, rec)
}
