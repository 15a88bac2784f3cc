package core

import (
	"errors"
	"strings"
	"testing"
)

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ID:          "tx-1",
		UserID:      "u1",
		CategoryID:  "cat-1",
		Description: "waakye",
		Amount:      Money{Pesewas: 1500},
		OccurredAt:  NewDate(2026, 8, 30),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"empty id", func(tx *Transaction) { tx.ID = " " }, ErrEmptyID},
		{"empty description", func(tx *Transaction) { tx.Description = "" }, ErrEmptyDescription},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Pesewas: -5} }, ErrInvalidAmount},
		{"empty category", func(tx *Transaction) { tx.CategoryID = "" }, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := valid
			tc.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("description too long", func(t *testing.T) {
		tx := valid
		tx.Description = strings.Repeat("x", 201)
		if err := tx.Validate(); err == nil {
			t.Fatal("expected error for long description")
		}
	})
}

func TestCategoryValidate(t *testing.T) {
	valid := Category{ID: "cat-1", UserID: "u1", Name: "Food", Limit: Money{Pesewas: 50000}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid category rejected: %v", err)
	}

	zeroLimit := valid
	zeroLimit.Limit = Money{}
	if err := zeroLimit.Validate(); err != nil {
		t.Fatalf("track-only category rejected: %v", err)
	}

	negative := valid
	negative.Limit = Money{Pesewas: -1}
	if err := negative.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCadenceValidate(t *testing.T) {
	for _, c := range []Cadence{Daily, Weekly, Monthly, Yearly} {
		if err := c.Validate(); err != nil {
			t.Fatalf("cadence %s rejected: %v", c, err)
		}
	}
	if err := Cadence("fortnightly").Validate(); !errors.Is(err, ErrInvalidCadence) {
		t.Fatal("expected ErrInvalidCadence")
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	re := RecurringExpense{
		ID:          "re-1",
		UserID:      "u1",
		CategoryID:  "cat-1",
		Description: "rent",
		Amount:      Money{Pesewas: 80000},
		Cadence:     Monthly,
		StartDate:   NewDate(2026, 1, 1),
	}
	if err := re.Validate(); err != nil {
		t.Fatalf("valid recurring expense rejected: %v", err)
	}

	re.StartDate = Date{}
	if err := re.Validate(); err == nil {
		t.Fatal("expected error for zero start date")
	}
}

func TestBudgetStateClone(t *testing.T) {
	s := NewBudgetState()
	s.Categories["cat-1"] = &Category{ID: "cat-1", Name: "Food", Limit: Money{Pesewas: 100}}
	s.Transactions["tx-1"] = &Transaction{ID: "tx-1", CategoryID: "cat-1"}

	clone := s.Clone()
	clone.Categories["cat-1"].Limit.Pesewas = 999
	delete(clone.Transactions, "tx-1")

	if s.Categories["cat-1"].Limit.Pesewas != 100 {
		t.Fatal("clone mutation leaked into original category")
	}
	if _, ok := s.Transactions["tx-1"]; !ok {
		t.Fatal("clone deletion leaked into original transactions")
	}
}

func TestBudgetStateCloneNil(t *testing.T) {
	var s *BudgetState
	clone := s.Clone()
	if clone == nil || clone.Categories == nil {
		t.Fatal("nil clone should produce an initialized empty state")
	}
}
