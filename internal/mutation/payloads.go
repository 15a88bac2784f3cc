package mutation

import "time"

// Payload row shapes mirror the remote store's collections. Amounts are in
// pesewas. Every row carries its own stable primary key so the remote
// operation is idempotent when replayed.

type ProfileRow struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Currency    string `json:"currency"`
}

func (p *ProfileRow) PrimaryKey() string { return p.ID }

type IncomeSourceRow struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	AmountPesewas int64  `json:"amount_pesewas"`
	Cadence       string `json:"cadence"`
}

func (p *IncomeSourceRow) PrimaryKey() string { return p.ID }

type CycleRow struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	ExpectedIncomePesewas int64     `json:"expected_income_pesewas"`
}

func (p *CycleRow) PrimaryKey() string { return p.ID }

type CategoryRow struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	CycleID      string `json:"cycle_id"`
	Name         string `json:"name"`
	LimitPesewas int64  `json:"limit_pesewas"`
}

func (p *CategoryRow) PrimaryKey() string { return p.ID }

type TransactionRow struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CategoryID    string    `json:"category_id"`
	CycleID       string    `json:"cycle_id"`
	Description   string    `json:"description"`
	AmountPesewas int64     `json:"amount_pesewas"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (p *TransactionRow) PrimaryKey() string { return p.ID }

type CategoryDelete struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func (p *CategoryDelete) PrimaryKey() string { return p.ID }

type IncomeSourceDelete struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func (p *IncomeSourceDelete) PrimaryKey() string { return p.ID }

// BudgetReset wipes a cycle's transactions remotely and records the reset
// itself as a keyed row so replays are no-ops.
type BudgetReset struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	CycleID string    `json:"cycle_id"`
	ResetAt time.Time `json:"reset_at"`
}

func (p *BudgetReset) PrimaryKey() string { return p.ID }

type ReallocationRow struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CycleID        string    `json:"cycle_id"`
	FromCategoryID string    `json:"from_category_id"`
	ToCategoryID   string    `json:"to_category_id"`
	AmountPesewas  int64     `json:"amount_pesewas"`
	MovedAt        time.Time `json:"moved_at"`
}

func (p *ReallocationRow) PrimaryKey() string { return p.ID }

type DebtRow struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	PrincipalPesewas int64     `json:"principal_pesewas"`
	BalancePesewas   int64     `json:"balance_pesewas"`
	InterestRateBps  int64     `json:"interest_rate_bps"`
	DueDate          time.Time `json:"due_date"`
}

func (p *DebtRow) PrimaryKey() string { return p.ID }

type DebtDelete struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func (p *DebtDelete) PrimaryKey() string { return p.ID }

type DebtPaymentRow struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	DebtID        string    `json:"debt_id"`
	AmountPesewas int64     `json:"amount_pesewas"`
	PaidAt        time.Time `json:"paid_at"`
}

func (p *DebtPaymentRow) PrimaryKey() string { return p.ID }

type RecurringExpenseRow struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CategoryID    string    `json:"category_id"`
	Description   string    `json:"description"`
	AmountPesewas int64     `json:"amount_pesewas"`
	Cadence       string    `json:"cadence"`
	StartDate     time.Time `json:"start_date"`
	LastAppliedAt time.Time `json:"last_applied_at"`
}

func (p *RecurringExpenseRow) PrimaryKey() string { return p.ID }

type RecurringExpenseDelete struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

func (p *RecurringExpenseDelete) PrimaryKey() string { return p.ID }
