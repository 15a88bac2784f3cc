// Package mutation defines the durable unit of offline work: a user action
// captured as a record with a closed kind set and a kind-specific payload,
// queued locally before it is replayed against the remote store.
package mutation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the remote operation a record performs.
type Kind string

const (
	KindUpsertProfile          Kind = "upsert_profile"
	KindUpsertIncomeSource     Kind = "upsert_income_source"
	KindUpsertCycle            Kind = "upsert_cycle"
	KindUpsertCategory         Kind = "upsert_category"
	KindInsertTransaction      Kind = "insert_transaction"
	KindDeleteCategory         Kind = "delete_category"
	KindDeleteIncomeSource     Kind = "delete_income_source"
	KindResetBudget            Kind = "reset_budget"
	KindApplyReallocation      Kind = "apply_reallocation"
	KindInsertDebt             Kind = "insert_debt"
	KindUpdateDebt             Kind = "update_debt"
	KindDeleteDebt             Kind = "delete_debt"
	KindRecordDebtPayment      Kind = "record_debt_payment"
	KindInsertRecurringExpense Kind = "insert_recurring_expense"
	KindUpdateRecurringExpense Kind = "update_recurring_expense"
	KindDeleteRecurringExpense Kind = "delete_recurring_expense"
)

// Kinds lists every valid kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindUpsertProfile,
		KindUpsertIncomeSource,
		KindUpsertCycle,
		KindUpsertCategory,
		KindInsertTransaction,
		KindDeleteCategory,
		KindDeleteIncomeSource,
		KindResetBudget,
		KindApplyReallocation,
		KindInsertDebt,
		KindUpdateDebt,
		KindDeleteDebt,
		KindRecordDebtPayment,
		KindInsertRecurringExpense,
		KindUpdateRecurringExpense,
		KindDeleteRecurringExpense,
	}
}

// IsValid reports whether k is a member of the closed kind set.
func (k Kind) IsValid() bool {
	_, ok := payloadFactories[k]
	return ok
}

// Payload is the kind-specific remote row shape carried by a record.
// PrimaryKey returns the stable id the remote store keys the operation on;
// replaying the same payload twice must be a no-op remotely.
type Payload interface {
	PrimaryKey() string
}

// Record is the durable unit of work. Retry metadata is written only by the
// sync executor; the enqueue path always leaves it zeroed.
type Record struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Kind          Kind       `json:"kind"`
	Payload       Payload    `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	RetryCount    int        `json:"retry_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// Build constructs a record for the given kind, stamping a client-side id and
// creation time and zeroing retry metadata. It rejects a payload whose type
// does not belong to the kind, so a "wrong field for this kind" bug cannot
// reach the queue.
func Build(kind Kind, userID string, payload Payload) (*Record, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown mutation kind: %s", kind)
	}
	if userID == "" {
		return nil, fmt.Errorf("mutation requires a user id")
	}
	if payload == nil {
		return nil, fmt.Errorf("mutation %s requires a payload", kind)
	}
	if !payloadMatches(kind, payload) {
		return nil, fmt.Errorf("payload %T is not valid for kind %s", payload, kind)
	}
	if payload.PrimaryKey() == "" {
		return nil, fmt.Errorf("payload for %s has no primary key", kind)
	}
	return &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EncodePayload serializes the record's payload for durable storage.
func (r *Record) EncodePayload() ([]byte, error) {
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", r.Kind, err)
	}
	return body, nil
}

// DecodePayload restores a payload read back from storage into its typed form.
func DecodePayload(kind Kind, data []byte) (Payload, error) {
	factory, ok := payloadFactories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown mutation kind: %s", kind)
	}
	payload := factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", kind, err)
	}
	return payload, nil
}

// payloadFactories maps each kind to a constructor for its payload type,
// used when decoding stored records.
var payloadFactories = map[Kind]func() Payload{
	KindUpsertProfile:          func() Payload { return &ProfileRow{} },
	KindUpsertIncomeSource:     func() Payload { return &IncomeSourceRow{} },
	KindUpsertCycle:            func() Payload { return &CycleRow{} },
	KindUpsertCategory:         func() Payload { return &CategoryRow{} },
	KindInsertTransaction:      func() Payload { return &TransactionRow{} },
	KindDeleteCategory:         func() Payload { return &CategoryDelete{} },
	KindDeleteIncomeSource:     func() Payload { return &IncomeSourceDelete{} },
	KindResetBudget:            func() Payload { return &BudgetReset{} },
	KindApplyReallocation:      func() Payload { return &ReallocationRow{} },
	KindInsertDebt:             func() Payload { return &DebtRow{} },
	KindUpdateDebt:             func() Payload { return &DebtRow{} },
	KindDeleteDebt:             func() Payload { return &DebtDelete{} },
	KindRecordDebtPayment:      func() Payload { return &DebtPaymentRow{} },
	KindInsertRecurringExpense: func() Payload { return &RecurringExpenseRow{} },
	KindUpdateRecurringExpense: func() Payload { return &RecurringExpenseRow{} },
	KindDeleteRecurringExpense: func() Payload { return &RecurringExpenseDelete{} },
}

// EntityRefs returns the ids of the logical entities a payload touches: its
// own primary key plus any parent rows it references. The executor uses these
// to keep same-entity ordering intact when an earlier mutation fails mid-pass.
func EntityRefs(p Payload) []string {
	switch v := p.(type) {
	case *TransactionRow:
		return []string{v.ID, v.CategoryID}
	case *DebtPaymentRow:
		return []string{v.ID, v.DebtID}
	case *ReallocationRow:
		return []string{v.ID, v.FromCategoryID, v.ToCategoryID}
	case *RecurringExpenseRow:
		return []string{v.ID, v.CategoryID}
	case *BudgetReset:
		return []string{v.ID, v.CycleID}
	default:
		return []string{p.PrimaryKey()}
	}
}

func payloadMatches(kind Kind, payload Payload) bool {
	switch payload.(type) {
	case *ProfileRow:
		return kind == KindUpsertProfile
	case *IncomeSourceRow:
		return kind == KindUpsertIncomeSource
	case *CycleRow:
		return kind == KindUpsertCycle
	case *CategoryRow:
		return kind == KindUpsertCategory
	case *TransactionRow:
		return kind == KindInsertTransaction
	case *CategoryDelete:
		return kind == KindDeleteCategory
	case *IncomeSourceDelete:
		return kind == KindDeleteIncomeSource
	case *BudgetReset:
		return kind == KindResetBudget
	case *ReallocationRow:
		return kind == KindApplyReallocation
	case *DebtRow:
		return kind == KindInsertDebt || kind == KindUpdateDebt
	case *DebtDelete:
		return kind == KindDeleteDebt
	case *DebtPaymentRow:
		return kind == KindRecordDebtPayment
	case *RecurringExpenseRow:
		return kind == KindInsertRecurringExpense || kind == KindUpdateRecurringExpense
	case *RecurringExpenseDelete:
		return kind == KindDeleteRecurringExpense
	}
	return false
}
