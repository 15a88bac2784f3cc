package core

// BudgetState is the user-visible projection of a single user's budget. It is
// a derived, disposable cache: the durable queue plus a remote snapshot can
// always rebuild it, so it never acts as the durability boundary.
type BudgetState struct {
	Profile           *Profile
	IncomeSources     map[string]*IncomeSource
	Cycles            map[string]*BudgetCycle
	Categories        map[string]*Category
	Transactions      map[string]*Transaction
	Debts             map[string]*Debt
	DebtPayments      map[string]*DebtPayment
	RecurringExpenses map[string]*RecurringExpense
}

// NewBudgetState returns an empty state with all maps initialized.
func NewBudgetState() *BudgetState {
	return &BudgetState{
		IncomeSources:     make(map[string]*IncomeSource),
		Cycles:            make(map[string]*BudgetCycle),
		Categories:        make(map[string]*Category),
		Transactions:      make(map[string]*Transaction),
		Debts:             make(map[string]*Debt),
		DebtPayments:      make(map[string]*DebtPayment),
		RecurringExpenses: make(map[string]*RecurringExpense),
	}
}

// Clone returns a deep copy so reducers can stay pure.
func (s *BudgetState) Clone() *BudgetState {
	out := NewBudgetState()
	if s == nil {
		return out
	}
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	for id, v := range s.IncomeSources {
		c := *v
		out.IncomeSources[id] = &c
	}
	for id, v := range s.Cycles {
		c := *v
		out.Cycles[id] = &c
	}
	for id, v := range s.Categories {
		c := *v
		out.Categories[id] = &c
	}
	for id, v := range s.Transactions {
		c := *v
		out.Transactions[id] = &c
	}
	for id, v := range s.Debts {
		c := *v
		out.Debts[id] = &c
	}
	for id, v := range s.DebtPayments {
		c := *v
		out.DebtPayments[id] = &c
	}
	for id, v := range s.RecurringExpenses {
		c := *v
		out.RecurringExpenses[id] = &c
	}
	return out
}
