package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
	Yearly  Cadence = "yearly"
)

type (
	// Cadence is how often an income source or recurring expense repeats.
	Cadence string

	Date struct {
		time.Time
	}

	// Money is an amount in pesewas (1 cedi = 100 pesewas).
	Money struct {
		Pesewas int64
	}

	Profile struct {
		ID          string
		UserID      string
		DisplayName string
		Currency    string
	}

	IncomeSource struct {
		ID      string
		UserID  string
		Name    string
		Amount  Money
		Cadence Cadence
	}

	// BudgetCycle is one budgeting period (typically a month or a pay period).
	BudgetCycle struct {
		ID             string
		UserID         string
		StartDate      Date
		EndDate        Date
		ExpectedIncome Money
	}

	Category struct {
		ID      string
		UserID  string
		CycleID string
		Name    string
		Limit   Money
		// Spent is derived from transactions, never stored remotely.
		Spent Money
	}

	Transaction struct {
		ID          string
		UserID      string
		CategoryID  string
		CycleID     string
		Description string
		Amount      Money
		OccurredAt  Date
	}

	Debt struct {
		ID              string
		UserID          string
		Name            string
		Principal       Money
		Balance         Money
		InterestRateBps int64
		DueDate         Date
	}

	DebtPayment struct {
		ID     string
		UserID string
		DebtID string
		Amount Money
		PaidAt Date
	}

	RecurringExpense struct {
		ID            string
		UserID        string
		CategoryID    string
		Description   string
		Amount        Money
		Cadence       Cadence
		StartDate     Date
		LastAppliedAt time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category id")
	ErrInvalidCadence   = errors.New("invalid cadence")
)

func (c Cadence) Validate() error {
	switch c {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidCadence
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty returns true if the date is zero (optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Pesewas <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.OccurredAt.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	// A zero limit is a valid "track only" category; negative is not.
	if c.Limit.Pesewas < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s IncomeSource) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptyID
	}
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	return s.Cadence.Validate()
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrEmptyID
	}
	if len(strings.TrimSpace(d.Name)) == 0 {
		return ErrEmptyName
	}
	if err := d.Principal.Validate(); err != nil {
		return err
	}
	if d.Balance.Pesewas < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if strings.TrimSpace(re.ID) == "" {
		return ErrEmptyID
	}
	if err := re.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if err := re.Cadence.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(re.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(re.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(re.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}
