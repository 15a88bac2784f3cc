// Package services provides business logic and orchestration services.
//
// This file implements the strategy for recurring expense dueness checking.
// Each cadence (daily, weekly, monthly, yearly) has its own checker that
// encapsulates the logic for determining whether an expense is due.
package services

import (
	"fmt"
	"time"

	"kudi/internal/core"
)

// DuenessChecker is the strategy interface for checking if a recurring
// expense is due. Each implementation encapsulates the algorithm for a
// specific cadence.
type DuenessChecker interface {
	// IsDue returns true if the recurring expense should be materialized
	// given the last application time and the current time.
	IsDue(lastApplied, now time.Time, startDate core.Date) bool
}

// DailyChecker implements DuenessChecker for daily recurring expenses.
type DailyChecker struct{}

// IsDue returns true if the last application was before today.
func (DailyChecker) IsDue(lastApplied, now time.Time, _ core.Date) bool {
	if lastApplied.IsZero() {
		return true
	}
	return lastApplied.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyChecker implements DuenessChecker for weekly recurring expenses.
type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since last application.
func (WeeklyChecker) IsDue(lastApplied, now time.Time, _ core.Date) bool {
	if lastApplied.IsZero() {
		return true
	}
	daysSince := now.Sub(lastApplied).Hours() / 24
	return daysSince >= 7
}

// MonthlyChecker implements DuenessChecker for monthly recurring expenses.
type MonthlyChecker struct{}

// IsDue returns true if we're in a new month and have reached the target day.
func (MonthlyChecker) IsDue(lastApplied, now time.Time, startDate core.Date) bool {
	if lastApplied.IsZero() {
		return true
	}

	// Already applied this month?
	if lastApplied.Year() == now.Year() && lastApplied.Month() == now.Month() {
		return false
	}

	// Clamp the target day for short months (e.g. the 31st in February).
	targetDay := startDate.Day()
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}

	return now.Day() >= targetDay
}

// YearlyChecker implements DuenessChecker for yearly recurring expenses.
type YearlyChecker struct{}

// IsDue returns true if we're in a new year and have reached the target month
// and day.
func (YearlyChecker) IsDue(lastApplied, now time.Time, startDate core.Date) bool {
	if lastApplied.IsZero() {
		return true
	}

	// Already applied this year?
	if lastApplied.Year() == now.Year() {
		return false
	}

	targetMonth := startDate.Month()
	targetDay := startDate.Day()

	if int(now.Month()) < targetMonth {
		return false
	}

	if int(now.Month()) == targetMonth {
		lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if targetDay > lastDayOfMonth {
			targetDay = lastDayOfMonth
		}
		return now.Day() >= targetDay
	}

	// Past the target month.
	return true
}

// duenessStrategies maps cadences to their corresponding checkers.
var duenessStrategies = map[core.Cadence]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a cadence, or an error if the
// cadence is not supported.
func GetDuenessChecker(cadence core.Cadence) (DuenessChecker, error) {
	checker, ok := duenessStrategies[cadence]
	if !ok {
		return nil, fmt.Errorf("unsupported cadence: %s", cadence)
	}
	return checker, nil
}
