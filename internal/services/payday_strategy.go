// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for payday dueness checking.
// Each pay frequency (monthly, biweekly, weekly) has its own strategy that
// encapsulates the logic for deciding when a company's run should be queued.

package services

import (
	"fmt"
	"time"

	"wagebook/internal/core"
)

// PaydayChecker is the strategy interface for deciding whether a company's
// payroll run is due for queueing.
type PaydayChecker interface {
	// IsDue returns true if a run should be queued now, given when the
	// company's last run was queued and its configured payday of month.
	IsDue(lastQueued, now time.Time, paydayOfMonth int) bool
}

// MonthlyPaydayChecker implements PaydayChecker for monthly companies.
type MonthlyPaydayChecker struct{}

// IsDue returns true once per month, from the payday onward. A payday past
// the end of a short month clamps to the month's last day.
func (MonthlyPaydayChecker) IsDue(lastQueued, now time.Time, paydayOfMonth int) bool {
	// Already queued this month?
	if !lastQueued.IsZero() && lastQueued.Year() == now.Year() && lastQueued.Month() == now.Month() {
		return false
	}

	target := paydayOfMonth
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if target > lastDayOfMonth {
		target = lastDayOfMonth
	}
	return now.Day() >= target
}

// BiweeklyPaydayChecker implements PaydayChecker for biweekly companies.
type BiweeklyPaydayChecker struct{}

// IsDue returns true if 14 or more days have passed since the last queue.
func (BiweeklyPaydayChecker) IsDue(lastQueued, now time.Time, _ int) bool {
	if lastQueued.IsZero() {
		return true
	}
	daysSince := now.Sub(lastQueued).Hours() / 24
	return daysSince >= 14
}

// WeeklyPaydayChecker implements PaydayChecker for weekly companies.
type WeeklyPaydayChecker struct{}

// IsDue returns true if 7 or more days have passed since the last queue.
func (WeeklyPaydayChecker) IsDue(lastQueued, now time.Time, _ int) bool {
	if lastQueued.IsZero() {
		return true
	}
	daysSince := now.Sub(lastQueued).Hours() / 24
	return daysSince >= 7
}

// paydayStrategies maps pay frequencies to their corresponding checkers.
var paydayStrategies = map[core.PayFrequency]PaydayChecker{
	core.Monthly:  MonthlyPaydayChecker{},
	core.Biweekly: BiweeklyPaydayChecker{},
	core.Weekly:   WeeklyPaydayChecker{},
}

// GetPaydayChecker returns the checker for a pay frequency.
func GetPaydayChecker(frequency core.PayFrequency) (PaydayChecker, error) {
	checker, ok := paydayStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown pay frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterPaydayChecker allows registering custom checkers for new
// frequencies without modifying the registry.
func RegisterPaydayChecker(frequency core.PayFrequency, checker PaydayChecker) {
	paydayStrategies[frequency] = checker
}
