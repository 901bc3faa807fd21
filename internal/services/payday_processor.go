package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

// PaydayProcessor opens and queues payroll runs for companies whose payday
// has arrived. It is driven on a fixed tick by the scheduler binary.
type PaydayProcessor struct {
	storage        *storage.SQLiteRepository
	payrollService *PayrollService
}

func NewPaydayProcessor(storage *storage.SQLiteRepository, payrollService *PayrollService) *PaydayProcessor {
	return &PaydayProcessor{
		storage:        storage,
		payrollService: payrollService,
	}
}

// ProcessDueCompanies checks every company and queues the current month's
// run for those that are due. Returns the number of runs queued.
func (p *PaydayProcessor) ProcessDueCompanies(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.payrollService == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	companies, err := p.storage.ListCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list companies: %w", err)
	}

	slog.InfoContext(ctx, "Processing paydays",
		"total_companies", len(companies),
		"processing_date", now.Format("2006-01-02"))

	queuedCount := 0

	for _, c := range companies {
		checker, err := GetPaydayChecker(c.PayFrequency)
		if err != nil {
			slog.ErrorContext(ctx, "Unknown pay frequency, skipping company",
				"company_id", c.ID,
				"frequency", c.PayFrequency)
			continue
		}

		lastQueued, err := p.storage.LastActivatedRunTime(ctx, c.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check last run time",
				"company_id", c.ID,
				"error", err)
			continue
		}

		if !checker.IsDue(lastQueued, now, c.PaydayOfMonth) {
			continue
		}

		run, err := p.payrollService.OpenRun(ctx, c.ID, now.Year(), int(now.Month()))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to open run for due company",
				"company_id", c.ID,
				"error", err)
			continue
		}

		// Only draft and failed runs get queued automatically; anything
		// further along is already in flight or done.
		if run.Status != core.RunDraft && run.Status != core.RunFailed {
			continue
		}

		if _, err := p.payrollService.QueueRun(ctx, c.ID, run.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to queue due run",
				"company_id", c.ID,
				"run_id", run.ID,
				"error", err)
			continue
		}

		queuedCount++
		slog.InfoContext(ctx, "Queued payroll run for payday",
			"company_id", c.ID,
			"run_id", run.ID,
			"reference", run.Reference,
			"frequency", c.PayFrequency)
	}

	slog.InfoContext(ctx, "Payday processing complete",
		"queued", queuedCount,
		"total_checked", len(companies))

	return queuedCount, nil
}
