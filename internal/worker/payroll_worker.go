package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wagebook/internal/amqp"
	"wagebook/internal/core"
	"wagebook/internal/storage"
	"wagebook/internal/tax"
)

// ComputePublisher is the slice of the AMQP client the startup sweep needs.
type ComputePublisher interface {
	PublishRunCompute(ctx context.Context, runID, companyID int64) error
}

// PayrollWorker computes queued payroll runs. One worker process can serve
// many tenants; each message claims a single run.
type PayrollWorker struct {
	storage     *storage.SQLiteRepository
	publisher   ComputePublisher
	concurrency int
}

func NewPayrollWorker(storage *storage.SQLiteRepository, publisher ComputePublisher, concurrency int) *PayrollWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PayrollWorker{
		storage:     storage,
		publisher:   publisher,
		concurrency: concurrency,
	}
}

// HandleComputeMessage processes a single run compute message from AMQP.
// Business failures (bad salary data, no payable employees) mark the run
// failed and ack the message; infrastructure errors propagate so the
// delivery is requeued.
func (w *PayrollWorker) HandleComputeMessage(ctx context.Context, msg *amqp.RunComputeMessage) error {
	slog.InfoContext(ctx, "Processing run compute message",
		"run_id", msg.RunID,
		"company_id", msg.CompanyID,
		"attempt", msg.Attempt)

	run, err := w.storage.GetRun(ctx, msg.CompanyID, msg.RunID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Run compute message for unknown run, dropping",
				"run_id", msg.RunID, "company_id", msg.CompanyID)
			return nil
		}
		return fmt.Errorf("load run: %w", err)
	}

	// Claim the run. Losing the claim means another worker took it or the
	// run moved on; either way this delivery is done.
	if err := w.storage.TransitionRun(ctx, run.ID, core.RunQueued, core.RunComputing); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			slog.InfoContext(ctx, "Run not in queued state, skipping",
				"run_id", run.ID, "status", run.Status)
			return nil
		}
		return fmt.Errorf("claim run: %w", err)
	}
	run.Status = core.RunComputing

	if err := w.ComputeRun(ctx, run); err != nil {
		var infra *infraError
		if errors.As(err, &infra) {
			return infra.err
		}
		// Business failure: record it, ack the message.
		if failErr := w.storage.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			return fmt.Errorf("record run failure: %w", failErr)
		}
		return nil
	}
	return nil
}

// infraError marks errors that should requeue the AMQP delivery instead of
// failing the run.
type infraError struct{ err error }

func (e *infraError) Error() string { return e.err.Error() }
func (e *infraError) Unwrap() error { return e.err }

type slipResult struct {
	employee core.Employee
	result   tax.Result
}

// ComputeRun computes payslips for every active employee of the run's
// company and persists them atomically. The run must be in computing state.
func (w *PayrollWorker) ComputeRun(ctx context.Context, run core.PayrollRun) error {
	started := time.Now()

	employees, err := w.storage.ListPayableEmployees(ctx, run.CompanyID, core.NewDate(run.Year, run.Month, 1))
	if err != nil {
		return &infraError{fmt.Errorf("list payable employees: %w", err)}
	}
	if len(employees) == 0 {
		return fmt.Errorf("no payable employees for period %d-%02d", run.Year, run.Month)
	}

	// Statutory computation is per-employee and independent, so it runs
	// concurrently. Advance recovery mutates shared balances and happens
	// afterwards, sequentially.
	results := make([]slipResult, 0, len(employees))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, emp := range employees {
		g.Go(func() error {
			days, err := w.daysActive(gctx, emp, run.Year, run.Month)
			if err != nil {
				return err
			}
			if days == 0 {
				slog.InfoContext(gctx, "Employee inactive for the whole period, skipping",
					"employee_id", emp.ID, "run_id", run.ID)
				return nil
			}

			res, err := tax.Compute(tax.Input{
				Annual:          emp.Annual,
				PensionEnrolled: emp.PensionEnrolled,
				NHFEnrolled:     emp.NHFEnrolled,
				NHISEnrolled:    emp.NHISEnrolled,
				Year:            run.Year,
				Month:           run.Month,
				DaysActive:      days,
			})
			if err != nil {
				return fmt.Errorf("compute employee %s: %w", emp.StaffNumber, err)
			}

			mu.Lock()
			results = append(results, slipResult{employee: emp, result: res})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no payable employees for period %d-%02d", run.Year, run.Month)
	}

	// Deterministic payslip order regardless of goroutine scheduling.
	sort.Slice(results, func(i, j int) bool {
		return results[i].employee.ID < results[j].employee.ID
	})

	slips := make([]core.Payslip, 0, len(results))
	var recoveries []storage.AdvanceRecovery
	for _, r := range results {
		recovered, recs, err := w.advanceRecovery(ctx, run.CompanyID, r.employee.ID, r.result.Net)
		if err != nil {
			return &infraError{err}
		}
		recoveries = append(recoveries, recs...)

		slips = append(slips, core.Payslip{
			RunID:            run.ID,
			CompanyID:        run.CompanyID,
			EmployeeID:       r.employee.ID,
			Gross:            r.result.Gross,
			CRARelief:        r.result.CRARelief,
			Pension:          r.result.Pension,
			NHF:              r.result.NHF,
			NHIS:             r.result.NHIS,
			Taxable:          r.result.Taxable,
			PAYE:             r.result.PAYE,
			AdvanceRecovered: recovered,
			Net:              r.result.Net.Sub(recovered),
			EmployerPension:  r.result.EmployerPension,
		})
	}

	if err := w.storage.SaveComputedRun(ctx, run, slips, recoveries); err != nil {
		return &infraError{fmt.Errorf("save computed run: %w", err)}
	}

	slog.InfoContext(ctx, "Run computed",
		"run_id", run.ID,
		"company_id", run.CompanyID,
		"payslips", len(slips),
		"duration", time.Since(started).Round(time.Millisecond))
	return nil
}

// daysActive counts the calendar days in the period the employee is paid
// for: clipped by hire and termination dates, minus approved unpaid leave.
func (w *PayrollWorker) daysActive(ctx context.Context, emp core.Employee, year, month int) (int, error) {
	totalDays := core.DaysInMonth(year, month)
	periodStart := core.NewDate(year, month, 1)
	periodEnd := core.NewDate(year, month, totalDays)

	start, end := periodStart, periodEnd
	if emp.HireDate.After(periodEnd.Time) {
		return 0, nil
	}
	if emp.HireDate.After(periodStart.Time) {
		start = emp.HireDate
	}
	if !emp.TerminationDate.IsEmpty() {
		if emp.TerminationDate.Before(periodStart.Time) {
			return 0, nil
		}
		if emp.TerminationDate.Before(periodEnd.Time) {
			end = emp.TerminationDate
		}
	}

	days := core.LeaveDays(start, end)

	unpaid, err := w.storage.UnpaidLeaveDaysInPeriod(ctx, emp.CompanyID, emp.ID, year, month)
	if err != nil {
		return 0, &infraError{fmt.Errorf("unpaid leave days: %w", err)}
	}
	days -= unpaid
	if days < 0 {
		days = 0
	}
	return days, nil
}

// advanceRecovery works through an employee's open advances oldest-first.
// Each advance contributes min(installment, balance); total recovery never
// exceeds the statutory net.
func (w *PayrollWorker) advanceRecovery(ctx context.Context, companyID, employeeID int64, net core.Money) (core.Money, []storage.AdvanceRecovery, error) {
	advances, err := w.storage.ListRecoverableAdvances(ctx, companyID, employeeID)
	if err != nil {
		return core.Money{}, nil, fmt.Errorf("list recoverable advances: %w", err)
	}

	var total core.Money
	var recoveries []storage.AdvanceRecovery
	remaining := net
	for _, adv := range advances {
		if remaining.IsZero() {
			break
		}
		amount := adv.Installment
		if adv.Balance.Kobo < amount.Kobo {
			amount = adv.Balance
		}
		if remaining.Kobo < amount.Kobo {
			amount = remaining
		}
		if amount.IsZero() {
			continue
		}
		recoveries = append(recoveries, storage.AdvanceRecovery{AdvanceID: adv.ID, Amount: amount})
		total = total.Add(amount)
		remaining = remaining.Sub(amount)
	}
	return total, recoveries, nil
}

// StartupSweep requeues runs stuck in queued/computing longer than
// staleAfter, recovering from lost deliveries or a worker crash.
func (w *PayrollWorker) StartupSweep(ctx context.Context, staleAfter time.Duration) error {
	cutoff := time.Now().Add(-staleAfter)
	stale, err := w.storage.StaleComputingRuns(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale runs: %w", err)
	}
	if len(stale) == 0 {
		slog.InfoContext(ctx, "No stale runs found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found stale runs on startup, requeueing", "count", len(stale))

	requeued := 0
	for _, run := range stale {
		if run.Status == core.RunComputing {
			// Reclaim: put the run back in queued so the fresh message can
			// claim it again.
			if err := w.storage.TransitionRun(ctx, run.ID, core.RunComputing, core.RunQueued); err != nil {
				if errors.Is(err, storage.ErrConflict) {
					continue
				}
				return fmt.Errorf("requeue run %d: %w", run.ID, err)
			}
		}
		if err := w.publisher.PublishRunCompute(ctx, run.ID, run.CompanyID); err != nil {
			slog.ErrorContext(ctx, "Failed to republish stale run",
				"run_id", run.ID, "error", err)
			continue
		}
		requeued++
	}

	slog.InfoContext(ctx, "Startup sweep completed",
		"total", len(stale),
		"requeued", requeued)
	return nil
}
