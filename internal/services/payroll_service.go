package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wagebook/internal/amqp"
	"wagebook/internal/core"
	"wagebook/internal/ledger"
	applog "wagebook/internal/log"
	"wagebook/internal/storage"
)

// PayrollService orchestrates the run lifecycle across SQLite and AMQP.
type PayrollService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	exportMQ   *amqp.Client
	logs       *applog.StructuredLogger
}

func NewPayrollService(storage *storage.SQLiteRepository, amqpClient, exportMQ *amqp.Client) *PayrollService {
	return &PayrollService{
		storage:    storage,
		amqpClient: amqpClient,
		exportMQ:   exportMQ,
		logs:       applog.NewStructuredLogger(applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentPayroll})),
	}
}

// RunReference builds the canonical run reference for a company period.
func RunReference(companyID int64, year, month int) string {
	return fmt.Sprintf("PR-%d-%d-%02d", companyID, year, month)
}

// OpenRun creates a draft run for the period, or returns the existing live
// one. Opening is idempotent: one live run per company per calendar month.
// Voided runs do not count; opening after a void starts a correction run
// with a revision suffix on its reference.
func (s *PayrollService) OpenRun(ctx context.Context, companyID int64, year, month int) (core.PayrollRun, error) {
	if month < 1 || month > 12 {
		return core.PayrollRun{}, core.ErrInvalidRunPeriod
	}
	if year < 2000 || year > 2100 {
		return core.PayrollRun{}, core.ErrInvalidRunPeriod
	}

	existing, err := s.storage.GetRunByPeriod(ctx, companyID, year, month)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return core.PayrollRun{}, fmt.Errorf("check existing run: %w", err)
	}

	reference := RunReference(companyID, year, month)
	prior, err := s.storage.CountRunsByPeriod(ctx, companyID, year, month)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("count prior runs: %w", err)
	}
	if prior > 0 {
		reference = fmt.Sprintf("%s-R%d", reference, prior+1)
	}

	run, err := s.storage.CreateRun(ctx, core.PayrollRun{
		CompanyID: companyID,
		Reference: reference,
		Year:      year,
		Month:     month,
		Status:    core.RunDraft,
	})
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("open run: %w", err)
	}

	slog.InfoContext(ctx, "Payroll run opened",
		"run_id", run.ID,
		"company_id", companyID,
		"period", fmt.Sprintf("%d-%02d", year, month))
	return run, nil
}

// QueueRun moves a run to queued and publishes the compute message. A
// computed or failed run can be requeued for recomputation.
func (s *PayrollService) QueueRun(ctx context.Context, companyID, runID int64) (core.PayrollRun, error) {
	run, err := s.storage.GetRun(ctx, companyID, runID)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("load run: %w", err)
	}

	if !run.Status.CanTransition(core.RunQueued) {
		return core.PayrollRun{}, fmt.Errorf("queue run in state %s: %w", run.Status, storage.ErrConflict)
	}
	if err := s.storage.TransitionRun(ctx, run.ID, run.Status, core.RunQueued); err != nil {
		return core.PayrollRun{}, err
	}
	run.Status = core.RunQueued

	if err := s.publishCompute(ctx, run); err != nil {
		slog.ErrorContext(ctx, "Failed to publish compute message",
			"run_id", run.ID, "error", err)
		// The run stays queued; the worker's startup sweep will pick it up.
	}
	return run, nil
}

// ApproveRun moves a computed run to approved.
func (s *PayrollService) ApproveRun(ctx context.Context, companyID, runID int64) (core.PayrollRun, error) {
	run, err := s.storage.GetRun(ctx, companyID, runID)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("load run: %w", err)
	}
	if err := s.storage.TransitionRun(ctx, run.ID, core.RunComputed, core.RunApproved); err != nil {
		return core.PayrollRun{}, err
	}
	run.Status = core.RunApproved

	slog.InfoContext(ctx, "Payroll run approved",
		"run_id", run.ID, "company_id", companyID)
	return run, nil
}

// PostRun writes the balanced journal entry for an approved run and marks it
// posted, then requests the register export.
func (s *PayrollService) PostRun(ctx context.Context, companyID, runID int64) (core.PayrollRun, error) {
	run, err := s.storage.GetRun(ctx, companyID, runID)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("load run: %w", err)
	}
	if run.Status != core.RunApproved {
		return core.PayrollRun{}, fmt.Errorf("post run in state %s: %w", run.Status, storage.ErrConflict)
	}

	slips, err := s.storage.ListPayslipsByRun(ctx, companyID, runID)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("load payslips: %w", err)
	}
	if len(slips) == 0 {
		return core.PayrollRun{}, fmt.Errorf("post run without payslips: %w", storage.ErrConflict)
	}

	totals := ledger.TotalsFromPayslips(slips)
	entry, err := ledger.BuildRunEntry(run, totals)
	if err != nil {
		return core.PayrollRun{}, err
	}

	if err := s.storage.PostRun(ctx, run, entry); err != nil {
		return core.PayrollRun{}, err
	}
	run.Status = core.RunPosted
	s.logs.LogRunPosted(ctx, run.ID, companyID, run.Reference, totals.Net.Kobo)

	if err := s.publishExport(ctx, run); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export message",
			"run_id", run.ID, "error", err)
		// Posting succeeded; the export can be retried by hand.
	}
	return run, nil
}

// VoidRun voids a run. Posted runs get a reversing journal entry; earlier
// states are simply marked voided.
func (s *PayrollService) VoidRun(ctx context.Context, companyID, runID int64) (core.PayrollRun, error) {
	run, err := s.storage.GetRun(ctx, companyID, runID)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("load run: %w", err)
	}

	if run.Status == core.RunPosted {
		original, err := s.storage.GetRunEntry(ctx, companyID, runID)
		if err != nil {
			return core.PayrollRun{}, fmt.Errorf("load original entry: %w", err)
		}
		reversal, err := ledger.Reverse(original, ledger.ReversalReasonRunVoid)
		if err != nil {
			return core.PayrollRun{}, err
		}
		if err := s.storage.VoidRun(ctx, run, &reversal); err != nil {
			return core.PayrollRun{}, err
		}
	} else {
		if !run.Status.CanTransition(core.RunVoided) {
			return core.PayrollRun{}, fmt.Errorf("void run in state %s: %w", run.Status, storage.ErrConflict)
		}
		if err := s.storage.VoidRun(ctx, run, nil); err != nil {
			return core.PayrollRun{}, err
		}
	}
	run.Status = core.RunVoided
	return run, nil
}

func (s *PayrollService) publishCompute(ctx context.Context, run core.PayrollRun) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping compute message")
		return nil
	}
	return s.amqpClient.PublishRunCompute(ctx, run.ID, run.CompanyID)
}

func (s *PayrollService) publishExport(ctx context.Context, run core.PayrollRun) error {
	if s.exportMQ == nil {
		slog.WarnContext(ctx, "Export queue not available, skipping export message")
		return nil
	}
	return s.exportMQ.PublishRegisterExport(ctx, run.ID, run.CompanyID)
}

// Close closes storage and AMQP connections.
func (s *PayrollService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if s.exportMQ != nil {
		if err := s.exportMQ.Close(); err != nil {
			errs = append(errs, fmt.Errorf("export amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close payroll service: %v", errs)
	}
	return nil
}
