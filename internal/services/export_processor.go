package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wagebook/internal/amqp"
	"wagebook/internal/core"
	"wagebook/internal/export"
	"wagebook/internal/storage"
)

// writeRetryDelays paces the retries of a failed register write. After the
// last delay the message is dropped rather than requeued, so a spreadsheet
// outage cannot hot-loop the consumer.
var writeRetryDelays = []time.Duration{2 * time.Second, 10 * time.Second, 30 * time.Second}

// ExportProcessor turns posted runs into payroll registers and writes them
// through the configured register writer.
type ExportProcessor struct {
	storage *storage.SQLiteRepository
	writer  export.RegisterWriter
}

func NewExportProcessor(storage *storage.SQLiteRepository, writer export.RegisterWriter) *ExportProcessor {
	return &ExportProcessor{
		storage: storage,
		writer:  writer,
	}
}

// HandleExportMessage processes a single register export message from AMQP.
func (p *ExportProcessor) HandleExportMessage(ctx context.Context, msg *amqp.RegisterExportMessage) error {
	if p.writer == nil {
		slog.WarnContext(ctx, "No register writer configured, skipping export",
			"run_id", msg.RunID)
		return nil
	}

	run, err := p.storage.GetRun(ctx, msg.CompanyID, msg.RunID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run.Status != core.RunPosted {
		slog.WarnContext(ctx, "Export requested for non-posted run, dropping",
			"run_id", run.ID,
			"status", run.Status)
		return nil
	}

	register, err := p.BuildRegister(ctx, run)
	if err != nil {
		return err
	}

	ref, err := p.writeWithRetry(ctx, register)
	if err != nil {
		// The run data is intact in storage and the export can be replayed,
		// so drop the message instead of requeueing it forever.
		slog.ErrorContext(ctx, "Register export failed after retries, dropping",
			"run_id", run.ID,
			"company_id", run.CompanyID,
			"error", err)
		return nil
	}

	slog.InfoContext(ctx, "Payroll register exported",
		"run_id", run.ID,
		"company_id", run.CompanyID,
		"destination", ref,
		"rows", len(register.Rows))
	return nil
}

// writeWithRetry writes the register, backing off between attempts on
// writer failures. Spreadsheet APIs throttle and flake; one attempt per
// delay plus the initial try is usually enough to ride it out.
func (p *ExportProcessor) writeWithRetry(ctx context.Context, register export.Register) (string, error) {
	ref, err := p.writer.WriteRegister(ctx, register)
	if err == nil {
		return ref, nil
	}
	for _, delay := range writeRetryDelays {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if ref, err = p.writer.WriteRegister(ctx, register); err == nil {
			return ref, nil
		}
	}
	return "", fmt.Errorf("write register: %w", err)
}

// BuildRegister assembles the exportable register for a run.
func (p *ExportProcessor) BuildRegister(ctx context.Context, run core.PayrollRun) (export.Register, error) {
	company, err := p.storage.GetCompany(ctx, run.CompanyID)
	if err != nil {
		return export.Register{}, fmt.Errorf("load company: %w", err)
	}

	slips, err := p.storage.ListPayslipsByRun(ctx, run.CompanyID, run.ID)
	if err != nil {
		return export.Register{}, fmt.Errorf("load payslips: %w", err)
	}
	if len(slips) == 0 {
		return export.Register{}, fmt.Errorf("run %s has no payslips", run.Reference)
	}

	employees, err := p.storage.ListEmployees(ctx, run.CompanyID)
	if err != nil {
		return export.Register{}, fmt.Errorf("load employees: %w", err)
	}
	byID := make(map[int64]core.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}

	register := export.Register{
		CompanyName: company.Name,
		Reference:   run.Reference,
		Year:        run.Year,
		Month:       run.Month,
		TotalGross:  run.TotalGross,
		TotalPAYE:   run.TotalPAYE,
		TotalNet:    run.TotalNet,
	}
	for _, slip := range slips {
		emp := byID[slip.EmployeeID]
		register.Rows = append(register.Rows, export.RegisterRow{
			StaffNumber:      emp.StaffNumber,
			EmployeeName:     emp.FirstName + " " + emp.LastName,
			Gross:            slip.Gross,
			PAYE:             slip.PAYE,
			Pension:          slip.Pension,
			NHF:              slip.NHF,
			NHIS:             slip.NHIS,
			AdvanceRecovered: slip.AdvanceRecovered,
			Net:              slip.Net,
		})
	}
	return register, nil
}
