package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"wagebook/internal/amqp"
	"wagebook/internal/core"
	"wagebook/internal/export"
	"wagebook/internal/export/memory"
	"wagebook/internal/storage"
)

// flakyWriter fails its first n writes, then succeeds.
type flakyWriter struct {
	failures int
	calls    int
	wrote    []export.Register
}

func (w *flakyWriter) WriteRegister(_ context.Context, r export.Register) (string, error) {
	w.calls++
	if w.calls <= w.failures {
		return "", errors.New("rate limited")
	}
	w.wrote = append(w.wrote, r)
	return "sheet-1", nil
}

func seedPostedRun(t *testing.T, repo *storage.SQLiteRepository, svc *PayrollService, companyID, employeeID int64) core.PayrollRun {
	t.Helper()
	ctx := context.Background()
	run, err := svc.OpenRun(ctx, companyID, 2026, 3)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}
	if _, err := svc.QueueRun(ctx, companyID, run.ID); err != nil {
		t.Fatalf("QueueRun: %v", err)
	}
	computeRun(t, repo, core.PayrollRun{ID: run.ID, CompanyID: companyID, Status: core.RunQueued}, employeeID)
	if _, err := svc.ApproveRun(ctx, companyID, run.ID); err != nil {
		t.Fatalf("ApproveRun: %v", err)
	}
	if _, err := svc.PostRun(ctx, companyID, run.ID); err != nil {
		t.Fatalf("PostRun: %v", err)
	}
	return run
}

func TestHandleExportMessageWritesRegister(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	run, _ := svc.OpenRun(ctx, c.ID, 2026, 3)
	if _, err := svc.QueueRun(ctx, c.ID, run.ID); err != nil {
		t.Fatalf("QueueRun: %v", err)
	}
	computeRun(t, repo, core.PayrollRun{ID: run.ID, CompanyID: c.ID, Status: core.RunQueued}, e.ID)
	if _, err := svc.ApproveRun(ctx, c.ID, run.ID); err != nil {
		t.Fatalf("ApproveRun: %v", err)
	}
	if _, err := svc.PostRun(ctx, c.ID, run.ID); err != nil {
		t.Fatalf("PostRun: %v", err)
	}

	store := memory.New()
	proc := NewExportProcessor(repo, store)
	msg := amqp.NewRegisterExportMessage(run.ID, c.ID)
	if err := proc.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}

	registers := store.Registers()
	if len(registers) != 1 {
		t.Fatalf("expected 1 register, got %d", len(registers))
	}
	reg := registers[0]
	if reg.Reference != RunReference(c.ID, 2026, 3) {
		t.Errorf("unexpected reference %s", reg.Reference)
	}
	if len(reg.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(reg.Rows))
	}
	row := reg.Rows[0]
	if row.StaffNumber != "EMP-001" {
		t.Errorf("unexpected staff number %s", row.StaffNumber)
	}
	if row.EmployeeName != "Ngozi Okafor" {
		t.Errorf("unexpected employee name %s", row.EmployeeName)
	}
	if reg.TotalGross.Kobo != 27_500_000 {
		t.Errorf("expected total gross 27_500_000, got %d", reg.TotalGross.Kobo)
	}
	if reg.TotalNet.Kobo != 22_041_934 {
		t.Errorf("expected total net 22_041_934, got %d", reg.TotalNet.Kobo)
	}
}

func TestHandleExportMessageRetriesFlakyWriter(t *testing.T) {
	defer func(d []time.Duration) { writeRetryDelays = d }(writeRetryDelays)
	writeRetryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")
	run := seedPostedRun(t, repo, svc, c.ID, e.ID)

	writer := &flakyWriter{failures: 2}
	proc := NewExportProcessor(repo, writer)
	msg := amqp.NewRegisterExportMessage(run.ID, c.ID)
	if err := proc.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}
	if writer.calls != 3 {
		t.Errorf("expected 3 write attempts, got %d", writer.calls)
	}
	if len(writer.wrote) != 1 {
		t.Fatalf("expected 1 register written, got %d", len(writer.wrote))
	}
	if writer.wrote[0].Reference != run.Reference {
		t.Errorf("unexpected reference %s", writer.wrote[0].Reference)
	}
}

func TestHandleExportMessageDropsAfterExhaustedRetries(t *testing.T) {
	defer func(d []time.Duration) { writeRetryDelays = d }(writeRetryDelays)
	writeRetryDelays = []time.Duration{time.Millisecond, time.Millisecond}

	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")
	run := seedPostedRun(t, repo, svc, c.ID, e.ID)

	writer := &flakyWriter{failures: 10}
	proc := NewExportProcessor(repo, writer)
	msg := amqp.NewRegisterExportMessage(run.ID, c.ID)
	if err := proc.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("exhausted retries should drop the message, got %v", err)
	}
	if writer.calls != 3 {
		t.Errorf("expected 3 write attempts, got %d", writer.calls)
	}
	if len(writer.wrote) != 0 {
		t.Errorf("expected no register written, got %d", len(writer.wrote))
	}
}

func TestHandleExportMessageSkipsNonPostedRun(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	ctx := context.Background()
	c := seedCompany(t, repo)

	run, err := svc.OpenRun(ctx, c.ID, 2026, 3)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}

	store := memory.New()
	proc := NewExportProcessor(repo, store)
	msg := amqp.NewRegisterExportMessage(run.ID, c.ID)
	if err := proc.HandleExportMessage(ctx, msg); err != nil {
		t.Fatalf("HandleExportMessage: %v", err)
	}
	if len(store.Registers()) != 0 {
		t.Errorf("expected no registers for a draft run, got %d", len(store.Registers()))
	}
}

func TestHandleExportMessageNilWriter(t *testing.T) {
	repo := newTestRepo(t)
	proc := NewExportProcessor(repo, nil)
	msg := amqp.NewRegisterExportMessage(1, 1)
	if err := proc.HandleExportMessage(context.Background(), msg); err != nil {
		t.Errorf("nil writer should be a no-op, got %v", err)
	}
}
