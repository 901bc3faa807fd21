package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "wagebook.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedCompany(t *testing.T, repo *storage.SQLiteRepository) core.Company {
	t.Helper()
	c, err := repo.CreateCompany(context.Background(), core.Company{
		Name:          "Acme Ltd",
		TaxID:         "TIN-0001",
		PayFrequency:  core.Monthly,
		PaydayOfMonth: 25,
		APIKey:        "key-acme",
	})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	return c
}

func seedEmployee(t *testing.T, repo *storage.SQLiteRepository, companyID int64, staff string) core.Employee {
	t.Helper()
	e, err := repo.CreateEmployee(context.Background(), core.Employee{
		CompanyID:   companyID,
		StaffNumber: staff,
		FirstName:   "Ngozi",
		LastName:    "Okafor",
		Email:       staff + "@acme.example",
		Annual: core.Salary{
			Basic:     core.Money{Kobo: 180_000_000},
			Housing:   core.Money{Kobo: 90_000_000},
			Transport: core.Money{Kobo: 60_000_000},
		},
		PensionEnrolled:  true,
		NHFEnrolled:      true,
		HireDate:         core.NewDate(2023, 1, 9),
		Status:           core.EmployeeActive,
		LeaveBalanceDays: 20,
	})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	return e
}

// computeRun pushes a queued run through the compute stage the way the
// worker would, without going through AMQP.
func computeRun(t *testing.T, repo *storage.SQLiteRepository, run core.PayrollRun, employeeID int64) {
	t.Helper()
	ctx := context.Background()
	if err := repo.TransitionRun(ctx, run.ID, core.RunQueued, core.RunComputing); err != nil {
		t.Fatalf("claim run: %v", err)
	}
	run.Status = core.RunComputing
	slips := []core.Payslip{{
		RunID:           run.ID,
		CompanyID:       run.CompanyID,
		EmployeeID:      employeeID,
		Gross:           core.Money{Kobo: 27_500_000},
		PAYE:            core.Money{Kobo: 2_883_066},
		Pension:         core.Money{Kobo: 2_200_000},
		NHF:             core.Money{Kobo: 375_000},
		Net:             core.Money{Kobo: 22_041_934},
		EmployerPension: core.Money{Kobo: 2_750_000},
	}}
	if err := repo.SaveComputedRun(ctx, run, slips, nil); err != nil {
		t.Fatalf("SaveComputedRun: %v", err)
	}
}

func TestOpenRunIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	ctx := context.Background()
	c := seedCompany(t, repo)

	first, err := svc.OpenRun(ctx, c.ID, 2026, 3)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}
	if first.Status != core.RunDraft {
		t.Errorf("expected draft run, got %s", first.Status)
	}
	if first.Reference != RunReference(c.ID, 2026, 3) {
		t.Errorf("unexpected reference %s", first.Reference)
	}

	second, err := svc.OpenRun(ctx, c.ID, 2026, 3)
	if err != nil {
		t.Fatalf("second OpenRun: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same run back, got %d and %d", first.ID, second.ID)
	}
}

func TestOpenRunRejectsBadPeriod(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	c := seedCompany(t, repo)

	if _, err := svc.OpenRun(context.Background(), c.ID, 2026, 13); !errors.Is(err, core.ErrInvalidRunPeriod) {
		t.Errorf("expected ErrInvalidRunPeriod, got %v", err)
	}
	if _, err := svc.OpenRun(context.Background(), c.ID, 1985, 3); !errors.Is(err, core.ErrInvalidRunPeriod) {
		t.Errorf("expected ErrInvalidRunPeriod for out-of-range year, got %v", err)
	}
}

func TestQueueRunLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	ctx := context.Background()
	c := seedCompany(t, repo)

	run, err := svc.OpenRun(ctx, c.ID, 2026, 3)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}

	queued, err := svc.QueueRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("QueueRun: %v", err)
	}
	if queued.Status != core.RunQueued {
		t.Errorf("expected queued, got %s", queued.Status)
	}

	// Double queue conflicts.
	if _, err := svc.QueueRun(ctx, c.ID, run.ID); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict on double queue, got %v", err)
	}
}

func TestApprovePostVoidFlow(t *testing.T) {
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

	// Posting before approval conflicts.
	if _, err := svc.PostRun(ctx, c.ID, run.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict posting unapproved run, got %v", err)
	}

	if _, err := svc.ApproveRun(ctx, c.ID, run.ID); err != nil {
		t.Fatalf("ApproveRun: %v", err)
	}

	posted, err := svc.PostRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("PostRun: %v", err)
	}
	if posted.Status != core.RunPosted {
		t.Errorf("expected posted, got %s", posted.Status)
	}

	entry, err := repo.GetRunEntry(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("GetRunEntry: %v", err)
	}
	if !entry.Balanced() {
		t.Error("posted entry must balance")
	}

	// Voiding a posted run reverses its entry and nets the ledger to zero.
	voided, err := svc.VoidRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("VoidRun: %v", err)
	}
	if voided.Status != core.RunVoided {
		t.Errorf("expected voided, got %s", voided.Status)
	}

	tb, err := repo.TrialBalance(ctx, c.ID)
	if err != nil {
		t.Fatalf("TrialBalance: %v", err)
	}
	for _, row := range tb {
		if row.DebitKobo != row.CreditKobo {
			t.Errorf("account %s should net to zero after void: dr=%d cr=%d",
				row.AccountCode, row.DebitKobo, row.CreditKobo)
		}
	}
}

func TestOpenRunAfterVoidStartsCorrectionRun(t *testing.T) {
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
	if _, err := svc.VoidRun(ctx, c.ID, run.ID); err != nil {
		t.Fatalf("VoidRun: %v", err)
	}

	// The void releases the period: opening again starts a fresh correction
	// run instead of handing back the voided one.
	redo, err := svc.OpenRun(ctx, c.ID, 2026, 3)
	if err != nil {
		t.Fatalf("OpenRun after void: %v", err)
	}
	if redo.ID == run.ID {
		t.Fatal("expected a new run, got the voided one back")
	}
	if redo.Status != core.RunDraft {
		t.Errorf("expected draft correction run, got %s", redo.Status)
	}
	wantRef := RunReference(c.ID, 2026, 3) + "-R2"
	if redo.Reference != wantRef {
		t.Errorf("expected reference %s, got %s", wantRef, redo.Reference)
	}

	// The correction run is the one the period now resolves to.
	live, err := repo.GetRunByPeriod(ctx, c.ID, 2026, 3)
	if err != nil {
		t.Fatalf("GetRunByPeriod: %v", err)
	}
	if live.ID != redo.ID {
		t.Errorf("expected period to resolve to run %d, got %d", redo.ID, live.ID)
	}

	// And it can be paid out all the way.
	if _, err := svc.QueueRun(ctx, c.ID, redo.ID); err != nil {
		t.Fatalf("QueueRun correction: %v", err)
	}
	computeRun(t, repo, core.PayrollRun{ID: redo.ID, CompanyID: c.ID, Status: core.RunQueued}, e.ID)
	if _, err := svc.ApproveRun(ctx, c.ID, redo.ID); err != nil {
		t.Fatalf("ApproveRun correction: %v", err)
	}
	if _, err := svc.PostRun(ctx, c.ID, redo.ID); err != nil {
		t.Fatalf("PostRun correction: %v", err)
	}
}

func TestVoidApprovedRun(t *testing.T) {
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

	// A mistaken approval can be voided directly; nothing was posted yet.
	voided, err := svc.VoidRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("VoidRun: %v", err)
	}
	if voided.Status != core.RunVoided {
		t.Errorf("expected voided, got %s", voided.Status)
	}

	entries, err := repo.ListJournalEntries(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListJournalEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no journal entries, got %d", len(entries))
	}
}

func TestVoidDraftRun(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewPayrollService(repo, nil, nil)
	ctx := context.Background()
	c := seedCompany(t, repo)

	run, _ := svc.OpenRun(ctx, c.ID, 2026, 3)
	voided, err := svc.VoidRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("VoidRun: %v", err)
	}
	if voided.Status != core.RunVoided {
		t.Errorf("expected voided, got %s", voided.Status)
	}

	// No journal entries for a run that never posted.
	entries, err := repo.ListJournalEntries(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListJournalEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no journal entries, got %d", len(entries))
	}
}
