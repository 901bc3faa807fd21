package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"wagebook/internal/core"
	"wagebook/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "wagebook.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedCompany(t *testing.T, repo *SQLiteRepository) core.Company {
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

func seedEmployee(t *testing.T, repo *SQLiteRepository, companyID int64, staff string) core.Employee {
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

func TestCreateCompanySeedsChart(t *testing.T) {
	repo := newTestRepo(t)
	c := seedCompany(t, repo)

	accounts, err := repo.ListAccounts(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != len(ledger.ChartTemplate) {
		t.Fatalf("expected %d seeded accounts, got %d", len(ledger.ChartTemplate), len(accounts))
	}

	found := false
	for _, a := range accounts {
		if a.Code == ledger.CodePAYEPayable {
			found = true
			if a.Type != ledger.LiabilityAccount {
				t.Errorf("PAYE payable should be a liability, got %s", a.Type)
			}
		}
	}
	if !found {
		t.Error("chart is missing the PAYE payable account")
	}
}

func TestGetCompanyByAPIKey(t *testing.T) {
	repo := newTestRepo(t)
	c := seedCompany(t, repo)

	got, err := repo.GetCompanyByAPIKey(context.Background(), "key-acme")
	if err != nil {
		t.Fatalf("GetCompanyByAPIKey: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("expected company %d, got %d", c.ID, got.ID)
	}

	if _, err := repo.GetCompanyByAPIKey(context.Background(), "no-such-key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown key, got %v", err)
	}
}

func TestEmployeeScopedByCompany(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c1 := seedCompany(t, repo)
	c2, err := repo.CreateCompany(ctx, core.Company{
		Name: "Zenith Co", TaxID: "TIN-0002", PayFrequency: core.Monthly,
		PaydayOfMonth: 28, APIKey: "key-zenith",
	})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}

	e := seedEmployee(t, repo, c1.ID, "EMP-001")

	if _, err := repo.GetEmployee(ctx, c2.ID, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant read should fail with ErrNotFound, got %v", err)
	}
	if _, err := repo.GetEmployee(ctx, c1.ID, e.ID); err != nil {
		t.Errorf("same-tenant read failed: %v", err)
	}
}

func TestListPayableEmployees(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")
	seedEmployee(t, repo, c.ID, "EMP-002")

	// Terminated mid-March: still payable in March, gone from April.
	if err := repo.TerminateEmployee(ctx, c.ID, e.ID, core.NewDate(2026, 3, 15)); err != nil {
		t.Fatalf("TerminateEmployee: %v", err)
	}

	march, err := repo.ListPayableEmployees(ctx, c.ID, core.NewDate(2026, 3, 1))
	if err != nil {
		t.Fatalf("ListPayableEmployees: %v", err)
	}
	if len(march) != 2 {
		t.Fatalf("expected 2 payable employees in March, got %d", len(march))
	}

	april, err := repo.ListPayableEmployees(ctx, c.ID, core.NewDate(2026, 4, 1))
	if err != nil {
		t.Fatalf("ListPayableEmployees: %v", err)
	}
	if len(april) != 1 {
		t.Fatalf("expected 1 payable employee in April, got %d", len(april))
	}
	if april[0].StaffNumber != "EMP-002" {
		t.Errorf("wrong employee remained payable: %s", april[0].StaffNumber)
	}
}

func TestRunTransitionGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)

	run, err := repo.CreateRun(ctx, core.PayrollRun{
		CompanyID: c.ID, Reference: "PR-2026-03", Year: 2026, Month: 3,
		Status: core.RunDraft,
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if err := repo.TransitionRun(ctx, run.ID, core.RunDraft, core.RunQueued); err != nil {
		t.Fatalf("draft -> queued: %v", err)
	}

	// Second attempt must lose: the row is no longer draft.
	if err := repo.TransitionRun(ctx, run.ID, core.RunDraft, core.RunQueued); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on stale transition, got %v", err)
	}

	// Illegal jumps are rejected before touching the database.
	if err := repo.TransitionRun(ctx, run.ID, core.RunQueued, core.RunPosted); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on illegal transition, got %v", err)
	}
}

func TestSaveComputedRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	adv, err := repo.CreateAdvance(ctx, core.Advance{
		CompanyID: c.ID, EmployeeID: e.ID,
		Principal:   core.Money{Kobo: 10_000_000},
		Installment: core.Money{Kobo: 4_000_000},
	})
	if err != nil {
		t.Fatalf("CreateAdvance: %v", err)
	}

	run, err := repo.CreateRun(ctx, core.PayrollRun{
		CompanyID: c.ID, Reference: "PR-2026-03", Year: 2026, Month: 3,
		Status: core.RunDraft,
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	for _, step := range [][2]core.RunStatus{
		{core.RunDraft, core.RunQueued},
		{core.RunQueued, core.RunComputing},
	} {
		if err := repo.TransitionRun(ctx, run.ID, step[0], step[1]); err != nil {
			t.Fatalf("transition %s -> %s: %v", step[0], step[1], err)
		}
	}

	slips := []core.Payslip{{
		EmployeeID:       e.ID,
		Gross:            core.Money{Kobo: 27_500_000},
		PAYE:             core.Money{Kobo: 2_883_066},
		Pension:          core.Money{Kobo: 2_200_000},
		NHF:              core.Money{Kobo: 375_000},
		AdvanceRecovered: core.Money{Kobo: 4_000_000},
		Net:              core.Money{Kobo: 18_041_934},
	}}
	recoveries := []AdvanceRecovery{{AdvanceID: adv.ID, Amount: core.Money{Kobo: 4_000_000}}}

	if err := repo.SaveComputedRun(ctx, run, slips, recoveries); err != nil {
		t.Fatalf("SaveComputedRun: %v", err)
	}

	got, err := repo.GetRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != core.RunComputed {
		t.Errorf("expected computed run, got %s", got.Status)
	}
	if got.TotalNet.Kobo != 18_041_934 {
		t.Errorf("expected net total 18041934, got %d", got.TotalNet.Kobo)
	}
	if got.EmployeeCount != 1 {
		t.Errorf("expected employee count 1, got %d", got.EmployeeCount)
	}

	advances, err := repo.ListAdvances(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListAdvances: %v", err)
	}
	if advances[0].Balance.Kobo != 6_000_000 {
		t.Errorf("expected advance balance 6000000, got %d", advances[0].Balance.Kobo)
	}
	if advances[0].Status != core.AdvanceRecovering {
		t.Errorf("expected recovering advance, got %s", advances[0].Status)
	}
}

func TestSaveComputedRunReplacesPayslips(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	run, _ := repo.CreateRun(ctx, core.PayrollRun{
		CompanyID: c.ID, Reference: "PR-2026-04", Year: 2026, Month: 4,
		Status: core.RunDraft,
	})
	repo.TransitionRun(ctx, run.ID, core.RunDraft, core.RunQueued)
	repo.TransitionRun(ctx, run.ID, core.RunQueued, core.RunComputing)

	slip := core.Payslip{EmployeeID: e.ID, Gross: core.Money{Kobo: 100}, Net: core.Money{Kobo: 90}}
	if err := repo.SaveComputedRun(ctx, run, []core.Payslip{slip}, nil); err != nil {
		t.Fatalf("first SaveComputedRun: %v", err)
	}

	// Recompute path: computed -> queued -> computing, then save again.
	repo.TransitionRun(ctx, run.ID, core.RunComputed, core.RunQueued)
	repo.TransitionRun(ctx, run.ID, core.RunQueued, core.RunComputing)
	slip.Net = core.Money{Kobo: 80}
	if err := repo.SaveComputedRun(ctx, run, []core.Payslip{slip}, nil); err != nil {
		t.Fatalf("second SaveComputedRun: %v", err)
	}

	slips, err := repo.ListPayslipsByRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("ListPayslipsByRun: %v", err)
	}
	if len(slips) != 1 {
		t.Fatalf("expected payslips to be replaced, got %d rows", len(slips))
	}
	if slips[0].Net.Kobo != 80 {
		t.Errorf("expected recomputed net 80, got %d", slips[0].Net.Kobo)
	}
}

func computedRun(t *testing.T, repo *SQLiteRepository, c core.Company, e core.Employee, ref string, month int) core.PayrollRun {
	t.Helper()
	ctx := context.Background()
	run, err := repo.CreateRun(ctx, core.PayrollRun{
		CompanyID: c.ID, Reference: ref, Year: 2026, Month: month,
		Status: core.RunDraft,
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	repo.TransitionRun(ctx, run.ID, core.RunDraft, core.RunQueued)
	repo.TransitionRun(ctx, run.ID, core.RunQueued, core.RunComputing)
	slips := []core.Payslip{{
		EmployeeID: e.ID,
		Gross:      core.Money{Kobo: 27_500_000},
		PAYE:       core.Money{Kobo: 2_883_066},
		Pension:    core.Money{Kobo: 2_200_000},
		NHF:        core.Money{Kobo: 375_000},
		Net:        core.Money{Kobo: 22_041_934},
	}}
	if err := repo.SaveComputedRun(ctx, run, slips, nil); err != nil {
		t.Fatalf("SaveComputedRun: %v", err)
	}
	run.Status = core.RunComputed
	return run
}

func runEntry(t *testing.T, c core.Company, run core.PayrollRun) ledger.Entry {
	t.Helper()
	run.CompanyID = c.ID
	entry, err := ledger.BuildRunEntry(run, ledger.RunTotals{
		Gross:           core.Money{Kobo: 27_500_000},
		EmployerPension: core.Money{Kobo: 2_750_000},
		PAYE:            core.Money{Kobo: 2_883_066},
		EmployeePension: core.Money{Kobo: 2_200_000},
		NHF:             core.Money{Kobo: 375_000},
		Net:             core.Money{Kobo: 22_041_934},
	})
	if err != nil {
		t.Fatalf("BuildRunEntry: %v", err)
	}
	return entry
}

func TestPostRunWritesBalancedEntry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")
	run := computedRun(t, repo, c, e, "PR-2026-05", 5)

	if err := repo.TransitionRun(ctx, run.ID, core.RunComputed, core.RunApproved); err != nil {
		t.Fatalf("approve run: %v", err)
	}

	if err := repo.PostRun(ctx, run, runEntry(t, c, run)); err != nil {
		t.Fatalf("PostRun: %v", err)
	}

	got, err := repo.GetRun(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != core.RunPosted {
		t.Errorf("expected posted run, got %s", got.Status)
	}

	tb, err := repo.TrialBalance(ctx, c.ID)
	if err != nil {
		t.Fatalf("TrialBalance: %v", err)
	}
	var dr, cr int64
	for _, row := range tb {
		dr += row.DebitKobo
		cr += row.CreditKobo
	}
	if dr != cr {
		t.Errorf("trial balance out of balance: dr=%d cr=%d", dr, cr)
	}
	if dr == 0 {
		t.Error("expected posted amounts in the trial balance")
	}
}

func TestPostRunRequiresApproval(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")
	run := computedRun(t, repo, c, e, "PR-2026-06", 6)

	// Still computed, never approved.
	if err := repo.PostRun(ctx, run, runEntry(t, c, run)); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict posting unapproved run, got %v", err)
	}
}

func TestVoidPostedRunReverses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")
	run := computedRun(t, repo, c, e, "PR-2026-07", 7)

	repo.TransitionRun(ctx, run.ID, core.RunComputed, core.RunApproved)
	if err := repo.PostRun(ctx, run, runEntry(t, c, run)); err != nil {
		t.Fatalf("PostRun: %v", err)
	}

	original, err := repo.GetRunEntry(ctx, c.ID, run.ID)
	if err != nil {
		t.Fatalf("GetRunEntry: %v", err)
	}
	reversal, err := ledger.Reverse(original, ledger.ReversalReasonRunVoid)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	run.Status = core.RunPosted
	if err := repo.VoidRun(ctx, run, &reversal); err != nil {
		t.Fatalf("VoidRun: %v", err)
	}

	got, _ := repo.GetRun(ctx, c.ID, run.ID)
	if got.Status != core.RunVoided {
		t.Errorf("expected voided run, got %s", got.Status)
	}

	tb, err := repo.TrialBalance(ctx, c.ID)
	if err != nil {
		t.Fatalf("TrialBalance: %v", err)
	}
	for _, row := range tb {
		if row.DebitKobo != row.CreditKobo {
			t.Errorf("account %s should net to zero after reversal: dr=%d cr=%d",
				row.AccountCode, row.DebitKobo, row.CreditKobo)
		}
	}
}

func TestResolveLeaveDrawsDownBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	lr, err := repo.CreateLeave(ctx, core.LeaveRequest{
		CompanyID:  c.ID,
		EmployeeID: e.ID,
		Type:       core.LeaveAnnual,
		StartDate:  core.NewDate(2026, 6, 1),
		EndDate:    core.NewDate(2026, 6, 5),
		Days:       5,
		Reason:     "family event",
		Status:     core.LeavePending,
	})
	if err != nil {
		t.Fatalf("CreateLeave: %v", err)
	}

	if err := repo.ResolveLeave(ctx, lr, core.LeaveApproved); err != nil {
		t.Fatalf("ResolveLeave: %v", err)
	}

	got, err := repo.GetEmployee(ctx, c.ID, e.ID)
	if err != nil {
		t.Fatalf("GetEmployee: %v", err)
	}
	if got.LeaveBalanceDays != 15 {
		t.Errorf("expected leave balance 15, got %d", got.LeaveBalanceDays)
	}

	// Already resolved, second decision must conflict.
	if err := repo.ResolveLeave(ctx, lr, core.LeaveRejected); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on double resolution, got %v", err)
	}
}

func TestUnpaidLeaveDaysClippedToPeriod(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	// Spans late June into early July: only the July part counts for July.
	lr, err := repo.CreateLeave(ctx, core.LeaveRequest{
		CompanyID:  c.ID,
		EmployeeID: e.ID,
		Type:       core.LeaveUnpaid,
		StartDate:  core.NewDate(2026, 6, 28),
		EndDate:    core.NewDate(2026, 7, 4),
		Days:       7,
		Status:     core.LeavePending,
	})
	if err != nil {
		t.Fatalf("CreateLeave: %v", err)
	}
	if err := repo.ResolveLeave(ctx, lr, core.LeaveApproved); err != nil {
		t.Fatalf("ResolveLeave: %v", err)
	}

	days, err := repo.UnpaidLeaveDaysInPeriod(ctx, c.ID, e.ID, 2026, 7)
	if err != nil {
		t.Fatalf("UnpaidLeaveDaysInPeriod: %v", err)
	}
	if days != 4 {
		t.Errorf("expected 4 unpaid days in July, got %d", days)
	}

	days, err = repo.UnpaidLeaveDaysInPeriod(ctx, c.ID, e.ID, 2026, 6)
	if err != nil {
		t.Fatalf("UnpaidLeaveDaysInPeriod: %v", err)
	}
	if days != 3 {
		t.Errorf("expected 3 unpaid days in June, got %d", days)
	}
}

func TestStaleComputingRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCompany(t, repo)

	run, _ := repo.CreateRun(ctx, core.PayrollRun{
		CompanyID: c.ID, Reference: "PR-2026-08", Year: 2026, Month: 8,
		Status: core.RunDraft,
	})
	repo.TransitionRun(ctx, run.ID, core.RunDraft, core.RunQueued)
	repo.TransitionRun(ctx, run.ID, core.RunQueued, core.RunComputing)

	stale, err := repo.StaleComputingRuns(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("StaleComputingRuns: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != run.ID {
		t.Fatalf("expected the computing run to be reported stale, got %v", stale)
	}

	// A cutoff in the past reports nothing.
	stale, err = repo.StaleComputingRuns(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("StaleComputingRuns: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("expected no stale runs, got %d", len(stale))
	}
}
