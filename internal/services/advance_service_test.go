package services

import (
	"context"
	"errors"
	"testing"

	"wagebook/internal/core"
	"wagebook/internal/ledger"
)

func TestIssueAdvanceWritesDisbursementEntry(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewAdvanceService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	a, err := svc.IssueAdvance(ctx, core.Advance{
		CompanyID:   c.ID,
		EmployeeID:  e.ID,
		Principal:   core.Money{Kobo: 10_000_000},
		Installment: core.Money{Kobo: 2_000_000},
	})
	if err != nil {
		t.Fatalf("IssueAdvance: %v", err)
	}
	if a.Balance.Kobo != 10_000_000 {
		t.Errorf("expected opening balance 10_000_000, got %d", a.Balance.Kobo)
	}
	if a.Status != core.AdvanceOpen {
		t.Errorf("expected open advance, got %s", a.Status)
	}

	views, err := repo.ListJournalEntries(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListJournalEntries: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(views))
	}
	entry := views[0].Entry
	if !entry.Balanced() {
		t.Error("disbursement entry is not balanced")
	}
	var drReceivable, crBank int64
	for _, l := range entry.Lines {
		switch l.AccountCode {
		case ledger.CodeAdvancesReceivable:
			drReceivable = l.Debit.Kobo
		case ledger.CodeBank:
			crBank = l.Credit.Kobo
		}
	}
	if drReceivable != 10_000_000 || crBank != 10_000_000 {
		t.Errorf("expected Dr receivable / Cr bank of 10_000_000, got %d / %d", drReceivable, crBank)
	}
}

func TestIssueAdvanceRejectsInstallmentOverPrincipal(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewAdvanceService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	_, err := svc.IssueAdvance(ctx, core.Advance{
		CompanyID:   c.ID,
		EmployeeID:  e.ID,
		Principal:   core.Money{Kobo: 1_000_000},
		Installment: core.Money{Kobo: 2_000_000},
	})
	if !errors.Is(err, core.ErrInvalidInstallment) {
		t.Errorf("expected ErrInvalidInstallment, got %v", err)
	}
}

func TestIssueAdvanceRejectsInactiveEmployee(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewAdvanceService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")
	if err := repo.TerminateEmployee(ctx, c.ID, e.ID, core.NewDate(2026, 1, 31)); err != nil {
		t.Fatalf("TerminateEmployee: %v", err)
	}

	_, err := svc.IssueAdvance(ctx, core.Advance{
		CompanyID:   c.ID,
		EmployeeID:  e.ID,
		Principal:   core.Money{Kobo: 1_000_000},
		Installment: core.Money{Kobo: 500_000},
	})
	if err == nil {
		t.Fatal("expected error for terminated employee")
	}

	// Nothing should have hit the ledger.
	views, err := repo.ListJournalEntries(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListJournalEntries: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("expected no journal entries, got %d", len(views))
	}
}

func TestListAdvances(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewAdvanceService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	for _, kobo := range []int64{5_000_000, 3_000_000} {
		_, err := svc.IssueAdvance(ctx, core.Advance{
			CompanyID:   c.ID,
			EmployeeID:  e.ID,
			Principal:   core.Money{Kobo: kobo},
			Installment: core.Money{Kobo: 1_000_000},
		})
		if err != nil {
			t.Fatalf("IssueAdvance: %v", err)
		}
	}

	advances, err := svc.ListAdvances(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListAdvances: %v", err)
	}
	if len(advances) != 2 {
		t.Errorf("expected 2 advances, got %d", len(advances))
	}
}
