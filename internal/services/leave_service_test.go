package services

import (
	"context"
	"errors"
	"testing"

	"wagebook/internal/core"
)

func TestRequestLeaveComputesDays(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewLeaveService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	lr, err := svc.RequestLeave(ctx, core.LeaveRequest{
		CompanyID:  c.ID,
		EmployeeID: e.ID,
		Type:       core.LeaveAnnual,
		StartDate:  core.NewDate(2026, 6, 1),
		EndDate:    core.NewDate(2026, 6, 5),
		Reason:     "family event",
	})
	if err != nil {
		t.Fatalf("RequestLeave: %v", err)
	}
	if lr.Days != 5 {
		t.Errorf("expected 5 days, got %d", lr.Days)
	}
	if lr.Status != core.LeavePending {
		t.Errorf("expected pending, got %s", lr.Status)
	}
}

func TestRequestLeaveInsufficientBalance(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewLeaveService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001") // 20 days balance

	_, err := svc.RequestLeave(ctx, core.LeaveRequest{
		CompanyID:  c.ID,
		EmployeeID: e.ID,
		Type:       core.LeaveAnnual,
		StartDate:  core.NewDate(2026, 6, 1),
		EndDate:    core.NewDate(2026, 6, 30),
	})
	if !errors.Is(err, ErrInsufficientLeaveBalance) {
		t.Errorf("expected ErrInsufficientLeaveBalance, got %v", err)
	}
}

func TestRequestUnpaidLeaveIgnoresBalance(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewLeaveService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	// 30 unpaid days exceed the 20-day annual balance but are fine.
	lr, err := svc.RequestLeave(ctx, core.LeaveRequest{
		CompanyID:  c.ID,
		EmployeeID: e.ID,
		Type:       core.LeaveUnpaid,
		StartDate:  core.NewDate(2026, 6, 1),
		EndDate:    core.NewDate(2026, 6, 30),
	})
	if err != nil {
		t.Fatalf("RequestLeave: %v", err)
	}
	if lr.Days != 30 {
		t.Errorf("expected 30 days, got %d", lr.Days)
	}
}

func TestApproveLeaveDrawsDownBalance(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewLeaveService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	lr, err := svc.RequestLeave(ctx, core.LeaveRequest{
		CompanyID:  c.ID,
		EmployeeID: e.ID,
		Type:       core.LeaveAnnual,
		StartDate:  core.NewDate(2026, 6, 1),
		EndDate:    core.NewDate(2026, 6, 5),
	})
	if err != nil {
		t.Fatalf("RequestLeave: %v", err)
	}

	approved, err := svc.ApproveLeave(ctx, c.ID, lr.ID)
	if err != nil {
		t.Fatalf("ApproveLeave: %v", err)
	}
	if approved.Status != core.LeaveApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}

	emp, _ := repo.GetEmployee(ctx, c.ID, e.ID)
	if emp.LeaveBalanceDays != 15 {
		t.Errorf("expected balance 15, got %d", emp.LeaveBalanceDays)
	}
}

func TestRejectLeaveKeepsBalance(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewLeaveService(repo)
	ctx := context.Background()
	c := seedCompany(t, repo)
	e := seedEmployee(t, repo, c.ID, "EMP-001")

	lr, err := svc.RequestLeave(ctx, core.LeaveRequest{
		CompanyID:  c.ID,
		EmployeeID: e.ID,
		Type:       core.LeaveAnnual,
		StartDate:  core.NewDate(2026, 6, 1),
		EndDate:    core.NewDate(2026, 6, 5),
	})
	if err != nil {
		t.Fatalf("RequestLeave: %v", err)
	}

	rejected, err := svc.RejectLeave(ctx, c.ID, lr.ID)
	if err != nil {
		t.Fatalf("RejectLeave: %v", err)
	}
	if rejected.Status != core.LeaveRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}

	emp, _ := repo.GetEmployee(ctx, c.ID, e.ID)
	if emp.LeaveBalanceDays != 20 {
		t.Errorf("expected balance untouched at 20, got %d", emp.LeaveBalanceDays)
	}
}
