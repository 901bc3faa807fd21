package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

// ErrInsufficientLeaveBalance is returned when an annual leave request
// exceeds the employee's remaining balance.
var ErrInsufficientLeaveBalance = errors.New("insufficient leave balance")

// LeaveService handles leave requests and approvals.
type LeaveService struct {
	storage *storage.SQLiteRepository
}

func NewLeaveService(storage *storage.SQLiteRepository) *LeaveService {
	return &LeaveService{storage: storage}
}

// RequestLeave validates and records a pending leave request. Days is
// derived from the date span, inclusive of both ends.
func (s *LeaveService) RequestLeave(ctx context.Context, lr core.LeaveRequest) (core.LeaveRequest, error) {
	lr.Days = core.LeaveDays(lr.StartDate, lr.EndDate)
	lr.Status = core.LeavePending
	if err := lr.Validate(); err != nil {
		return core.LeaveRequest{}, err
	}

	emp, err := s.storage.GetEmployee(ctx, lr.CompanyID, lr.EmployeeID)
	if err != nil {
		return core.LeaveRequest{}, fmt.Errorf("load employee: %w", err)
	}
	if emp.Status != core.EmployeeActive {
		return core.LeaveRequest{}, fmt.Errorf("employee %s is not active", emp.StaffNumber)
	}
	if lr.Type == core.LeaveAnnual && lr.Days > emp.LeaveBalanceDays {
		return core.LeaveRequest{}, fmt.Errorf("%w: requested %d, available %d",
			ErrInsufficientLeaveBalance, lr.Days, emp.LeaveBalanceDays)
	}

	created, err := s.storage.CreateLeave(ctx, lr)
	if err != nil {
		return core.LeaveRequest{}, fmt.Errorf("create leave request: %w", err)
	}

	slog.InfoContext(ctx, "Leave requested",
		"leave_id", created.ID,
		"employee_id", lr.EmployeeID,
		"type", lr.Type,
		"days", lr.Days)
	return created, nil
}

// ApproveLeave approves a pending request. Annual leave draws down the
// employee's balance; the balance is re-checked at approval time.
func (s *LeaveService) ApproveLeave(ctx context.Context, companyID, leaveID int64) (core.LeaveRequest, error) {
	lr, err := s.storage.GetLeave(ctx, companyID, leaveID)
	if err != nil {
		return core.LeaveRequest{}, fmt.Errorf("load leave request: %w", err)
	}

	if lr.Type == core.LeaveAnnual {
		emp, err := s.storage.GetEmployee(ctx, companyID, lr.EmployeeID)
		if err != nil {
			return core.LeaveRequest{}, fmt.Errorf("load employee: %w", err)
		}
		if lr.Days > emp.LeaveBalanceDays {
			return core.LeaveRequest{}, fmt.Errorf("%w: requested %d, available %d",
				ErrInsufficientLeaveBalance, lr.Days, emp.LeaveBalanceDays)
		}
	}

	if err := s.storage.ResolveLeave(ctx, lr, core.LeaveApproved); err != nil {
		return core.LeaveRequest{}, err
	}
	lr.Status = core.LeaveApproved

	slog.InfoContext(ctx, "Leave approved",
		"leave_id", lr.ID,
		"employee_id", lr.EmployeeID,
		"days", lr.Days)
	return lr, nil
}

// RejectLeave rejects a pending request.
func (s *LeaveService) RejectLeave(ctx context.Context, companyID, leaveID int64) (core.LeaveRequest, error) {
	lr, err := s.storage.GetLeave(ctx, companyID, leaveID)
	if err != nil {
		return core.LeaveRequest{}, fmt.Errorf("load leave request: %w", err)
	}
	if err := s.storage.ResolveLeave(ctx, lr, core.LeaveRejected); err != nil {
		return core.LeaveRequest{}, err
	}
	lr.Status = core.LeaveRejected
	return lr, nil
}
