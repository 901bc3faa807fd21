package services

import (
	"context"
	"fmt"
	"log/slog"

	"wagebook/internal/core"
	"wagebook/internal/ledger"
	"wagebook/internal/storage"
)

// AdvanceService issues salary advances and keeps the ledger in step.
type AdvanceService struct {
	storage *storage.SQLiteRepository
}

func NewAdvanceService(storage *storage.SQLiteRepository) *AdvanceService {
	return &AdvanceService{storage: storage}
}

// IssueAdvance validates and records an advance together with its
// disbursement entry (Dr advances receivable, Cr bank).
func (s *AdvanceService) IssueAdvance(ctx context.Context, a core.Advance) (core.Advance, error) {
	if err := a.Validate(); err != nil {
		return core.Advance{}, err
	}

	emp, err := s.storage.GetEmployee(ctx, a.CompanyID, a.EmployeeID)
	if err != nil {
		return core.Advance{}, fmt.Errorf("load employee: %w", err)
	}
	if emp.Status != core.EmployeeActive {
		return core.Advance{}, fmt.Errorf("employee %s is not active", emp.StaffNumber)
	}

	issued, err := s.storage.IssueAdvance(ctx, a, func(advanceID int64) (ledger.Entry, error) {
		return ledger.BuildAdvanceEntry(a.CompanyID, fmt.Sprintf("ADV-%d-%d", a.CompanyID, advanceID), a.Principal)
	})
	if err != nil {
		return core.Advance{}, err
	}

	slog.InfoContext(ctx, "Salary advance issued",
		"advance_id", issued.ID,
		"employee_id", a.EmployeeID,
		"principal_kobo", a.Principal.Kobo,
		"installment_kobo", a.Installment.Kobo)
	return issued, nil
}

// ListAdvances returns all advances for a company.
func (s *AdvanceService) ListAdvances(ctx context.Context, companyID int64) ([]core.Advance, error) {
	return s.storage.ListAdvances(ctx, companyID)
}
