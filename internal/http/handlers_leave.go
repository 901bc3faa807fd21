package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"wagebook/internal/core"
	"wagebook/internal/services"
	"wagebook/internal/storage"
)

type leaveResponse struct {
	ID         int64  `json:"id"`
	EmployeeID int64  `json:"employee_id"`
	Type       string `json:"type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Days       int    `json:"days"`
	Reason     string `json:"reason,omitempty"`
	Status     string `json:"status"`
}

func toLeaveResponse(lr core.LeaveRequest) leaveResponse {
	return leaveResponse{
		ID:         lr.ID,
		EmployeeID: lr.EmployeeID,
		Type:       string(lr.Type),
		StartDate:  lr.StartDate.Format("2006-01-02"),
		EndDate:    lr.EndDate.Format("2006-01-02"),
		Days:       lr.Days,
		Reason:     lr.Reason,
		Status:     string(lr.Status),
	}
}

func (s *Server) handleListLeave(w http.ResponseWriter, r *http.Request, company core.Company) {
	requests, err := s.storage.ListLeave(r.Context(), company.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List leave failed", "error", err, "company_id", company.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]leaveResponse, len(requests))
	for i, lr := range requests {
		out[i] = toLeaveResponse(lr)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRequestLeave(w http.ResponseWriter, r *http.Request, company core.Company) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	start, err := parseDateParam(p.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	end, err := parseDateParam(p.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	lr, err := s.leave.RequestLeave(r.Context(), core.LeaveRequest{
		CompanyID:  company.ID,
		EmployeeID: p.GetInt64("employee_id"),
		Type:       core.LeaveType(p.Get("type")),
		StartDate:  start,
		EndDate:    end,
		Reason:     p.Get("reason"),
	})
	switch {
	case errors.Is(err, services.ErrInsufficientLeaveBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "employee not found")
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveResponse(lr))
}

func (s *Server) handleApproveLeave(w http.ResponseWriter, r *http.Request, company core.Company) {
	s.handleLeaveResolution(w, r, company, s.leave.ApproveLeave)
}

func (s *Server) handleRejectLeave(w http.ResponseWriter, r *http.Request, company core.Company) {
	s.handleLeaveResolution(w, r, company, s.leave.RejectLeave)
}

func (s *Server) handleLeaveResolution(w http.ResponseWriter, r *http.Request, company core.Company,
	resolve func(ctx context.Context, companyID, leaveID int64) (core.LeaveRequest, error)) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid leave id")
		return
	}

	lr, err := resolve(r.Context(), company.ID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "leave request not found")
		return
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "leave request already resolved")
		return
	case errors.Is(err, services.ErrInsufficientLeaveBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Leave resolution failed", "error", err, "leave_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toLeaveResponse(lr))
}
