package http

import (
	"errors"
	"log/slog"
	"net/http"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

type employeeResponse struct {
	ID               int64  `json:"id"`
	StaffNumber      string `json:"staff_number"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email,omitempty"`
	AnnualBasic      int64  `json:"annual_basic_kobo"`
	AnnualHousing    int64  `json:"annual_housing_kobo"`
	AnnualTransport  int64  `json:"annual_transport_kobo"`
	AnnualOther      int64  `json:"annual_other_kobo"`
	PensionEnrolled  bool   `json:"pension_enrolled"`
	NHFEnrolled      bool   `json:"nhf_enrolled"`
	NHISEnrolled     bool   `json:"nhis_enrolled"`
	HireDate         string `json:"hire_date"`
	TerminationDate  string `json:"termination_date,omitempty"`
	Status           string `json:"status"`
	LeaveBalanceDays int    `json:"leave_balance_days"`
}

func toEmployeeResponse(e core.Employee) employeeResponse {
	resp := employeeResponse{
		ID:               e.ID,
		StaffNumber:      e.StaffNumber,
		FirstName:        e.FirstName,
		LastName:         e.LastName,
		Email:            e.Email,
		AnnualBasic:      e.Annual.Basic.Kobo,
		AnnualHousing:    e.Annual.Housing.Kobo,
		AnnualTransport:  e.Annual.Transport.Kobo,
		AnnualOther:      e.Annual.Other.Kobo,
		PensionEnrolled:  e.PensionEnrolled,
		NHFEnrolled:      e.NHFEnrolled,
		NHISEnrolled:     e.NHISEnrolled,
		HireDate:         e.HireDate.Format("2006-01-02"),
		Status:           string(e.Status),
		LeaveBalanceDays: e.LeaveBalanceDays,
	}
	if !e.TerminationDate.IsEmpty() {
		resp.TerminationDate = e.TerminationDate.Format("2006-01-02")
	}
	return resp
}

func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request, company core.Company) {
	employees, err := s.storage.ListEmployees(r.Context(), company.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List employees failed", "error", err, "company_id", company.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]employeeResponse, len(employees))
	for i, e := range employees {
		out[i] = toEmployeeResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// employeeFromBody builds an Employee from a JSON or form body. Monetary
// fields accept decimal naira strings.
func employeeFromBody(p *RequestBodyParser, companyID int64) (core.Employee, error) {
	basic, err := core.ParseDecimalToKobo(p.Get("annual_basic"))
	if err != nil {
		return core.Employee{}, errors.New("invalid annual_basic: " + err.Error())
	}
	housing, err := parseOptionalAmount(p.Get("annual_housing"))
	if err != nil {
		return core.Employee{}, errors.New("invalid annual_housing: " + err.Error())
	}
	transport, err := parseOptionalAmount(p.Get("annual_transport"))
	if err != nil {
		return core.Employee{}, errors.New("invalid annual_transport: " + err.Error())
	}
	other, err := parseOptionalAmount(p.Get("annual_other"))
	if err != nil {
		return core.Employee{}, errors.New("invalid annual_other: " + err.Error())
	}
	hireDate, err := parseDateParam(p.Get("hire_date"))
	if err != nil {
		return core.Employee{}, errors.New("invalid hire_date, expected YYYY-MM-DD")
	}

	return core.Employee{
		CompanyID:   companyID,
		StaffNumber: p.Get("staff_number"),
		FirstName:   p.Get("first_name"),
		LastName:    p.Get("last_name"),
		Email:       p.Get("email"),
		Annual: core.Salary{
			Basic:     core.Money{Kobo: basic},
			Housing:   core.Money{Kobo: housing},
			Transport: core.Money{Kobo: transport},
			Other:     core.Money{Kobo: other},
		},
		PensionEnrolled:  p.GetBool("pension_enrolled"),
		NHFEnrolled:      p.GetBool("nhf_enrolled"),
		NHISEnrolled:     p.GetBool("nhis_enrolled"),
		HireDate:         hireDate,
		Status:           core.EmployeeActive,
		LeaveBalanceDays: p.GetInt("leave_balance_days", 20),
	}, nil
}

func parseOptionalAmount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return core.ParseDecimalToKobo(s)
}

func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request, company core.Company) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	emp, err := employeeFromBody(p, company.ID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := emp.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.storage.CreateEmployee(r.Context(), emp)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create employee failed", "error", err, "company_id", company.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.InfoContext(r.Context(), "Employee created",
		"employee_id", created.ID,
		"company_id", company.ID,
		"staff_number", created.StaffNumber)
	writeJSON(w, http.StatusCreated, toEmployeeResponse(created))
}

func (s *Server) handleGetEmployee(w http.ResponseWriter, r *http.Request, company core.Company) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	emp, err := s.storage.GetEmployee(r.Context(), company.ID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "employee not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get employee failed", "error", err, "employee_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponse(emp))
}

func (s *Server) handleUpdateEmployee(w http.ResponseWriter, r *http.Request, company core.Company) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	existing, err := s.storage.GetEmployee(r.Context(), company.ID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "employee not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, err := employeeFromBody(p, company.ID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.TerminationDate = existing.TerminationDate
	if err := updated.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.storage.UpdateEmployee(r.Context(), updated); err != nil {
		slog.ErrorContext(r.Context(), "Update employee failed", "error", err, "employee_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponse(updated))
}

func (s *Server) handleTerminateEmployee(w http.ResponseWriter, r *http.Request, company core.Company) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	date, err := parseDateParam(p.Get("termination_date"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid termination_date, expected YYYY-MM-DD")
		return
	}

	if _, err := s.storage.GetEmployee(r.Context(), company.ID, id); errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "employee not found")
		return
	}

	if err := s.storage.TerminateEmployee(r.Context(), company.ID, id, date); err != nil {
		slog.ErrorContext(r.Context(), "Terminate employee failed", "error", err, "employee_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.InfoContext(r.Context(), "Employee terminated",
		"employee_id", id,
		"company_id", company.ID,
		"termination_date", date.Format("2006-01-02"))
	w.WriteHeader(http.StatusNoContent)
}
