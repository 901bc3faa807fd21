package http

import (
	"errors"
	"log/slog"
	"net/http"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

type advanceResponse struct {
	ID          int64  `json:"id"`
	EmployeeID  int64  `json:"employee_id"`
	Principal   int64  `json:"principal_kobo"`
	Installment int64  `json:"installment_kobo"`
	Balance     int64  `json:"balance_kobo"`
	Status      string `json:"status"`
}

func toAdvanceResponse(a core.Advance) advanceResponse {
	return advanceResponse{
		ID:          a.ID,
		EmployeeID:  a.EmployeeID,
		Principal:   a.Principal.Kobo,
		Installment: a.Installment.Kobo,
		Balance:     a.Balance.Kobo,
		Status:      string(a.Status),
	}
}

func (s *Server) handleListAdvances(w http.ResponseWriter, r *http.Request, company core.Company) {
	advances, err := s.advances.ListAdvances(r.Context(), company.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List advances failed", "error", err, "company_id", company.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]advanceResponse, len(advances))
	for i, a := range advances {
		out[i] = toAdvanceResponse(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIssueAdvance(w http.ResponseWriter, r *http.Request, company core.Company) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	principal, err := core.ParseDecimalToKobo(p.Get("principal"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid principal: "+err.Error())
		return
	}
	installment, err := core.ParseDecimalToKobo(p.Get("installment"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid installment: "+err.Error())
		return
	}

	issued, err := s.advances.IssueAdvance(r.Context(), core.Advance{
		CompanyID:   company.ID,
		EmployeeID:  p.GetInt64("employee_id"),
		Principal:   core.Money{Kobo: principal},
		Installment: core.Money{Kobo: installment},
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "employee not found")
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toAdvanceResponse(issued))
}
