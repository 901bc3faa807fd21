package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

type runResponse struct {
	ID            int64  `json:"id"`
	Reference     string `json:"reference"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	Status        string `json:"status"`
	TotalGross    int64  `json:"total_gross_kobo"`
	TotalPAYE     int64  `json:"total_paye_kobo"`
	TotalNet      int64  `json:"total_net_kobo"`
	EmployeeCount int    `json:"employee_count"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func toRunResponse(run core.PayrollRun) runResponse {
	return runResponse{
		ID:            run.ID,
		Reference:     run.Reference,
		Year:          run.Year,
		Month:         run.Month,
		Status:        string(run.Status),
		TotalGross:    run.TotalGross.Kobo,
		TotalPAYE:     run.TotalPAYE.Kobo,
		TotalNet:      run.TotalNet.Kobo,
		EmployeeCount: run.EmployeeCount,
		FailureReason: run.FailureReason,
	}
}

type payslipResponse struct {
	ID               int64 `json:"id"`
	EmployeeID       int64 `json:"employee_id"`
	Gross            int64 `json:"gross_kobo"`
	CRARelief        int64 `json:"cra_relief_kobo"`
	Pension          int64 `json:"pension_kobo"`
	NHF              int64 `json:"nhf_kobo"`
	NHIS             int64 `json:"nhis_kobo"`
	Taxable          int64 `json:"taxable_kobo"`
	PAYE             int64 `json:"paye_kobo"`
	AdvanceRecovered int64 `json:"advance_recovered_kobo"`
	Net              int64 `json:"net_kobo"`
}

func toPayslipResponse(p core.Payslip) payslipResponse {
	return payslipResponse{
		ID:               p.ID,
		EmployeeID:       p.EmployeeID,
		Gross:            p.Gross.Kobo,
		CRARelief:        p.CRARelief.Kobo,
		Pension:          p.Pension.Kobo,
		NHF:              p.NHF.Kobo,
		NHIS:             p.NHIS.Kobo,
		Taxable:          p.Taxable.Kobo,
		PAYE:             p.PAYE.Kobo,
		AdvanceRecovered: p.AdvanceRecovered.Kobo,
		Net:              p.Net.Kobo,
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request, company core.Company) {
	key := cacheKey(company.ID, "runs")
	runs, found := s.runsCache.Get(key)
	if !found {
		var err error
		runs, err = s.storage.ListRuns(r.Context(), company.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "List runs failed", "error", err, "company_id", company.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.runsCache.Set(key, runs)
	}

	out := make([]runResponse, len(runs))
	for i, run := range runs {
		out[i] = toRunResponse(run)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOpenRun(w http.ResponseWriter, r *http.Request, company core.Company) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	year := p.GetInt("year", 0)
	month := p.GetInt("month", 0)
	run, err := s.payroll.OpenRun(r.Context(), company.ID, year, month)
	if errors.Is(err, core.ErrInvalidRunPeriod) {
		writeError(w, http.StatusUnprocessableEntity, "invalid run period")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Open run failed", "error", err, "company_id", company.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateRuns(company.ID)
	writeJSON(w, http.StatusCreated, toRunResponse(run))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, company core.Company) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.storage.GetRun(r.Context(), company.ID, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (s *Server) handleQueueRun(w http.ResponseWriter, r *http.Request, company core.Company) {
	s.handleRunTransition(w, r, company, s.payroll.QueueRun)
}

func (s *Server) handleApproveRun(w http.ResponseWriter, r *http.Request, company core.Company) {
	s.handleRunTransition(w, r, company, s.payroll.ApproveRun)
}

func (s *Server) handlePostRun(w http.ResponseWriter, r *http.Request, company core.Company) {
	s.handleRunTransition(w, r, company, s.payroll.PostRun)
}

func (s *Server) handleVoidRun(w http.ResponseWriter, r *http.Request, company core.Company) {
	s.handleRunTransition(w, r, company, s.payroll.VoidRun)
}

// handleRunTransition executes a lifecycle action and maps its errors onto
// HTTP codes. Status conflicts surface as 409 so clients can retry on fresh
// state.
func (s *Server) handleRunTransition(w http.ResponseWriter, r *http.Request, company core.Company,
	transition func(ctx context.Context, companyID, runID int64) (core.PayrollRun, error)) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := transition(r.Context(), company.ID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "run is not in a state that allows this action")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Run transition failed", "error", err, "run_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateRuns(company.ID)
	s.invalidatePayslips(company.ID, id)
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (s *Server) handleListPayslips(w http.ResponseWriter, r *http.Request, company core.Company) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	key := cacheKey(company.ID, "slips:"+strconv.FormatInt(id, 10))
	slips, found := s.slipsCache.Get(key)
	if !found {
		var err error
		slips, err = s.storage.ListPayslipsByRun(r.Context(), company.ID, id)
		if err != nil {
			slog.ErrorContext(r.Context(), "List payslips failed", "error", err, "run_id", id)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.slipsCache.Set(key, slips)
	}

	out := make([]payslipResponse, len(slips))
	for i, slip := range slips {
		out[i] = toPayslipResponse(slip)
	}
	writeJSON(w, http.StatusOK, out)
}
