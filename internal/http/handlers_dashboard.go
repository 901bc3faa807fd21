package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wagebook/internal/core"
	"wagebook/internal/storage"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, company core.Company) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := struct {
		CompanyName string
		Year        int
		Month       int
	}{
		CompanyName: company.Name,
		Year:        now.Year(),
		Month:       int(now.Month()),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleRunOverview renders the run overview partial for a period.
func (s *Server) handleRunOverview(w http.ResponseWriter, r *http.Request, company core.Company) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	year, month := parsePeriod(r)
	if month < 1 || month > 12 {
		slog.WarnContext(r.Context(), "Invalid month parameter", "year", year, "month", month)
		month = int(time.Now().Month())
	}

	run, err := s.storage.GetRunByPeriod(r.Context(), company.ID, year, month)
	if errors.Is(err, storage.ErrNotFound) {
		_, _ = w.Write([]byte(`<section id="run-overview" class="run-overview"><div class="placeholder">No payroll run for this period</div></section>`))
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Run overview error", "error", err, "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="run-overview" class="run-overview"><div class="placeholder">Error loading run overview</div></section>`))
		return
	}

	type row struct {
		EmployeeID int64
		Gross      string
		PAYE       string
		Net        string
	}
	data := struct {
		Reference  string
		Year       int
		Month      int
		Status     string
		TotalGross string
		TotalPAYE  string
		TotalNet   string
		Employees  int
		Rows       []row
	}{
		Reference:  run.Reference,
		Year:       run.Year,
		Month:      run.Month,
		Status:     string(run.Status),
		TotalGross: formatNaira(run.TotalGross.Kobo),
		TotalPAYE:  formatNaira(run.TotalPAYE.Kobo),
		TotalNet:   formatNaira(run.TotalNet.Kobo),
		Employees:  run.EmployeeCount,
	}

	slips, err := s.storage.ListPayslipsByRun(r.Context(), company.ID, run.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List payslips error", "error", err, "run_id", run.ID)
	} else {
		for _, slip := range slips {
			data.Rows = append(data.Rows, row{
				EmployeeID: slip.EmployeeID,
				Gross:      formatNaira(slip.Gross.Kobo),
				PAYE:       formatNaira(slip.PAYE.Kobo),
				Net:        formatNaira(slip.Net.Kobo),
			})
		}
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="run-overview" class="run-overview"><div class="placeholder">` + data.Reference + `: ` + data.TotalNet + `</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "run_overview.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "run_overview.html")
		_, _ = w.Write([]byte(`<section id="run-overview" class="run-overview"><div class="placeholder">Error rendering run overview</div></section>`))
	}
}

// handleOpenRunForm opens and queues the requested period's run from the
// dashboard form, replying with an HTMX fragment.
func (s *Server) handleOpenRunForm(w http.ResponseWriter, r *http.Request, company core.Company) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		FragmentError(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}

	now := time.Now()
	year := p.GetInt("year", now.Year())
	month := p.GetInt("month", int(now.Month()))

	run, err := s.payroll.OpenRun(r.Context(), company.ID, year, month)
	if errors.Is(err, core.ErrInvalidRunPeriod) {
		FragmentError(http.StatusUnprocessableEntity, "Invalid period").Write(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Open run failed", "error", err, "company_id", company.ID)
		FragmentError(http.StatusInternalServerError, "Could not open run").Write(w)
		return
	}

	if run.Status == core.RunDraft || run.Status == core.RunFailed {
		run, err = s.payroll.QueueRun(r.Context(), company.ID, run.ID)
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			slog.ErrorContext(r.Context(), "Queue run failed", "error", err, "run_id", run.ID)
			FragmentError(http.StatusInternalServerError, "Could not queue run").Write(w)
			return
		}
	}

	s.invalidateRuns(company.ID)
	NewHTMXResponse().
		TriggerRunQueued(year, month).
		TriggerOverviewRefresh(year, month).
		BodyHTML(`<div class="success">Run ` + run.Reference + ` queued for computation</div>`).
		Write(w)
}
