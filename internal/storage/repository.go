package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"wagebook/internal/core"
	"wagebook/internal/ledger"

	_ "modernc.org/sqlite"
)

// ErrConflict is returned when a guarded status transition loses the race or
// a uniqueness rule is violated at the domain level.
var ErrConflict = errors.New("conflicting state change")

// ErrNotFound wraps sql.ErrNoRows for callers outside the storage package.
var ErrNotFound = errors.New("not found")

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func dateString(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(dateLayout)
}

func parseDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}
	}
	return core.Date{Time: t}
}

func toCompany(c Company) core.Company {
	return core.Company{
		ID:            c.ID,
		Name:          c.Name,
		TaxID:         c.TaxID,
		PayFrequency:  core.PayFrequency(c.PayFrequency),
		PaydayOfMonth: int(c.PaydayOfMonth),
		APIKey:        c.APIKey,
	}
}

func toEmployee(e Employee) core.Employee {
	return core.Employee{
		ID:          e.ID,
		CompanyID:   e.CompanyID,
		StaffNumber: e.StaffNumber,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Email:       e.Email,
		Annual: core.Salary{
			Basic:     core.Money{Kobo: e.BasicKobo},
			Housing:   core.Money{Kobo: e.HousingKobo},
			Transport: core.Money{Kobo: e.TransportKobo},
			Other:     core.Money{Kobo: e.OtherKobo},
		},
		PensionEnrolled:  e.PensionEnrolled,
		NHFEnrolled:      e.NHFEnrolled,
		NHISEnrolled:     e.NHISEnrolled,
		HireDate:         parseDate(e.HireDate),
		TerminationDate:  parseDate(e.TerminationDate),
		Status:           core.EmployeeStatus(e.Status),
		LeaveBalanceDays: int(e.LeaveBalanceDays),
	}
}

func toRun(r PayrollRun) core.PayrollRun {
	return core.PayrollRun{
		ID:            r.ID,
		CompanyID:     r.CompanyID,
		Reference:     r.Reference,
		Year:          int(r.Year),
		Month:         int(r.Month),
		Status:        core.RunStatus(r.Status),
		TotalGross:    core.Money{Kobo: r.TotalGrossKobo},
		TotalPAYE:     core.Money{Kobo: r.TotalPAYEKobo},
		TotalNet:      core.Money{Kobo: r.TotalNetKobo},
		EmployeeCount: int(r.EmployeeCount),
		FailureReason: r.FailureReason,
	}
}

func toPayslip(p Payslip) core.Payslip {
	return core.Payslip{
		ID:               p.ID,
		RunID:            p.RunID,
		CompanyID:        p.CompanyID,
		EmployeeID:       p.EmployeeID,
		Gross:            core.Money{Kobo: p.GrossKobo},
		CRARelief:        core.Money{Kobo: p.CRAKobo},
		Pension:          core.Money{Kobo: p.PensionKobo},
		NHF:              core.Money{Kobo: p.NHFKobo},
		NHIS:             core.Money{Kobo: p.NHISKobo},
		Taxable:          core.Money{Kobo: p.TaxableKobo},
		PAYE:             core.Money{Kobo: p.PAYEKobo},
		AdvanceRecovered: core.Money{Kobo: p.AdvanceRecoveredKobo},
		Net:              core.Money{Kobo: p.NetKobo},
		EmployerPension:  core.Money{Kobo: p.EmployerPensionKobo},
	}
}

func toLeave(l LeaveRequest) core.LeaveRequest {
	return core.LeaveRequest{
		ID:         l.ID,
		CompanyID:  l.CompanyID,
		EmployeeID: l.EmployeeID,
		Type:       core.LeaveType(l.LeaveType),
		StartDate:  parseDate(l.StartDate),
		EndDate:    parseDate(l.EndDate),
		Days:       int(l.Days),
		Reason:     l.Reason,
		Status:     core.LeaveStatus(l.Status),
	}
}

func toAdvance(a Advance) core.Advance {
	return core.Advance{
		ID:          a.ID,
		CompanyID:   a.CompanyID,
		EmployeeID:  a.EmployeeID,
		Principal:   core.Money{Kobo: a.PrincipalKobo},
		Installment: core.Money{Kobo: a.InstallmentKobo},
		Balance:     core.Money{Kobo: a.BalanceKobo},
		Status:      core.AdvanceStatus(a.Status),
	}
}

// CreateCompany stores a new tenant and seeds its chart of accounts in one
// transaction.
func (r *SQLiteRepository) CreateCompany(ctx context.Context, c core.Company) (core.Company, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Company{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	row, err := q.CreateCompany(ctx, CreateCompanyParams{
		Name:          c.Name,
		TaxID:         c.TaxID,
		PayFrequency:  string(c.PayFrequency),
		PaydayOfMonth: int64(c.PaydayOfMonth),
		APIKey:        c.APIKey,
	})
	if err != nil {
		return core.Company{}, fmt.Errorf("create company: %w", err)
	}

	for _, acc := range ledger.ChartTemplate {
		if err := q.CreateAccount(ctx, CreateAccountParams{
			CompanyID:   row.ID,
			Code:        acc.Code,
			Name:        acc.Name,
			AccountType: string(acc.Type),
		}); err != nil {
			return core.Company{}, fmt.Errorf("seed account %s: %w", acc.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Company{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Company created", "company_id", row.ID, "name", row.Name)
	return toCompany(row), nil
}

func (r *SQLiteRepository) GetCompany(ctx context.Context, id int64) (core.Company, error) {
	row, err := r.queries.GetCompany(ctx, id)
	if err != nil {
		return core.Company{}, fmt.Errorf("get company: %w", wrapNotFound(err))
	}
	return toCompany(row), nil
}

func (r *SQLiteRepository) GetCompanyByAPIKey(ctx context.Context, apiKey string) (core.Company, error) {
	row, err := r.queries.GetCompanyByAPIKey(ctx, apiKey)
	if err != nil {
		return core.Company{}, fmt.Errorf("get company by api key: %w", wrapNotFound(err))
	}
	return toCompany(row), nil
}

func (r *SQLiteRepository) ListCompanies(ctx context.Context) ([]core.Company, error) {
	rows, err := r.queries.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	out := make([]core.Company, len(rows))
	for i, c := range rows {
		out[i] = toCompany(c)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateEmployee(ctx context.Context, e core.Employee) (core.Employee, error) {
	row, err := r.queries.CreateEmployee(ctx, CreateEmployeeParams{
		CompanyID:        e.CompanyID,
		StaffNumber:      e.StaffNumber,
		FirstName:        e.FirstName,
		LastName:         e.LastName,
		Email:            e.Email,
		BasicKobo:        e.Annual.Basic.Kobo,
		HousingKobo:      e.Annual.Housing.Kobo,
		TransportKobo:    e.Annual.Transport.Kobo,
		OtherKobo:        e.Annual.Other.Kobo,
		PensionEnrolled:  e.PensionEnrolled,
		NHFEnrolled:      e.NHFEnrolled,
		NHISEnrolled:     e.NHISEnrolled,
		HireDate:         dateString(e.HireDate),
		Status:           string(e.Status),
		LeaveBalanceDays: int64(e.LeaveBalanceDays),
	})
	if err != nil {
		return core.Employee{}, fmt.Errorf("create employee: %w", err)
	}
	return toEmployee(row), nil
}

func (r *SQLiteRepository) GetEmployee(ctx context.Context, companyID, id int64) (core.Employee, error) {
	row, err := r.queries.GetEmployee(ctx, companyID, id)
	if err != nil {
		return core.Employee{}, fmt.Errorf("get employee: %w", wrapNotFound(err))
	}
	return toEmployee(row), nil
}

func (r *SQLiteRepository) ListEmployees(ctx context.Context, companyID int64) ([]core.Employee, error) {
	rows, err := r.queries.ListEmployees(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	out := make([]core.Employee, len(rows))
	for i, e := range rows {
		out[i] = toEmployee(e)
	}
	return out, nil
}

func (r *SQLiteRepository) ListPayableEmployees(ctx context.Context, companyID int64, periodStart core.Date) ([]core.Employee, error) {
	rows, err := r.queries.ListPayableEmployees(ctx, companyID, dateString(periodStart))
	if err != nil {
		return nil, fmt.Errorf("list payable employees: %w", err)
	}
	out := make([]core.Employee, len(rows))
	for i, e := range rows {
		out[i] = toEmployee(e)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateEmployee(ctx context.Context, e core.Employee) error {
	err := r.queries.UpdateEmployee(ctx, UpdateEmployeeParams{
		CompanyID:       e.CompanyID,
		ID:              e.ID,
		FirstName:       e.FirstName,
		LastName:        e.LastName,
		Email:           e.Email,
		BasicKobo:       e.Annual.Basic.Kobo,
		HousingKobo:     e.Annual.Housing.Kobo,
		TransportKobo:   e.Annual.Transport.Kobo,
		OtherKobo:       e.Annual.Other.Kobo,
		PensionEnrolled: e.PensionEnrolled,
		NHFEnrolled:     e.NHFEnrolled,
		NHISEnrolled:    e.NHISEnrolled,
		Status:          string(e.Status),
	})
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) TerminateEmployee(ctx context.Context, companyID, id int64, date core.Date) error {
	if err := r.queries.TerminateEmployee(ctx, companyID, id, dateString(date)); err != nil {
		return fmt.Errorf("terminate employee: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run core.PayrollRun) (core.PayrollRun, error) {
	row, err := r.queries.CreateRun(ctx, CreateRunParams{
		CompanyID: run.CompanyID,
		Reference: run.Reference,
		Year:      int64(run.Year),
		Month:     int64(run.Month),
		Status:    string(run.Status),
	})
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("create run: %w", err)
	}
	return toRun(row), nil
}

func (r *SQLiteRepository) GetRun(ctx context.Context, companyID, id int64) (core.PayrollRun, error) {
	row, err := r.queries.GetRun(ctx, companyID, id)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("get run: %w", wrapNotFound(err))
	}
	return toRun(row), nil
}

func (r *SQLiteRepository) GetRunByID(ctx context.Context, id int64) (core.PayrollRun, error) {
	row, err := r.queries.GetRunByID(ctx, id)
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("get run by id: %w", wrapNotFound(err))
	}
	return toRun(row), nil
}

func (r *SQLiteRepository) GetRunByPeriod(ctx context.Context, companyID int64, year, month int) (core.PayrollRun, error) {
	row, err := r.queries.GetRunByPeriod(ctx, companyID, int64(year), int64(month))
	if err != nil {
		return core.PayrollRun{}, fmt.Errorf("get run by period: %w", wrapNotFound(err))
	}
	return toRun(row), nil
}

// CountRunsByPeriod counts every run ever opened for the period, voided
// included, so correction runs can carry a revision suffix.
func (r *SQLiteRepository) CountRunsByPeriod(ctx context.Context, companyID int64, year, month int) (int, error) {
	n, err := r.queries.CountRunsByPeriod(ctx, companyID, int64(year), int64(month))
	if err != nil {
		return 0, fmt.Errorf("count runs by period: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, companyID int64) ([]core.PayrollRun, error) {
	rows, err := r.queries.ListRuns(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]core.PayrollRun, len(rows))
	for i, run := range rows {
		out[i] = toRun(run)
	}
	return out, nil
}

// TransitionRun performs a guarded status transition. ErrConflict means the
// run was not in the expected state.
func (r *SQLiteRepository) TransitionRun(ctx context.Context, runID int64, from, to core.RunStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("transition %s -> %s: %w", from, to, ErrConflict)
	}
	n, err := r.queries.TransitionRunStatus(ctx, runID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("transition run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transition %s -> %s: %w", from, to, ErrConflict)
	}
	return nil
}

func (r *SQLiteRepository) FailRun(ctx context.Context, runID int64, reason string) error {
	if err := r.queries.SetRunFailure(ctx, runID, reason); err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	slog.WarnContext(ctx, "Payroll run failed", "run_id", runID, "reason", reason)
	return nil
}

// LastActivatedRunTime reports when the company last moved a run out of
// draft. The payday scheduler uses it to decide dueness.
func (r *SQLiteRepository) LastActivatedRunTime(ctx context.Context, companyID int64) (time.Time, error) {
	t, err := r.queries.LastActivatedRunTime(ctx, companyID)
	if err != nil {
		return time.Time{}, fmt.Errorf("last activated run time: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) StaleComputingRuns(ctx context.Context, cutoff time.Time) ([]core.PayrollRun, error) {
	rows, err := r.queries.StaleComputingRuns(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("stale computing runs: %w", err)
	}
	out := make([]core.PayrollRun, len(rows))
	for i, run := range rows {
		out[i] = toRun(run)
	}
	return out, nil
}

// AdvanceRecovery pairs an advance row with the amount a computed payslip
// recovered from it.
type AdvanceRecovery struct {
	AdvanceID int64
	Amount    core.Money
}

// SaveComputedRun atomically persists a computed run: payslips, advance
// balance updates, denormalized totals and the computing -> computed
// transition. Recomputes replace any previous payslips for the run.
func (r *SQLiteRepository) SaveComputedRun(ctx context.Context, run core.PayrollRun, slips []core.Payslip, recoveries []AdvanceRecovery) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)

	if err := q.DeletePayslipsByRun(ctx, run.ID); err != nil {
		return fmt.Errorf("clear previous payslips: %w", err)
	}

	var totalGross, totalPAYE, totalNet int64
	for _, p := range slips {
		if err := q.CreatePayslip(ctx, CreatePayslipParams{
			RunID:                run.ID,
			CompanyID:            run.CompanyID,
			EmployeeID:           p.EmployeeID,
			GrossKobo:            p.Gross.Kobo,
			CRAKobo:              p.CRARelief.Kobo,
			PensionKobo:          p.Pension.Kobo,
			NHFKobo:              p.NHF.Kobo,
			NHISKobo:             p.NHIS.Kobo,
			TaxableKobo:          p.Taxable.Kobo,
			PAYEKobo:             p.PAYE.Kobo,
			AdvanceRecoveredKobo: p.AdvanceRecovered.Kobo,
			NetKobo:              p.Net.Kobo,
			EmployerPensionKobo:  p.EmployerPension.Kobo,
		}); err != nil {
			return fmt.Errorf("create payslip for employee %d: %w", p.EmployeeID, err)
		}
		totalGross += p.Gross.Kobo
		totalPAYE += p.PAYE.Kobo
		totalNet += p.Net.Kobo
	}

	for _, rec := range recoveries {
		adv, err := q.GetAdvance(ctx, run.CompanyID, rec.AdvanceID)
		if err != nil {
			return fmt.Errorf("load advance %d: %w", rec.AdvanceID, err)
		}
		balance := adv.BalanceKobo - rec.Amount.Kobo
		if balance < 0 {
			return fmt.Errorf("advance %d over-recovered: %w", rec.AdvanceID, ErrConflict)
		}
		status := string(core.AdvanceRecovering)
		if balance == 0 {
			status = string(core.AdvanceSettled)
		}
		if err := q.UpdateAdvanceBalance(ctx, rec.AdvanceID, balance, status); err != nil {
			return fmt.Errorf("update advance %d: %w", rec.AdvanceID, err)
		}
	}

	if err := q.SetRunTotals(ctx, SetRunTotalsParams{
		ID:             run.ID,
		TotalGrossKobo: totalGross,
		TotalPAYEKobo:  totalPAYE,
		TotalNetKobo:   totalNet,
		EmployeeCount:  int64(len(slips)),
	}); err != nil {
		return fmt.Errorf("set run totals: %w", err)
	}

	n, err := q.TransitionRunStatus(ctx, run.ID, string(core.RunComputing), string(core.RunComputed))
	if err != nil {
		return fmt.Errorf("mark run computed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark run computed: %w", ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Payroll run computed",
		"run_id", run.ID,
		"company_id", run.CompanyID,
		"payslips", len(slips),
		"total_gross_kobo", totalGross,
		"total_net_kobo", totalNet)
	return nil
}

// PostRun atomically writes a balanced journal entry and moves the run
// approved -> posted.
func (r *SQLiteRepository) PostRun(ctx context.Context, run core.PayrollRun, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validate entry: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := insertEntry(ctx, q, entry); err != nil {
		return err
	}

	n, err := q.TransitionRunStatus(ctx, run.ID, string(core.RunApproved), string(core.RunPosted))
	if err != nil {
		return fmt.Errorf("mark run posted: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark run posted: %w", ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Payroll run posted",
		"run_id", run.ID,
		"company_id", run.CompanyID,
		"reference", entry.Reference,
		"lines", len(entry.Lines))
	return nil
}

// VoidRun voids a run. For posted runs a reversing entry is appended in the
// same transaction.
func (r *SQLiteRepository) VoidRun(ctx context.Context, run core.PayrollRun, reversal *ledger.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)

	if reversal != nil {
		if err := insertEntry(ctx, q, *reversal); err != nil {
			return err
		}
		// Posted is normally terminal; voiding with a reversal is the one
		// sanctioned exit.
		n, err := q.TransitionRunStatus(ctx, run.ID, string(core.RunPosted), string(core.RunVoided))
		if err != nil {
			return fmt.Errorf("mark run voided: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("mark run voided: %w", ErrConflict)
		}
	} else {
		n, err := q.TransitionRunStatus(ctx, run.ID, string(run.Status), string(core.RunVoided))
		if err != nil {
			return fmt.Errorf("mark run voided: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("mark run voided: %w", ErrConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Payroll run voided", "run_id", run.ID, "company_id", run.CompanyID)
	return nil
}

func insertEntry(ctx context.Context, q *Queries, entry ledger.Entry) error {
	entryID, err := q.CreateJournalEntry(ctx, CreateJournalEntryParams{
		CompanyID:      entry.CompanyID,
		Reference:      entry.Reference,
		Description:    entry.Description,
		SourceRunID:    entry.SourceRunID,
		Reversal:       entry.Reversal,
		ReversalReason: entry.ReversalReason,
	})
	if err != nil {
		return fmt.Errorf("create journal entry: %w", err)
	}
	for _, l := range entry.Lines {
		if err := q.CreateJournalLine(ctx, entryID, l.AccountCode, l.Debit.Kobo, l.Credit.Kobo); err != nil {
			return fmt.Errorf("create journal line %s: %w", l.AccountCode, err)
		}
	}
	return nil
}

// SaveManualEntry writes a standalone balanced entry (advance issue, manual
// correction).
func (r *SQLiteRepository) SaveManualEntry(ctx context.Context, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validate entry: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx, r.queries.WithTx(tx), entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPayslipsByRun(ctx context.Context, companyID, runID int64) ([]core.Payslip, error) {
	rows, err := r.queries.ListPayslipsByRun(ctx, companyID, runID)
	if err != nil {
		return nil, fmt.Errorf("list payslips: %w", err)
	}
	out := make([]core.Payslip, len(rows))
	for i, p := range rows {
		out[i] = toPayslip(p)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateLeave(ctx context.Context, lr core.LeaveRequest) (core.LeaveRequest, error) {
	row, err := r.queries.CreateLeave(ctx, CreateLeaveParams{
		CompanyID:  lr.CompanyID,
		EmployeeID: lr.EmployeeID,
		LeaveType:  string(lr.Type),
		StartDate:  dateString(lr.StartDate),
		EndDate:    dateString(lr.EndDate),
		Days:       int64(lr.Days),
		Reason:     lr.Reason,
		Status:     string(lr.Status),
	})
	if err != nil {
		return core.LeaveRequest{}, fmt.Errorf("create leave request: %w", err)
	}
	return toLeave(row), nil
}

func (r *SQLiteRepository) GetLeave(ctx context.Context, companyID, id int64) (core.LeaveRequest, error) {
	row, err := r.queries.GetLeave(ctx, companyID, id)
	if err != nil {
		return core.LeaveRequest{}, fmt.Errorf("get leave request: %w", wrapNotFound(err))
	}
	return toLeave(row), nil
}

func (r *SQLiteRepository) ListLeave(ctx context.Context, companyID int64) ([]core.LeaveRequest, error) {
	rows, err := r.queries.ListLeave(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	out := make([]core.LeaveRequest, len(rows))
	for i, l := range rows {
		out[i] = toLeave(l)
	}
	return out, nil
}

// ResolveLeave transitions a pending request and, for approved annual leave,
// draws down the employee's balance in the same transaction.
func (r *SQLiteRepository) ResolveLeave(ctx context.Context, lr core.LeaveRequest, to core.LeaveStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	n, err := q.TransitionLeaveStatus(ctx, lr.CompanyID, lr.ID, string(core.LeavePending), string(to))
	if err != nil {
		return fmt.Errorf("transition leave: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transition leave: %w", ErrConflict)
	}

	if to == core.LeaveApproved && lr.Type == core.LeaveAnnual {
		if err := q.AdjustLeaveBalance(ctx, lr.CompanyID, lr.EmployeeID, -int64(lr.Days)); err != nil {
			return fmt.Errorf("draw down leave balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UnpaidLeaveDaysInPeriod counts approved unpaid-leave days falling inside
// the given month, clipping spans that cross month boundaries.
func (r *SQLiteRepository) UnpaidLeaveDaysInPeriod(ctx context.Context, companyID, employeeID int64, year, month int) (int, error) {
	periodStart := core.NewDate(year, month, 1)
	periodEnd := core.NewDate(year, month, core.DaysInMonth(year, month))

	rows, err := r.queries.UnpaidLeaveDays(ctx, companyID, employeeID,
		periodStart.Format(dateLayout), periodEnd.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("unpaid leave days: %w", err)
	}

	days := 0
	for _, l := range rows {
		start := parseDate(l.StartDate)
		end := parseDate(l.EndDate)
		if start.Before(periodStart.Time) {
			start = periodStart
		}
		if end.After(periodEnd.Time) {
			end = periodEnd
		}
		days += core.LeaveDays(start, end)
	}
	if max := core.DaysInMonth(year, month); days > max {
		days = max
	}
	return days, nil
}

func (r *SQLiteRepository) CreateAdvance(ctx context.Context, a core.Advance) (core.Advance, error) {
	row, err := r.queries.CreateAdvance(ctx, CreateAdvanceParams{
		CompanyID:       a.CompanyID,
		EmployeeID:      a.EmployeeID,
		PrincipalKobo:   a.Principal.Kobo,
		InstallmentKobo: a.Installment.Kobo,
	})
	if err != nil {
		return core.Advance{}, fmt.Errorf("create advance: %w", err)
	}
	return toAdvance(row), nil
}

// IssueAdvance creates an advance together with its disbursement journal
// entry in one transaction. buildEntry receives the new advance ID so the
// entry reference can include it.
func (r *SQLiteRepository) IssueAdvance(ctx context.Context, a core.Advance, buildEntry func(advanceID int64) (ledger.Entry, error)) (core.Advance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Advance{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	row, err := q.CreateAdvance(ctx, CreateAdvanceParams{
		CompanyID:       a.CompanyID,
		EmployeeID:      a.EmployeeID,
		PrincipalKobo:   a.Principal.Kobo,
		InstallmentKobo: a.Installment.Kobo,
	})
	if err != nil {
		return core.Advance{}, fmt.Errorf("create advance: %w", err)
	}

	entry, err := buildEntry(row.ID)
	if err != nil {
		return core.Advance{}, err
	}
	if err := entry.Validate(); err != nil {
		return core.Advance{}, fmt.Errorf("validate entry: %w", err)
	}
	if err := insertEntry(ctx, q, entry); err != nil {
		return core.Advance{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Advance{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Advance issued",
		"advance_id", row.ID,
		"company_id", a.CompanyID,
		"employee_id", a.EmployeeID,
		"principal_kobo", a.Principal.Kobo)
	return toAdvance(row), nil
}

func (r *SQLiteRepository) ListAdvances(ctx context.Context, companyID int64) ([]core.Advance, error) {
	rows, err := r.queries.ListAdvances(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list advances: %w", err)
	}
	out := make([]core.Advance, len(rows))
	for i, a := range rows {
		out[i] = toAdvance(a)
	}
	return out, nil
}

func (r *SQLiteRepository) ListRecoverableAdvances(ctx context.Context, companyID, employeeID int64) ([]core.Advance, error) {
	rows, err := r.queries.ListRecoverableAdvances(ctx, companyID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list recoverable advances: %w", err)
	}
	out := make([]core.Advance, len(rows))
	for i, a := range rows {
		out[i] = toAdvance(a)
	}
	return out, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, companyID int64) ([]ledger.Account, error) {
	rows, err := r.queries.ListAccounts(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]ledger.Account, len(rows))
	for i, a := range rows {
		out[i] = ledger.Account{
			ID:        a.ID,
			CompanyID: a.CompanyID,
			Code:      a.Code,
			Name:      a.Name,
			Type:      ledger.AccountType(a.AccountType),
		}
	}
	return out, nil
}

// JournalEntryView is an entry with its lines, for API responses.
type JournalEntryView struct {
	Entry ledger.Entry
	Time  time.Time
}

func (r *SQLiteRepository) ListJournalEntries(ctx context.Context, companyID int64) ([]JournalEntryView, error) {
	entries, err := r.queries.ListJournalEntries(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}

	out := make([]JournalEntryView, 0, len(entries))
	for _, e := range entries {
		lines, err := r.queries.ListJournalLines(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("list journal lines for entry %d: %w", e.ID, err)
		}
		view := JournalEntryView{
			Entry: ledger.Entry{
				ID:             e.ID,
				CompanyID:      e.CompanyID,
				Reference:      e.Reference,
				Description:    e.Description,
				SourceRunID:    e.SourceRunID,
				Reversal:       e.Reversal,
				ReversalReason: e.ReversalReason,
			},
			Time: e.CreatedAt,
		}
		for _, l := range lines {
			view.Entry.Lines = append(view.Entry.Lines, ledger.Line{
				AccountCode: l.AccountCode,
				Debit:       core.Money{Kobo: l.DebitKobo},
				Credit:      core.Money{Kobo: l.CreditKobo},
			})
		}
		out = append(out, view)
	}
	return out, nil
}

// GetRunEntry loads the original (non-reversal) journal entry for a run.
func (r *SQLiteRepository) GetRunEntry(ctx context.Context, companyID, runID int64) (ledger.Entry, error) {
	e, err := r.queries.GetJournalEntryByRun(ctx, companyID, runID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("get run entry: %w", wrapNotFound(err))
	}
	lines, err := r.queries.ListJournalLines(ctx, e.ID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("list lines: %w", err)
	}
	entry := ledger.Entry{
		ID:             e.ID,
		CompanyID:      e.CompanyID,
		Reference:      e.Reference,
		Description:    e.Description,
		SourceRunID:    e.SourceRunID,
		Reversal:       e.Reversal,
		ReversalReason: e.ReversalReason,
	}
	for _, l := range lines {
		entry.Lines = append(entry.Lines, ledger.Line{
			AccountCode: l.AccountCode,
			Debit:       core.Money{Kobo: l.DebitKobo},
			Credit:      core.Money{Kobo: l.CreditKobo},
		})
	}
	return entry, nil
}

// TrialBalance aggregates per-account debit/credit sums.
func (r *SQLiteRepository) TrialBalance(ctx context.Context, companyID int64) ([]TrialBalanceRow, error) {
	rows, err := r.queries.TrialBalance(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("trial balance: %w", err)
	}
	return rows, nil
}
