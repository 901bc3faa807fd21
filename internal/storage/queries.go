package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so queries compose into
// transactions.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row types mirror table columns one to one.
type (
	Company struct {
		ID            int64
		Name          string
		TaxID         string
		PayFrequency  string
		PaydayOfMonth int64
		APIKey        string
		CreatedAt     time.Time
	}

	Employee struct {
		ID               int64
		CompanyID        int64
		StaffNumber      string
		FirstName        string
		LastName         string
		Email            string
		BasicKobo        int64
		HousingKobo      int64
		TransportKobo    int64
		OtherKobo        int64
		PensionEnrolled  bool
		NHFEnrolled      bool
		NHISEnrolled     bool
		HireDate         string
		TerminationDate  string
		Status           string
		LeaveBalanceDays int64
	}

	PayrollRun struct {
		ID             int64
		CompanyID      int64
		Reference      string
		Year           int64
		Month          int64
		Status         string
		TotalGrossKobo int64
		TotalPAYEKobo  int64
		TotalNetKobo   int64
		EmployeeCount  int64
		FailureReason  string
		UpdatedAt      time.Time
	}

	Payslip struct {
		ID                   int64
		RunID                int64
		CompanyID            int64
		EmployeeID           int64
		GrossKobo            int64
		CRAKobo              int64
		PensionKobo          int64
		NHFKobo              int64
		NHISKobo             int64
		TaxableKobo          int64
		PAYEKobo             int64
		AdvanceRecoveredKobo int64
		NetKobo              int64
		EmployerPensionKobo  int64
	}

	LeaveRequest struct {
		ID         int64
		CompanyID  int64
		EmployeeID int64
		LeaveType  string
		StartDate  string
		EndDate    string
		Days       int64
		Reason     string
		Status     string
	}

	Advance struct {
		ID              int64
		CompanyID       int64
		EmployeeID      int64
		PrincipalKobo   int64
		InstallmentKobo int64
		BalanceKobo     int64
		Status          string
	}

	Account struct {
		ID          int64
		CompanyID   int64
		Code        string
		Name        string
		AccountType string
	}

	JournalEntry struct {
		ID             int64
		CompanyID      int64
		Reference      string
		Description    string
		SourceRunID    int64
		Reversal       bool
		ReversalReason string
		CreatedAt      time.Time
	}

	JournalLine struct {
		ID          int64
		EntryID     int64
		AccountCode string
		DebitKobo   int64
		CreditKobo  int64
	}

	TrialBalanceRow struct {
		AccountCode string
		AccountName string
		AccountType string
		DebitKobo   int64
		CreditKobo  int64
	}
)

type CreateCompanyParams struct {
	Name          string
	TaxID         string
	PayFrequency  string
	PaydayOfMonth int64
	APIKey        string
}

func (q *Queries) CreateCompany(ctx context.Context, p CreateCompanyParams) (Company, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO companies (name, tax_id, pay_frequency, payday_of_month, api_key)
		 VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.TaxID, p.PayFrequency, p.PaydayOfMonth, p.APIKey)
	if err != nil {
		return Company{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Company{}, err
	}
	return q.GetCompany(ctx, id)
}

func (q *Queries) GetCompany(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, tax_id, pay_frequency, payday_of_month, api_key, created_at
		 FROM companies WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.TaxID, &c.PayFrequency, &c.PaydayOfMonth, &c.APIKey, &c.CreatedAt)
	return c, err
}

func (q *Queries) GetCompanyByAPIKey(ctx context.Context, apiKey string) (Company, error) {
	var c Company
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, tax_id, pay_frequency, payday_of_month, api_key, created_at
		 FROM companies WHERE api_key = ?`, apiKey).
		Scan(&c.ID, &c.Name, &c.TaxID, &c.PayFrequency, &c.PaydayOfMonth, &c.APIKey, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, tax_id, pay_frequency, payday_of_month, api_key, created_at
		 FROM companies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.PayFrequency, &c.PaydayOfMonth, &c.APIKey, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type CreateEmployeeParams struct {
	CompanyID        int64
	StaffNumber      string
	FirstName        string
	LastName         string
	Email            string
	BasicKobo        int64
	HousingKobo      int64
	TransportKobo    int64
	OtherKobo        int64
	PensionEnrolled  bool
	NHFEnrolled      bool
	NHISEnrolled     bool
	HireDate         string
	Status           string
	LeaveBalanceDays int64
}

func (q *Queries) CreateEmployee(ctx context.Context, p CreateEmployeeParams) (Employee, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO employees (company_id, staff_number, first_name, last_name, email,
		   basic_kobo, housing_kobo, transport_kobo, other_kobo,
		   pension_enrolled, nhf_enrolled, nhis_enrolled,
		   hire_date, status, leave_balance_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CompanyID, p.StaffNumber, p.FirstName, p.LastName, p.Email,
		p.BasicKobo, p.HousingKobo, p.TransportKobo, p.OtherKobo,
		p.PensionEnrolled, p.NHFEnrolled, p.NHISEnrolled,
		p.HireDate, p.Status, p.LeaveBalanceDays)
	if err != nil {
		return Employee{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Employee{}, err
	}
	return q.GetEmployee(ctx, p.CompanyID, id)
}

const employeeColumns = `id, company_id, staff_number, first_name, last_name, email,
	basic_kobo, housing_kobo, transport_kobo, other_kobo,
	pension_enrolled, nhf_enrolled, nhis_enrolled,
	hire_date, termination_date, status, leave_balance_days`

func scanEmployee(row interface{ Scan(...any) error }) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.CompanyID, &e.StaffNumber, &e.FirstName, &e.LastName, &e.Email,
		&e.BasicKobo, &e.HousingKobo, &e.TransportKobo, &e.OtherKobo,
		&e.PensionEnrolled, &e.NHFEnrolled, &e.NHISEnrolled,
		&e.HireDate, &e.TerminationDate, &e.Status, &e.LeaveBalanceDays)
	return e, err
}

func (q *Queries) GetEmployee(ctx context.Context, companyID, id int64) (Employee, error) {
	return scanEmployee(q.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE company_id = ? AND id = ?`,
		companyID, id))
}

func (q *Queries) ListEmployees(ctx context.Context, companyID int64) ([]Employee, error) {
	return q.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE company_id = ? ORDER BY staff_number`,
		companyID)
}

// ListPayableEmployees returns the employees a run for the given period must
// pay: everyone not terminated, plus those whose termination date falls on or
// after the period start. Mid-period leavers still get their final prorated
// payslip; proration clips by the termination date.
func (q *Queries) ListPayableEmployees(ctx context.Context, companyID int64, periodStart string) ([]Employee, error) {
	return q.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees
		 WHERE company_id = ?
		   AND (status != 'terminated' OR termination_date >= ?)
		 ORDER BY staff_number`,
		companyID, periodStart)
}

func (q *Queries) queryEmployees(ctx context.Context, query string, args ...any) ([]Employee, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type UpdateEmployeeParams struct {
	CompanyID       int64
	ID              int64
	FirstName       string
	LastName        string
	Email           string
	BasicKobo       int64
	HousingKobo     int64
	TransportKobo   int64
	OtherKobo       int64
	PensionEnrolled bool
	NHFEnrolled     bool
	NHISEnrolled    bool
	Status          string
}

func (q *Queries) UpdateEmployee(ctx context.Context, p UpdateEmployeeParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE employees SET first_name = ?, last_name = ?, email = ?,
		   basic_kobo = ?, housing_kobo = ?, transport_kobo = ?, other_kobo = ?,
		   pension_enrolled = ?, nhf_enrolled = ?, nhis_enrolled = ?, status = ?
		 WHERE company_id = ? AND id = ?`,
		p.FirstName, p.LastName, p.Email,
		p.BasicKobo, p.HousingKobo, p.TransportKobo, p.OtherKobo,
		p.PensionEnrolled, p.NHFEnrolled, p.NHISEnrolled, p.Status,
		p.CompanyID, p.ID)
	return err
}

func (q *Queries) TerminateEmployee(ctx context.Context, companyID, id int64, date string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE employees SET status = 'terminated', termination_date = ?
		 WHERE company_id = ? AND id = ?`, date, companyID, id)
	return err
}

func (q *Queries) AdjustLeaveBalance(ctx context.Context, companyID, id int64, deltaDays int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE employees SET leave_balance_days = leave_balance_days + ?
		 WHERE company_id = ? AND id = ?`, deltaDays, companyID, id)
	return err
}

type CreateRunParams struct {
	CompanyID int64
	Reference string
	Year      int64
	Month     int64
	Status    string
}

func (q *Queries) CreateRun(ctx context.Context, p CreateRunParams) (PayrollRun, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO payroll_runs (company_id, reference, year, month, status)
		 VALUES (?, ?, ?, ?, ?)`,
		p.CompanyID, p.Reference, p.Year, p.Month, p.Status)
	if err != nil {
		return PayrollRun{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return PayrollRun{}, err
	}
	return q.GetRun(ctx, p.CompanyID, id)
}

const runColumns = `id, company_id, reference, year, month, status,
	total_gross_kobo, total_paye_kobo, total_net_kobo, employee_count, failure_reason, updated_at`

func scanRun(row interface{ Scan(...any) error }) (PayrollRun, error) {
	var r PayrollRun
	err := row.Scan(&r.ID, &r.CompanyID, &r.Reference, &r.Year, &r.Month, &r.Status,
		&r.TotalGrossKobo, &r.TotalPAYEKobo, &r.TotalNetKobo, &r.EmployeeCount, &r.FailureReason, &r.UpdatedAt)
	return r, err
}

func (q *Queries) GetRun(ctx context.Context, companyID, id int64) (PayrollRun, error) {
	return scanRun(q.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs WHERE company_id = ? AND id = ?`,
		companyID, id))
}

func (q *Queries) GetRunByID(ctx context.Context, id int64) (PayrollRun, error) {
	return scanRun(q.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs WHERE id = ?`, id))
}

// GetRunByPeriod returns the live run for a period. Voided runs are invisible
// here: the period reads as free so a correction run can be opened.
func (q *Queries) GetRunByPeriod(ctx context.Context, companyID, year, month int64) (PayrollRun, error) {
	return scanRun(q.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs
		 WHERE company_id = ? AND year = ? AND month = ? AND status != 'voided'`,
		companyID, year, month))
}

// CountRunsByPeriod counts all runs ever opened for a period, voided included.
func (q *Queries) CountRunsByPeriod(ctx context.Context, companyID, year, month int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payroll_runs
		 WHERE company_id = ? AND year = ? AND month = ?`,
		companyID, year, month).Scan(&n)
	return n, err
}

func (q *Queries) ListRuns(ctx context.Context, companyID int64) ([]PayrollRun, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs
		 WHERE company_id = ? ORDER BY year DESC, month DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayrollRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransitionRunStatus moves a run between states, guarded so only the
// expected current state transitions. Returns the affected row count: zero
// means someone else won the transition.
func (q *Queries) TransitionRunStatus(ctx context.Context, id int64, from, to string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE payroll_runs SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SetRunFailure(ctx context.Context, id int64, reason string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE payroll_runs SET status = 'failed', failure_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, reason, id)
	return err
}

type SetRunTotalsParams struct {
	ID             int64
	TotalGrossKobo int64
	TotalPAYEKobo  int64
	TotalNetKobo   int64
	EmployeeCount  int64
}

func (q *Queries) SetRunTotals(ctx context.Context, p SetRunTotalsParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE payroll_runs SET total_gross_kobo = ?, total_paye_kobo = ?,
		   total_net_kobo = ?, employee_count = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.TotalGrossKobo, p.TotalPAYEKobo, p.TotalNetKobo, p.EmployeeCount, p.ID)
	return err
}

// LastActivatedRunTime returns when the company's most recent non-draft run
// was opened. Zero time when the company has never queued a run.
func (q *Queries) LastActivatedRunTime(ctx context.Context, companyID int64) (time.Time, error) {
	var t time.Time
	err := q.db.QueryRowContext(ctx,
		`SELECT created_at FROM payroll_runs
		 WHERE company_id = ? AND status != 'draft'
		 ORDER BY year DESC, month DESC LIMIT 1`, companyID).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return t, err
}

// StaleComputingRuns returns runs stuck in queued/computing older than the
// cutoff, for the worker's startup sweep.
func (q *Queries) StaleComputingRuns(ctx context.Context, cutoff time.Time) ([]PayrollRun, error) {
	// updated_at is set by CURRENT_TIMESTAMP, so compare in SQLite's own
	// datetime text format.
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs
		 WHERE status IN ('queued', 'computing') AND updated_at < ?`,
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayrollRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type CreatePayslipParams struct {
	RunID                int64
	CompanyID            int64
	EmployeeID           int64
	GrossKobo            int64
	CRAKobo              int64
	PensionKobo          int64
	NHFKobo              int64
	NHISKobo             int64
	TaxableKobo          int64
	PAYEKobo             int64
	AdvanceRecoveredKobo int64
	NetKobo              int64
	EmployerPensionKobo  int64
}

func (q *Queries) CreatePayslip(ctx context.Context, p CreatePayslipParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO payslips (run_id, company_id, employee_id, gross_kobo, cra_kobo,
		   pension_kobo, nhf_kobo, nhis_kobo, taxable_kobo, paye_kobo,
		   advance_recovered_kobo, net_kobo, employer_pension_kobo)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RunID, p.CompanyID, p.EmployeeID, p.GrossKobo, p.CRAKobo,
		p.PensionKobo, p.NHFKobo, p.NHISKobo, p.TaxableKobo, p.PAYEKobo,
		p.AdvanceRecoveredKobo, p.NetKobo, p.EmployerPensionKobo)
	return err
}

func (q *Queries) ListPayslipsByRun(ctx context.Context, companyID, runID int64) ([]Payslip, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, run_id, company_id, employee_id, gross_kobo, cra_kobo,
		   pension_kobo, nhf_kobo, nhis_kobo, taxable_kobo, paye_kobo,
		   advance_recovered_kobo, net_kobo, employer_pension_kobo
		 FROM payslips WHERE company_id = ? AND run_id = ? ORDER BY employee_id`,
		companyID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payslip
	for rows.Next() {
		var p Payslip
		if err := rows.Scan(&p.ID, &p.RunID, &p.CompanyID, &p.EmployeeID, &p.GrossKobo, &p.CRAKobo,
			&p.PensionKobo, &p.NHFKobo, &p.NHISKobo, &p.TaxableKobo, &p.PAYEKobo,
			&p.AdvanceRecoveredKobo, &p.NetKobo, &p.EmployerPensionKobo); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) DeletePayslipsByRun(ctx context.Context, runID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM payslips WHERE run_id = ?`, runID)
	return err
}

type CreateLeaveParams struct {
	CompanyID  int64
	EmployeeID int64
	LeaveType  string
	StartDate  string
	EndDate    string
	Days       int64
	Reason     string
	Status     string
}

func (q *Queries) CreateLeave(ctx context.Context, p CreateLeaveParams) (LeaveRequest, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO leave_requests (company_id, employee_id, leave_type, start_date, end_date, days, reason, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CompanyID, p.EmployeeID, p.LeaveType, p.StartDate, p.EndDate, p.Days, p.Reason, p.Status)
	if err != nil {
		return LeaveRequest{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return LeaveRequest{}, err
	}
	return q.GetLeave(ctx, p.CompanyID, id)
}

func (q *Queries) GetLeave(ctx context.Context, companyID, id int64) (LeaveRequest, error) {
	var l LeaveRequest
	err := q.db.QueryRowContext(ctx,
		`SELECT id, company_id, employee_id, leave_type, start_date, end_date, days, reason, status
		 FROM leave_requests WHERE company_id = ? AND id = ?`, companyID, id).
		Scan(&l.ID, &l.CompanyID, &l.EmployeeID, &l.LeaveType, &l.StartDate, &l.EndDate, &l.Days, &l.Reason, &l.Status)
	return l, err
}

func (q *Queries) ListLeave(ctx context.Context, companyID int64) ([]LeaveRequest, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, company_id, employee_id, leave_type, start_date, end_date, days, reason, status
		 FROM leave_requests WHERE company_id = ? ORDER BY id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaveRequest
	for rows.Next() {
		var l LeaveRequest
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.EmployeeID, &l.LeaveType, &l.StartDate, &l.EndDate, &l.Days, &l.Reason, &l.Status); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// TransitionLeaveStatus is guarded like run transitions.
func (q *Queries) TransitionLeaveStatus(ctx context.Context, companyID, id int64, from, to string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE leave_requests SET status = ?
		 WHERE company_id = ? AND id = ? AND status = ?`, to, companyID, id, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnpaidLeaveDays sums approved unpaid-leave days overlapping the given
// period. Spans are clipped to the month by the caller supplying period
// bounds as ISO dates.
func (q *Queries) UnpaidLeaveDays(ctx context.Context, companyID, employeeID int64, periodStart, periodEnd string) ([]LeaveRequest, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, company_id, employee_id, leave_type, start_date, end_date, days, reason, status
		 FROM leave_requests
		 WHERE company_id = ? AND employee_id = ? AND leave_type = 'unpaid' AND status = 'approved'
		   AND start_date <= ? AND end_date >= ?`,
		companyID, employeeID, periodEnd, periodStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaveRequest
	for rows.Next() {
		var l LeaveRequest
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.EmployeeID, &l.LeaveType, &l.StartDate, &l.EndDate, &l.Days, &l.Reason, &l.Status); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type CreateAdvanceParams struct {
	CompanyID       int64
	EmployeeID      int64
	PrincipalKobo   int64
	InstallmentKobo int64
}

func (q *Queries) CreateAdvance(ctx context.Context, p CreateAdvanceParams) (Advance, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO advances (company_id, employee_id, principal_kobo, installment_kobo, balance_kobo, status)
		 VALUES (?, ?, ?, ?, ?, 'open')`,
		p.CompanyID, p.EmployeeID, p.PrincipalKobo, p.InstallmentKobo, p.PrincipalKobo)
	if err != nil {
		return Advance{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Advance{}, err
	}
	return q.GetAdvance(ctx, p.CompanyID, id)
}

func (q *Queries) GetAdvance(ctx context.Context, companyID, id int64) (Advance, error) {
	var a Advance
	err := q.db.QueryRowContext(ctx,
		`SELECT id, company_id, employee_id, principal_kobo, installment_kobo, balance_kobo, status
		 FROM advances WHERE company_id = ? AND id = ?`, companyID, id).
		Scan(&a.ID, &a.CompanyID, &a.EmployeeID, &a.PrincipalKobo, &a.InstallmentKobo, &a.BalanceKobo, &a.Status)
	return a, err
}

func (q *Queries) ListAdvances(ctx context.Context, companyID int64) ([]Advance, error) {
	return q.queryAdvances(ctx,
		`SELECT id, company_id, employee_id, principal_kobo, installment_kobo, balance_kobo, status
		 FROM advances WHERE company_id = ? ORDER BY id DESC`, companyID)
}

func (q *Queries) ListRecoverableAdvances(ctx context.Context, companyID, employeeID int64) ([]Advance, error) {
	return q.queryAdvances(ctx,
		`SELECT id, company_id, employee_id, principal_kobo, installment_kobo, balance_kobo, status
		 FROM advances
		 WHERE company_id = ? AND employee_id = ? AND status IN ('open', 'recovering')
		 ORDER BY id`, companyID, employeeID)
}

func (q *Queries) queryAdvances(ctx context.Context, query string, args ...any) ([]Advance, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advance
	for rows.Next() {
		var a Advance
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.EmployeeID, &a.PrincipalKobo, &a.InstallmentKobo, &a.BalanceKobo, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateAdvanceBalance(ctx context.Context, id, balanceKobo int64, status string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE advances SET balance_kobo = ?, status = ? WHERE id = ?`,
		balanceKobo, status, id)
	return err
}

type CreateAccountParams struct {
	CompanyID   int64
	Code        string
	Name        string
	AccountType string
}

func (q *Queries) CreateAccount(ctx context.Context, p CreateAccountParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (company_id, code, name, account_type) VALUES (?, ?, ?, ?)`,
		p.CompanyID, p.Code, p.Name, p.AccountType)
	return err
}

func (q *Queries) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, company_id, code, name, account_type
		 FROM accounts WHERE company_id = ? ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.AccountType); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type CreateJournalEntryParams struct {
	CompanyID      int64
	Reference      string
	Description    string
	SourceRunID    int64
	Reversal       bool
	ReversalReason string
}

func (q *Queries) CreateJournalEntry(ctx context.Context, p CreateJournalEntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO journal_entries (company_id, reference, description, source_run_id, reversal, reversal_reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.CompanyID, p.Reference, p.Description, p.SourceRunID, p.Reversal, p.ReversalReason)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) CreateJournalLine(ctx context.Context, entryID int64, accountCode string, debitKobo, creditKobo int64) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO journal_lines (entry_id, account_code, debit_kobo, credit_kobo)
		 VALUES (?, ?, ?, ?)`, entryID, accountCode, debitKobo, creditKobo)
	return err
}

func (q *Queries) ListJournalEntries(ctx context.Context, companyID int64) ([]JournalEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, company_id, reference, description, source_run_id, reversal, reversal_reason, created_at
		 FROM journal_entries WHERE company_id = ? ORDER BY id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Reference, &e.Description, &e.SourceRunID, &e.Reversal, &e.ReversalReason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) GetJournalEntryByRun(ctx context.Context, companyID, runID int64) (JournalEntry, error) {
	var e JournalEntry
	err := q.db.QueryRowContext(ctx,
		`SELECT id, company_id, reference, description, source_run_id, reversal, reversal_reason, created_at
		 FROM journal_entries
		 WHERE company_id = ? AND source_run_id = ? AND reversal = 0`, companyID, runID).
		Scan(&e.ID, &e.CompanyID, &e.Reference, &e.Description, &e.SourceRunID, &e.Reversal, &e.ReversalReason, &e.CreatedAt)
	return e, err
}

func (q *Queries) ListJournalLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, entry_id, account_code, debit_kobo, credit_kobo
		 FROM journal_lines WHERE entry_id = ? ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountCode, &l.DebitKobo, &l.CreditKobo); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// TrialBalance sums debits and credits per account for one company.
func (q *Queries) TrialBalance(ctx context.Context, companyID int64) ([]TrialBalanceRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT a.code, a.name, a.account_type,
		   COALESCE(SUM(l.debit_kobo), 0), COALESCE(SUM(l.credit_kobo), 0)
		 FROM accounts a
		 LEFT JOIN journal_entries e ON e.company_id = a.company_id
		 LEFT JOIN journal_lines l ON l.entry_id = e.id AND l.account_code = a.code
		 WHERE a.company_id = ?
		 GROUP BY a.code, a.name, a.account_type
		 ORDER BY a.code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrialBalanceRow
	for rows.Next() {
		var r TrialBalanceRow
		if err := rows.Scan(&r.AccountCode, &r.AccountName, &r.AccountType, &r.DebitKobo, &r.CreditKobo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
