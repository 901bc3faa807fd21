package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly  PayFrequency = "monthly"
	Biweekly PayFrequency = "biweekly"
	Weekly   PayFrequency = "weekly"
)

const (
	EmployeeActive     EmployeeStatus = "active"
	EmployeeOnLeave    EmployeeStatus = "on_leave"
	EmployeeTerminated EmployeeStatus = "terminated"
)

// Payroll run lifecycle. Transitions only move forward, except failed runs
// which may be requeued.
const (
	RunDraft     RunStatus = "draft"
	RunQueued    RunStatus = "queued"
	RunComputing RunStatus = "computing"
	RunComputed  RunStatus = "computed"
	RunApproved  RunStatus = "approved"
	RunPosted    RunStatus = "posted"
	RunFailed    RunStatus = "failed"
	RunVoided    RunStatus = "voided"
)

const (
	LeaveAnnual    LeaveType = "annual"
	LeaveSick      LeaveType = "sick"
	LeaveMaternity LeaveType = "maternity"
	LeaveUnpaid    LeaveType = "unpaid"
)

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

const (
	AdvanceOpen       AdvanceStatus = "open"
	AdvanceRecovering AdvanceStatus = "recovering"
	AdvanceSettled    AdvanceStatus = "settled"
	AdvanceWrittenOff AdvanceStatus = "written_off"
)

type (
	PayFrequency   string
	EmployeeStatus string
	RunStatus      string
	LeaveType      string
	LeaveStatus    string
	AdvanceStatus  string

	Date struct {
		time.Time
	}

	// Money is an amount of Nigerian naira in kobo (1/100 NGN).
	Money struct {
		Kobo int64
	}

	// Company is a tenant workspace. All other aggregates are scoped to a
	// company and queries never cross that boundary.
	Company struct {
		ID            int64
		Name          string
		TaxID         string
		PayFrequency  PayFrequency
		PaydayOfMonth int // day monthly runs open, 1-28
		APIKey        string
	}

	// Salary holds the annual pay components of an employee. Pensionable
	// earnings are basic+housing+transport; NHF and NHIS apply to basic only.
	Salary struct {
		Basic     Money
		Housing   Money
		Transport Money
		Other     Money
	}

	Employee struct {
		ID               int64
		CompanyID        int64
		StaffNumber      string
		FirstName        string
		LastName         string
		Email            string
		Annual           Salary
		PensionEnrolled  bool
		NHFEnrolled      bool
		NHISEnrolled     bool
		HireDate         Date
		TerminationDate  Date // zero while still employed
		Status           EmployeeStatus
		LeaveBalanceDays int
	}

	// PayrollRun is a pay-period batch for one company. Periods are calendar
	// months; totals are denormalized after compute.
	PayrollRun struct {
		ID            int64
		CompanyID     int64
		Reference     string // PR-<company>-<year>-<month>, -R<n> on correction runs
		Year          int
		Month         int // 1-12
		Status        RunStatus
		TotalGross    Money
		TotalPAYE     Money
		TotalNet      Money
		EmployeeCount int
		FailureReason string
	}

	// Payslip is one employee's computed line in a run. Amounts are monthly
	// kobo; reliefs and PAYE come out of the statutory engine.
	Payslip struct {
		ID               int64
		RunID            int64
		CompanyID        int64
		EmployeeID       int64
		Gross            Money
		CRARelief        Money
		Pension          Money
		NHF              Money
		NHIS             Money
		Taxable          Money
		PAYE             Money
		AdvanceRecovered Money
		Net              Money

		// EmployerPension is the employer's matching contribution. It is an
		// employer cost, not a withholding, but the journal posting needs it.
		EmployerPension Money
	}

	LeaveRequest struct {
		ID         int64
		CompanyID  int64
		EmployeeID int64
		Type       LeaveType
		StartDate  Date
		EndDate    Date
		Days       int
		Reason     string
		Status     LeaveStatus
	}

	// Advance is a salary advance (IOU) recovered in monthly installments
	// out of net pay.
	Advance struct {
		ID          int64
		CompanyID   int64
		EmployeeID  int64
		Principal   Money
		Installment Money
		Balance     Money
		Status      AdvanceStatus
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyStaffNumber   = errors.New("empty staff number")
	ErrInvalidFrequency   = errors.New("invalid pay frequency")
	ErrInvalidPayday      = errors.New("invalid payday of month")
	ErrInvalidLeaveType   = errors.New("invalid leave type")
	ErrInvalidLeaveSpan   = errors.New("leave end date before start date")
	ErrInvalidRunPeriod   = errors.New("invalid payroll period")
	ErrInvalidInstallment = errors.New("installment exceeds principal")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty returns true if the date is zero (used for optional dates such as
// termination dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Kobo <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of the two amounts.
func (m Money) Add(o Money) Money { return Money{Kobo: m.Kobo + o.Kobo} }

// Sub returns m minus o.
func (m Money) Sub(o Money) Money { return Money{Kobo: m.Kobo - o.Kobo} }

// IsZero reports whether the amount is exactly zero kobo.
func (m Money) IsZero() bool { return m.Kobo == 0 }

// Gross is the sum of all annual salary components.
func (s Salary) Gross() Money {
	return Money{Kobo: s.Basic.Kobo + s.Housing.Kobo + s.Transport.Kobo + s.Other.Kobo}
}

// Pensionable returns the earnings base for pension contributions.
func (s Salary) Pensionable() Money {
	return Money{Kobo: s.Basic.Kobo + s.Housing.Kobo + s.Transport.Kobo}
}

func (c Company) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return errors.New("company name too long (max 200 characters)")
	}
	switch c.PayFrequency {
	case Monthly, Biweekly, Weekly:
	default:
		return ErrInvalidFrequency
	}
	// Capped at 28 so the payday exists in every month.
	if c.PaydayOfMonth < 1 || c.PaydayOfMonth > 28 {
		return ErrInvalidPayday
	}
	return nil
}

func (e Employee) Validate() error {
	if strings.TrimSpace(e.StaffNumber) == "" {
		return ErrEmptyStaffNumber
	}
	if strings.TrimSpace(e.FirstName) == "" || strings.TrimSpace(e.LastName) == "" {
		return ErrEmptyName
	}
	if len(e.FirstName) > 100 || len(e.LastName) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if err := e.Annual.Basic.Validate(); err != nil {
		return errors.New("invalid basic salary: " + err.Error())
	}
	// Allowances may be zero but never negative.
	for _, m := range []Money{e.Annual.Housing, e.Annual.Transport, e.Annual.Other} {
		if m.Kobo < 0 {
			return ErrInvalidAmount
		}
	}
	if err := e.HireDate.Validate(); err != nil {
		return errors.New("invalid hire date: " + err.Error())
	}
	if !e.TerminationDate.IsEmpty() && e.TerminationDate.Before(e.HireDate.Time) {
		return errors.New("termination date before hire date")
	}
	switch e.Status {
	case EmployeeActive, EmployeeOnLeave, EmployeeTerminated:
	default:
		return errors.New("invalid employee status")
	}
	return nil
}

func (r PayrollRun) Validate() error {
	if r.Year < 2000 || r.Year > 2100 {
		return ErrInvalidRunPeriod
	}
	if r.Month < 1 || r.Month > 12 {
		return ErrInvalidRunPeriod
	}
	return nil
}

// Terminal reports whether no further transitions are allowed.
func (s RunStatus) Terminal() bool {
	return s == RunPosted || s == RunVoided
}

// CanTransition enforces the run status machine.
func (s RunStatus) CanTransition(to RunStatus) bool {
	switch s {
	case RunDraft:
		return to == RunQueued || to == RunVoided
	case RunQueued:
		return to == RunComputing || to == RunFailed || to == RunVoided
	case RunComputing:
		// computing -> queued is the crash-recovery path: a stale claim is
		// released so the run can be picked up again.
		return to == RunComputed || to == RunFailed || to == RunQueued
	case RunComputed:
		return to == RunApproved || to == RunQueued || to == RunVoided
	case RunApproved:
		// approved -> voided needs no reversal: the journal entry is only
		// written at posting.
		return to == RunPosted || to == RunFailed || to == RunVoided
	case RunFailed:
		return to == RunQueued || to == RunVoided
	default:
		return false
	}
}

func (lr LeaveRequest) Validate() error {
	switch lr.Type {
	case LeaveAnnual, LeaveSick, LeaveMaternity, LeaveUnpaid:
	default:
		return ErrInvalidLeaveType
	}
	if err := lr.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if err := lr.EndDate.Validate(); err != nil {
		return errors.New("invalid end date: " + err.Error())
	}
	if lr.EndDate.Before(lr.StartDate.Time) {
		return ErrInvalidLeaveSpan
	}
	if lr.Days < 1 {
		return errors.New("leave must span at least one day")
	}
	if len(lr.Reason) > 500 {
		return errors.New("reason too long (max 500 characters)")
	}
	return nil
}

func (a Advance) Validate() error {
	if err := a.Principal.Validate(); err != nil {
		return errors.New("invalid principal: " + err.Error())
	}
	if err := a.Installment.Validate(); err != nil {
		return errors.New("invalid installment: " + err.Error())
	}
	if a.Installment.Kobo > a.Principal.Kobo {
		return ErrInvalidInstallment
	}
	return nil
}

// LeaveDays counts calendar days in the span, inclusive of both ends.
func LeaveDays(start, end Date) int {
	if end.Before(start.Time) {
		return 0
	}
	return int(end.Sub(start.Time).Hours()/24) + 1
}

// DaysInMonth returns the number of calendar days in the given period.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
