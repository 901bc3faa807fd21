package ledger

import (
	"errors"
	"fmt"

	"wagebook/internal/core"
)

// Standardized reasons stored on reversing entries. Free-form reasons are
// rejected so reports can group reversals reliably.
const (
	ReversalReasonRunVoid          = "Payroll run void"
	ReversalReasonRunRecompute     = "Payroll run recompute"
	ReversalReasonAdvanceWriteOff  = "Salary advance write-off"
	ReversalReasonManualCorrection = "Manual journal correction"
)

var reversalReasons = map[string]bool{
	ReversalReasonRunVoid:          true,
	ReversalReasonRunRecompute:     true,
	ReversalReasonAdvanceWriteOff:  true,
	ReversalReasonManualCorrection: true,
}

var (
	ErrUnbalancedEntry       = errors.New("journal entry debits do not equal credits")
	ErrEmptyEntry            = errors.New("journal entry has no lines")
	ErrUnknownReversalReason = errors.New("unknown reversal reason")
)

type (
	// Line is one side of a journal entry. Exactly one of Debit/Credit is
	// non-zero.
	Line struct {
		AccountCode string
		Debit       core.Money
		Credit      core.Money
	}

	// Entry is a balanced journal entry. Entries are append-only; a posted
	// entry is corrected by a reversing entry, never mutated.
	Entry struct {
		ID          int64
		CompanyID   int64
		Reference   string
		Description string
		SourceRunID int64 // zero for manual entries
		Reversal    bool
		ReversalReason string
		Lines       []Line
	}

	// RunTotals aggregates a run's payslips for posting.
	RunTotals struct {
		Gross            core.Money
		EmployerPension  core.Money
		PAYE             core.Money
		EmployeePension  core.Money
		NHF              core.Money
		NHIS             core.Money
		AdvanceRecovered core.Money
		Net              core.Money
	}
)

// Balanced reports whether debits equal credits.
func (e Entry) Balanced() bool {
	var dr, cr int64
	for _, l := range e.Lines {
		dr += l.Debit.Kobo
		cr += l.Credit.Kobo
	}
	return dr == cr
}

// Validate checks structural soundness: at least two lines, each line
// single-sided and positive, totals balanced.
func (e Entry) Validate() error {
	if len(e.Lines) < 2 {
		return ErrEmptyEntry
	}
	for i, l := range e.Lines {
		if l.AccountCode == "" {
			return fmt.Errorf("line %d: empty account code", i)
		}
		if (l.Debit.Kobo > 0) == (l.Credit.Kobo > 0) {
			return fmt.Errorf("line %d: exactly one of debit/credit must be positive", i)
		}
		if l.Debit.Kobo < 0 || l.Credit.Kobo < 0 {
			return fmt.Errorf("line %d: negative amount", i)
		}
	}
	if !e.Balanced() {
		return ErrUnbalancedEntry
	}
	return nil
}

// BuildRunEntry maps a computed run's totals to the statutory posting map:
//
//	Dr salary expense            gross
//	Dr employer pension expense  employer contribution
//	Cr PAYE payable              withheld tax
//	Cr pension payable           employee + employer contributions
//	Cr NHF payable               housing fund
//	Cr NHIS payable              health insurance
//	Cr advances receivable       installments recovered
//	Cr net salaries payable      net pay
//
// Zero-amount lines are omitted. The result is validated before return; an
// unbalanced map is a hard error and the caller must fail the run.
func BuildRunEntry(run core.PayrollRun, t RunTotals) (Entry, error) {
	e := Entry{
		CompanyID:   run.CompanyID,
		Reference:   run.Reference,
		Description: fmt.Sprintf("Payroll %d-%02d", run.Year, run.Month),
		SourceRunID: run.ID,
	}

	add := func(code string, debit, credit core.Money) {
		if debit.IsZero() && credit.IsZero() {
			return
		}
		e.Lines = append(e.Lines, Line{AccountCode: code, Debit: debit, Credit: credit})
	}

	add(CodeSalaryExpense, t.Gross, core.Money{})
	add(CodeEmployerPension, t.EmployerPension, core.Money{})
	add(CodePAYEPayable, core.Money{}, t.PAYE)
	add(CodePensionPayable, core.Money{}, t.EmployeePension.Add(t.EmployerPension))
	add(CodeNHFPayable, core.Money{}, t.NHF)
	add(CodeNHISPayable, core.Money{}, t.NHIS)
	add(CodeAdvancesReceivable, core.Money{}, t.AdvanceRecovered)
	add(CodeNetSalariesPayable, core.Money{}, t.Net)

	if err := e.Validate(); err != nil {
		return Entry{}, fmt.Errorf("build run entry for %s: %w", run.Reference, err)
	}
	return e, nil
}

// BuildAdvanceEntry records issuing a salary advance: the company pays cash
// out and holds a receivable against the employee.
func BuildAdvanceEntry(companyID int64, reference string, principal core.Money) (Entry, error) {
	e := Entry{
		CompanyID:   companyID,
		Reference:   reference,
		Description: "Salary advance issued",
		Lines: []Line{
			{AccountCode: CodeAdvancesReceivable, Debit: principal},
			{AccountCode: CodeBank, Credit: principal},
		},
	}
	if err := e.Validate(); err != nil {
		return Entry{}, fmt.Errorf("build advance entry %s: %w", reference, err)
	}
	return e, nil
}

// Reverse builds the mirroring entry for a posted entry. Line sides are
// swapped; the original is untouched.
func Reverse(e Entry, reason string) (Entry, error) {
	if !reversalReasons[reason] {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownReversalReason, reason)
	}
	rev := Entry{
		CompanyID:      e.CompanyID,
		Reference:      e.Reference + "_rev",
		Description:    "Reversal: " + e.Description,
		SourceRunID:    e.SourceRunID,
		Reversal:       true,
		ReversalReason: reason,
	}
	for _, l := range e.Lines {
		rev.Lines = append(rev.Lines, Line{
			AccountCode: l.AccountCode,
			Debit:       l.Credit,
			Credit:      l.Debit,
		})
	}
	if err := rev.Validate(); err != nil {
		return Entry{}, fmt.Errorf("reverse entry %s: %w", e.Reference, err)
	}
	return rev, nil
}

// TotalsFromPayslips aggregates payslips into posting totals. Payslip.Net is
// already net of advance recovery.
func TotalsFromPayslips(slips []core.Payslip) RunTotals {
	var t RunTotals
	for _, p := range slips {
		t.Gross = t.Gross.Add(p.Gross)
		t.PAYE = t.PAYE.Add(p.PAYE)
		t.EmployeePension = t.EmployeePension.Add(p.Pension)
		t.NHF = t.NHF.Add(p.NHF)
		t.NHIS = t.NHIS.Add(p.NHIS)
		t.AdvanceRecovered = t.AdvanceRecovered.Add(p.AdvanceRecovered)
		t.Net = t.Net.Add(p.Net)
		t.EmployerPension = t.EmployerPension.Add(p.EmployerPension)
	}
	return t
}
