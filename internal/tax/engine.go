package tax

import (
	"fmt"

	"wagebook/internal/core"
)

// Input describes one employee's pay for a single monthly period.
type Input struct {
	Annual core.Salary

	PensionEnrolled bool
	NHFEnrolled     bool
	NHISEnrolled    bool

	Year  int
	Month int // 1-12

	// DaysActive is the number of calendar days in the period the employee
	// was employed and paid. Unpaid-leave days are subtracted by the caller.
	DaysActive int
}

// Result holds the monthly statutory breakdown in kobo. Net excludes advance
// recovery, which is a post-tax adjustment applied by the payroll service.
type Result struct {
	Gross     core.Money
	CRARelief core.Money
	Pension   core.Money
	NHF       core.Money
	NHIS      core.Money
	Taxable   core.Money
	PAYE      core.Money
	Net       core.Money

	// EmployerPension is informational: it feeds the ledger posting but is
	// not withheld from the employee.
	EmployerPension core.Money
}

// bps applies a basis-point rate to an amount, flooring to whole kobo.
func bps(amount, rate int64) int64 {
	return amount * rate / 10000
}

// Compute runs the statutory computation for one employee-month.
//
// Annual amounts are prorated by DaysActive/DaysInMonth before annualization,
// so a mid-month hire pays tax on what was actually earned. Monthly PAYE is
// annual PAYE / 12 with the remainder kobo assigned to the December period,
// so a full year of withholding sums exactly to the annual liability.
func Compute(in Input) (Result, error) {
	if in.Month < 1 || in.Month > 12 {
		return Result{}, fmt.Errorf("invalid month %d", in.Month)
	}
	daysInMonth := core.DaysInMonth(in.Year, in.Month)
	if in.DaysActive < 0 || in.DaysActive > daysInMonth {
		return Result{}, fmt.Errorf("invalid active days %d for %d-%02d", in.DaysActive, in.Year, in.Month)
	}

	table, err := ForYear(in.Year)
	if err != nil {
		return Result{}, err
	}
	if err := table.validate(); err != nil {
		return Result{}, err
	}

	// Prorate each annual component by active days.
	prorate := func(m core.Money) int64 {
		return m.Kobo * int64(in.DaysActive) / int64(daysInMonth)
	}
	annualBasic := prorate(in.Annual.Basic)
	annualPensionable := prorate(in.Annual.Pensionable())
	annualGross := prorate(in.Annual.Gross())

	// Statutory contributions come off before CRA (gross income as defined
	// by the Finance Act 2020).
	var pension, nhf, nhis int64
	if in.PensionEnrolled {
		pension = bps(annualPensionable, table.PensionEmployeeBps)
	}
	if in.NHFEnrolled {
		nhf = bps(annualBasic, table.NHFBps)
	}
	if in.NHISEnrolled {
		nhis = bps(annualBasic, table.NHISBps)
	}
	grossIncome := annualGross - pension - nhf - nhis
	if grossIncome < 0 {
		grossIncome = 0
	}

	cra := bps(grossIncome, table.CRARateBps)
	floor := bps(grossIncome, table.CRAGrossRateBps)
	if floor < table.CRAFixedKobo {
		floor = table.CRAFixedKobo
	}
	cra += floor

	taxable := grossIncome - cra
	if taxable < 0 {
		taxable = 0
	}

	annualPAYE := bandedTax(taxable, table.Bands)

	// Minimum tax: reliefs exhausted income, or banded tax below the floor.
	if minTax := bps(annualGross, table.MinimumTaxBps); annualPAYE < minTax {
		annualPAYE = minTax
	}
	// Minimum-wage earners are exempt outright.
	if annualGross <= table.MinimumWageAnnualKobo {
		annualPAYE = 0
	}

	monthly := func(annual int64) int64 {
		m := annual / 12
		if in.Month == 12 {
			m = annual - 11*m
		}
		return m
	}

	res := Result{
		Gross:           core.Money{Kobo: monthly(annualGross)},
		CRARelief:       core.Money{Kobo: monthly(cra)},
		Pension:         core.Money{Kobo: monthly(pension)},
		NHF:             core.Money{Kobo: monthly(nhf)},
		NHIS:            core.Money{Kobo: monthly(nhis)},
		Taxable:         core.Money{Kobo: monthly(taxable)},
		PAYE:            core.Money{Kobo: monthly(annualPAYE)},
		EmployerPension: core.Money{Kobo: monthly(bpsIf(in.PensionEnrolled, annualPensionable, table.PensionEmployerBps))},
	}
	res.Net = core.Money{Kobo: res.Gross.Kobo - res.Pension.Kobo - res.NHF.Kobo - res.NHIS.Kobo - res.PAYE.Kobo}
	return res, nil
}

func bpsIf(enrolled bool, amount, rate int64) int64 {
	if !enrolled {
		return 0
	}
	return bps(amount, rate)
}

// bandedTax walks the progressive bands over annual taxable income.
func bandedTax(taxable int64, bands []Band) int64 {
	var tax int64
	remaining := taxable
	for _, b := range bands {
		if remaining <= 0 {
			break
		}
		slice := remaining
		if b.UpToKobo > 0 && slice > b.UpToKobo {
			slice = b.UpToKobo
		}
		tax += bps(slice, b.RateBps)
		remaining -= slice
	}
	return tax
}
