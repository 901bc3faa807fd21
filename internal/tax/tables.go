// Package tax implements the Nigerian statutory payroll computation: PAYE
// banding, the Consolidated Relief Allowance, pension/NHF/NHIS contributions
// and minimum tax.
//
// All statutory figures live in embedded YAML tables, one revision per tax
// year, so a new Finance Act revision is a data change rather than a code
// change.
package tax

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// Band is one progressive PAYE band. UpToKobo is the width of the band in
// annual taxable kobo; zero means unbounded (top band).
type Band struct {
	UpToKobo int64 `yaml:"upto_kobo"`
	RateBps  int64 `yaml:"rate_bps"`
}

// Table holds the statutory figures effective from a given tax year.
type Table struct {
	Year int `yaml:"year"`

	Bands []Band `yaml:"bands"`

	// CRA = max(fixed, gross*gross_rate) + gross*rate, on gross income
	// after statutory contributions.
	CRAFixedKobo    int64 `yaml:"cra_fixed_kobo"`
	CRAGrossRateBps int64 `yaml:"cra_gross_rate_bps"`
	CRARateBps      int64 `yaml:"cra_rate_bps"`

	PensionEmployeeBps int64 `yaml:"pension_employee_bps"`
	PensionEmployerBps int64 `yaml:"pension_employer_bps"`
	NHFBps             int64 `yaml:"nhf_bps"`
	NHISBps            int64 `yaml:"nhis_bps"`

	MinimumTaxBps int64 `yaml:"minimum_tax_bps"`
	// Earners at or below this annual gross are exempt from PAYE entirely.
	MinimumWageAnnualKobo int64 `yaml:"minimum_wage_annual_kobo"`
}

type tablesFile struct {
	Revisions []Table `yaml:"revisions"`
}

var revisions []Table

func init() {
	var f tablesFile
	if err := yaml.Unmarshal(tablesYAML, &f); err != nil {
		panic(fmt.Sprintf("parse embedded tax tables: %v", err))
	}
	revisions = f.Revisions
	sort.Slice(revisions, func(i, j int) bool { return revisions[i].Year < revisions[j].Year })
}

// ForYear returns the table revision in effect for the given tax year: the
// latest revision whose year does not exceed it.
func ForYear(year int) (Table, error) {
	var found *Table
	for i := range revisions {
		if revisions[i].Year <= year {
			found = &revisions[i]
		}
	}
	if found == nil {
		return Table{}, fmt.Errorf("no tax table revision for year %d", year)
	}
	return *found, nil
}

func (t Table) validate() error {
	if len(t.Bands) == 0 {
		return fmt.Errorf("tax table %d has no bands", t.Year)
	}
	for i, b := range t.Bands {
		if b.UpToKobo == 0 && i != len(t.Bands)-1 {
			return fmt.Errorf("tax table %d: unbounded band %d is not last", t.Year, i)
		}
	}
	return nil
}
