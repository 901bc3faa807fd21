// Package ledger implements the double-entry posting side of payroll: the
// chart of accounts, the posting map from computed runs to journal entries,
// and reversing entries for voided runs.
package ledger

const (
	AssetAccount     AccountType = "asset"
	LiabilityAccount AccountType = "liability"
	EquityAccount    AccountType = "equity"
	IncomeAccount    AccountType = "income"
	ExpenseAccount   AccountType = "expense"
)

// Account codes seeded for every company. The payroll posting map writes
// only to these.
const (
	CodeBank               = "1000"
	CodeAdvancesReceivable = "1200"
	CodePAYEPayable        = "2100"
	CodePensionPayable     = "2110"
	CodeNHFPayable         = "2120"
	CodeNHISPayable        = "2130"
	CodeNetSalariesPayable = "2200"
	CodeSalaryExpense      = "6100"
	CodeEmployerPension    = "6110"
)

type (
	AccountType string

	// Account is one ledger account in a company's chart.
	Account struct {
		ID        int64
		CompanyID int64
		Code      string
		Name      string
		Type      AccountType
	}
)

// ChartTemplate is the per-company seed chart. Order matters only for
// display.
var ChartTemplate = []Account{
	{Code: CodeBank, Name: "Bank", Type: AssetAccount},
	{Code: CodeAdvancesReceivable, Name: "Salary advances receivable", Type: AssetAccount},
	{Code: CodePAYEPayable, Name: "PAYE payable", Type: LiabilityAccount},
	{Code: CodePensionPayable, Name: "Pension payable", Type: LiabilityAccount},
	{Code: CodeNHFPayable, Name: "NHF payable", Type: LiabilityAccount},
	{Code: CodeNHISPayable, Name: "NHIS payable", Type: LiabilityAccount},
	{Code: CodeNetSalariesPayable, Name: "Net salaries payable", Type: LiabilityAccount},
	{Code: CodeSalaryExpense, Name: "Salary expense", Type: ExpenseAccount},
	{Code: CodeEmployerPension, Name: "Employer pension expense", Type: ExpenseAccount},
}
