package core

// DeductionAmount represents an amount aggregated by deduction name.
type DeductionAmount struct {
	Name   string
	Amount Money
}

// RunOverview is a compact summary of a payroll run for a year+month period.
type RunOverview struct {
	Year         int
	Month        int // 1-12
	Status       RunStatus
	Employees    int
	TotalGross   Money
	TotalNet     Money
	ByDeduction  []DeductionAmount
}
