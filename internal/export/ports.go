package export

import (
	"context"

	"wagebook/internal/core"
)

// RegisterRow is one employee line of a payroll register.
type RegisterRow struct {
	StaffNumber      string
	EmployeeName     string
	Gross            core.Money
	PAYE             core.Money
	Pension          core.Money
	NHF              core.Money
	NHIS             core.Money
	AdvanceRecovered core.Money
	Net              core.Money
}

// Register is the exportable view of a posted payroll run.
type Register struct {
	CompanyName string
	Reference   string
	Year        int
	Month       int
	Rows        []RegisterRow
	TotalGross  core.Money
	TotalPAYE   core.Money
	TotalNet    core.Money
}

// RegisterWriter is the port for outbound register exports.
type RegisterWriter interface {
	// WriteRegister writes the register and returns a destination reference.
	WriteRegister(ctx context.Context, r Register) (ref string, err error)
}
