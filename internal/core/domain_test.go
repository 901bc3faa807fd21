package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCompanyValidate(t *testing.T) {
	good := Company{Name: "Acme Ltd", PayFrequency: Monthly, PaydayOfMonth: 25}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Company{
		{Name: "", PayFrequency: Monthly, PaydayOfMonth: 25},
		{Name: "Acme", PayFrequency: "quarterly", PaydayOfMonth: 25},
		{Name: "Acme", PayFrequency: Monthly, PaydayOfMonth: 0},
		{Name: "Acme", PayFrequency: Monthly, PaydayOfMonth: 31},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEmployeeValidate(t *testing.T) {
	good := Employee{
		StaffNumber: "EMP-001",
		FirstName:   "Ada",
		LastName:    "Obi",
		Annual:      Salary{Basic: Money{Kobo: 240000000}},
		HireDate:    NewDate(2024, 3, 1),
		Status:      EmployeeActive,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Employee{
		{StaffNumber: "", FirstName: "A", LastName: "B", Annual: Salary{Basic: Money{Kobo: 1}}, HireDate: NewDate(2024, 1, 1), Status: EmployeeActive},
		{StaffNumber: "E1", FirstName: "", LastName: "B", Annual: Salary{Basic: Money{Kobo: 1}}, HireDate: NewDate(2024, 1, 1), Status: EmployeeActive},
		{StaffNumber: "E1", FirstName: "A", LastName: "B", Annual: Salary{Basic: Money{Kobo: 0}}, HireDate: NewDate(2024, 1, 1), Status: EmployeeActive},
		{StaffNumber: "E1", FirstName: "A", LastName: "B", Annual: Salary{Basic: Money{Kobo: 1}, Housing: Money{Kobo: -5}}, HireDate: NewDate(2024, 1, 1), Status: EmployeeActive},
		{StaffNumber: "E1", FirstName: "A", LastName: "B", Annual: Salary{Basic: Money{Kobo: 1}}, HireDate: Date{}, Status: EmployeeActive},
		{StaffNumber: "E1", FirstName: "A", LastName: "B", Annual: Salary{Basic: Money{Kobo: 1}}, HireDate: NewDate(2024, 1, 1), Status: "retired"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	// Termination before hire is invalid.
	bad := good
	bad.TerminationDate = NewDate(2024, 2, 1)
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for termination before hire")
	}
}

func TestRunStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to RunStatus }{
		{RunDraft, RunQueued},
		{RunQueued, RunComputing},
		{RunComputing, RunComputed},
		{RunComputed, RunApproved},
		{RunApproved, RunPosted},
		{RunComputing, RunFailed},
		{RunFailed, RunQueued},
		{RunComputed, RunQueued},  // recompute
		{RunComputing, RunQueued}, // stale claim released
	}
	for _, tr := range allowed {
		if !tr.from.CanTransition(tr.to) {
			t.Fatalf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to RunStatus }{
		{RunDraft, RunPosted},
		{RunPosted, RunQueued},
		{RunVoided, RunQueued},
		{RunQueued, RunApproved},
		{RunApproved, RunComputing},
	}
	for _, tr := range denied {
		if tr.from.CanTransition(tr.to) {
			t.Fatalf("%s -> %s should be denied", tr.from, tr.to)
		}
	}

	if !RunPosted.Terminal() || !RunVoided.Terminal() {
		t.Fatal("posted and voided must be terminal")
	}
	if RunComputed.Terminal() {
		t.Fatal("computed is not terminal")
	}
}

func TestLeaveRequestValidate(t *testing.T) {
	good := LeaveRequest{
		Type:      LeaveAnnual,
		StartDate: NewDate(2025, 6, 2),
		EndDate:   NewDate(2025, 6, 6),
		Days:      5,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.EndDate = NewDate(2025, 5, 30)
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for end before start")
	}
	bad = good
	bad.Type = "sabbatical"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown leave type")
	}
}

func TestAdvanceValidate(t *testing.T) {
	good := Advance{Principal: Money{Kobo: 100000}, Installment: Money{Kobo: 20000}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := Advance{Principal: Money{Kobo: 100}, Installment: Money{Kobo: 200}}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for installment above principal")
	}
}

func TestLeaveDays(t *testing.T) {
	if got := LeaveDays(NewDate(2025, 6, 2), NewDate(2025, 6, 6)); got != 5 {
		t.Fatalf("expected 5 days, got %d", got)
	}
	if got := LeaveDays(NewDate(2025, 6, 2), NewDate(2025, 6, 2)); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
	if got := LeaveDays(NewDate(2025, 6, 6), NewDate(2025, 6, 2)); got != 0 {
		t.Fatalf("expected 0 for inverted span, got %d", got)
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct{ y, m, want int }{
		{2025, 1, 31},
		{2025, 2, 28},
		{2024, 2, 29},
		{2025, 4, 30},
	}
	for _, tc := range cases {
		if got := DaysInMonth(tc.y, tc.m); got != tc.want {
			t.Fatalf("%d-%02d expected %d days, got %d", tc.y, tc.m, tc.want, got)
		}
	}
}
