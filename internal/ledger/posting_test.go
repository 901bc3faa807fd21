package ledger

import (
	"errors"
	"testing"

	"wagebook/internal/core"
)

func testRun() core.PayrollRun {
	return core.PayrollRun{
		ID:        7,
		CompanyID: 1,
		Reference: "run_test",
		Year:      2025,
		Month:     6,
	}
}

func testTotals() RunTotals {
	return RunTotals{
		Gross:            core.Money{Kobo: 27_500_000},
		EmployerPension:  core.Money{Kobo: 2_750_000},
		PAYE:             core.Money{Kobo: 2_883_066},
		EmployeePension:  core.Money{Kobo: 2_200_000},
		NHF:              core.Money{Kobo: 500_000},
		NHIS:             core.Money{Kobo: 0},
		AdvanceRecovered: core.Money{Kobo: 1_000_000},
		Net:              core.Money{Kobo: 27_500_000 - 2_883_066 - 2_200_000 - 500_000 - 1_000_000},
	}
}

func TestBuildRunEntryBalances(t *testing.T) {
	e, err := BuildRunEntry(testRun(), testTotals())
	if err != nil {
		t.Fatalf("BuildRunEntry: %v", err)
	}
	if !e.Balanced() {
		t.Fatal("entry must balance")
	}
	if e.SourceRunID != 7 {
		t.Fatalf("source run id: got %d", e.SourceRunID)
	}

	// NHIS is zero and must not produce a line.
	for _, l := range e.Lines {
		if l.AccountCode == CodeNHISPayable {
			t.Fatal("zero NHIS should be omitted")
		}
	}

	// Pension payable carries employee plus employer contributions.
	var pensionCr int64
	for _, l := range e.Lines {
		if l.AccountCode == CodePensionPayable {
			pensionCr = l.Credit.Kobo
		}
	}
	if pensionCr != 2_200_000+2_750_000 {
		t.Fatalf("pension payable: got %d", pensionCr)
	}
}

func TestBuildRunEntryUnbalancedFails(t *testing.T) {
	bad := testTotals()
	bad.Net = bad.Net.Add(core.Money{Kobo: 1}) // one kobo off
	if _, err := BuildRunEntry(testRun(), bad); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry, got %v", err)
	}
}

func TestEntryValidate(t *testing.T) {
	if err := (Entry{}).Validate(); !errors.Is(err, ErrEmptyEntry) {
		t.Fatalf("expected ErrEmptyEntry, got %v", err)
	}

	both := Entry{Lines: []Line{
		{AccountCode: CodeBank, Debit: core.Money{Kobo: 5}, Credit: core.Money{Kobo: 5}},
		{AccountCode: CodeSalaryExpense, Debit: core.Money{Kobo: 5}},
	}}
	if err := both.Validate(); err == nil {
		t.Fatal("expected error for line with both sides set")
	}
}

func TestReverse(t *testing.T) {
	e, err := BuildRunEntry(testRun(), testTotals())
	if err != nil {
		t.Fatal(err)
	}

	rev, err := Reverse(e, ReversalReasonRunVoid)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if !rev.Reversal || rev.ReversalReason != ReversalReasonRunVoid {
		t.Fatal("reversal metadata not set")
	}
	if !rev.Balanced() {
		t.Fatal("reversal must balance")
	}
	for i := range e.Lines {
		if rev.Lines[i].Debit != e.Lines[i].Credit || rev.Lines[i].Credit != e.Lines[i].Debit {
			t.Fatalf("line %d not mirrored", i)
		}
	}

	if _, err := Reverse(e, "because"); !errors.Is(err, ErrUnknownReversalReason) {
		t.Fatalf("expected ErrUnknownReversalReason, got %v", err)
	}
}

func TestBuildAdvanceEntry(t *testing.T) {
	e, err := BuildAdvanceEntry(1, "adv_1", core.Money{Kobo: 500_000})
	if err != nil {
		t.Fatalf("BuildAdvanceEntry: %v", err)
	}
	if len(e.Lines) != 2 || !e.Balanced() {
		t.Fatal("advance entry must be a balanced pair")
	}
	if e.Lines[0].AccountCode != CodeAdvancesReceivable || e.Lines[0].Debit.Kobo != 500_000 {
		t.Fatal("advance must debit the receivable")
	}
}

func TestTotalsFromPayslips(t *testing.T) {
	slips := []core.Payslip{
		{
			Gross:            core.Money{Kobo: 1000},
			PAYE:             core.Money{Kobo: 100},
			Pension:          core.Money{Kobo: 80},
			AdvanceRecovered: core.Money{Kobo: 50},
			Net:              core.Money{Kobo: 770},
			EmployerPension:  core.Money{Kobo: 100},
		},
		{
			Gross: core.Money{Kobo: 2000},
			PAYE:  core.Money{Kobo: 200},
			Net:   core.Money{Kobo: 1800},
		},
	}
	tt := TotalsFromPayslips(slips)
	if tt.Gross.Kobo != 3000 || tt.PAYE.Kobo != 300 || tt.Net.Kobo != 2570 {
		t.Fatalf("unexpected totals: %+v", tt)
	}
	if tt.AdvanceRecovered.Kobo != 50 {
		t.Fatalf("advance recovered: got %d", tt.AdvanceRecovered.Kobo)
	}

	run := testRun()
	e, err := BuildRunEntry(run, tt)
	if err != nil {
		t.Fatalf("aggregated totals must post cleanly: %v", err)
	}
	if !e.Balanced() {
		t.Fatal("aggregated entry must balance")
	}
}
