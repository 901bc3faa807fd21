package http

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParserJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/leave", strings.NewReader(
		`{"employee_id": 7, "type": "annual", "days": 5, "approved": true}`))

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.IsJSON() {
		t.Error("expected JSON detection")
	}
	if got := p.GetInt64("employee_id"); got != 7 {
		t.Errorf("employee_id = %d, want 7", got)
	}
	if got := p.Get("type"); got != "annual" {
		t.Errorf("type = %q, want annual", got)
	}
	if got := p.GetInt("days", 0); got != 5 {
		t.Errorf("days = %d, want 5", got)
	}
	if !p.GetBool("approved") {
		t.Error("approved should be true")
	}
}

func TestRequestBodyParserForm(t *testing.T) {
	r := httptest.NewRequest("POST", "/ui/runs/open", strings.NewReader("year=2026&month=3"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.IsJSON() {
		t.Error("form body misdetected as JSON")
	}
	if got := p.GetInt("year", 0); got != 2026 {
		t.Errorf("year = %d, want 2026", got)
	}
	if got := p.GetInt("month", 0); got != 3 {
		t.Errorf("month = %d, want 3", got)
	}
}

func TestRequestBodyParserEmptyAndInvalid(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/runs", nil)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse empty body: %v", err)
	}
	if got := p.GetInt("year", 2026); got != 2026 {
		t.Errorf("missing key should use fallback, got %d", got)
	}

	r = httptest.NewRequest("POST", "/api/runs", strings.NewReader(`{"broken`))
	p = NewRequestBodyParser(r)
	if err := p.Parse(); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
