package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilderTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerRunQueued(2026, 3).
		TriggerOverviewRefresh(2026, 3).
		BodyHTML(`<div class="success">queued</div>`).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}

	var triggers map[string]map[string]int
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("unmarshal HX-Trigger: %v", err)
	}
	if triggers["run:queued"]["year"] != 2026 || triggers["run:queued"]["month"] != 3 {
		t.Errorf("unexpected run:queued payload: %v", triggers["run:queued"])
	}
	if _, ok := triggers["overview:refresh"]; !ok {
		t.Error("missing overview:refresh trigger")
	}
}

func TestFragmentErrorEscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	FragmentError(http.StatusUnprocessableEntity, `<script>alert(1)</script>`).Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("message not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped markup, got %s", body)
	}
}

func TestHTMXResponseBuilderNoTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should be absent without triggers")
	}
}
