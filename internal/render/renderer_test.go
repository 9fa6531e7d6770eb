package render

import (
	"strings"
	"testing"

	"github.com/kapu/formsmith-server-go/internal/forms"
)

func testSchema(t *testing.T) forms.FormSchema {
	t.Helper()
	schema, _, err := forms.Normalize("Event RSVP", []forms.FieldSpec{
		{Name: "full_name", Label: "Full Name", Type: forms.FieldText, Required: true,
			Validation: forms.RuleSet{forms.RuleMinLength: 2, forms.RuleMaxLength: 50}},
		{Name: "email", Label: "Email", Type: forms.FieldEmail, Required: true},
		{Name: "guests", Label: "Guests", Type: forms.FieldNumber,
			Validation: forms.RuleSet{forms.RuleMin: 0.0, forms.RuleMax: 10.0, forms.RuleInteger: true}},
		{Name: "meal", Label: "Meal", Type: forms.FieldChoice,
			Validation: forms.RuleSet{forms.RuleChoices: []string{"Veg", "Meat"}}},
		{Name: "plus_one", Label: "Plus One", Type: forms.FieldBoolean},
		{Name: "arrival", Label: "Arrival", Type: forms.FieldDate,
			Validation: forms.RuleSet{forms.RuleMinDate: "2026-01-01"}},
	}, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return schema
}

func TestRenderFormWidgets(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	page, err := renderer.Form("abc123def456", testSchema(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(page)

	checks := []string{
		`<h1>Event RSVP</h1>`,
		`action="/forms/abc123def456"`,
		`type="text"`,
		`minlength="2"`,
		`maxlength="50"`,
		`type="email"`,
		`type="number"`,
		`step="1"`,
		`max="10"`,
		`<select id="meal"`,
		`<option value="Veg">Veg</option>`,
		`type="checkbox" name="plus_one"`,
		`type="date"`,
		`min="2026-01-01"`,
	}
	for _, want := range checks {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered page missing %q", want)
		}
	}
}

func TestRenderFormEscapesModelText(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	schema, _, err := forms.Normalize(
		`<script>alert(1)</script>Survey`,
		[]forms.FieldSpec{
			{Name: "note", Label: `<img src=x onerror=alert(1)>Note`, Type: forms.FieldText},
		}, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	page, err := renderer.Form("abc123def456", schema)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(page)

	if strings.Contains(html, "<script>") || strings.Contains(html, "<img") {
		t.Fatalf("markup leaked into rendered page: %s", html)
	}
	if !strings.Contains(html, "Survey") || !strings.Contains(html, "Note") {
		t.Fatalf("sanitized text lost: %s", html)
	}
}

func TestRenderSubmitted(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	page, err := renderer.Submitted("abc123def456", "Event RSVP", "sub-1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html := string(page)

	if !strings.Contains(html, "Event RSVP") || !strings.Contains(html, "sub-1") {
		t.Fatalf("unexpected submitted page: %s", html)
	}
	if !strings.Contains(html, `href="/forms/abc123def456"`) {
		t.Fatalf("missing back link: %s", html)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"  padded  ", "padded"},
		{"<b>bold</b> move", "bold move"},
		{"<script>alert(1)</script>", ""},
		{"Food & Drink", "Food & Drink"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := SanitizeText(tc.input); got != tc.expected {
			t.Fatalf("SanitizeText(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}
