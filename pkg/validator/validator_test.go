package validator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/guilocator/pkg/cache"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func errorText(r *Result) string {
	var b strings.Builder
	for _, err := range r.Errors {
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"dialog.yaml": "toolkit: swing\n---\n- locator: \"JButton[text='OK']\"\n- locator: \"#submit\"\n",
	})

	caches := cache.New(cache.DefaultConfig())
	result := New(caches, nil, nil).Validate(filepath.Join(dir, "dialog.yaml"))

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors:\n%s", errorText(result))
	}
	if len(result.Suites) != 1 || len(result.Files) != 1 {
		t.Errorf("expected 1 suite, got %d suites %d files", len(result.Suites), len(result.Files))
	}
	// Locators were parsed through the shared cache.
	if caches.Parse.Len() != 2 {
		t.Errorf("expected 2 parse cache entries, got %d", caches.Parse.Len())
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.yaml":          "- locator: Button\n",
		"nested/b.yml":    "- locator: Text\n",
		"notes.txt":       "not a suite",
		"guilocator.yaml": "toolkit: swt\n",
	})

	result := New(nil, nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors:\n%s", errorText(result))
	}
	if len(result.Suites) != 2 {
		t.Errorf("expected 2 suites, got %d", len(result.Suites))
	}
}

func TestValidate_Dedupe(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.yaml": "- locator: Button\n"})

	result := New(nil, nil, nil).Validate(dir, filepath.Join(dir, "a.yaml"), dir+"/./a.yaml")
	if len(result.Suites) != 1 {
		t.Errorf("expected the file once, got %d", len(result.Suites))
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad locator", "- locator: Button\n- locator: \"Button[text=\"\n", ":2: locator"},
		{"bad suite toolkit", "toolkit: qt\n---\n- locator: Button\n", "qt"},
		{"bad case toolkit", "- locator: Button\n  toolkit: gtk\n", "gtk"},
		{"missing hierarchy", "hierarchy: missing.json\n---\n- locator: Button\n", "hierarchy:"},
		{"matches without hierarchy", "- locator: Button\n  matches: 2\n", "matches needs a hierarchy"},
		{"parse error", "- toolkit: swt\n", "case has no locator"},
		{"invalid yaml", "- locator: [\n", "invalid yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{"s.yaml": tt.content})

			result := New(nil, nil, nil).Validate(filepath.Join(dir, "s.yaml"))
			if result.IsValid() {
				t.Fatal("expected validation errors")
			}
			if got := errorText(result); !strings.Contains(got, tt.want) {
				t.Errorf("expected error containing %q, got:\n%s", tt.want, got)
			}
			if len(result.Suites) != 0 {
				t.Errorf("invalid suite should not be returned")
			}
			var ve *ValidationError
			if !errors.As(result.Errors[0], &ve) {
				t.Errorf("expected *ValidationError, got %T", result.Errors[0])
			}
		})
	}
}

func TestValidate_ExpectedErrorSkipsParse(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"s.yaml": "- locator: \"Button[\"\n  error: syntax\n",
	})

	result := New(nil, nil, nil).Validate(filepath.Join(dir, "s.yaml"))
	if !result.IsValid() {
		t.Errorf("expected valid result, got errors:\n%s", errorText(result))
	}
}

func TestValidate_Hierarchy(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"trees/tree.json": `{"className":"Shell"}`,
		"s.yaml":          "hierarchy: trees/tree.json\n---\n- locator: Shell\n  matches: 1\n",
	})

	result := New(nil, nil, nil).Validate(filepath.Join(dir, "s.yaml"))
	if !result.IsValid() {
		t.Errorf("expected valid result, got errors:\n%s", errorText(result))
	}
}

func TestValidate_Tags(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"smoke.yaml": "tags: [smoke]\n---\n- locator: Button\n",
		"slow.yaml":  "tags: [slow]\n---\n- locator: Button\n",
		"bad.yaml":   "tags: [slow]\n---\n- locator: \"Button[\"\n",
	})

	tests := []struct {
		name    string
		include []string
		exclude []string
		suites  int
		valid   bool
	}{
		{"no filter", nil, nil, 2, false},
		{"include smoke", []string{"smoke"}, nil, 1, true},
		{"exclude slow", nil, []string{"slow"}, 1, true},
		{"include slow", []string{"slow"}, nil, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(nil, tt.include, tt.exclude).Validate(dir)
			if len(result.Suites) != tt.suites {
				t.Errorf("expected %d suites, got %d", tt.suites, len(result.Suites))
			}
			if result.IsValid() != tt.valid {
				t.Errorf("expected valid=%v, got errors:\n%s", tt.valid, errorText(result))
			}
		})
	}
}

func TestValidate_NotFound(t *testing.T) {
	result := New(nil, nil, nil).Validate("/nonexistent/path")
	if result.IsValid() {
		t.Fatal("expected error for nonexistent path")
	}
	if !strings.Contains(result.Errors[0].Error(), "cannot access") {
		t.Errorf("unexpected error: %v", result.Errors[0])
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		err  ValidationError
		want string
	}{
		{ValidationError{File: "a.yaml", Message: "boom"}, "a.yaml: boom"},
		{ValidationError{File: "a.yaml", Line: 3, Message: "boom"}, "a.yaml:3: boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestValidate_Live(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"s.yaml": "- locator: Button\n  matches: 2\n"})

	v := New(nil, nil, nil)
	v.Live = true
	if result := v.Validate(dir); !result.IsValid() {
		t.Errorf("expected valid result, got errors:\n%s", errorText(result))
	}
}
