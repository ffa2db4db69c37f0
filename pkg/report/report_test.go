package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/suite"
)

func sampleRun() *suite.RunResult {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &suite.RunResult{
		Suites:       2,
		FailedSuites: 1,
		Passed:       3,
		Failed:       1,
		Duration:     1500 * time.Millisecond,
		Reports: []*suite.Report{
			{
				Path:     "suites/dialog.yaml",
				Name:     "Dialog",
				Toolkit:  "swing",
				Tags:     []string{"smoke"},
				Passed:   2,
				Start:    start,
				Duration: 800 * time.Millisecond,
				Results: []suite.Result{
					{Case: suite.Case{Locator: "JButton[text='OK']"}, Name: "ok button", Line: 3, Passed: true, Canonical: "JButton[text='OK']", Duration: 120 * time.Microsecond},
					{Case: suite.Case{Locator: "#submit"}, Name: "#submit", Line: 5, Passed: true, Canonical: "#submit", Duration: 2 * time.Millisecond},
				},
			},
			{
				Path:     "suites/prefs.yaml",
				Toolkit:  "swt",
				Passed:   1,
				Failed:   1,
				Start:    start.Add(time.Second),
				Duration: 400 * time.Millisecond,
				Results: []suite.Result{
					{Case: suite.Case{Locator: "Button"}, Name: "Button", Line: 1, Passed: true, Found: 2},
					{Case: suite.Case{Locator: "Text"}, Name: "Text", Line: 3, Passed: false, Failures: []string{"matches: expected 5, got 2"}},
				},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	caches := cache.New(cache.DefaultConfig())
	if _, err := caches.Parse.Parse("Button"); err != nil {
		t.Fatal(err)
	}

	index := Build(sampleRun(), BuilderConfig{Toolkit: "swing", RunnerVersion: "1.2.3", Workers: 2, Transport: "hierarchy", Caches: caches})

	if index.Version != Version {
		t.Errorf("expected version %s, got %s", Version, index.Version)
	}
	if index.Status != StatusFailed {
		t.Errorf("expected failed run, got %s", index.Status)
	}
	want := Summary{Suites: 2, FailedSuites: 1, Total: 4, Passed: 3, Failed: 1}
	if index.Summary != want {
		t.Errorf("summary: got %+v, want %+v", index.Summary, want)
	}
	if got := index.EndTime.Sub(index.StartTime); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s run, got %s", got)
	}
	if index.Runner.Workers != 2 || index.Runner.Version != "1.2.3" || index.Runner.Transport != "hierarchy" {
		t.Errorf("unexpected runner info: %+v", index.Runner)
	}
	if index.Caches == nil || index.Caches.Parse.Size != 1 {
		t.Errorf("expected cache snapshot with one parse entry, got %+v", index.Caches)
	}

	if len(index.Suites) != 2 {
		t.Fatalf("expected 2 suites, got %d", len(index.Suites))
	}
	s0, s1 := index.Suites[0], index.Suites[1]
	if s0.ID != "suite-000" || s1.ID != "suite-001" {
		t.Errorf("unexpected ids %s %s", s0.ID, s1.ID)
	}
	if s0.Name != "Dialog" {
		t.Errorf("expected configured name, got %s", s0.Name)
	}
	if s1.Name != "prefs" {
		t.Errorf("expected name from file, got %s", s1.Name)
	}
	if s0.Status != StatusPassed || s1.Status != StatusFailed {
		t.Errorf("unexpected statuses %s %s", s0.Status, s1.Status)
	}
	if s0.Duration != 800 {
		t.Errorf("expected 800ms, got %d", s0.Duration)
	}
	c := s0.Cases[0]
	if c.Locator != "JButton[text='OK']" || c.Line != 3 || c.DurationUs != 120 || c.Status != StatusPassed {
		t.Errorf("unexpected case entry: %+v", c)
	}
	if s1.Cases[1].Failures[0] != "matches: expected 5, got 2" {
		t.Errorf("failures not copied: %+v", s1.Cases[1])
	}
}

func TestBuild_Defaults(t *testing.T) {
	res := &suite.RunResult{Suites: 1, Passed: 1, Reports: []*suite.Report{{Path: "a.yml", Passed: 1}}}
	index := Build(res, BuilderConfig{})

	if index.Status != StatusPassed {
		t.Errorf("expected passed, got %s", index.Status)
	}
	if index.Runner.Workers != 1 {
		t.Errorf("expected 1 worker, got %d", index.Runner.Workers)
	}
	if index.Caches != nil {
		t.Error("expected no cache snapshot")
	}
	if index.Suites[0].Name != "a" {
		t.Errorf("expected name a, got %s", index.Suites[0].Name)
	}
}

func TestWriteAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "report")
	index := Build(sampleRun(), BuilderConfig{Toolkit: "swing"})

	if err := Write(dir, index); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != IndexFile {
		t.Errorf("expected only %s, got %v", IndexFile, entries)
	}

	got, err := ReadReport(dir)
	if err != nil {
		t.Fatalf("ReadReport failed: %v", err)
	}
	if got.Summary != index.Summary || len(got.Suites) != 2 {
		t.Errorf("round trip mismatch: %+v", got.Summary)
	}
	if got.Suites[1].Cases[1].Failures[0] != "matches: expected 5, got 2" {
		t.Errorf("failures lost: %+v", got.Suites[1].Cases[1])
	}
}

func TestWrite_Overwrites(t *testing.T) {
	dir := t.TempDir()
	first := Build(sampleRun(), BuilderConfig{})
	if err := Write(dir, first); err != nil {
		t.Fatal(err)
	}
	second := Build(&suite.RunResult{Suites: 1, Passed: 1, Reports: []*suite.Report{{Path: "a.yml", Passed: 1}}}, BuilderConfig{})
	if err := Write(dir, second); err != nil {
		t.Fatal(err)
	}

	got, err := ReadReport(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary.Suites != 1 {
		t.Errorf("expected the second report, got %+v", got.Summary)
	}
}

func TestReadReport_Errors(t *testing.T) {
	if _, err := ReadReport(t.TempDir()); err == nil {
		t.Error("expected error for missing report.json")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IndexFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadReport(dir); err == nil || !strings.Contains(err.Error(), IndexFile) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	caches := cache.New(cache.DefaultConfig())
	index := Build(sampleRun(), BuilderConfig{Toolkit: "swing", RunnerVersion: "1.2.3", Workers: 2, Caches: caches})
	if err := Write(dir, index); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestGenerateHTML(t *testing.T) {
	dir := writeSample(t)

	if err := GenerateHTML(dir, HTMLConfig{}); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "report.html"))
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	for _, want := range []string{
		"<title>Locator Report</title>",
		"Dialog",
		"prefs",
		"suites/prefs.yaml",
		"matches: expected 5, got 2",
		"JButton[text=&#39;OK&#39;]",
		"75.0%",
		"120µs",
		"800ms",
		"2 worker(s)",
		`data-status="failed"`,
		"<td>finder</td>",
		"guilocator 1.2.3",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report.html missing %q", want)
		}
	}
}

func TestGenerateHTML_Config(t *testing.T) {
	dir := writeSample(t)
	out := filepath.Join(t.TempDir(), "custom.html")

	if err := GenerateHTML(dir, HTMLConfig{OutputPath: out, Title: "Nightly"}); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<title>Nightly</title>") {
		t.Error("custom title not rendered")
	}
	if _, err := os.Stat(filepath.Join(dir, "report.html")); !os.IsNotExist(err) {
		t.Error("default output should not be written")
	}
}

func TestGenerateHTML_NoReport(t *testing.T) {
	if err := GenerateHTML(t.TempDir(), HTMLConfig{}); err == nil {
		t.Error("expected error without report.json")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1500, "1.5s"},
		{125000, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
	if got := formatMicros(250); got != "250µs" {
		t.Errorf("formatMicros(250) = %q", got)
	}
	if got := formatMicros(2500); got != "2ms" {
		t.Errorf("formatMicros(2500) = %q", got)
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
}

func TestGenerateAllure(t *testing.T) {
	dir := writeSample(t)

	if err := GenerateAllure(dir); err != nil {
		t.Fatalf("GenerateAllure failed: %v", err)
	}
	allureDir := filepath.Join(dir, AllureDir)

	var passed AllureResult
	readJSON(t, filepath.Join(allureDir, "suite-000-result.json"), &passed)
	if passed.Status != "passed" || passed.Name != "Dialog" || passed.FullName != "suites/dialog.yaml" {
		t.Errorf("unexpected result: %+v", passed)
	}
	if passed.Stop-passed.Start != 800 {
		t.Errorf("expected 800ms span, got %d", passed.Stop-passed.Start)
	}
	if len(passed.Steps) != 2 || passed.Steps[0].Name != "ok button (line 3)" {
		t.Errorf("unexpected steps: %+v", passed.Steps)
	}
	if passed.HistoryID != fnv32aHash("Dialog:suites/dialog.yaml") {
		t.Errorf("unexpected history id %s", passed.HistoryID)
	}
	labels := map[string]string{}
	for _, l := range passed.Labels {
		labels[l.Name] = l.Value
	}
	if labels["toolkit"] != "swing" || labels["tag"] != "smoke" || labels["parentSuite"] != "dialog.yaml" {
		t.Errorf("unexpected labels: %v", labels)
	}

	var failed AllureResult
	readJSON(t, filepath.Join(allureDir, "suite-001-result.json"), &failed)
	if failed.Status != "failed" {
		t.Errorf("expected failed, got %s", failed.Status)
	}
	if failed.StatusDetails.Message != "Text: matches: expected 5, got 2" {
		t.Errorf("unexpected message %q", failed.StatusDetails.Message)
	}
	if failed.Steps[1].Status != "failed" || failed.Steps[1].StatusDetails.Message == "" {
		t.Errorf("failing step not marked: %+v", failed.Steps[1])
	}

	var categories []AllureCategory
	readJSON(t, filepath.Join(allureDir, "categories.json"), &categories)
	if len(categories) == 0 {
		t.Error("expected categories")
	}

	var executor AllureExecutor
	readJSON(t, filepath.Join(allureDir, "executor.json"), &executor)
	if executor.Name != "guilocator" {
		t.Errorf("unexpected executor %+v", executor)
	}

	env, err := os.ReadFile(filepath.Join(allureDir, "environment.properties"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"framework=guilocator", "toolkit=swing", "runner.version=1.2.3", "runner.workers=2"} {
		if !strings.Contains(string(env), want) {
			t.Errorf("environment.properties missing %q", want)
		}
	}
}

func TestMapAllureStatus(t *testing.T) {
	tests := map[Status]string{
		StatusPassed: "passed",
		StatusFailed: "failed",
		"other":      "unknown",
	}
	for in, want := range tests {
		if got := mapAllureStatus(in); got != want {
			t.Errorf("mapAllureStatus(%s) = %s, want %s", in, got, want)
		}
	}
}
