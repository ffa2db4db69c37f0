package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// AllureExecutor holds executor info.
type AllureExecutor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ReportName string `json:"reportName"`
}

// AllureDir is the name of the Allure results directory inside a report
// directory.
const AllureDir = "allure-results"

// GenerateAllure generates Allure-compatible report files in <reportDir>/allure-results/.
func GenerateAllure(reportDir string) error {
	index, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, AllureDir)
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	// One result file per suite
	for _, entry := range index.Suites {
		result := buildAllureResult(&entry, index)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", entry.ID, err)
		}

		resultPath := filepath.Join(allureDir, entry.ID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", entry.ID, err)
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	if err := writeAllureEnvironment(allureDir, index); err != nil {
		return err
	}
	return writeAllureExecutor(allureDir)
}

// buildAllureResult builds an AllureResult from a suite entry. Cases become
// steps laid end to end from the suite start.
func buildAllureResult(entry *SuiteEntry, index *Index) AllureResult {
	startMs := entry.StartTime.UnixMilli()
	stopMs := startMs + entry.Duration

	labels := []AllureLabel{
		{Name: "suite", Value: entry.Name},
		{Name: "parentSuite", Value: filepath.Base(entry.SourceFile)},
		{Name: "framework", Value: "guilocator"},
		{Name: "severity", Value: "normal"},
	}
	if entry.Toolkit != "" {
		labels = append(labels, AllureLabel{Name: "toolkit", Value: entry.Toolkit})
	}
	for _, tag := range entry.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}

	var statusDetails AllureStatusDetails
	var failures []string
	steps := make([]AllureStep, 0, len(entry.Cases))
	at := entry.StartTime
	for _, c := range entry.Cases {
		step := buildAllureStep(c, at)
		at = at.Add(time.Duration(c.DurationUs) * time.Microsecond)
		steps = append(steps, step)
		if c.Status == StatusFailed {
			failures = append(failures, c.Name+": "+strings.Join(c.Failures, "; "))
		}
	}
	if len(failures) > 0 {
		statusDetails.Message = failures[0]
		statusDetails.Trace = strings.Join(failures, "\n")
	}

	return AllureResult{
		UUID:          entry.ID,
		HistoryID:     fnv32aHash(entry.Name + ":" + entry.SourceFile),
		FullName:      entry.SourceFile,
		Name:          entry.Name,
		Status:        mapAllureStatus(entry.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		StatusDetails: statusDetails,
		Steps:         steps,
	}
}

func buildAllureStep(c CaseEntry, start time.Time) AllureStep {
	name := c.Name
	if c.Line > 0 {
		name = fmt.Sprintf("%s (line %d)", c.Name, c.Line)
	}

	var details AllureStatusDetails
	if len(c.Failures) > 0 {
		details.Message = strings.Join(c.Failures, "; ")
	}

	stop := start.Add(time.Duration(c.DurationUs) * time.Microsecond)
	return AllureStep{
		Name:          name,
		Status:        mapAllureStatus(c.Status),
		Stage:         "finished",
		Start:         start.UnixMilli(),
		Stop:          stop.UnixMilli(),
		StatusDetails: details,
		Steps:         []AllureStep{},
	}
}

// mapAllureStatus maps report Status to Allure status string.
func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
// The regexes match the failure messages produced by suite checks.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Parse Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*in locator \".*"},
		{Name: "Wrong Kind", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*kind: expected.*"},
		{Name: "Wrong Canonical Form", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*canonical: expected.*"},
		{Name: "Wrong Class Mapping", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*className \\(.*"},
		{Name: "Match Count", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*matches: expected.*"},
		{Name: "Missing Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*expected error.*"},
		{Name: "Transport Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*find: .*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with run metadata.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=guilocator\n")

	if index.Toolkit != "" {
		b.WriteString(fmt.Sprintf("toolkit=%s\n", index.Toolkit))
	}
	if index.Runner.Version != "" {
		b.WriteString(fmt.Sprintf("runner.version=%s\n", index.Runner.Version))
	}
	if index.Runner.Transport != "" {
		b.WriteString(fmt.Sprintf("runner.transport=%s\n", index.Runner.Transport))
	}
	b.WriteString(fmt.Sprintf("runner.workers=%d\n", index.Runner.Workers))

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

// writeAllureExecutor writes executor.json.
func writeAllureExecutor(allureDir string) error {
	executor := AllureExecutor{
		Name:       "guilocator",
		Type:       "guilocator",
		ReportName: "Locator check",
	}

	data, err := json.MarshalIndent(executor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal executor: %w", err)
	}

	path := filepath.Join(allureDir, "executor.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write executor.json: %w", err)
	}
	return nil
}
