// Package report writes the results of a suite check to disk.
//
// Layout:
//   - report.json: the index, holding every suite and case outcome
//   - report.html: a standalone page rendered from report.json
//   - allure-results/: Allure-compatible results, one per suite
//
// report.json is the single source of truth. HTML and Allure output are
// generated from it, so either can be regenerated from an old run.
package report

import (
	"time"

	"github.com/devicelab-dev/guilocator/pkg/cache"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the outcome of a run, suite or case.
type Status string

// Status values.
const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

func statusOf(ok bool) Status {
	if ok {
		return StatusPassed
	}
	return StatusFailed
}

// Index is the main report file.
type Index struct {
	Version   string          `json:"version"`
	Status    Status          `json:"status"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Toolkit   string          `json:"toolkit"` // default toolkit of the run
	Runner    RunnerInfo      `json:"runner"`
	Summary   Summary         `json:"summary"`
	Suites    []SuiteEntry    `json:"suites"`
	Caches    *cache.Snapshot `json:"caches,omitempty"`
}

// RunnerInfo describes the tool that produced the report.
type RunnerInfo struct {
	Version   string `json:"version"`
	Workers   int    `json:"workers"`
	Transport string `json:"transport,omitempty"` // hierarchy, agent
}

// Summary contains aggregated counts.
type Summary struct {
	Suites       int `json:"suites"`
	FailedSuites int `json:"failedSuites"`
	Total        int `json:"total"` // cases
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
}

// SuiteEntry is the outcome of one suite file.
type SuiteEntry struct {
	Index      int         `json:"index"`
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	SourceFile string      `json:"sourceFile"`
	Toolkit    string      `json:"toolkit"`
	Tags       []string    `json:"tags,omitempty"`
	Status     Status      `json:"status"`
	StartTime  time.Time   `json:"startTime"`
	Duration   int64       `json:"duration"` // milliseconds
	Passed     int         `json:"passed"`
	Failed     int         `json:"failed"`
	Cases      []CaseEntry `json:"cases"`
}

// CaseEntry is the outcome of one case.
type CaseEntry struct {
	Name       string   `json:"name"`
	Line       int      `json:"line,omitempty"`
	Locator    string   `json:"locator"`
	Status     Status   `json:"status"`
	Canonical  string   `json:"canonical,omitempty"`
	ClassName  string   `json:"className,omitempty"`
	Found      int      `json:"found,omitempty"`
	DurationUs int64    `json:"durationUs"`
	Failures   []string `json:"failures,omitempty"`
}
