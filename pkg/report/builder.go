package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/suite"
)

// BuilderConfig contains configuration for building a report.
type BuilderConfig struct {
	Toolkit       string
	RunnerVersion string
	Workers       int
	Transport     string
	Caches        *cache.Caches // statistics are recorded when set
}

// Build converts the result of a suite run into a report index.
func Build(res *suite.RunResult, cfg BuilderConfig) *Index {
	end := time.Now()
	index := &Index{
		Version:   Version,
		Status:    statusOf(res.OK()),
		StartTime: end.Add(-res.Duration),
		EndTime:   end,
		Toolkit:   cfg.Toolkit,
		Runner: RunnerInfo{
			Version:   cfg.RunnerVersion,
			Workers:   max(cfg.Workers, 1),
			Transport: cfg.Transport,
		},
		Summary: Summary{
			Suites:       res.Suites,
			FailedSuites: res.FailedSuites,
			Total:        res.Passed + res.Failed,
			Passed:       res.Passed,
			Failed:       res.Failed,
		},
		Suites: make([]SuiteEntry, 0, len(res.Reports)),
	}
	if cfg.Caches != nil {
		snap := cfg.Caches.Snapshot()
		index.Caches = &snap
	}

	for i, rep := range res.Reports {
		entry := SuiteEntry{
			Index:      i,
			ID:         fmt.Sprintf("suite-%03d", i),
			Name:       suiteName(rep),
			SourceFile: rep.Path,
			Toolkit:    rep.Toolkit,
			Tags:       rep.Tags,
			Status:     statusOf(rep.OK()),
			StartTime:  rep.Start,
			Duration:   rep.Duration.Milliseconds(),
			Passed:     rep.Passed,
			Failed:     rep.Failed,
			Cases:      make([]CaseEntry, 0, len(rep.Results)),
		}
		for _, r := range rep.Results {
			entry.Cases = append(entry.Cases, CaseEntry{
				Name:       r.Name,
				Line:       r.Line,
				Locator:    r.Case.Locator,
				Status:     statusOf(r.Passed),
				Canonical:  r.Canonical,
				ClassName:  r.ClassName,
				Found:      r.Found,
				DurationUs: r.Duration.Microseconds(),
				Failures:   r.Failures,
			})
		}
		index.Suites = append(index.Suites, entry)
	}
	return index
}

// suiteName returns the suite's configured name, or its file name without
// extension.
func suiteName(rep *suite.Report) string {
	if rep.Name != "" {
		return rep.Name
	}
	base := filepath.Base(rep.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
