package suite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/driver/mock"
	"github.com/devicelab-dev/guilocator/pkg/finder"
	"github.com/devicelab-dev/guilocator/pkg/logger"
)

// Result is the outcome of one case.
type Result struct {
	Case      Case          `json:"-" yaml:"-"`
	Name      string        `json:"name" yaml:"name"`
	Line      int           `json:"line" yaml:"line"`
	Passed    bool          `json:"passed" yaml:"passed"`
	Canonical string        `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	ClassName string        `json:"className,omitempty" yaml:"className,omitempty"`
	Found     int           `json:"found,omitempty" yaml:"found,omitempty"`
	Failures  []string      `json:"failures,omitempty" yaml:"failures,omitempty"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Report is the outcome of one suite.
type Report struct {
	Path     string        `json:"path" yaml:"path"`
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	Toolkit  string        `json:"toolkit" yaml:"toolkit"`
	Tags     []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Passed   int           `json:"passed" yaml:"passed"`
	Failed   int           `json:"failed" yaml:"failed"`
	Start    time.Time     `json:"start" yaml:"start"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Results  []Result      `json:"results" yaml:"results"`
}

// OK reports whether every case passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Checker runs suites against a cache handle and, for match counts, a
// transport.
type Checker struct {
	Caches  *cache.Caches
	Toolkit core.Toolkit // used when neither suite nor case names one

	// Transport resolves match counts. When nil, the suite's hierarchy file
	// is loaded into a mock transport.
	Transport finder.Transport
}

// Run checks every case of s. It fails only when the suite itself is
// unusable; case failures are reported in the Report.
func (c *Checker) Run(ctx context.Context, s *Suite) (*Report, error) {
	caches := c.Caches
	if caches == nil {
		caches = cache.Default()
	}

	tk := c.Toolkit
	if s.Config.Toolkit != "" {
		t, err := core.ParseToolkit(s.Config.Toolkit)
		if err != nil {
			return nil, &ParseError{Path: s.SourcePath, Message: err.Error()}
		}
		tk = t
	}

	transport := c.Transport
	if transport == nil && s.Config.Hierarchy != "" {
		d, err := mock.LoadHierarchyFile(s.Config.Hierarchy, mock.Config{})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.SourcePath, err)
		}
		transport = d
	}
	if transport != nil {
		// Each suite starts from a fresh view of its component tree.
		caches.Finder.InvalidateAll()
		caches.Element.Clear()
	}

	report := &Report{
		Path:    s.SourcePath,
		Name:    s.Config.Name,
		Toolkit: tk.String(),
		Tags:    s.Config.Tags,
		Start:   time.Now(),
	}
	for _, tc := range s.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := c.check(ctx, caches, transport, tk, tc)
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, r)
	}
	report.Duration = time.Since(report.Start)

	logger.Info("suite %s: %d passed, %d failed", s.SourcePath, report.Passed, report.Failed)
	return report, nil
}

func (c *Checker) check(ctx context.Context, caches *cache.Caches, transport finder.Transport, tk core.Toolkit, tc Case) (r Result) {
	start := time.Now()
	r = Result{Case: tc, Name: tc.Name(), Line: tc.Line}
	fail := func(format string, args ...any) {
		r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
	}
	defer func() {
		r.Duration = time.Since(start)
	}()

	if tc.Toolkit != "" {
		t, err := core.ParseToolkit(tc.Toolkit)
		if err != nil {
			fail("%v", err)
			return r
		}
		tk = t
	}

	loc, err := caches.Parse.Parse(tc.Locator)
	if tc.Error != "" {
		switch {
		case err == nil:
			fail("expected error %s, parsed as %s", tc.Error, loc.String())
		case !errorMatches(err, tc.Error):
			fail("expected error %s, got %v", tc.Error, err)
		}
		r.Passed = len(r.Failures) == 0
		return r
	}
	if err != nil {
		fail("%v", err)
		return r
	}

	r.Canonical = loc.String()
	if tc.Kind != "" && !strings.EqualFold(loc.Kind.String(), tc.Kind) {
		fail("kind: expected %s, got %s", tc.Kind, loc.Kind)
	}
	if tc.Canonical != "" && r.Canonical != tc.Canonical {
		fail("canonical: expected %q, got %q", tc.Canonical, r.Canonical)
	}

	n := caches.Normalize.Normalize(loc, tk)
	r.ClassName = n.ClassName
	if tc.ClassName != "" && n.ClassName != tc.ClassName {
		fail("className (%s): expected %s, got %s", tk, tc.ClassName, n.ClassName)
	}

	if tc.Matches != nil {
		if transport == nil {
			fail("matches: suite has no hierarchy")
		} else {
			f := finder.New(transport, tk, finder.WithCaches(caches))
			ids, err := f.Find(ctx, tc.Locator)
			switch {
			case err != nil:
				fail("find: %v", err)
			case len(ids) != *tc.Matches:
				fail("matches: expected %d, got %d", *tc.Matches, len(ids))
			}
			r.Found = len(ids)
		}
	}

	r.Passed = len(r.Failures) == 0
	return r
}

// errorMatches compares err against an expected code such as
// "unknown_pseudo". "any" accepts every error.
func errorMatches(err error, want string) bool {
	if strings.EqualFold(want, "any") {
		return true
	}
	var pe *core.ParseError
	if !errors.As(err, &pe) {
		return false
	}
	return strings.EqualFold(pe.Kind.String(), strings.ReplaceAll(want, "-", "_"))
}
