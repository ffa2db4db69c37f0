// Package validator validates locator suite files before they are checked.
// It parses every file upfront, applies tag filters and reports every
// problem it finds instead of stopping at the first.
package validator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/config"
	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/suite"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Line    int // 0 when the error is not tied to a case
	Message string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of suite file paths in check order.
	Files []string
	// Suites holds the parsed suites that passed the tag filters.
	Suites []*suite.Suite
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates suite files.
type Validator struct {
	// Live means match counts come from a connected application, so
	// suites need no hierarchy file.
	Live bool

	caches      *cache.Caches
	includeTags []string
	excludeTags []string
}

// New creates a new Validator. Locators are parsed through caches, so a
// later check of the same suites starts warm. A nil caches uses the
// process-wide default.
func New(caches *cache.Caches, includeTags, excludeTags []string) *Validator {
	if caches == nil {
		caches = cache.Default()
	}
	return &Validator{
		caches:      caches,
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates each path, a suite file or a directory of them.
// Files reached through more than one path are validated once.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	validated := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectSuiteFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		}

		for _, file := range files {
			clean := filepath.Clean(file)
			if validated[clean] {
				continue
			}
			validated[clean] = true
			v.validateFile(clean, result)
		}
	}
	return result
}

// collectSuiteFiles finds all .yaml/.yml files in a directory, skipping
// config files.
func collectSuiteFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if slices.Contains(config.FileNames, info.Name()) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// validateFile validates a single suite file and its cases.
func (v *Validator) validateFile(path string, result *Result) {
	s, err := suite.ParseFile(path)
	if err != nil {
		var pe *suite.ParseError
		if errors.As(err, &pe) {
			result.Errors = append(result.Errors, &ValidationError{File: pe.Path, Line: pe.Line, Message: pe.Message})
		} else {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("parse error: %v", err),
			})
		}
		return
	}

	if !suite.ShouldInclude(s, v.includeTags, v.excludeTags) {
		return
	}

	before := len(result.Errors)
	fail := func(line int, format string, args ...any) {
		result.Errors = append(result.Errors, &ValidationError{File: path, Line: line, Message: fmt.Sprintf(format, args...)})
	}

	if s.Config.Toolkit != "" {
		if _, err := core.ParseToolkit(s.Config.Toolkit); err != nil {
			fail(0, "%v", err)
		}
	}
	if s.Config.Hierarchy != "" {
		if _, err := os.Stat(s.Config.Hierarchy); err != nil {
			fail(0, "hierarchy: %v", err)
		}
	}

	for _, tc := range s.Cases {
		if tc.Toolkit != "" {
			if _, err := core.ParseToolkit(tc.Toolkit); err != nil {
				fail(tc.Line, "%v", err)
			}
		}
		if tc.Matches != nil && s.Config.Hierarchy == "" && !v.Live {
			fail(tc.Line, "matches needs a hierarchy in the suite config")
		}
		// Cases that expect an error are checked when run.
		if tc.Error != "" {
			continue
		}
		if _, err := v.caches.Parse.Parse(tc.Locator); err != nil {
			fail(tc.Line, "locator %q: %v", tc.Locator, err)
		}
	}

	if len(result.Errors) > before {
		return
	}
	result.Files = append(result.Files, path)
	result.Suites = append(result.Suites, s)
}
