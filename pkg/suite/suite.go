// Package suite handles parsing and checking of YAML locator suites: lists
// of locator strings with the results they are expected to produce.
package suite

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suite represents a parsed suite file.
type Suite struct {
	SourcePath string // Path to the source file
	Config     Config // Suite configuration (name, toolkit, tags, ...)
	Cases      []Case // Locators to check
}

// Config represents suite-level configuration.
type Config struct {
	Name      string   `yaml:"name"`
	Toolkit   string   `yaml:"toolkit"`   // Default toolkit for every case
	Tags      []string `yaml:"tags"`      // Used by include/exclude filters
	Hierarchy string   `yaml:"hierarchy"` // JSON component tree for match counts
}

// Case is one locator with its expectations. Empty expectations are not
// checked; a case with none only has to parse.
type Case struct {
	Locator   string `yaml:"locator"`
	Toolkit   string `yaml:"toolkit"`   // Overrides the suite toolkit
	Kind      string `yaml:"kind"`      // Expected locator kind
	Canonical string `yaml:"canonical"` // Expected canonical string
	ClassName string `yaml:"className"` // Expected class after normalization
	Error     string `yaml:"error"`     // Expected error code, or "any"
	Matches   *int   `yaml:"matches"`   // Expected number of found elements
	Label     string `yaml:"label"`

	Line int `yaml:"-"` // Source line
}

// caseRaw avoids recursing into Case.UnmarshalYAML.
type caseRaw Case

// UnmarshalYAML allows Case to be unmarshaled from string or struct.
func (c *Case) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = Case{Locator: node.Value, Line: node.Line}
		return nil
	}

	var raw caseRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Case(raw)
	c.Line = node.Line
	return nil
}

// Name returns the label, or the locator when unlabeled.
func (c Case) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Locator
}

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single suite file.
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided suite file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses suite YAML content. A file holds either one document with the
// cases, or a config document followed by the cases.
func Parse(data []byte, sourcePath string) (*Suite, error) {
	var docs []yaml.Node
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid yaml: %v", err)}
		}
		docs = append(docs, doc)
	}

	s := &Suite{SourcePath: sourcePath}
	switch len(docs) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty suite file"}
	case 1:
		if err := parseCases(&docs[0], s); err != nil {
			return nil, err
		}
	case 2:
		if err := docs[0].Decode(&s.Config); err != nil {
			return nil, &ParseError{Path: sourcePath, Line: docs[0].Line, Message: fmt.Sprintf("invalid config: %v", err)}
		}
		if err := parseCases(&docs[1], s); err != nil {
			return nil, err
		}
	default:
		return nil, &ParseError{Path: sourcePath, Line: docs[2].Line, Message: "expected at most two documents"}
	}

	if s.Config.Hierarchy != "" && !filepath.IsAbs(s.Config.Hierarchy) {
		s.Config.Hierarchy = filepath.Join(filepath.Dir(sourcePath), s.Config.Hierarchy)
	}
	return s, nil
}

func parseCases(doc *yaml.Node, s *Suite) error {
	if err := doc.Decode(&s.Cases); err != nil {
		return &ParseError{Path: s.SourcePath, Line: doc.Line, Message: fmt.Sprintf("invalid cases: %v", err)}
	}
	if len(s.Cases) == 0 {
		return &ParseError{Path: s.SourcePath, Line: doc.Line, Message: "no cases"}
	}
	for _, c := range s.Cases {
		if strings.TrimSpace(c.Locator) == "" && c.Error == "" {
			return &ParseError{Path: s.SourcePath, Line: c.Line, Message: "case has no locator"}
		}
	}
	return nil
}

// ShouldInclude checks if a suite matches tag filters.
func ShouldInclude(s *Suite, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 && !slices.ContainsFunc(s.Config.Tags, func(tag string) bool {
		return slices.Contains(includeTags, tag)
	}) {
		return false
	}

	return !slices.ContainsFunc(s.Config.Tags, func(tag string) bool {
		return slices.Contains(excludeTags, tag)
	})
}
