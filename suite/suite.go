/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package suite loads declarative test suites: a catalog of named locators
// and tests made of steps acting on them. A suite compiles into tests the
// lifecycle runner executes.
package suite

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/datasource"
	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
	"github.com/liuxd6825/webcheck/report"
)

// ErrInvalidSuite is matched by every validation error of a suite.
var ErrInvalidSuite = errors.New("invalid suite")

// ValidationError lists the problems found in a suite file.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Is makes errors.Is(err, ErrInvalidSuite) match.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSuite }

// ExitCode implements errext.HasExitCode.
func (e *ValidationError) ExitCode() exitcodes.ExitCode { return exitcodes.InvalidConfig }

var _ errext.HasExitCode = &ValidationError{}

// Locator is a catalog entry. Exactly one strategy must be set.
type Locator struct {
	XPath     string `yaml:"xpath"`
	CSS       string `yaml:"css"`
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	LinkText  string `yaml:"linkText"`
	TagName   string `yaml:"tagName"`
	ClassName string `yaml:"className"`
}

func (l Locator) resolve() (common.Locator, error) {
	var set []common.Locator
	for _, c := range []common.Locator{
		{By: common.ByXPath, Value: l.XPath},
		{By: common.ByCSS, Value: l.CSS},
		{By: common.ByID, Value: l.ID},
		{By: common.ByName, Value: l.Name},
		{By: common.ByLinkText, Value: l.LinkText},
		{By: common.ByTagName, Value: l.TagName},
		{By: common.ByClassName, Value: l.ClassName},
	} {
		if c.Value != "" {
			set = append(set, c)
		}
	}
	if len(set) != 1 {
		return common.Locator{}, fmt.Errorf("exactly one strategy is required, got %d", len(set))
	}
	return set[0], nil
}

// Data binds a test to a sheet of an xlsx workbook. Every row becomes one
// test whose variables include the row columns.
type Data struct {
	File  string `yaml:"file"`
	Sheet string `yaml:"sheet"`
}

// Step is one action of a test. Which fields are used depends on Action.
type Step struct {
	Action    string `yaml:"action"`
	Target    string `yaml:"target"`
	Value     string `yaml:"value"`
	Mode      string `yaml:"mode"`
	Level     string `yaml:"level"`
	Attribute string `yaml:"attribute"`
	File      string `yaml:"file"`
	From      int    `yaml:"from"`
	To        int    `yaml:"to"`
	Timeout   string `yaml:"timeout"`
}

func (s Step) String() string {
	if s.Target != "" {
		return s.Action + " " + s.Target
	}
	return s.Action
}

// Test is a named sequence of steps.
type Test struct {
	Name    string `yaml:"name"`
	Browser string `yaml:"browser"`
	Data    *Data  `yaml:"data"`
	Steps   []Step `yaml:"steps"`
}

// Suite is a parsed suite file.
type Suite struct {
	Name     string             `yaml:"name"`
	Browser  string             `yaml:"browser"`
	Vars     map[string]string  `yaml:"vars"`
	Locators map[string]Locator `yaml:"locators"`
	Tests    []Test             `yaml:"tests"`

	// dir is the directory relative file references resolve against.
	dir string
}

// Load reads and validates the suite file at path.
func Load(fs afero.Fs, path string) (*Suite, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("reading suite: %w", err), exitcodes.InvalidConfig)
	}
	s, err := Parse(data)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Path = path
		}
		return nil, err
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse decodes and validates a suite.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, &ValidationError{Path: "suite", Problems: []string{err.Error()}}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the suite without running anything: test names are unique,
// actions are known, targets name catalog entries and enumerated fields hold
// valid values.
func (s *Suite) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if literal(s.Browser) {
		if _, err := common.ParseBrowserKind(s.Browser); err != nil {
			addf("browser: %v", err)
		}
	}
	for name, l := range s.Locators {
		if _, err := l.resolve(); err != nil {
			addf("locator %q: %v", name, err)
		}
	}
	if len(s.Tests) == 0 {
		addf("no tests")
	}

	seen := make(map[string]bool, len(s.Tests))
	for i, t := range s.Tests {
		where := fmt.Sprintf("test %d", i+1)
		if t.Name == "" {
			addf("%s: missing name", where)
		} else {
			where = fmt.Sprintf("test %q", t.Name)
		}
		if seen[t.Name] {
			addf("%s: duplicate name", where)
		}
		seen[t.Name] = true
		if t.Data != nil && t.Data.File == "" {
			addf("%s: data without file", where)
		}
		if len(t.Steps) == 0 {
			addf("%s: no steps", where)
		}
		for j, st := range t.Steps {
			for _, p := range s.validateStep(st) {
				addf("%s step %d (%s): %s", where, j+1, st.Action, p)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Path: "suite", Problems: problems}
	}
	return nil
}

func (s *Suite) validateStep(st Step) []string {
	a, ok := actions[st.Action]
	if !ok {
		return []string{"unknown action"}
	}
	var problems []string
	switch {
	case a.target == required && st.Target == "":
		problems = append(problems, "missing target")
	case a.target == forbidden && st.Target != "":
		problems = append(problems, "target not supported")
	}
	if st.Target != "" {
		if _, ok := s.Locators[st.Target]; !ok {
			problems = append(problems, fmt.Sprintf("unknown locator %q", st.Target))
		}
	}
	if a.value == required && st.Value == "" {
		problems = append(problems, "missing value")
	}
	if literal(st.Mode) {
		if _, err := common.ParseSelectMode(st.Mode); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if literal(st.Level) {
		if _, err := report.ParseLevel(st.Level); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if literal(st.Timeout) {
		if _, err := parseDuration(st.Timeout); err != nil {
			problems = append(problems, "timeout: "+err.Error())
		}
	}
	if a.file && st.File == "" {
		problems = append(problems, "missing file")
	}
	return problems
}

// rows returns the data rows bound to t, or a single empty row.
func (s *Suite) rows(fs afero.Fs, t Test) ([]datasource.Row, error) {
	if t.Data == nil {
		return []datasource.Row{nil}, nil
	}
	return datasource.NewExcel(fs).ReadRows(s.path(t.Data.File), t.Data.Sheet)
}

func (s *Suite) path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// literal reports whether v is set and holds no variable reference, so that
// it can be checked before expansion.
func literal(v string) bool {
	return v != "" && !strings.Contains(v, "$")
}
