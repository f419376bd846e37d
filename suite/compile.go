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

package suite

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/datasource"
	"github.com/liuxd6825/webcheck/lifecycle"
)

// CompileOptions configures Compile.
type CompileOptions struct {
	// FS is where data files, PDFs and uploads are read from.
	FS afero.Fs
	// Config values are available to every test as ${KEY}.
	Config *datasource.Config
}

// Compile turns the suite into runnable tests. A test bound to data yields
// one test per row, named "<name>[<row>]", with the row columns as extra
// variables. Variables are expanded with ${NAME}; unknown names expand to "".
func (s *Suite) Compile(opts CompileOptions) ([]lifecycle.Test, error) {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	base := opts.Config.Map()
	for k, v := range s.Vars {
		base[k] = expand(v, base)
	}

	var out []lifecycle.Test
	for _, t := range s.Tests {
		rows, err := s.rows(fs, t)
		if err != nil {
			return nil, fmt.Errorf("test %q: %w", t.Name, err)
		}
		for i, row := range rows {
			vars := make(map[string]string, len(base)+len(row))
			for k, v := range base {
				vars[k] = v
			}
			for k, v := range row {
				vars[k] = v
			}
			name := t.Name
			if t.Data != nil {
				name = fmt.Sprintf("%s[%d]", t.Name, i+1)
			}
			lt, err := s.compileTest(fs, t, name, vars)
			if err != nil {
				return nil, err
			}
			out = append(out, lt)
		}
	}
	return out, nil
}

func (s *Suite) compileTest(fs afero.Fs, t Test, name string, vars map[string]string) (lifecycle.Test, error) {
	browser := t.Browser
	if browser == "" {
		browser = s.Browser
	}

	steps := make([]Step, len(t.Steps))
	locs := make([]common.Locator, len(t.Steps))
	var problems []string
	for i, st := range t.Steps {
		st = Step{
			Action:    st.Action,
			Target:    st.Target,
			Value:     expand(st.Value, vars),
			Mode:      expand(st.Mode, vars),
			Level:     expand(st.Level, vars),
			Attribute: expand(st.Attribute, vars),
			File:      expand(st.File, vars),
			From:      st.From,
			To:        st.To,
			Timeout:   expand(st.Timeout, vars),
		}
		for _, p := range s.validateStep(st) {
			problems = append(problems, fmt.Sprintf("test %q step %d (%s): %s", name, i+1, st.Action, p))
		}
		if st.Target != "" {
			if l, ok := s.Locators[st.Target]; ok {
				loc, _ := l.resolve()
				loc.Value = expand(loc.Value, vars)
				locs[i] = loc
			}
		}
		steps[i] = st
	}
	if len(problems) > 0 {
		return lifecycle.Test{}, &ValidationError{Path: "suite", Problems: problems}
	}

	dir := s.dir
	return lifecycle.Test{
		Name:    name,
		Browser: expand(browser, vars),
		Vars:    vars,
		Run: func(ctx context.Context, ec *lifecycle.ExecutionContext) error {
			for i, st := range steps {
				r := &stepRun{ec: ec, step: st, loc: locs[i], fs: fs, dir: dir}
				a := actions[st.Action]
				if err := ec.Step(ctx, fmt.Sprintf("step %d: %s", i+1, st), func(ctx context.Context) error {
					return a.run(ctx, r)
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}, nil
}

func expand(s string, vars map[string]string) string {
	if s == "" {
		return s
	}
	return os.Expand(s, func(k string) string { return vars[k] })
}
