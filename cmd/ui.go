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

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/liuxd6825/webcheck/lifecycle"
)

const banner = `                _          _               _
__      __ ___ | |__   ___ | |__    ___  ___| | __
\ \ /\ / // _ \| '_ \ / __|| '_ \  / _ \/ __| |/ /
 \ V  V /|  __/| |_) | (__ | | | ||  __/ (__|   <
  \_/\_/  \___||_.__/ \___||_| |_| \___|\___|_|\_\`

func newColor(noColor bool, attributes ...color.Attribute) *color.Color {
	c := color.New(attributes...)
	if noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

func getBanner(noColor bool) string {
	return newColor(noColor, color.FgCyan).Sprint(banner)
}

// printSummary writes one line per test and the totals of the run.
func printSummary(gs *globalState, s lifecycle.Summary) {
	noColor := gs.flags.noColor || !gs.stdOut.IsTTY
	var (
		green  = newColor(noColor, color.FgGreen)
		red    = newColor(noColor, color.FgRed)
		yellow = newColor(noColor, color.FgYellow)
		faint  = newColor(noColor, color.Faint)
	)

	var b strings.Builder
	b.WriteString("\n")
	for _, r := range s.Results {
		if r.Passed {
			fmt.Fprintf(&b, "  %s %s", green.Sprint("✓"), r.Name)
		} else {
			fmt.Fprintf(&b, "  %s %s", red.Sprint("✗"), r.Name)
		}
		if r.Attempts > 1 {
			fmt.Fprintf(&b, " %s", faint.Sprintf("(%d attempts)", r.Attempts))
		}
		if r.Flaky() {
			fmt.Fprintf(&b, " %s", yellow.Sprint("flaky"))
		}
		if !r.Passed && r.Err != nil {
			fmt.Fprintf(&b, "\n      %s", red.Sprint(r.Err))
		}
		b.WriteString("\n")
	}

	failed := fmt.Sprintf("%d failed", s.Failed())
	if s.Failed() > 0 {
		failed = red.Sprint(failed)
	}
	fmt.Fprintf(&b, "\n  tests......: %s, %s",
		green.Sprintf("%d passed", s.Passed()), failed)
	if s.Flaky() > 0 {
		fmt.Fprintf(&b, ", %s", yellow.Sprintf("%d flaky", s.Flaky()))
	}
	fmt.Fprintf(&b, "\n  duration...: %s\n", s.Duration.Round(time.Millisecond))
	if s.ReportPath != "" {
		fmt.Fprintf(&b, "  report.....: %s\n", s.ReportPath)
	}
	b.WriteString("\n")

	_, _ = fmt.Fprint(gs.stdOut, b.String())
}
