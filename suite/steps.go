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
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/datasource"
	"github.com/liuxd6825/webcheck/lifecycle"
	"github.com/liuxd6825/webcheck/report"
)

// AssertionError is returned by the assert actions when the page does not
// hold the expected value.
type AssertionError struct {
	Step string
	Want string
	Got  string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %q, got %q", e.Step, e.Want, e.Got)
}

type requirement int

const (
	optional requirement = iota
	required
	forbidden
)

// action describes the fields a step action uses and how it runs.
type action struct {
	target requirement
	value  requirement
	file   bool
	run    func(ctx context.Context, r *stepRun) error
}

// stepRun is one step, with variables expanded, bound to an invocation.
type stepRun struct {
	ec   *lifecycle.ExecutionContext
	step Step
	loc  common.Locator
	fs   afero.Fs
	dir  string
}

func (r *stepRun) page(ctx context.Context) (*common.Page, error) {
	return r.ec.Page(ctx)
}

func (r *stepRun) waitOptions() []common.WaitOption {
	if r.step.Timeout == "" {
		return nil
	}
	d, _ := parseDuration(r.step.Timeout)
	return []common.WaitOption{common.WithinTimeout(d)}
}

func (r *stepRun) path(p string) string {
	if p == "" || filepath.IsAbs(p) || r.dir == "" {
		return p
	}
	return filepath.Join(r.dir, p)
}

func (r *stepRun) assert(want, got string, ok bool) error {
	if ok {
		return nil
	}
	return &AssertionError{Step: r.step.String(), Want: want, Got: got}
}

// parseDuration accepts Go durations and plain numbers of seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// pageAction adapts a page operation without arguments.
func pageAction(fn func(*common.Page) error) action {
	return action{target: forbidden, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return fn(p)
	}}
}

// elementAction adapts an element interaction.
func elementAction(fn func(*common.ElementActions, context.Context, common.Locator) error) action {
	return action{target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return fn(p.Actions, ctx, r.loc)
	}}
}

// windowAction adapts a window manager operation taking the step value.
func windowAction(value requirement, fn func(*common.WindowManager, string) error) action {
	return action{target: forbidden, value: value, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return fn(p.Windows, r.step.Value)
	}}
}

var actions = map[string]action{ //nolint:gochecknoglobals
	"launch": {target: forbidden, run: func(ctx context.Context, r *stepRun) error {
		_, err := r.ec.Launch(ctx, r.step.Value)
		return err
	}},
	"open": {target: forbidden, value: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Open(ctx, r.step.Value)
	}},
	"launchApp": {target: forbidden, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.LaunchApplication(ctx)
	}},
	"back":         pageAction((*common.Page).Back),
	"forward":      pageAction((*common.Page).Forward),
	"refresh":      pageAction((*common.Page).Refresh),
	"scrollTop":    pageAction((*common.Page).ScrollToTop),
	"scrollBottom": pageAction((*common.Page).ScrollToBottom),

	"click":       elementAction((*common.ElementActions).Click),
	"doubleClick": elementAction((*common.ElementActions).DoubleClick),
	"rightClick":  elementAction((*common.ElementActions).RightClick),
	"jsClick":     elementAction((*common.ElementActions).JSClick),
	"hover":       elementAction((*common.ElementActions).MouseHover),
	"type": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Actions.EnterText(ctx, r.loc, r.step.Value)
	}},
	"typeActions": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Actions.EnterTextUsingActions(ctx, r.loc, r.step.Value)
	}},
	"check": {target: required, run: func(ctx context.Context, r *stepRun) error {
		checked := true
		if r.step.Value != "" {
			var err error
			if checked, err = strconv.ParseBool(r.step.Value); err != nil {
				return &common.InvalidArgumentError{Arg: "checkbox state", Value: r.step.Value, Reason: "expected true or false"}
			}
		}
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Actions.SelectCheckbox(ctx, r.loc, checked)
	}},
	"select": {target: required, value: required, run: func(ctx context.Context, r *stepRun) error {
		mode := common.SelectByVisibleText
		if r.step.Mode != "" {
			var err error
			if mode, err = common.ParseSelectMode(r.step.Mode); err != nil {
				return err
			}
		}
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Actions.SelectDropdownOption(ctx, r.loc, r.step.Value, mode)
	}},
	"upload": {target: required, value: required, run: func(ctx context.Context, r *stepRun) error {
		file, err := filepath.Abs(r.path(r.step.Value))
		if err != nil {
			return err
		}
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Actions.UploadFile(ctx, r.loc, file)
	}},

	"waitVisible": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		_, err = p.Wait.WaitForVisible(ctx, r.loc, r.waitOptions()...)
		return err
	}},
	"waitInvisible": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Wait.WaitForInvisible(ctx, r.loc, r.waitOptions()...)
	}},
	"waitClickable": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		_, err = p.Wait.WaitForClickable(ctx, r.loc, r.waitOptions()...)
		return err
	}},
	"waitTitle": {target: forbidden, value: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Wait.WaitForTitle(ctx, r.step.Value, r.waitOptions()...)
	}},
	"waitAlert": {target: forbidden, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Wait.WaitForAlert(ctx, r.waitOptions()...)
	}},
	"sleep": {target: forbidden, value: required, run: func(ctx context.Context, r *stepRun) error {
		d, err := parseDuration(r.step.Value)
		if err != nil {
			return &common.InvalidArgumentError{Arg: "duration", Value: r.step.Value, Reason: err.Error()}
		}
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Wait.Sleep(ctx, d)
	}},

	"switchWindow": windowAction(required, (*common.WindowManager).SwitchToWindow),
	"switchNewWindow": windowAction(forbidden, func(w *common.WindowManager, _ string) error {
		_, err := w.SwitchToNewWindow()
		return err
	}),
	"switchWindowTitle": windowAction(required, func(w *common.WindowManager, title string) error {
		_, err := w.SwitchToWindowByTitle(title)
		return err
	}),
	"closeOtherWindows": windowAction(forbidden, func(w *common.WindowManager, _ string) error {
		return w.CloseAllOtherWindows()
	}),
	"switchFrame": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		return p.Windows.SwitchToFrame(ctx, r.loc)
	}},
	"switchFrameName": windowAction(required, (*common.WindowManager).SwitchToFrameByName),
	"switchDefault": windowAction(forbidden, func(w *common.WindowManager, _ string) error {
		return w.SwitchToDefaultContent()
	}),
	"acceptAlert": windowAction(forbidden, func(w *common.WindowManager, _ string) error {
		return w.AcceptAlert()
	}),
	"dismissAlert": windowAction(forbidden, func(w *common.WindowManager, _ string) error {
		return w.DismissAlert()
	}),
	"alertInput": windowAction(required, (*common.WindowManager).SendTextToAlert),

	"screenshot": {run: func(ctx context.Context, r *stepRun) error {
		name := r.step.Value
		if name == "" {
			name = r.ec.Test() + "_" + common.UniqueID("")
		}
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		var path string
		if r.step.Target != "" {
			path, err = p.Screenshots.Element(ctx, r.loc, name)
		} else {
			path, err = p.Screenshots.Window(ctx, name)
		}
		if err != nil {
			return err
		}
		r.ec.Entry().Attach(path)
		return nil
	}},

	"assertText": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		got, err := p.Actions.Text(ctx, r.loc)
		if err != nil {
			return err
		}
		got = strings.TrimSpace(got)
		return r.assert(r.step.Value, got, got == r.step.Value)
	}},
	"assertAttribute": {target: required, run: func(ctx context.Context, r *stepRun) error {
		if r.step.Attribute == "" {
			return &common.InvalidArgumentError{Arg: "attribute", Reason: "missing"}
		}
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		got, err := p.Actions.Attribute(ctx, r.loc, r.step.Attribute)
		if err != nil {
			return err
		}
		return r.assert(r.step.Value, got, got == r.step.Value)
	}},
	"assertPresent": {target: required, run: func(ctx context.Context, r *stepRun) error {
		return r.assertPresence(ctx, true)
	}},
	"assertAbsent": {target: required, run: func(ctx context.Context, r *stepRun) error {
		return r.assertPresence(ctx, false)
	}},
	"assertEnabled": {target: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		ok, err := p.Actions.IsEnabled(ctx, r.loc)
		if err != nil {
			return err
		}
		return r.assert("enabled", "disabled", ok)
	}},
	"assertTitle": {target: forbidden, value: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		got, err := p.Title()
		if err != nil {
			return err
		}
		return r.assert(r.step.Value, got, strings.EqualFold(strings.TrimSpace(got), r.step.Value))
	}},
	"assertURL": {target: forbidden, value: required, run: func(ctx context.Context, r *stepRun) error {
		p, err := r.page(ctx)
		if err != nil {
			return err
		}
		got, err := p.CurrentURL()
		if err != nil {
			return err
		}
		return r.assert(r.step.Value, got, strings.Contains(got, r.step.Value))
	}},
	"assertAlertText": windowAction(required, func(w *common.WindowManager, want string) error {
		got, err := w.AlertText()
		if err != nil {
			return err
		}
		if got != want {
			return &AssertionError{Step: "assertAlertText", Want: want, Got: got}
		}
		return nil
	}),
	"assertPDF": {target: forbidden, value: required, file: true, run: func(_ context.Context, r *stepRun) error {
		text, err := datasource.PDFText(r.fs, r.path(r.step.File), max(r.step.From, 1), r.step.To)
		if err != nil {
			return err
		}
		return r.assert(r.step.Value, text, strings.Contains(text, r.step.Value))
	}},

	"log": {target: forbidden, value: required, run: func(_ context.Context, r *stepRun) error {
		level := report.Info
		if r.step.Level != "" {
			var err error
			if level, err = report.ParseLevel(r.step.Level); err != nil {
				return &common.InvalidArgumentError{Arg: "level", Value: r.step.Level, Reason: err.Error()}
			}
		}
		return r.ec.Log(level, r.step.Value)
	}},
}

func (r *stepRun) assertPresence(ctx context.Context, want bool) error {
	p, err := r.page(ctx)
	if err != nil {
		return err
	}
	got, err := p.Actions.IsPresent(ctx, r.loc)
	if err != nil {
		return err
	}
	return r.assert(strconv.FormatBool(want), strconv.FormatBool(got), got == want)
}
