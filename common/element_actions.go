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

package common

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/liuxd6825/webcheck/log"
)

// SelectMode selects how SelectDropdownOption matches an option.
type SelectMode string

// Dropdown selection modes.
const (
	SelectByValue       SelectMode = "value"
	SelectByVisibleText SelectMode = "visibleText"
	SelectByIndex       SelectMode = "index"
)

// ParseSelectMode returns the selection mode named by s, ignoring case.
func ParseSelectMode(s string) (SelectMode, error) {
	for _, m := range []SelectMode{SelectByValue, SelectByVisibleText, SelectByIndex} {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", &InvalidArgumentError{
		Arg: "select mode", Value: s, Reason: "must be one of value, visibleText, index",
	}
}

// ElementActions performs guarded element interactions. Every native
// interaction waits for the element to be present and scrolls it into the
// viewport before acting on it.
type ElementActions struct {
	session *Session
	wait    *WaitEngine
	logger  *log.Logger
}

// NewElementActions returns the element actions of a session.
func NewElementActions(s *Session, wait *WaitEngine, logger *log.Logger) *ElementActions {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &ElementActions{session: s, wait: wait, logger: logger}
}

func (a *ElementActions) resolve(ctx context.Context, loc Locator) (Driver, Element, error) {
	var el Element
	err := a.wait.Until(ctx, fmt.Sprintf("%s to be present", loc), func(d Driver) (bool, error) {
		e, err := d.FindElement(loc)
		if err != nil {
			return false, err
		}
		el = e
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}
	d, err := a.session.Driver()
	if err != nil {
		return nil, nil, err
	}
	return d, el, nil
}

// resolveInView resolves loc and scrolls the element into the viewport.
func (a *ElementActions) resolveInView(ctx context.Context, action string, loc Locator) (Driver, Element, error) {
	d, el, err := a.resolve(ctx, loc)
	if err != nil {
		return nil, nil, interactionError(action, loc, err)
	}
	if _, err := d.ExecuteScript(scrollIntoViewScript, el); err != nil {
		return nil, nil, interactionError(action, loc, fmt.Errorf("scrolling into view: %w", err))
	}
	return d, el, nil
}

func (a *ElementActions) done(ctx context.Context, action string, loc Locator) {
	a.logger.Debugf(categoryActions, "%s %s", action, loc)
	applySlowMo(ctx)
}

// Click scrolls the element into view and clicks it.
func (a *ElementActions) Click(ctx context.Context, loc Locator) error {
	_, el, err := a.resolveInView(ctx, "click", loc)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return interactionError("click", loc, err)
	}
	a.done(ctx, "click", loc)
	return nil
}

// DoubleClick scrolls the element into view and double clicks it.
func (a *ElementActions) DoubleClick(ctx context.Context, loc Locator) error {
	d, el, err := a.resolveInView(ctx, "double click", loc)
	if err != nil {
		return err
	}
	if err := d.DoubleClick(el); err != nil {
		return interactionError("double click", loc, err)
	}
	a.done(ctx, "double click", loc)
	return nil
}

// RightClick scrolls the element into view and opens its context menu.
func (a *ElementActions) RightClick(ctx context.Context, loc Locator) error {
	d, el, err := a.resolveInView(ctx, "right click", loc)
	if err != nil {
		return err
	}
	if err := d.ContextClick(el); err != nil {
		return interactionError("right click", loc, err)
	}
	a.done(ctx, "right click", loc)
	return nil
}

// EnterText scrolls the element into view, clears it and types text.
func (a *ElementActions) EnterText(ctx context.Context, loc Locator, text string) error {
	_, el, err := a.resolveInView(ctx, "enter text", loc)
	if err != nil {
		return err
	}
	if err := el.Clear(); err != nil {
		return interactionError("enter text", loc, fmt.Errorf("clearing: %w", err))
	}
	if err := el.SendKeys(text); err != nil {
		return interactionError("enter text", loc, err)
	}
	a.done(ctx, "enter text", loc)
	return nil
}

// EnterTextUsingActions scrolls the element into view and types text through
// the user input pipeline instead of setting the value on the element.
func (a *ElementActions) EnterTextUsingActions(ctx context.Context, loc Locator, text string) error {
	d, el, err := a.resolveInView(ctx, "enter text using actions", loc)
	if err != nil {
		return err
	}
	if err := d.SendKeysWithActions(el, text); err != nil {
		return interactionError("enter text using actions", loc, err)
	}
	a.done(ctx, "enter text using actions", loc)
	return nil
}

// SelectCheckbox scrolls the checkbox into view and clicks it only when its
// selection state differs from checked.
func (a *ElementActions) SelectCheckbox(ctx context.Context, loc Locator, checked bool) error {
	_, el, err := a.resolveInView(ctx, "select checkbox", loc)
	if err != nil {
		return err
	}
	selected, err := el.IsSelected()
	if err != nil {
		return interactionError("select checkbox", loc, err)
	}
	if selected != checked {
		if err := el.Click(); err != nil {
			return interactionError("select checkbox", loc, err)
		}
	}
	a.done(ctx, "select checkbox", loc)
	return nil
}

// UploadFile scrolls the file input into view and sends it the absolute
// path of file.
func (a *ElementActions) UploadFile(ctx context.Context, loc Locator, file string) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return &InvalidArgumentError{Arg: "file", Value: file, Reason: err.Error()}
	}
	_, el, err := a.resolveInView(ctx, "upload file", loc)
	if err != nil {
		return err
	}
	if err := el.SendKeys(abs); err != nil {
		return interactionError("upload file", loc, err)
	}
	a.done(ctx, "upload file", loc)
	return nil
}

// MouseHover scrolls the element into view and moves the pointer over it.
func (a *ElementActions) MouseHover(ctx context.Context, loc Locator) error {
	d, el, err := a.resolveInView(ctx, "mouse hover", loc)
	if err != nil {
		return err
	}
	if err := d.MoveTo(el); err != nil {
		return interactionError("mouse hover", loc, err)
	}
	a.done(ctx, "mouse hover", loc)
	return nil
}

// JSClick clicks the element from the page context. It neither scrolls nor
// checks visibility, so it reaches elements a native click cannot.
func (a *ElementActions) JSClick(ctx context.Context, loc Locator) error {
	d, el, err := a.resolve(ctx, loc)
	if err != nil {
		return interactionError("js click", loc, err)
	}
	if _, err := d.ExecuteScript(jsClickScript, el); err != nil {
		return interactionError("js click", loc, err)
	}
	a.done(ctx, "js click", loc)
	return nil
}

// SelectDropdownOption selects one option of a select element. value is
// interpreted according to mode: the option value attribute, its visible
// text, or its zero-based index. Unknown modes and malformed indexes fail
// with *InvalidArgumentError, an index beyond the options with
// *IndexOutOfRangeError and an unmatched value or text with ErrNoSuchOption.
// A failed call never changes the current selection.
func (a *ElementActions) SelectDropdownOption(ctx context.Context, loc Locator, value string, mode SelectMode) error {
	mode, err := ParseSelectMode(string(mode))
	if err != nil {
		return err
	}
	index := -1
	if mode == SelectByIndex {
		if index, err = strconv.Atoi(strings.TrimSpace(value)); err != nil || index < 0 {
			return &InvalidArgumentError{Arg: "option index", Value: value, Reason: "must be a non-negative integer"}
		}
	}

	const action = "select dropdown option"
	_, el, err := a.resolveInView(ctx, action, loc)
	if err != nil {
		return err
	}
	options, err := el.FindElements(Locator{By: ByTagName, Value: "option"})
	if err != nil {
		return interactionError(action, loc, err)
	}

	option, err := matchOption(options, value, mode, index)
	if err != nil {
		var ie *IndexOutOfRangeError
		if errors.As(err, &ie) || errors.Is(err, ErrNoSuchOption) {
			return err
		}
		return interactionError(action, loc, err)
	}
	selected, err := option.IsSelected()
	if err != nil {
		return interactionError(action, loc, err)
	}
	if !selected {
		if err := option.Click(); err != nil {
			return interactionError(action, loc, err)
		}
	}
	a.done(ctx, action, loc)
	return nil
}

func matchOption(options []Element, value string, mode SelectMode, index int) (Element, error) {
	if mode == SelectByIndex {
		if index >= len(options) {
			return nil, &IndexOutOfRangeError{Index: index, Len: len(options)}
		}
		return options[index], nil
	}
	for _, o := range options {
		var (
			got string
			err error
		)
		if mode == SelectByValue {
			got, err = o.GetAttribute("value")
		} else {
			got, err = o.Text()
		}
		if err != nil {
			return nil, err
		}
		if mode == SelectByValue && got == value ||
			mode == SelectByVisibleText && strings.TrimSpace(got) == strings.TrimSpace(value) {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", mode, value, ErrNoSuchOption)
}

// IsPresent reports whether at least one element matches loc. It does not
// wait.
func (a *ElementActions) IsPresent(ctx context.Context, loc Locator) (bool, error) {
	d, err := a.session.Driver()
	if err != nil {
		return false, err
	}
	els, err := d.FindElements(loc)
	if errors.Is(err, ErrNoSuchElement) {
		return false, nil
	}
	if err != nil {
		return false, interactionError("is present", loc, err)
	}
	return len(els) > 0, nil
}

// IsDisplayed reports whether the element is visible. An absent element is
// not displayed.
func (a *ElementActions) IsDisplayed(ctx context.Context, loc Locator) (bool, error) {
	d, err := a.session.Driver()
	if err != nil {
		return false, err
	}
	el, err := d.FindElement(loc)
	if errors.Is(err, ErrNoSuchElement) {
		return false, nil
	}
	if err != nil {
		return false, interactionError("is displayed", loc, err)
	}
	visible, err := el.IsDisplayed()
	if err != nil {
		return false, interactionError("is displayed", loc, err)
	}
	return visible, nil
}

// IsEnabled reports whether the element is enabled.
func (a *ElementActions) IsEnabled(ctx context.Context, loc Locator) (bool, error) {
	_, el, err := a.resolve(ctx, loc)
	if err != nil {
		return false, interactionError("is enabled", loc, err)
	}
	enabled, err := el.IsEnabled()
	if err != nil {
		return false, interactionError("is enabled", loc, err)
	}
	return enabled, nil
}

// Text returns the visible text of the element.
func (a *ElementActions) Text(ctx context.Context, loc Locator) (string, error) {
	_, el, err := a.resolve(ctx, loc)
	if err != nil {
		return "", interactionError("text", loc, err)
	}
	s, err := el.Text()
	if err != nil {
		return "", interactionError("text", loc, err)
	}
	return s, nil
}

// Attribute returns the value of an element attribute.
func (a *ElementActions) Attribute(ctx context.Context, loc Locator, name string) (string, error) {
	_, el, err := a.resolve(ctx, loc)
	if err != nil {
		return "", interactionError("attribute", loc, err)
	}
	s, err := el.GetAttribute(name)
	if err != nil {
		return "", interactionError("attribute", loc, err)
	}
	return s, nil
}
