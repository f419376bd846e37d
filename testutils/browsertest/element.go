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

package browsertest

import (
	"fmt"
	"time"

	"github.com/liuxd6825/webcheck/common"
)

// Element is an in-memory common.Element. Build it with NewElement and the
// With* setters before adding it to a window.
type Element struct {
	d         *Driver
	parent    *Element
	locators  []common.Locator
	tag       string
	text      string
	attrs     map[string]string
	value     string
	enabled   bool
	hidden    bool
	visibleAt time.Time
	selected  bool
	stale     bool
	inView    bool
	clicks    int
	options   []*Element
	frame     *Document
	onClick   func(*Driver)
}

var _ common.Element = &Element{}

// NewElement returns an enabled, visible element found by any of locs and
// by its tag name.
func NewElement(tag string, locs ...common.Locator) *Element {
	return &Element{
		tag:      tag,
		locators: locs,
		attrs:    make(map[string]string),
		enabled:  true,
	}
}

// SelectOption returns an option element for a select.
func SelectOption(value, text string) *Element {
	return NewElement("option").WithAttr("value", value).WithText(text)
}

func (el *Element) WithText(text string) *Element {
	el.text = text
	return el
}

func (el *Element) WithAttr(name, value string) *Element {
	el.attrs[name] = value
	return el
}

func (el *Element) WithOptions(opts ...*Element) *Element {
	for _, o := range opts {
		o.parent = el
	}
	el.options = append(el.options, opts...)
	return el
}

// WithFrame turns the element into a frame holding els.
func (el *Element) WithFrame(els ...*Element) *Element {
	el.frame = &Document{Elements: els}
	return el
}

func (el *Element) Hidden() *Element {
	el.hidden = true
	return el
}

// VisibleAfter hides the element until d has passed.
func (el *Element) VisibleAfter(d time.Duration) *Element {
	el.visibleAt = time.Now().Add(d)
	return el
}

func (el *Element) Disabled() *Element {
	el.enabled = false
	return el
}

func (el *Element) Selected() *Element {
	el.selected = true
	return el
}

// OnClick registers fn to run after every click, outside of the driver lock.
func (el *Element) OnClick(fn func(*Driver)) *Element {
	el.onClick = fn
	return el
}

func (el *Element) setDriver(d *Driver) {
	el.d = d
	for _, o := range el.options {
		o.setDriver(d)
	}
	if el.frame != nil {
		for _, c := range el.frame.Elements {
			c.setDriver(d)
		}
	}
}

func (el *Element) matches(loc common.Locator) bool {
	if loc.By == common.ByTagName && loc.Value == el.tag {
		return true
	}
	for _, l := range el.locators {
		if l == loc {
			return true
		}
	}
	return false
}

func (el *Element) String() string {
	if len(el.locators) > 0 {
		return el.locators[0].String()
	}
	if v, ok := el.attrs["value"]; ok {
		return fmt.Sprintf("%s[value=%q]", el.tag, v)
	}
	return el.tag
}

func (el *Element) displayed() bool {
	return !el.hidden && (el.visibleAt.IsZero() || !time.Now().Before(el.visibleAt))
}

func (el *Element) interactable() error {
	if el.stale {
		return fmt.Errorf("%s: %w", el, common.ErrStaleElement)
	}
	if !el.displayed() && el.parent == nil {
		return fmt.Errorf("%s: %w", el, common.ErrNotInteractable)
	}
	return nil
}

// Clicks returns how often the element was clicked, natively or by script.
func (el *Element) Clicks() int {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	return el.clicks
}

// InView reports whether the element was scrolled into view.
func (el *Element) InView() bool {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	return el.inView
}

// Value returns the text typed into the element.
func (el *Element) Value() string {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	return el.value
}

// IsChecked returns the selection state without going through the
// common.Element error contract.
func (el *Element) IsChecked() bool {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	return el.selected
}

func (el *Element) fireClick(d *Driver) {
	if el.onClick != nil {
		el.onClick(d)
	}
}

func (el *Element) Click() error {
	el.d.mu.Lock()
	if err := el.interactable(); err != nil {
		el.d.mu.Unlock()
		return err
	}
	if !el.enabled {
		el.d.mu.Unlock()
		return fmt.Errorf("%s is disabled: %w", el, common.ErrNotInteractable)
	}
	el.clicks++
	switch {
	case el.parent != nil:
		for _, o := range el.parent.options {
			o.selected = false
		}
		el.selected = true
	case el.attrs["type"] == "checkbox":
		el.selected = !el.selected
	}
	el.d.record("click %s", el)
	el.d.mu.Unlock()

	el.fireClick(el.d)
	return nil
}

func (el *Element) Clear() error {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if err := el.interactable(); err != nil {
		return err
	}
	el.value = ""
	el.d.record("clear %s", el)
	return nil
}

func (el *Element) SendKeys(text string) error {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if err := el.interactable(); err != nil {
		return err
	}
	el.value += text
	el.d.record("type %s", el)
	return nil
}

func (el *Element) IsSelected() (bool, error) {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if el.stale {
		return false, common.ErrStaleElement
	}
	return el.selected, nil
}

func (el *Element) IsEnabled() (bool, error) {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if el.stale {
		return false, common.ErrStaleElement
	}
	return el.enabled, nil
}

func (el *Element) IsDisplayed() (bool, error) {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if el.stale {
		return false, common.ErrStaleElement
	}
	return el.displayed(), nil
}

func (el *Element) Text() (string, error) {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if el.stale {
		return "", common.ErrStaleElement
	}
	return el.text, nil
}

func (el *Element) GetAttribute(name string) (string, error) {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if el.stale {
		return "", common.ErrStaleElement
	}
	if name == "value" && el.value != "" {
		return el.value, nil
	}
	return el.attrs[name], nil
}

func (el *Element) TagName() (string, error) {
	return el.tag, nil
}

func (el *Element) FindElements(loc common.Locator) ([]common.Element, error) {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	var found []common.Element
	for _, o := range el.options {
		if o.matches(loc) {
			found = append(found, o)
		}
	}
	return found, nil
}

func (el *Element) Screenshot() ([]byte, error) {
	el.d.mu.Lock()
	defer el.d.mu.Unlock()
	if el.stale {
		return nil, common.ErrStaleElement
	}
	return []byte("png:" + el.String()), nil
}

// SelectedIndex returns the index of the selected option of a select
// element, or -1.
func SelectedIndex(sel *Element) int {
	sel.d.mu.Lock()
	defer sel.d.mu.Unlock()
	for i, o := range sel.options {
		if o.selected {
			return i
		}
	}
	return -1
}
