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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/liuxd6825/webcheck/common"
)

// Backend is an in-memory common.Backend. Every driver it creates starts
// with a single blank window with the handle "main".
type Backend struct {
	mu      sync.Mutex
	drivers []*Driver

	// Setup, when set, is called with every new driver before it is
	// returned, so tests can lay out windows and elements.
	Setup func(*Driver)
	// NewDriverErr fails every NewDriver call.
	NewDriverErr error
	// MaximizeErr fails MaximizeWindow on every new driver.
	MaximizeErr error
}

// NewBackend returns an empty fake backend.
func NewBackend() *Backend {
	return &Backend{}
}

// NewDriver implements common.Backend.
func (b *Backend) NewDriver(_ context.Context, kind common.BrowserKind) (common.Driver, error) {
	b.mu.Lock()
	if b.NewDriverErr != nil {
		b.mu.Unlock()
		return nil, b.NewDriverErr
	}
	d := newDriver(kind)
	d.maximizeErr = b.MaximizeErr
	b.drivers = append(b.drivers, d)
	setup := b.Setup
	b.mu.Unlock()

	if setup != nil {
		setup(d)
	}
	return d, nil
}

// Drivers returns every driver created so far.
func (b *Backend) Drivers() []*Driver {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Driver(nil), b.drivers...)
}

// Last returns the most recently created driver or nil.
func (b *Backend) Last() *Driver {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.drivers) == 0 {
		return nil
	}
	return b.drivers[len(b.drivers)-1]
}

// Document is the element tree of a window or a frame.
type Document struct {
	Elements []*Element
}

// Window is a browser window of the fake driver.
type Window struct {
	Handle string
	Title  string
	URL    string
	Doc    *Document
}

// Driver is an in-memory common.Driver.
type Driver struct {
	mu sync.Mutex

	kind        common.BrowserKind
	windows     map[string]*Window
	order       []string
	current     string
	frame       *Document
	alert       *string
	alertAt     time.Time
	alertInput  string
	cookies     map[string]string
	maximized   bool
	maximizeErr error
	quit        int
	history     []string
	events      []string
}

var _ common.Driver = &Driver{}

func newDriver(kind common.BrowserKind) *Driver {
	d := &Driver{
		kind:    kind,
		windows: make(map[string]*Window),
		cookies: map[string]string{"session": "stale"},
	}
	d.AddWindow("main", "")
	d.current = "main"
	return d
}

// Kind returns the browser kind the driver was created for.
func (d *Driver) Kind() common.BrowserKind { return d.kind }

// AddWindow opens a window without focusing it.
func (d *Driver) AddWindow(handle, title string, els ...*Element) *Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := &Window{Handle: handle, Title: title, Doc: &Document{}}
	d.windows[handle] = w
	d.order = append(d.order, handle)
	d.attach(w.Doc, els...)
	return w
}

// SetTitle changes the title of a window.
func (d *Driver) SetTitle(handle, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows[handle].Title = title
}

// AddElements adds elements to the document of a window.
func (d *Driver) AddElements(handle string, els ...*Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attach(d.windows[handle].Doc, els...)
}

func (d *Driver) attach(doc *Document, els ...*Element) {
	for _, el := range els {
		el.setDriver(d)
		doc.Elements = append(doc.Elements, el)
	}
}

// Remove detaches el from its document. The element reports stale
// afterwards.
func (d *Driver) Remove(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el.stale = true
	for _, w := range d.windows {
		w.Doc.Elements = removeElement(w.Doc.Elements, el)
	}
}

func removeElement(els []*Element, el *Element) []*Element {
	out := els[:0]
	for _, e := range els {
		if e != el {
			out = append(out, e)
		}
	}
	return out
}

// OpenAlert shows an alert with text after delay.
func (d *Driver) OpenAlert(text string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alert = &text
	d.alertAt = time.Now().Add(delay)
}

// AlertInput returns the text sent to the last prompt.
func (d *Driver) AlertInput() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alertInput
}

// Events returns the interactions recorded so far, such as
// "click id=\"save\"" or "scroll id=\"save\"".
func (d *Driver) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *Driver) record(format string, args ...any) {
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

// Maximized reports whether MaximizeWindow was called.
func (d *Driver) Maximized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maximized
}

// Cookies returns the number of cookies set.
func (d *Driver) Cookies() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cookies)
}

// QuitCount returns how often Quit was called.
func (d *Driver) QuitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quit
}

// CurrentHandle returns the focused window handle.
func (d *Driver) CurrentHandle() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// OpenWindows returns the handles of open windows in creation order.
func (d *Driver) OpenWindows() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// InFrame reports whether the document context is a frame.
func (d *Driver) InFrame() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame != nil
}

func (d *Driver) window() (*Window, error) {
	w, ok := d.windows[d.current]
	if !ok {
		return nil, fmt.Errorf("current window %q: %w", d.current, common.ErrNoSuchWindow)
	}
	return w, nil
}

func (d *Driver) document() (*Document, error) {
	if d.frame != nil {
		return d.frame, nil
	}
	w, err := d.window()
	if err != nil {
		return nil, err
	}
	return w.Doc, nil
}

func (d *Driver) Get(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.window()
	if err != nil {
		return err
	}
	d.history = append(d.history, w.URL)
	w.URL = url
	d.record("get %s", url)
	return nil
}

func (d *Driver) Title() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.window()
	if err != nil {
		return "", err
	}
	return w.Title, nil
}

func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.window()
	if err != nil {
		return "", err
	}
	return w.URL, nil
}

func (d *Driver) Back() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("back")
	return nil
}

func (d *Driver) Forward() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("forward")
	return nil
}

func (d *Driver) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("refresh")
	return nil
}

func (d *Driver) MaximizeWindow() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.maximizeErr != nil {
		return d.maximizeErr
	}
	d.maximized = true
	return nil
}

func (d *Driver) DeleteAllCookies() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = map[string]string{}
	return nil
}

func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quit++
	return nil
}

func (d *Driver) FindElement(loc common.Locator) (common.Element, error) {
	els, err := d.FindElements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%s: %w", loc, common.ErrNoSuchElement)
	}
	return els[0], nil
}

func (d *Driver) FindElements(loc common.Locator) ([]common.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	var found []common.Element
	for _, el := range doc.Elements {
		if el.matches(loc) {
			found = append(found, el)
		}
	}
	return found, nil
}

func (d *Driver) ExecuteScript(script string, args ...any) (any, error) {
	var el *Element
	if len(args) > 0 {
		el, _ = args[0].(*Element)
	}
	d.mu.Lock()
	if el != nil && el.stale {
		d.mu.Unlock()
		return nil, common.ErrStaleElement
	}
	switch {
	case el != nil && script == "arguments[0].click();":
		d.record("jsclick %s", el)
		el.clicks++
		d.mu.Unlock()
		el.fireClick(d)
		return nil, nil
	case el != nil && script == "arguments[0].scrollIntoView(true);":
		el.inView = true
		d.record("scroll %s", el)
	case el != nil:
		d.record("script %s %s", script, el)
	default:
		d.record("script %s", script)
	}
	d.mu.Unlock()
	return nil, nil
}

func (d *Driver) WindowHandle() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.window(); err != nil {
		return "", err
	}
	return d.current, nil
}

func (d *Driver) WindowHandles() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...), nil
}

func (d *Driver) SwitchWindow(handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[handle]; !ok {
		return fmt.Errorf("window %q: %w", handle, common.ErrNoSuchWindow)
	}
	d.current = handle
	d.frame = nil
	d.record("switch window %s", handle)
	return nil
}

func (d *Driver) CloseWindow() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.window(); err != nil {
		return err
	}
	delete(d.windows, d.current)
	for i, h := range d.order {
		if h == d.current {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.record("close window %s", d.current)
	return nil
}

func (d *Driver) SwitchFrame(frame common.Element) error {
	el, ok := frame.(*Element)
	if !ok || el.frame == nil {
		return fmt.Errorf("%v: %w", frame, common.ErrNoSuchFrame)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = el.frame
	d.record("switch frame %s", el)
	return nil
}

func (d *Driver) SwitchFrameByName(nameOrID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.document()
	if err != nil {
		return err
	}
	for _, el := range doc.Elements {
		if el.frame != nil && (el.attrs["name"] == nameOrID || el.attrs["id"] == nameOrID) {
			d.frame = el.frame
			d.record("switch frame %s", nameOrID)
			return nil
		}
	}
	return fmt.Errorf("frame %q: %w", nameOrID, common.ErrNoSuchFrame)
}

func (d *Driver) SwitchDefaultContent() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = nil
	d.record("switch default content")
	return nil
}

func (d *Driver) openAlert() (string, error) {
	if d.alert == nil || time.Now().Before(d.alertAt) {
		return "", common.ErrNoSuchAlert
	}
	return *d.alert, nil
}

func (d *Driver) AlertText() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openAlert()
}

func (d *Driver) AcceptAlert() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.openAlert(); err != nil {
		return err
	}
	d.alert = nil
	d.record("accept alert")
	return nil
}

func (d *Driver) DismissAlert() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.openAlert(); err != nil {
		return err
	}
	d.alert = nil
	d.record("dismiss alert")
	return nil
}

func (d *Driver) SetAlertText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.openAlert(); err != nil {
		return err
	}
	d.alertInput = text
	return nil
}

func (d *Driver) DoubleClick(el common.Element) error {
	return d.pointer("double click", el)
}

func (d *Driver) ContextClick(el common.Element) error {
	return d.pointer("right click", el)
}

func (d *Driver) MoveTo(el common.Element) error {
	return d.pointer("hover", el)
}

func (d *Driver) pointer(what string, e common.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := e.(*Element) //nolint:forcetypeassert
	if err := el.interactable(); err != nil {
		return err
	}
	d.record("%s %s", what, el)
	return nil
}

func (d *Driver) SendKeysWithActions(e common.Element, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := e.(*Element) //nolint:forcetypeassert
	if err := el.interactable(); err != nil {
		return err
	}
	el.value += text
	d.record("type actions %s", el)
	return nil
}

func (d *Driver) Screenshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.window(); err != nil {
		return nil, err
	}
	return []byte("png:" + d.current), nil
}
