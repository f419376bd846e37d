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

package webdriver

import (
	"fmt"

	"github.com/tebeka/selenium"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/log"
)

// Driver adapts a selenium.WebDriver to common.Driver.
type Driver struct {
	wd     selenium.WebDriver
	logger *log.Logger
}

var _ common.Driver = &Driver{}

func (d *Driver) Get(url string) error {
	return mapError(d.wd.Get(url))
}

func (d *Driver) Title() (string, error) {
	t, err := d.wd.Title()
	return t, mapError(err)
}

func (d *Driver) CurrentURL() (string, error) {
	u, err := d.wd.CurrentURL()
	return u, mapError(err)
}

func (d *Driver) Back() error {
	return mapError(d.wd.Back())
}

func (d *Driver) Forward() error {
	return mapError(d.wd.Forward())
}

func (d *Driver) Refresh() error {
	return mapError(d.wd.Refresh())
}

func (d *Driver) MaximizeWindow() error {
	return mapError(d.wd.MaximizeWindow(""))
}

func (d *Driver) DeleteAllCookies() error {
	return mapError(d.wd.DeleteAllCookies())
}

func (d *Driver) Quit() error {
	d.logger.Debugf("webdriver", "quitting session")
	return mapError(d.wd.Quit())
}

func (d *Driver) FindElement(loc common.Locator) (common.Element, error) {
	we, err := d.wd.FindElement(string(loc.By), loc.Value)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", loc, mapError(err))
	}
	return &Element{we: we}, nil
}

func (d *Driver) FindElements(loc common.Locator) ([]common.Element, error) {
	wes, err := d.wd.FindElements(string(loc.By), loc.Value)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", loc, mapError(err))
	}
	return wrapElements(wes), nil
}

func (d *Driver) ExecuteScript(script string, args ...any) (any, error) {
	wargs := make([]any, len(args))
	for i, a := range args {
		if el, ok := a.(*Element); ok {
			wargs[i] = el.we
			continue
		}
		wargs[i] = a
	}
	res, err := d.wd.ExecuteScript(script, wargs)
	return res, mapError(err)
}

func (d *Driver) WindowHandle() (string, error) {
	h, err := d.wd.CurrentWindowHandle()
	return h, mapError(err)
}

func (d *Driver) WindowHandles() ([]string, error) {
	hs, err := d.wd.WindowHandles()
	return hs, mapError(err)
}

func (d *Driver) SwitchWindow(handle string) error {
	return mapError(d.wd.SwitchWindow(handle))
}

func (d *Driver) CloseWindow() error {
	return mapError(d.wd.Close())
}

func (d *Driver) SwitchFrame(frame common.Element) error {
	el, ok := frame.(*Element)
	if !ok {
		return fmt.Errorf("frame %v is not a webdriver element: %w", frame, common.ErrNoSuchFrame)
	}
	return mapError(d.wd.SwitchFrame(el.we))
}

func (d *Driver) SwitchFrameByName(nameOrID string) error {
	return mapError(d.wd.SwitchFrame(nameOrID))
}

func (d *Driver) SwitchDefaultContent() error {
	return mapError(d.wd.SwitchFrame(nil))
}

func (d *Driver) AlertText() (string, error) {
	t, err := d.wd.AlertText()
	return t, mapError(err)
}

func (d *Driver) AcceptAlert() error {
	return mapError(d.wd.AcceptAlert())
}

func (d *Driver) DismissAlert() error {
	return mapError(d.wd.DismissAlert())
}

func (d *Driver) SetAlertText(text string) error {
	return mapError(d.wd.SetAlertText(text))
}

func (d *Driver) DoubleClick(el common.Element) error {
	if err := d.MoveTo(el); err != nil {
		return err
	}
	return mapError(d.wd.DoubleClick())
}

func (d *Driver) ContextClick(el common.Element) error {
	if err := d.MoveTo(el); err != nil {
		return err
	}
	return mapError(d.wd.Click(selenium.RightButton))
}

func (d *Driver) MoveTo(el common.Element) error {
	we, err := unwrap(el)
	if err != nil {
		return err
	}
	return mapError(we.MoveTo(0, 0))
}

// SendKeysWithActions focuses the element with a pointer click and then
// types text key by key.
func (d *Driver) SendKeysWithActions(el common.Element, text string) error {
	if err := d.MoveTo(el); err != nil {
		return err
	}
	if err := d.wd.Click(selenium.LeftButton); err != nil {
		return mapError(err)
	}
	for _, r := range text {
		k := string(r)
		if err := d.wd.KeyDown(k); err != nil {
			return mapError(err)
		}
		if err := d.wd.KeyUp(k); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (d *Driver) Screenshot() ([]byte, error) {
	buf, err := d.wd.Screenshot()
	return buf, mapError(err)
}

func unwrap(el common.Element) (selenium.WebElement, error) {
	e, ok := el.(*Element)
	if !ok {
		return nil, fmt.Errorf("%v is not a webdriver element: %w", el, common.ErrInvalidArgument)
	}
	return e.we, nil
}
