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
)

// Element adapts a selenium.WebElement to common.Element.
type Element struct {
	we selenium.WebElement
}

var _ common.Element = &Element{}

func wrapElements(wes []selenium.WebElement) []common.Element {
	els := make([]common.Element, len(wes))
	for i, we := range wes {
		els[i] = &Element{we: we}
	}
	return els
}

func (e *Element) Click() error {
	return mapError(e.we.Click())
}

func (e *Element) Clear() error {
	return mapError(e.we.Clear())
}

func (e *Element) SendKeys(text string) error {
	return mapError(e.we.SendKeys(text))
}

func (e *Element) IsSelected() (bool, error) {
	ok, err := e.we.IsSelected()
	return ok, mapError(err)
}

func (e *Element) IsEnabled() (bool, error) {
	ok, err := e.we.IsEnabled()
	return ok, mapError(err)
}

func (e *Element) IsDisplayed() (bool, error) {
	ok, err := e.we.IsDisplayed()
	return ok, mapError(err)
}

func (e *Element) Text() (string, error) {
	s, err := e.we.Text()
	return s, mapError(err)
}

func (e *Element) GetAttribute(name string) (string, error) {
	s, err := e.we.GetAttribute(name)
	return s, mapError(err)
}

func (e *Element) TagName() (string, error) {
	s, err := e.we.TagName()
	return s, mapError(err)
}

func (e *Element) FindElements(loc common.Locator) ([]common.Element, error) {
	wes, err := e.we.FindElements(string(loc.By), loc.Value)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", loc, mapError(err))
	}
	return wrapElements(wes), nil
}

func (e *Element) Screenshot() ([]byte, error) {
	buf, err := e.we.Screenshot(true)
	return buf, mapError(err)
}
