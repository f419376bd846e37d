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
	"fmt"
	"strings"
)

// BrowserKind identifies one of the supported browsers.
type BrowserKind int

// Supported browser kinds.
const (
	Chrome BrowserKind = iota + 1
	Firefox
	Edge
)

var browserKindLabels = map[BrowserKind]string{ //nolint:gochecknoglobals
	Chrome:  "chrome",
	Firefox: "firefox",
	Edge:    "edge",
}

// BrowserKinds lists every supported browser kind.
func BrowserKinds() []BrowserKind {
	return []BrowserKind{Chrome, Firefox, Edge}
}

func browserLabels() []string {
	labels := make([]string, 0, len(browserKindLabels))
	for _, k := range BrowserKinds() {
		labels = append(labels, browserKindLabels[k])
	}
	return labels
}

func (k BrowserKind) String() string {
	if l, ok := browserKindLabels[k]; ok {
		return l
	}
	return fmt.Sprintf("BrowserKind(%d)", int(k))
}

// ParseBrowserKind maps a case-insensitive label to its browser kind.
// Anything else fails with *UnsupportedBrowserError.
func ParseBrowserKind(label string) (BrowserKind, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	for k, v := range browserKindLabels {
		if v == l {
			return k, nil
		}
	}
	return 0, &UnsupportedBrowserError{Label: label}
}

// By is the strategy used to locate elements.
type By string

// Locator strategies understood by every backend.
const (
	ByXPath     By = "xpath"
	ByCSS       By = "css selector"
	ByID        By = "id"
	ByName      By = "name"
	ByLinkText  By = "link text"
	ByTagName   By = "tag name"
	ByClassName By = "class name"
)

// Locator is the static definition of how to find an element. Locators are
// resolved lazily on every interaction, so a locator never goes stale.
type Locator struct {
	By    By
	Value string
}

// XPath returns an xpath locator.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// CSS returns a css selector locator.
func CSS(selector string) Locator { return Locator{By: ByCSS, Value: selector} }

// ID returns an element id locator.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

// Name returns an element name locator.
func Name(name string) Locator { return Locator{By: ByName, Value: name} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

// Backend creates drivers for the browser automation protocol in use.
type Backend interface {
	NewDriver(ctx context.Context, kind BrowserKind) (Driver, error)
}

// Driver is a live connection to one browser instance.
// Implementations report failures wrapped with the sentinel errors of this
// package (ErrNoSuchElement, ErrNoSuchAlert, ...).
type Driver interface {
	Get(url string) error
	Title() (string, error)
	CurrentURL() (string, error)
	Back() error
	Forward() error
	Refresh() error

	MaximizeWindow() error
	DeleteAllCookies() error
	Quit() error

	FindElement(loc Locator) (Element, error)
	FindElements(loc Locator) ([]Element, error)
	ExecuteScript(script string, args ...any) (any, error)

	WindowHandle() (string, error)
	WindowHandles() ([]string, error)
	SwitchWindow(handle string) error
	CloseWindow() error

	SwitchFrame(frame Element) error
	SwitchFrameByName(nameOrID string) error
	SwitchDefaultContent() error

	AlertText() (string, error)
	AcceptAlert() error
	DismissAlert() error
	SetAlertText(text string) error

	DoubleClick(el Element) error
	ContextClick(el Element) error
	MoveTo(el Element) error
	SendKeysWithActions(el Element, text string) error

	Screenshot() ([]byte, error)
}

// Element is a handle to a DOM element resolved by a Driver.
type Element interface {
	Click() error
	Clear() error
	SendKeys(text string) error
	IsSelected() (bool, error)
	IsEnabled() (bool, error)
	IsDisplayed() (bool, error)
	Text() (string, error)
	GetAttribute(name string) (string, error)
	TagName() (string, error)
	FindElements(loc Locator) ([]Element, error)
	Screenshot() ([]byte, error)
}
