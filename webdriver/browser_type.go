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

// Package webdriver implements the browser automation backend over the W3C
// WebDriver protocol.
package webdriver

import (
	"context"
	"fmt"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/log"
)

// DefaultURL is the WebDriver endpoint of a local Selenium server.
const DefaultURL = "http://localhost:4444/wd/hub"

// Options configures the browsers the backend starts.
type Options struct {
	// URL of the WebDriver server or grid.
	URL      string
	Headless bool
	// Args are extra command line arguments for the browser.
	Args []string
}

// BrowserType creates WebDriver sessions on a remote end.
type BrowserType struct {
	opts   Options
	logger *log.Logger

	newRemote func(selenium.Capabilities, string) (selenium.WebDriver, error)
}

var _ common.Backend = &BrowserType{}

// NewBrowserType returns a backend connecting to opts.URL.
func NewBrowserType(opts Options, logger *log.Logger) *BrowserType {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &BrowserType{opts: opts, logger: logger, newRemote: selenium.NewRemote}
}

// NewDriver implements common.Backend.
func (b *BrowserType) NewDriver(ctx context.Context, kind common.BrowserKind) (common.Driver, error) {
	caps, err := capabilities(kind, b.opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.logger.Debugf("webdriver", "new %s session on %s", kind, b.opts.URL)
	wd, err := b.newRemote(caps, b.opts.URL)
	if err != nil {
		return nil, errext.WithHint(
			fmt.Errorf("connecting to %s: %w", b.opts.URL, mapError(err)),
			"is a WebDriver server or Selenium grid listening on "+b.opts.URL+"? Set it with --webdriver-url")
	}
	return &Driver{wd: wd, logger: b.logger}, nil
}

func capabilities(kind common.BrowserKind, opts Options) (selenium.Capabilities, error) {
	args := append([]string(nil), opts.Args...)
	switch kind {
	case common.Chrome:
		if opts.Headless {
			args = append(args, "--headless=new")
		}
		caps := selenium.Capabilities{"browserName": "chrome"}
		caps.AddChrome(chrome.Capabilities{Args: args, W3C: true})
		return caps, nil
	case common.Firefox:
		if opts.Headless {
			args = append(args, "-headless")
		}
		caps := selenium.Capabilities{"browserName": "firefox"}
		caps.AddFirefox(firefox.Capabilities{Args: args})
		return caps, nil
	case common.Edge:
		if opts.Headless {
			args = append(args, "--headless=new")
		}
		return selenium.Capabilities{
			"browserName":    "MicrosoftEdge",
			"ms:edgeOptions": map[string]any{"args": args},
		}, nil
	default:
		return nil, &common.UnsupportedBrowserError{Label: kind.String()}
	}
}
