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

	"github.com/liuxd6825/webcheck/log"
)

// PageOptions configures a Page.
type PageOptions struct {
	Wait      WaitConfiguration
	AppURL    string
	Artifacts ArtifactStore
	Logger    *log.Logger
}

// Page bundles the runtime components operating on one session together
// with the navigation helpers tests use directly.
type Page struct {
	Session     *Session
	Wait        *WaitEngine
	Actions     *ElementActions
	Windows     *WindowManager
	Screenshots *Screenshotter

	appURL string
	logger *log.Logger
}

// NewPage returns a page driving the session s.
func NewPage(s *Session, opts PageOptions) *Page {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNullLogger()
	}
	w := NewWaitEngine(s, opts.Wait, logger)
	return &Page{
		Session:     s,
		Wait:        w,
		Actions:     NewElementActions(s, w, logger),
		Windows:     NewWindowManager(s, w, logger),
		Screenshots: NewScreenshotter(s, w, opts.Artifacts, logger),
		appURL:      opts.AppURL,
		logger:      logger,
	}
}

// Open navigates the focused window to url.
func (p *Page) Open(ctx context.Context, url string) error {
	d, err := p.Session.Driver()
	if err != nil {
		return err
	}
	p.logger.Debugf(categoryPage, "opening %s", url)
	if err := d.Get(url); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	applySlowMo(ctx)
	return nil
}

// LaunchApplication opens the configured application URL.
func (p *Page) LaunchApplication(ctx context.Context) error {
	if p.appURL == "" {
		return &InvalidArgumentError{Arg: "application url", Reason: "not configured"}
	}
	return p.Open(ctx, p.appURL)
}

// Back navigates one step back in history.
func (p *Page) Back() error {
	return p.navigate("back", Driver.Back)
}

// Forward navigates one step forward in history.
func (p *Page) Forward() error {
	return p.navigate("forward", Driver.Forward)
}

// Refresh reloads the current page.
func (p *Page) Refresh() error {
	return p.navigate("refresh", Driver.Refresh)
}

func (p *Page) navigate(what string, fn func(Driver) error) error {
	d, err := p.Session.Driver()
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return fmt.Errorf("navigating %s: %w", what, err)
	}
	return nil
}

// Title returns the title of the focused window.
func (p *Page) Title() (string, error) {
	d, err := p.Session.Driver()
	if err != nil {
		return "", err
	}
	return d.Title()
}

// CurrentURL returns the URL of the focused window.
func (p *Page) CurrentURL() (string, error) {
	d, err := p.Session.Driver()
	if err != nil {
		return "", err
	}
	return d.CurrentURL()
}

// ScrollToTop scrolls the document to its top.
func (p *Page) ScrollToTop() error {
	return p.script(scrollToTopScript)
}

// ScrollToBottom scrolls the document to its bottom.
func (p *Page) ScrollToBottom() error {
	return p.script(scrollToBottomScript)
}

func (p *Page) script(s string) error {
	d, err := p.Session.Driver()
	if err != nil {
		return err
	}
	_, err = d.ExecuteScript(s)
	return err
}

// ScreenshotOnFailure captures the focused window. Missing artifact stores
// are not an error here; an empty path is returned instead.
func (p *Page) ScreenshotOnFailure(ctx context.Context, name string) (string, error) {
	path, err := p.Screenshots.Window(ctx, name)
	if errors.Is(err, ErrMissingArtifactSink) {
		return "", nil
	}
	return path, err
}
