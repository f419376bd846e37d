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
	"time"

	"github.com/liuxd6825/webcheck/log"
)

// Condition is evaluated by the wait engine on every poll. Returning an
// ignorable error (no such element, stale element, no such alert) counts as
// "not yet"; any other error aborts the wait.
type Condition func(d Driver) (bool, error)

// WaitEngine implements explicit, polling based waits.
type WaitEngine struct {
	session *Session
	config  WaitConfiguration
	logger  *log.Logger
}

// NewWaitEngine returns a wait engine bound to a session.
func NewWaitEngine(s *Session, config WaitConfiguration, logger *log.Logger) *WaitEngine {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &WaitEngine{session: s, config: config, logger: logger}
}

// Config returns the shared wait configuration.
func (w *WaitEngine) Config() WaitConfiguration {
	return w.config
}

func isIgnorableWaitError(err error) bool {
	return errors.Is(err, ErrNoSuchElement) ||
		errors.Is(err, ErrStaleElement) ||
		errors.Is(err, ErrNoSuchAlert)
}

// Until evaluates cond immediately and then once per poll interval until it
// holds, the timeout elapses or ctx is done. A canceled ctx returns ctx.Err()
// without polling again.
func (w *WaitEngine) Until(ctx context.Context, desc string, cond Condition, opts ...WaitOption) error {
	o := waitOptions{timeout: w.config.Timeout(), pollInterval: w.config.PollInterval()}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return err
		}
	}

	w.logger.Debugf(categoryWait, "waiting for %s timeout:%s poll:%s", desc, o.timeout, o.pollInterval)

	var (
		start    = time.Now()
		deadline = start.Add(o.timeout)
		lastErr  error
		timer    *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := w.session.Driver()
		if err != nil {
			return err
		}
		ok, err := cond(d)
		switch {
		case err != nil && !isIgnorableWaitError(err):
			return err
		case err != nil:
			lastErr = err
		case ok:
			w.logger.Debugf(categoryWait, "%s after %s", desc, time.Since(start))
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			w.logger.Debugf(categoryWait, "timed out waiting for %s", desc)
			return &TimeoutError{Condition: desc, Timeout: o.timeout, LastErr: lastErr}
		}
		sleep := o.pollInterval
		if sleep > remaining {
			sleep = remaining
		}
		if timer == nil {
			timer = time.NewTimer(sleep)
		} else {
			timer.Reset(sleep)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// WaitForVisible blocks until the element addressed by loc is displayed.
func (w *WaitEngine) WaitForVisible(ctx context.Context, loc Locator, opts ...WaitOption) (Element, error) {
	var found Element
	err := w.Until(ctx, fmt.Sprintf("%s to be visible", loc), func(d Driver) (bool, error) {
		el, err := d.FindElement(loc)
		if err != nil {
			return false, err
		}
		visible, err := el.IsDisplayed()
		if err != nil || !visible {
			return false, err
		}
		found = el
		return true, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// WaitForInvisible blocks until the element addressed by loc is either absent
// or hidden.
func (w *WaitEngine) WaitForInvisible(ctx context.Context, loc Locator, opts ...WaitOption) error {
	return w.Until(ctx, fmt.Sprintf("%s to be invisible", loc), func(d Driver) (bool, error) {
		el, err := d.FindElement(loc)
		if errors.Is(err, ErrNoSuchElement) || errors.Is(err, ErrStaleElement) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		visible, err := el.IsDisplayed()
		if errors.Is(err, ErrStaleElement) {
			return true, nil
		}
		return !visible, err
	}, opts...)
}

// WaitForClickable blocks until the element addressed by loc is displayed
// and enabled.
func (w *WaitEngine) WaitForClickable(ctx context.Context, loc Locator, opts ...WaitOption) (Element, error) {
	var found Element
	err := w.Until(ctx, fmt.Sprintf("%s to be clickable", loc), func(d Driver) (bool, error) {
		el, err := d.FindElement(loc)
		if err != nil {
			return false, err
		}
		if visible, err := el.IsDisplayed(); err != nil || !visible {
			return false, err
		}
		enabled, err := el.IsEnabled()
		if err != nil || !enabled {
			return false, err
		}
		found = el
		return true, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// WaitForAny blocks until at least one element matches loc and returns all
// matches.
func (w *WaitEngine) WaitForAny(ctx context.Context, loc Locator, opts ...WaitOption) ([]Element, error) {
	var found []Element
	err := w.Until(ctx, fmt.Sprintf("any element matching %s", loc), func(d Driver) (bool, error) {
		els, err := d.FindElements(loc)
		if err != nil {
			return false, err
		}
		found = els
		return len(els) > 0, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// WaitForAlert blocks until a modal alert is present.
func (w *WaitEngine) WaitForAlert(ctx context.Context, opts ...WaitOption) error {
	return w.Until(ctx, "alert to be present", func(d Driver) (bool, error) {
		if _, err := d.AlertText(); err != nil {
			return false, err
		}
		return true, nil
	}, opts...)
}

// WaitForTitle blocks until the page title equals title, ignoring case.
func (w *WaitEngine) WaitForTitle(ctx context.Context, title string, opts ...WaitOption) error {
	return w.Until(ctx, fmt.Sprintf("title %q", title), func(d Driver) (bool, error) {
		t, err := d.Title()
		if err != nil {
			return false, err
		}
		return equalFoldTrim(t, title), nil
	}, opts...)
}

// Sleep suspends unconditionally for d. It is never retried and only ends
// early when ctx is done, in which case ctx.Err() is returned.
func (w *WaitEngine) Sleep(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return &InvalidArgumentError{Arg: "duration", Value: d.String(), Reason: "must not be negative"}
	}
	w.logger.Debugf(categoryWait, "sleeping %s", d)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
