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
	"sort"

	"github.com/liuxd6825/webcheck/log"
)

// WindowManager enumerates and switches between windows, frames and alerts
// of a session.
type WindowManager struct {
	session *Session
	wait    *WaitEngine
	logger  *log.Logger
}

// NewWindowManager returns the window manager of a session.
func NewWindowManager(s *Session, wait *WaitEngine, logger *log.Logger) *WindowManager {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &WindowManager{session: s, wait: wait, logger: logger}
}

// CurrentWindowHandle returns the handle of the focused window.
func (w *WindowManager) CurrentWindowHandle() (string, error) {
	d, err := w.session.Driver()
	if err != nil {
		return "", err
	}
	return d.WindowHandle()
}

// AllWindowHandles returns the handles of every open window, in no
// particular order.
func (w *WindowManager) AllWindowHandles() ([]string, error) {
	d, err := w.session.Driver()
	if err != nil {
		return nil, err
	}
	return d.WindowHandles()
}

// SwitchToWindow focuses the window with the given handle.
func (w *WindowManager) SwitchToWindow(handle string) error {
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	if err := d.SwitchWindow(handle); err != nil {
		return fmt.Errorf("switching to window %q: %w", handle, err)
	}
	w.logger.Debugf(categoryWindows, "switched to window %q", handle)
	return nil
}

// SwitchToNewWindow focuses the first window whose handle differs from the
// current one and returns its handle. With more than two windows open the
// chosen window is any of the non-current ones; use SwitchToWindow when the
// target must be deterministic. ErrNoSuchWindow is returned when no other
// window is open.
func (w *WindowManager) SwitchToNewWindow() (string, error) {
	d, err := w.session.Driver()
	if err != nil {
		return "", err
	}
	current, err := d.WindowHandle()
	if err != nil {
		return "", err
	}
	handles, err := d.WindowHandles()
	if err != nil {
		return "", err
	}
	for _, h := range handles {
		if h == current {
			continue
		}
		if err := d.SwitchWindow(h); err != nil {
			return "", fmt.Errorf("switching to window %q: %w", h, err)
		}
		w.logger.Debugf(categoryWindows, "switched from window %q to new window %q", current, h)
		return h, nil
	}
	return "", fmt.Errorf("no window other than %q: %w", current, ErrNoSuchWindow)
}

// SwitchToWindowByTitle focuses the first window whose title equals title,
// ignoring case, and returns its handle. The current window is checked
// first, then the others in handle order, so repeated calls end on the same
// window. When nothing matches, ErrNoSuchWindow is returned and the driver
// stays on the last window it visited.
func (w *WindowManager) SwitchToWindowByTitle(title string) (string, error) {
	d, err := w.session.Driver()
	if err != nil {
		return "", err
	}
	current, err := d.WindowHandle()
	if err != nil {
		return "", err
	}
	if t, err := d.Title(); err != nil {
		return "", err
	} else if equalFoldTrim(t, title) {
		return current, nil
	}

	handles, err := d.WindowHandles()
	if err != nil {
		return "", err
	}
	sorted := append([]string(nil), handles...)
	sort.Strings(sorted)
	for _, h := range sorted {
		if h == current {
			continue
		}
		if err := d.SwitchWindow(h); err != nil {
			return "", fmt.Errorf("switching to window %q: %w", h, err)
		}
		t, err := d.Title()
		if err != nil {
			return "", err
		}
		if equalFoldTrim(t, title) {
			w.logger.Debugf(categoryWindows, "switched to window %q titled %q", h, t)
			return h, nil
		}
	}
	return "", fmt.Errorf("window titled %q: %w", title, ErrNoSuchWindow)
}

// CloseAllOtherWindows closes every window except the one focused before the
// call and focuses it again.
func (w *WindowManager) CloseAllOtherWindows() error {
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	main, err := d.WindowHandle()
	if err != nil {
		return err
	}
	handles, err := d.WindowHandles()
	if err != nil {
		return err
	}
	for _, h := range handles {
		if h == main {
			continue
		}
		if err := d.SwitchWindow(h); err != nil {
			return fmt.Errorf("switching to window %q: %w", h, err)
		}
		if err := d.CloseWindow(); err != nil {
			return fmt.Errorf("closing window %q: %w", h, err)
		}
		w.logger.Debugf(categoryWindows, "closed window %q", h)
	}
	if err := d.SwitchWindow(main); err != nil {
		return fmt.Errorf("switching back to main window %q: %w", main, err)
	}
	return nil
}

// SwitchToFrame changes the document context to the frame element addressed
// by loc. There is no implicit frame stack: callers return with
// SwitchToDefaultContent.
func (w *WindowManager) SwitchToFrame(ctx context.Context, loc Locator) error {
	el, err := w.wait.WaitForAny(ctx, loc)
	if err != nil {
		return fmt.Errorf("switching to frame %s: %w", loc, err)
	}
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	if err := d.SwitchFrame(el[0]); err != nil {
		return fmt.Errorf("switching to frame %s: %w", loc, err)
	}
	w.logger.Debugf(categoryWindows, "switched to frame %s", loc)
	return nil
}

// SwitchToFrameByName changes the document context to the frame with the
// given name or id.
func (w *WindowManager) SwitchToFrameByName(nameOrID string) error {
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	if err := d.SwitchFrameByName(nameOrID); err != nil {
		return fmt.Errorf("switching to frame %q: %w", nameOrID, err)
	}
	w.logger.Debugf(categoryWindows, "switched to frame %q", nameOrID)
	return nil
}

// SwitchToDefaultContent leaves any frame and returns to the top document.
func (w *WindowManager) SwitchToDefaultContent() error {
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	return d.SwitchDefaultContent()
}

// AlertText returns the message of the open alert.
func (w *WindowManager) AlertText() (string, error) {
	d, err := w.session.Driver()
	if err != nil {
		return "", err
	}
	return d.AlertText()
}

// AcceptAlert accepts the open alert.
func (w *WindowManager) AcceptAlert() error {
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	return d.AcceptAlert()
}

// DismissAlert dismisses the open alert.
func (w *WindowManager) DismissAlert() error {
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	return d.DismissAlert()
}

// SendTextToAlert types text into the open prompt.
func (w *WindowManager) SendTextToAlert(text string) error {
	d, err := w.session.Driver()
	if err != nil {
		return err
	}
	return d.SetAlertText(text)
}
