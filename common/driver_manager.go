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
	"sync"

	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
	"github.com/liuxd6825/webcheck/log"
)

// DriverManager owns the active browser session of one execution context.
// It is safe for concurrent use, but one manager is meant to serve a single
// test invocation at a time; parallel invocations each get their own.
type DriverManager struct {
	backend Backend
	logger  *log.Logger

	mu     sync.Mutex
	active *Session
}

// NewDriverManager returns a manager creating sessions through backend.
func NewDriverManager(backend Backend, logger *log.Logger) *DriverManager {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &DriverManager{backend: backend, logger: logger}
}

// Launch starts a browser for the case-insensitive label (chrome, firefox or
// edge), maximizes its window, clears all cookies and makes it the active
// session. An unsupported label fails with *UnsupportedBrowserError before
// anything is created. A session that is already active is torn down first.
func (m *DriverManager) Launch(ctx context.Context, label string) (*Session, error) {
	kind, err := ParseBrowserKind(label)
	if err != nil {
		return nil, err
	}
	if err := m.Teardown(); err != nil {
		m.logger.Warnf(categoryDriver, "tearing down previous session: %v", err)
	}

	m.logger.Debugf(categoryDriver, "launching %s", kind)
	d, err := m.backend.NewDriver(ctx, kind)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(
			fmt.Errorf("launching %s: %w", kind, err), exitcodes.SetupFailed)
	}

	s := newSession(kind, d)
	if err := m.prepare(s); err != nil {
		if qerr := d.Quit(); qerr != nil {
			m.logger.Warnf(categoryDriver, "quitting %s after failed setup: %v", kind, qerr)
		}
		return nil, errext.WithExitCodeIfNone(err, exitcodes.SetupFailed)
	}

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()

	m.logger.Infof(categoryDriver, "launched %s session %s", kind, s.ID())
	return s, nil
}

func (m *DriverManager) prepare(s *Session) error {
	d := s.driverImp
	if err := d.MaximizeWindow(); err != nil {
		return fmt.Errorf("maximizing %s window: %w", s.kind, err)
	}
	s.setWindowState(WindowMaximized)
	if err := d.DeleteAllCookies(); err != nil {
		return fmt.Errorf("deleting %s cookies: %w", s.kind, err)
	}
	return nil
}

// Teardown quits the active session, if any. Calling it without an active
// session is a no-op.
func (m *DriverManager) Teardown() error {
	m.mu.Lock()
	s := m.active
	m.active = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	m.logger.Debugf(categoryDriver, "tearing down %s session %s", s.kind, s.ID())
	if err := s.close(); err != nil {
		return fmt.Errorf("quitting %s session %s: %w", s.kind, s.ID(), err)
	}
	return nil
}

// Active returns the active session or nil.
func (m *DriverManager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetActive replaces the active session without closing the previous one.
// Passing nil clears it.
func (m *DriverManager) SetActive(s *Session) {
	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
}
