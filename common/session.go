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
	"sync"
	"time"

	"github.com/google/uuid"
)

// WindowState is the state the session window was left in at launch.
type WindowState string

// Window states.
const (
	WindowNormal    WindowState = "normal"
	WindowMaximized WindowState = "maximized"
)

// Session is the handle to one live browser instance. It is owned by the
// execution context that launched it. Once closed, every operation on it
// fails with ErrSessionClosed and it is never reused.
type Session struct {
	id        string
	kind      BrowserKind
	launched  time.Time
	driverImp Driver

	mu          sync.RWMutex
	closed      bool
	windowState WindowState
}

func newSession(kind BrowserKind, d Driver) *Session {
	return &Session{
		id:          uuid.NewString(),
		kind:        kind,
		launched:    time.Now(),
		driverImp:   d,
		windowState: WindowNormal,
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Kind returns the browser kind of the session.
func (s *Session) Kind() BrowserKind { return s.kind }

// LaunchedAt returns when the session was created.
func (s *Session) LaunchedAt() time.Time { return s.launched }

// WindowState returns the window state recorded at launch.
func (s *Session) WindowState() WindowState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windowState
}

func (s *Session) setWindowState(ws WindowState) {
	s.mu.Lock()
	s.windowState = ws
	s.mu.Unlock()
}

// Closed reports whether the session was torn down.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Driver returns the underlying driver, or ErrSessionClosed once the
// session was torn down.
func (s *Session) Driver() (Driver, error) {
	if s == nil {
		return nil, ErrNoActiveSession
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.driverImp, nil
}

// close quits the browser. It is safe to call more than once; only the
// first call reaches the driver.
func (s *Session) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.driverImp.Quit()
}
