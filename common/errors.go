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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
)

// Sentinel errors reported by the runtime. Backends wrap the backend
// specific failures with the matching sentinel so that callers can use
// errors.Is regardless of the automation protocol.
var (
	ErrSessionClosed       = errors.New("browser session closed")
	ErrNoActiveSession     = errors.New("no active browser session")
	ErrNoSuchElement       = errors.New("no such element")
	ErrStaleElement        = errors.New("stale element reference")
	ErrNotInteractable     = errors.New("element not interactable")
	ErrClickIntercepted    = errors.New("element click intercepted")
	ErrNoSuchAlert         = errors.New("no such alert")
	ErrNoSuchWindow        = errors.New("no such window")
	ErrNoSuchFrame         = errors.New("no such frame")
	ErrNoSuchOption        = errors.New("no such option")
	ErrTimeout             = errors.New("timeout")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrUnsupportedBrowser  = errors.New("unsupported browser")
	ErrMissingArtifactSink = errors.New("no screenshot artifact store configured")
)

// UnsupportedBrowserError is returned by launch when the browser label does
// not name one of the supported browser kinds. No session is created.
type UnsupportedBrowserError struct {
	Label string
}

func (e *UnsupportedBrowserError) Error() string {
	return fmt.Sprintf("browser is not supported: %q", e.Label)
}

// Is makes errors.Is(err, ErrUnsupportedBrowser) match.
func (e *UnsupportedBrowserError) Is(target error) bool {
	return target == ErrUnsupportedBrowser
}

// Hint implements errext.HasHint.
func (e *UnsupportedBrowserError) Hint() string {
	return "supported browsers are " + strings.Join(browserLabels(), ", ")
}

// ExitCode implements errext.HasExitCode.
func (e *UnsupportedBrowserError) ExitCode() exitcodes.ExitCode {
	return exitcodes.SetupFailed
}

var (
	_ errext.HasHint     = &UnsupportedBrowserError{}
	_ errext.HasExitCode = &UnsupportedBrowserError{}
)

// TimeoutError is returned when a wait condition did not hold before the
// configured timeout elapsed.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	// LastErr is the last ignored error the condition reported, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("waiting for %s: timed out after %s", e.Condition, e.Timeout)
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// InvalidArgumentError is a programmer error, e.g. an unknown dropdown
// selection mode or a malformed index.
type InvalidArgumentError struct {
	Arg    string
	Value  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Arg, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidArgument) match.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// IndexOutOfRangeError is returned when a dropdown index does not address
// one of its options.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("option index %d out of range [0, %d)", e.Index, e.Len)
}

// Is makes errors.Is(err, ErrIndexOutOfRange) match.
func (e *IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// ElementInteractionError wraps a failure reported by the automation
// backend while interacting with an element.
type ElementInteractionError struct {
	Action  string
	Locator Locator
	Err     error
}

func (e *ElementInteractionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Locator, e.Err)
}

func (e *ElementInteractionError) Unwrap() error {
	return e.Err
}

func interactionError(action string, loc Locator, err error) error {
	if err == nil {
		return nil
	}
	var ie *ElementInteractionError
	if errors.As(err, &ie) {
		return err
	}
	if errors.Is(err, ErrSessionClosed) {
		return err
	}
	return &ElementInteractionError{Action: action, Locator: loc, Err: err}
}

// IsRetryable reports whether a test that failed with err may be executed
// again. Wait timeouts and element interaction failures are transient;
// setup, programmer and closed session errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnsupportedBrowser),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, ErrMissingArtifactSink):
		return false
	}
	var hasExitCode errext.HasExitCode
	if errors.As(err, &hasExitCode) {
		return false
	}
	return true
}
