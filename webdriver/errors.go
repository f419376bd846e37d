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
	"errors"
	"fmt"

	"github.com/tebeka/selenium"

	"github.com/liuxd6825/webcheck/common"
)

// Error is a failure reported by the remote end. It unwraps to the matching
// sentinel error of the common package, if any.
type Error struct {
	Code    string
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

//nolint:gochecknoglobals
var sentinels = map[string]error{
	"no such element":           common.ErrNoSuchElement,
	"stale element reference":   common.ErrStaleElement,
	"element not interactable":  common.ErrNotInteractable,
	"element not visible":       common.ErrNotInteractable,
	"invalid element state":     common.ErrNotInteractable,
	"element click intercepted": common.ErrClickIntercepted,
	"no such alert":             common.ErrNoSuchAlert,
	"no alert open":             common.ErrNoSuchAlert,
	"no such window":            common.ErrNoSuchWindow,
	"no such frame":             common.ErrNoSuchFrame,
	"timeout":                   common.ErrTimeout,
	"script timeout":            common.ErrTimeout,
	"invalid argument":          common.ErrInvalidArgument,
	"invalid session id":        common.ErrSessionClosed,
}

// mapError translates remote end errors to the common error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se *selenium.Error
	if !errors.As(err, &se) {
		return err
	}
	return &Error{Code: se.Err, Message: se.Message, err: sentinels[se.Err]}
}
