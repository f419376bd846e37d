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

// Package errext contains extensions for normal Go errors that are used in webcheck.
package errext

import "errors"

// HasHint is an error carrying a human-readable suggestion on how to fix it.
// The CLI prints hints next to the error message.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches hint to err. A nil err stays nil. When err already
// carries a hint, both are kept as "hint (previous hint)".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	var prev HasHint
	if errors.As(err, &prev) {
		hint += " (" + prev.Hint() + ")"
	}
	return &hintError{err: err, hint: hint}
}

type hintError struct {
	err  error
	hint string
}

var _ HasHint = &hintError{}

func (e *hintError) Error() string { return e.err.Error() }

func (e *hintError) Unwrap() error { return e.err }

func (e *hintError) Hint() string { return e.hint }
