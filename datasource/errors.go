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

// Package datasource reads test data, configuration and documents.
package datasource

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/liuxd6825/webcheck/errext/exitcodes"
)

// Sentinel errors matched by *Error.
var (
	ErrNotFound    = errors.New("not found")
	ErrIO          = errors.New("i/o failure")
	ErrNoSuchSheet = errors.New("no such sheet")
)

// Error is returned by every reader of this package. errors.Is(err,
// ErrNotFound) tells a missing file apart from any other failure, which
// matches ErrIO.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNotFound or ErrIO, according to the
// underlying error.
func (e *Error) Is(target error) bool {
	notFound := errors.Is(e.Err, fs.ErrNotExist) || errors.Is(e.Err, ErrNoSuchSheet)
	switch target {
	case ErrNotFound:
		return notFound
	case ErrIO:
		return !notFound
	}
	return false
}

// ExitCode implements errext.HasExitCode.
func (e *Error) ExitCode() exitcodes.ExitCode {
	return exitcodes.InvalidConfig
}

func newError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}
