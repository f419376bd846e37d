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

// Package report records per-test log entries and persists them as a
// browsable report.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLevel is returned when parsing a level name outside of
// info, pass, fail and warn.
var ErrUnknownLevel = errors.New("unknown report level")

// Level classifies a report line.
type Level int

// Report levels.
const (
	Info Level = iota + 1
	Pass
	Fail
	Warn
)

//nolint:gochecknoglobals
var levelNames = map[Level]string{
	Info: "info",
	Pass: "pass",
	Fail: "fail",
	Warn: "warn",
}

// ParseLevel returns the level named s, ignoring case.
func ParseLevel(s string) (Level, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == n {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownLevel)
}

func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%d: %w", int(l), ErrUnknownLevel)
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Status is the terminal state of a report entry.
type Status int

// Entry statuses. Every entry starts Pending.
const (
	Pending Status = iota
	Passed
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
