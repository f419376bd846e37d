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
	"fmt"
	"time"
)

// WaitConfiguration holds the timeout and poll interval used by explicit
// waits. It is immutable once created and shared by all waits of one
// execution context.
type WaitConfiguration struct {
	timeout      time.Duration
	pollInterval time.Duration
}

// NewWaitConfiguration validates and returns a wait configuration.
// Poll intervals below MinPollInterval are raised to it.
func NewWaitConfiguration(timeout, pollInterval time.Duration) (WaitConfiguration, error) {
	if timeout < 0 {
		return WaitConfiguration{}, &InvalidArgumentError{
			Arg: "timeout", Value: timeout.String(), Reason: "must not be negative",
		}
	}
	if pollInterval < 0 {
		return WaitConfiguration{}, &InvalidArgumentError{
			Arg: "poll interval", Value: pollInterval.String(), Reason: "must not be negative",
		}
	}
	if pollInterval < MinPollInterval {
		pollInterval = MinPollInterval
	}
	return WaitConfiguration{timeout: timeout, pollInterval: pollInterval}, nil
}

// DefaultWaitConfiguration returns the configuration used when none is set.
func DefaultWaitConfiguration() WaitConfiguration {
	return WaitConfiguration{timeout: DefaultTimeout, pollInterval: DefaultPollInterval}
}

// Timeout returns the wait timeout.
func (c WaitConfiguration) Timeout() time.Duration {
	if c.timeout == 0 && c.pollInterval == 0 {
		return DefaultTimeout
	}
	return c.timeout
}

// PollInterval returns the interval between two condition evaluations.
func (c WaitConfiguration) PollInterval() time.Duration {
	if c.pollInterval == 0 {
		return DefaultPollInterval
	}
	return c.pollInterval
}

func (c WaitConfiguration) String() string {
	return fmt.Sprintf("timeout=%s poll=%s", c.Timeout(), c.PollInterval())
}

// WaitOption overrides the shared wait configuration for a single call.
type WaitOption func(*waitOptions) error

type waitOptions struct {
	timeout      time.Duration
	pollInterval time.Duration
}

// WithinTimeout overrides the timeout of a single wait.
func WithinTimeout(d time.Duration) WaitOption {
	return func(o *waitOptions) error {
		if d < 0 {
			return &InvalidArgumentError{Arg: "timeout", Value: d.String(), Reason: "must not be negative"}
		}
		o.timeout = d
		return nil
	}
}

// WithPollInterval overrides the poll interval of a single wait.
func WithPollInterval(d time.Duration) WaitOption {
	return func(o *waitOptions) error {
		if d < 0 {
			return &InvalidArgumentError{Arg: "poll interval", Value: d.String(), Reason: "must not be negative"}
		}
		if d < MinPollInterval {
			d = MinPollInterval
		}
		o.pollInterval = d
		return nil
	}
}
