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
	"time"
)

type ctxKey int

const (
	ctxKeyHooks ctxKey = iota
	ctxKeySlowMo
	ctxKeyTestName
)

func WithHooks(ctx context.Context, hooks *Hooks) context.Context {
	return context.WithValue(ctx, ctxKeyHooks, hooks)
}

func GetHooks(ctx context.Context) *Hooks {
	v := ctx.Value(ctxKeyHooks)
	if v == nil {
		return nil
	}
	return v.(*Hooks) //nolint:forcetypeassert
}

// WithSlowMo sets the delay applied after every element interaction.
func WithSlowMo(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, ctxKeySlowMo, d)
}

// GetSlowMo returns the slow-motion delay attached to the context.
func GetSlowMo(ctx context.Context) time.Duration {
	d, _ := ctx.Value(ctxKeySlowMo).(time.Duration)
	return d
}

// WithTestName attaches the running test name to the context.
func WithTestName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyTestName, name)
}

// GetTestName returns the test name attached to the context.
func GetTestName(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTestName).(string)
	return v
}
