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
	"sync"
	"time"
)

// HookID names a point of an interaction where a hook may run.
type HookID int

// Hook points.
const (
	// HookApplySlowMo runs after every navigation and element interaction.
	HookApplySlowMo HookID = iota
)

// Hook is a function run at a hook point. It must return once ctx is done.
type Hook func(context.Context)

// Hooks holds the functions run at fixed points of an interaction. A Hooks
// value is shared by every test of a run and is safe for concurrent use.
type Hooks struct {
	mu    sync.RWMutex
	hooks map[HookID]Hook
}

// NewHooks returns hooks with the default slow-motion delay registered.
func NewHooks() *Hooks {
	return &Hooks{
		hooks: map[HookID]Hook{
			HookApplySlowMo: sleepSlowMo,
		},
	}
}

// GetHook returns the hook registered for id, or nil.
func (h *Hooks) GetHook(id HookID) Hook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hooks[id]
}

// RegisterHook replaces the hook registered for id. A nil hook disables
// the hook point.
func (h *Hooks) RegisterHook(id HookID, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if hook == nil {
		delete(h.hooks, id)
		return
	}
	h.hooks[id] = hook
}

// Run calls the hook registered for id, if any.
func (h *Hooks) Run(ctx context.Context, id HookID) {
	if h == nil {
		return
	}
	if hook := h.GetHook(id); hook != nil {
		hook(ctx)
	}
}

func applySlowMo(ctx context.Context) {
	GetHooks(ctx).Run(ctx, HookApplySlowMo)
}

// sleepSlowMo waits for the slow-motion delay carried by ctx.
func sleepSlowMo(ctx context.Context) {
	d := GetSlowMo(ctx)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
