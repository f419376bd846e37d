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

package common_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/testutils/browsertest"
)

func withWindows(titles map[string]string) browsertest.Option {
	return browsertest.WithSetup(func(d *browsertest.Driver) {
		for _, h := range []string{"w1", "w2", "w3"} {
			if title, ok := titles[h]; ok {
				d.AddWindow(h, title)
			}
		}
	})
}

func TestWindowManagerHandles(t *testing.T) {
	t.Parallel()

	bt := browsertest.New(t, withWindows(map[string]string{"w1": "Docs", "w2": "Report"}))
	wm := bt.Page.Windows

	current, err := wm.CurrentWindowHandle()
	require.NoError(t, err)
	assert.Equal(t, "main", current)

	handles, err := wm.AllWindowHandles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "w1", "w2"}, handles)
}

func TestWindowManagerSwitchToNewWindow(t *testing.T) {
	t.Parallel()

	t.Run("two windows", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, withWindows(map[string]string{"w1": "Popup"}))
		h, err := bt.Page.Windows.SwitchToNewWindow()
		require.NoError(t, err)
		assert.Equal(t, "w1", h)
		assert.Equal(t, "w1", bt.Driver.CurrentHandle())
	})
	t.Run("any non current window", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, withWindows(map[string]string{"w1": "A", "w2": "B"}))
		h, err := bt.Page.Windows.SwitchToNewWindow()
		require.NoError(t, err)
		assert.Contains(t, []string{"w1", "w2"}, h)
		assert.NotEqual(t, "main", bt.Driver.CurrentHandle())
	})
	t.Run("single window", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t)
		_, err := bt.Page.Windows.SwitchToNewWindow()
		require.ErrorIs(t, err, common.ErrNoSuchWindow)
		assert.Equal(t, "main", bt.Driver.CurrentHandle())
	})
}

func TestWindowManagerSwitchToWindowByTitle(t *testing.T) {
	t.Parallel()

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, withWindows(map[string]string{"w1": "Docs", "w2": "Report", "w3": "report"}))
		first, err := bt.Page.Windows.SwitchToWindowByTitle("Report")
		require.NoError(t, err)
		second, err := bt.Page.Windows.SwitchToWindowByTitle("Report")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, first, bt.Driver.CurrentHandle())
		assert.Equal(t, "w2", first)
	})
	t.Run("case insensitive", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, withWindows(map[string]string{"w1": "Cookie Policy"}))
		h, err := bt.Page.Windows.SwitchToWindowByTitle("cookie policy")
		require.NoError(t, err)
		assert.Equal(t, "w1", h)
	})
	t.Run("no match leaves last visited window", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, withWindows(map[string]string{"w1": "Docs", "w2": "Help"}))
		_, err := bt.Page.Windows.SwitchToWindowByTitle("Report")
		require.ErrorIs(t, err, common.ErrNoSuchWindow)
		assert.Equal(t, "w2", bt.Driver.CurrentHandle())
	})
}

func TestWindowManagerCloseAllOtherWindows(t *testing.T) {
	t.Parallel()

	bt := browsertest.New(t, withWindows(map[string]string{"w1": "A", "w2": "B", "w3": "C"}))
	require.NoError(t, bt.Page.Windows.SwitchToWindow("w2"))
	require.NoError(t, bt.Page.Windows.CloseAllOtherWindows())

	assert.Equal(t, []string{"w2"}, bt.Driver.OpenWindows())
	assert.Equal(t, "w2", bt.Driver.CurrentHandle())

	require.ErrorIs(t, bt.Page.Windows.SwitchToWindow("main"), common.ErrNoSuchWindow)
}

func TestWindowManagerFrames(t *testing.T) {
	t.Parallel()

	frame := common.ID("consent")
	accept := common.ID("accept")
	inner := browsertest.NewElement("button", accept)
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", browsertest.NewElement("iframe", frame).WithAttr("name", "consent-frame").WithFrame(inner))
	}))
	wm := bt.Page.Windows

	present, err := bt.Page.Actions.IsPresent(bt.Ctx, accept)
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, wm.SwitchToFrame(bt.Ctx, frame))
	assert.True(t, bt.Driver.InFrame())
	require.NoError(t, bt.Page.Actions.Click(bt.Ctx, accept))
	assert.Equal(t, 1, inner.Clicks())

	// no implicit stack: the frame stays until explicitly left
	present, err = bt.Page.Actions.IsPresent(bt.Ctx, frame)
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, wm.SwitchToDefaultContent())
	assert.False(t, bt.Driver.InFrame())

	require.NoError(t, wm.SwitchToFrameByName("consent-frame"))
	assert.True(t, bt.Driver.InFrame())
	require.NoError(t, wm.SwitchToDefaultContent())

	require.ErrorIs(t, wm.SwitchToFrameByName("nope"), common.ErrNoSuchFrame)
}

func TestWindowManagerAlerts(t *testing.T) {
	t.Parallel()

	bt := browsertest.New(t)
	wm := bt.Page.Windows

	require.ErrorIs(t, wm.AcceptAlert(), common.ErrNoSuchAlert)
	_, err := wm.AlertText()
	require.ErrorIs(t, err, common.ErrNoSuchAlert)

	bt.Driver.OpenAlert("Your name?", 0)
	require.NoError(t, wm.SendTextToAlert("webcheck"))
	assert.Equal(t, "webcheck", bt.Driver.AlertInput())
	require.NoError(t, wm.AcceptAlert())

	bt.Driver.OpenAlert("Leave?", 0)
	require.NoError(t, wm.DismissAlert())
	require.ErrorIs(t, wm.DismissAlert(), common.ErrNoSuchAlert)
}
