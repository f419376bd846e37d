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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/testutils/browsertest"
)

func TestWaitForVisible(t *testing.T) {
	t.Parallel()

	t.Run("returns once visible", func(t *testing.T) {
		t.Parallel()

		banner := common.ID("banner")
		bt := browsertest.New(t,
			browsertest.WithWait(5*time.Second, 20*time.Millisecond),
			browsertest.WithSetup(func(d *browsertest.Driver) {
				d.AddElements("main", browsertest.NewElement("div", banner).VisibleAfter(150*time.Millisecond))
			}),
		)

		start := time.Now()
		el, err := bt.Page.Wait.WaitForVisible(bt.Ctx, banner)
		elapsed := time.Since(start)
		require.NoError(t, err)
		require.NotNil(t, el)
		assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
		assert.Less(t, elapsed, 2*time.Second)
	})
	t.Run("times out", func(t *testing.T) {
		t.Parallel()

		banner := common.ID("banner")
		bt := browsertest.New(t,
			browsertest.WithWait(200*time.Millisecond, 20*time.Millisecond),
			browsertest.WithSetup(func(d *browsertest.Driver) {
				d.AddElements("main", browsertest.NewElement("div", banner).Hidden())
			}),
		)

		start := time.Now()
		_, err := bt.Page.Wait.WaitForVisible(bt.Ctx, banner)
		elapsed := time.Since(start)
		require.ErrorIs(t, err, common.ErrTimeout)

		var te *common.TimeoutError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, 200*time.Millisecond, te.Timeout)
		assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
		assert.Less(t, elapsed, time.Second)
		assert.True(t, common.IsRetryable(err))
	})
	t.Run("absent element times out with last error", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, browsertest.WithWait(50*time.Millisecond, 10*time.Millisecond))
		_, err := bt.Page.Wait.WaitForVisible(bt.Ctx, common.ID("missing"))
		require.ErrorIs(t, err, common.ErrTimeout)
		require.ErrorIs(t, err, common.ErrNoSuchElement)
	})
	t.Run("per call timeout", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, browsertest.WithWait(time.Minute, 10*time.Millisecond))
		start := time.Now()
		_, err := bt.Page.Wait.WaitForVisible(bt.Ctx, common.ID("missing"), common.WithinTimeout(50*time.Millisecond))
		require.ErrorIs(t, err, common.ErrTimeout)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestWaitUntil(t *testing.T) {
	t.Parallel()

	t.Run("evaluates immediately", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, browsertest.WithWait(time.Second, time.Second))
		calls := 0
		start := time.Now()
		err := bt.Page.Wait.Until(bt.Ctx, "ready", func(common.Driver) (bool, error) {
			calls++
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
	t.Run("propagates unexpected errors", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t)
		boom := errors.New("boom")
		calls := 0
		err := bt.Page.Wait.Until(bt.Ctx, "boom", func(common.Driver) (bool, error) {
			calls++
			return false, boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
	t.Run("honors cancellation", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t, browsertest.WithWait(time.Minute, 10*time.Millisecond))
		ctx, cancel := context.WithCancel(bt.Ctx)
		time.AfterFunc(50*time.Millisecond, cancel)

		start := time.Now()
		err := bt.Page.Wait.Until(ctx, "never", func(common.Driver) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
	t.Run("rejects negative overrides", func(t *testing.T) {
		t.Parallel()

		bt := browsertest.New(t)
		cond := func(common.Driver) (bool, error) { return true, nil }
		require.ErrorIs(t, bt.Page.Wait.Until(bt.Ctx, "x", cond, common.WithinTimeout(-time.Second)), common.ErrInvalidArgument)
		require.ErrorIs(t, bt.Page.Wait.Until(bt.Ctx, "x", cond, common.WithPollInterval(-time.Second)), common.ErrInvalidArgument)
	})
}

func TestWaitForAny(t *testing.T) {
	t.Parallel()

	rows := common.CSS("tr")
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", browsertest.NewElement("tr", rows), browsertest.NewElement("tr", rows))
	}))
	els, err := bt.Page.Wait.WaitForAny(bt.Ctx, rows)
	require.NoError(t, err)
	assert.Len(t, els, 2)

	_, err = bt.Page.Wait.WaitForAny(bt.Ctx, common.CSS("td"), common.WithinTimeout(20*time.Millisecond))
	require.ErrorIs(t, err, common.ErrTimeout)
}

func TestWaitForInvisibleAndClickable(t *testing.T) {
	t.Parallel()

	spinner := common.ID("spinner")
	save := common.ID("save")
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main",
			browsertest.NewElement("div", spinner).Hidden(),
			browsertest.NewElement("button", save).Disabled(),
		)
	}))

	require.NoError(t, bt.Page.Wait.WaitForInvisible(bt.Ctx, spinner))
	require.NoError(t, bt.Page.Wait.WaitForInvisible(bt.Ctx, common.ID("gone")))

	_, err := bt.Page.Wait.WaitForClickable(bt.Ctx, save, common.WithinTimeout(30*time.Millisecond))
	require.ErrorIs(t, err, common.ErrTimeout)
}

func TestWaitForAlert(t *testing.T) {
	t.Parallel()

	bt := browsertest.New(t, browsertest.WithWait(2*time.Second, 10*time.Millisecond))
	bt.Driver.OpenAlert("Saved", 50*time.Millisecond)

	require.NoError(t, bt.Page.Wait.WaitForAlert(bt.Ctx))
	text, err := bt.Page.Windows.AlertText()
	require.NoError(t, err)
	assert.Equal(t, "Saved", text)
}

func TestWaitForTitle(t *testing.T) {
	t.Parallel()

	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddWindow("report", "Report")
	}))
	err := bt.Page.Wait.WaitForTitle(bt.Ctx, "report", common.WithinTimeout(20*time.Millisecond))
	require.ErrorIs(t, err, common.ErrTimeout)

	require.NoError(t, bt.Page.Windows.SwitchToWindow("report"))
	require.NoError(t, bt.Page.Wait.WaitForTitle(bt.Ctx, "report"))
}

func TestSleep(t *testing.T) {
	t.Parallel()

	bt := browsertest.New(t)

	start := time.Now()
	require.NoError(t, bt.Page.Wait.Sleep(bt.Ctx, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(bt.Ctx)
	cancel()
	require.ErrorIs(t, bt.Page.Wait.Sleep(ctx, time.Hour), context.Canceled)
	require.ErrorIs(t, bt.Page.Wait.Sleep(bt.Ctx, -time.Second), common.ErrInvalidArgument)
}
