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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/testutils/browsertest"
)

func TestElementActionsScrollBeforeInteraction(t *testing.T) {
	t.Parallel()

	target := common.ID("target")
	tests := []struct {
		name  string
		do    func(*browsertest.BrowserTest) error
		event string
	}{
		{"click", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.Click(bt.Ctx, target)
		}, `click id="target"`},
		{"double click", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.DoubleClick(bt.Ctx, target)
		}, `double click id="target"`},
		{"right click", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.RightClick(bt.Ctx, target)
		}, `right click id="target"`},
		{"enter text", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.EnterText(bt.Ctx, target, "hello")
		}, `clear id="target"`},
		{"enter text using actions", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.EnterTextUsingActions(bt.Ctx, target, "hello")
		}, `type actions id="target"`},
		{"select checkbox", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.SelectCheckbox(bt.Ctx, target, true)
		}, `click id="target"`},
		{"upload file", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.UploadFile(bt.Ctx, target, "testdata/a.txt")
		}, `type id="target"`},
		{"mouse hover", func(bt *browsertest.BrowserTest) error {
			return bt.Page.Actions.MouseHover(bt.Ctx, target)
		}, `hover id="target"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
				d.AddElements("main", browsertest.NewElement("input", target).WithAttr("type", "checkbox"))
			}))
			require.NoError(t, tt.do(bt))

			events := bt.Driver.Events()
			require.GreaterOrEqual(t, len(events), 2)
			assert.Equal(t, `scroll id="target"`, events[0])
			assert.Contains(t, events[1:], tt.event)
		})
	}
}

func TestElementActionsEnterText(t *testing.T) {
	t.Parallel()

	name := common.Name("user")
	el := browsertest.NewElement("input", name)
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", el)
	}))

	require.NoError(t, bt.Page.Actions.EnterText(bt.Ctx, name, "first"))
	require.NoError(t, bt.Page.Actions.EnterText(bt.Ctx, name, "second"))
	assert.Equal(t, "second", el.Value())

	require.NoError(t, bt.Page.Actions.EnterTextUsingActions(bt.Ctx, name, "!"))
	assert.Equal(t, "second!", el.Value())

	value, err := bt.Page.Actions.Attribute(bt.Ctx, name, "value")
	require.NoError(t, err)
	assert.Equal(t, "second!", value)
}

func TestElementActionsUploadFileSendsAbsolutePath(t *testing.T) {
	t.Parallel()

	input := common.CSS("input[type=file]")
	el := browsertest.NewElement("input", input)
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", el)
	}))

	require.NoError(t, bt.Page.Actions.UploadFile(bt.Ctx, input, "testdata/report.pdf"))
	want, err := filepath.Abs("testdata/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, want, el.Value())
}

func TestElementActionsSelectCheckbox(t *testing.T) {
	t.Parallel()

	terms := common.ID("terms")
	el := browsertest.NewElement("input", terms).WithAttr("type", "checkbox")
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", el)
	}))

	require.NoError(t, bt.Page.Actions.SelectCheckbox(bt.Ctx, terms, true))
	require.NoError(t, bt.Page.Actions.SelectCheckbox(bt.Ctx, terms, true))
	assert.True(t, el.IsChecked())
	assert.Equal(t, 1, el.Clicks())

	require.NoError(t, bt.Page.Actions.SelectCheckbox(bt.Ctx, terms, false))
	assert.False(t, el.IsChecked())
	assert.Equal(t, 2, el.Clicks())
}

func TestElementActionsJSClick(t *testing.T) {
	t.Parallel()

	hidden := common.ID("hidden")
	el := browsertest.NewElement("a", hidden).Hidden()
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", el)
	}))

	err := bt.Page.Actions.Click(bt.Ctx, hidden)
	require.ErrorIs(t, err, common.ErrNotInteractable)
	var ie *common.ElementInteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "click", ie.Action)
	assert.Equal(t, hidden, ie.Locator)
	assert.True(t, common.IsRetryable(err))

	require.NoError(t, bt.Page.Actions.JSClick(bt.Ctx, hidden))
	assert.Equal(t, 1, el.Clicks())
	assert.Equal(t, `jsclick id="hidden"`, bt.Driver.Events()[len(bt.Driver.Events())-1])
	for _, e := range bt.Driver.Events()[1:] {
		assert.NotEqual(t, `scroll id="hidden"`, e, "js click must not scroll")
	}
}

func TestElementActionsSelectDropdownOption(t *testing.T) {
	t.Parallel()

	country := common.ID("country")
	newDropdown := func() *browsertest.Element {
		return browsertest.NewElement("select", country).WithOptions(
			browsertest.SelectOption("de", "Germany").Selected(),
			browsertest.SelectOption("fr", "France"),
			browsertest.SelectOption("it", "Italy"),
		)
	}

	tests := []struct {
		name    string
		value   string
		mode    common.SelectMode
		wantErr error
		want    int
	}{
		{name: "by value", value: "fr", mode: common.SelectByValue, want: 1},
		{name: "by visible text", value: "Italy", mode: common.SelectByVisibleText, want: 2},
		{name: "by index", value: "1", mode: common.SelectByIndex, want: 1},
		{name: "mode is case insensitive", value: "Italy", mode: "VISIBLETEXT", want: 2},
		{name: "index out of range", value: "5", mode: common.SelectByIndex, wantErr: common.ErrIndexOutOfRange},
		{name: "malformed index", value: "two", mode: common.SelectByIndex, wantErr: common.ErrInvalidArgument},
		{name: "negative index", value: "-1", mode: common.SelectByIndex, wantErr: common.ErrInvalidArgument},
		{name: "unknown mode", value: "fr", mode: "label", wantErr: common.ErrInvalidArgument},
		{name: "missing value", value: "es", mode: common.SelectByValue, wantErr: common.ErrNoSuchOption},
		{name: "missing text", value: "Spain", mode: common.SelectByVisibleText, wantErr: common.ErrNoSuchOption},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dropdown := newDropdown()
			bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
				d.AddElements("main", dropdown)
			}))

			err := bt.Page.Actions.SelectDropdownOption(bt.Ctx, country, tt.value, tt.mode)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, browsertest.SelectedIndex(dropdown), "selection must not change")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, browsertest.SelectedIndex(dropdown))
		})
	}
}

func TestElementActionsQueries(t *testing.T) {
	t.Parallel()

	title := common.CSS("h1")
	hidden := common.ID("hidden")
	off := common.ID("off")
	bt := browsertest.New(t,
		browsertest.WithWait(50*time.Millisecond, 10*time.Millisecond),
		browsertest.WithSetup(func(d *browsertest.Driver) {
			d.AddElements("main",
				browsertest.NewElement("h1", title).WithText("Cookies").WithAttr("class", "banner"),
				browsertest.NewElement("div", hidden).Hidden(),
				browsertest.NewElement("button", off).Disabled(),
			)
		}),
	)

	present, err := bt.Page.Actions.IsPresent(bt.Ctx, title)
	require.NoError(t, err)
	assert.True(t, present)
	present, err = bt.Page.Actions.IsPresent(bt.Ctx, common.ID("missing"))
	require.NoError(t, err)
	assert.False(t, present)

	displayed, err := bt.Page.Actions.IsDisplayed(bt.Ctx, hidden)
	require.NoError(t, err)
	assert.False(t, displayed)
	displayed, err = bt.Page.Actions.IsDisplayed(bt.Ctx, common.ID("missing"))
	require.NoError(t, err)
	assert.False(t, displayed)
	displayed, err = bt.Page.Actions.IsDisplayed(bt.Ctx, title)
	require.NoError(t, err)
	assert.True(t, displayed)

	enabled, err := bt.Page.Actions.IsEnabled(bt.Ctx, off)
	require.NoError(t, err)
	assert.False(t, enabled)

	text, err := bt.Page.Actions.Text(bt.Ctx, title)
	require.NoError(t, err)
	assert.Equal(t, "Cookies", text)

	class, err := bt.Page.Actions.Attribute(bt.Ctx, title, "class")
	require.NoError(t, err)
	assert.Equal(t, "banner", class)

	_, err = bt.Page.Actions.Text(bt.Ctx, common.ID("missing"))
	require.ErrorIs(t, err, common.ErrTimeout)
	require.ErrorIs(t, err, common.ErrNoSuchElement)
}

func TestElementActionsStaleElement(t *testing.T) {
	t.Parallel()

	save := common.ID("save")
	el := browsertest.NewElement("button", save)
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", el)
	}))
	el.OnClick(func(d *browsertest.Driver) { d.Remove(el) })

	require.NoError(t, bt.Page.Actions.Click(bt.Ctx, save))
	present, err := bt.Page.Actions.IsPresent(bt.Ctx, save)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestElementActionsSlowMo(t *testing.T) {
	t.Parallel()

	save := common.ID("save")
	bt := browsertest.New(t, browsertest.WithSetup(func(d *browsertest.Driver) {
		d.AddElements("main", browsertest.NewElement("button", save))
	}))

	ctx := common.WithHooks(common.WithSlowMo(bt.Ctx, 50*time.Millisecond), common.NewHooks())
	start := time.Now()
	require.NoError(t, bt.Page.Actions.Click(ctx, save))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	hooked := 0
	hooks := common.NewHooks()
	hooks.RegisterHook(common.HookApplySlowMo, func(context.Context) { hooked++ })
	require.NoError(t, bt.Page.Actions.Click(common.WithHooks(bt.Ctx, hooks), save))
	assert.Equal(t, 1, hooked)
}

func TestHooks(t *testing.T) {
	t.Parallel()

	var nilHooks *common.Hooks
	assert.NotPanics(t, func() { nilHooks.Run(context.Background(), common.HookApplySlowMo) })

	hooks := common.NewHooks()
	require.NotNil(t, hooks.GetHook(common.HookApplySlowMo))

	hooks.RegisterHook(common.HookApplySlowMo, nil)
	assert.Nil(t, hooks.GetHook(common.HookApplySlowMo))

	ctx := common.WithSlowMo(context.Background(), time.Hour)
	done := make(chan struct{})
	go func() {
		hooks.Run(ctx, common.HookApplySlowMo)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled hook point still delayed")
	}
}
