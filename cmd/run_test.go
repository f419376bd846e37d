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

package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
	"github.com/liuxd6825/webcheck/testutils/browsertest"
)

const loginSuite = `
name: login
locators:
  user: {id: username}
  banner: {id: banner}
tests:
  - name: sign in
    steps:
      - action: open
        value: ${APP_URL}/login
      - action: type
        target: user
        value: ${USER_NAME}
      - action: assertText
        target: banner
        value: Welcome
      - action: log
        level: pass
        value: signed in as ${USER_NAME}
  - name: broken banner
    steps:
      - action: open
        value: ${APP_URL}/login
      - action: assertText
        target: banner
        value: Goodbye
`

func loginPage(d *browsertest.Driver) {
	d.SetTitle("main", "Login")
	d.AddElements("main",
		browsertest.NewElement("input", common.ID("username")),
		browsertest.NewElement("div", common.ID("banner")).WithText("Welcome"),
	)
}

func writeSuite(t *testing.T, fs afero.Fs, path, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0o644))
}

func TestRunReportsFailures(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	ts.backend.Setup = loginPage
	writeSuite(t, ts.fs, "/suites/login.yaml", loginSuite)
	ts.expectedExitCode = int(exitcodes.TestsFailed)
	ts.args = []string{
		"webcheck", "run", "-r", "0", "-w", "0.05", "--poll-interval", "10ms",
		"--app-url", "http://app.test", "/suites/login.yaml",
	}
	newRootCommand(ts.globalState).execute()

	out := ts.stdOut.String()
	assert.Contains(t, out, "✓ sign in")
	assert.Contains(t, out, "✗ broken banner")
	assert.Contains(t, out, "1 passed, 1 failed")
	assert.Contains(t, out, "report.....: "+filepath.Join("reports", "report.html"))

	f, err := ts.fs.Open(filepath.Join("reports", "report.html"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	assert.Equal(t, "login", strings.TrimSpace(doc.Find("title").Text()))
	assert.Contains(t, doc.Text(), "signed in as")

	shots, err := afero.Glob(ts.fs, filepath.Join("reports", "screenshots", "broken_banner_attempt1_*.png"))
	require.NoError(t, err)
	assert.Len(t, shots, 1)

	drivers := ts.backend.Drivers()
	require.Len(t, drivers, 2)
	for _, d := range drivers {
		assert.Equal(t, common.Chrome, d.Kind())
	}
}

func TestRunWithConfigFile(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	ts.backend.Setup = loginPage
	writeSuite(t, ts.fs, "/suites/login.yaml", loginSuite)
	require.NoError(t, afero.WriteFile(ts.fs, "/env/test.properties", []byte(
		"BROWSER=firefox\nHEADLESS=true\nAPP_URL=http://app.test\nUSER_NAME=alice\n"+
			"REPORT_FORMAT=json\nREPORT_DIR=out\nWAIT_TIME=0.05\n"), 0o644))
	metricsFile := filepath.Join(t.TempDir(), "webcheck.prom")
	ts.args = []string{
		"webcheck", "-c", "/env/test.properties", "run", "--grep", "^sign",
		"--metrics-file", metricsFile, "/suites/login.yaml",
	}
	newRootCommand(ts.globalState).execute()

	assert.True(t, ts.backendOpts.Headless)
	require.Len(t, ts.backend.Drivers(), 1)
	assert.Equal(t, common.Firefox, ts.backend.Last().Kind())

	data, err := afero.ReadFile(ts.fs, filepath.Join("out", "report.json"))
	require.NoError(t, err)
	var rep struct {
		Title   string `json:"title"`
		Entries []struct {
			Name string `json:"name"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "login", rep.Title)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, "sign in", rep.Entries[0].Name)
	assert.Contains(t, string(data), "signed in as alice")

	prom, err := os.ReadFile(metricsFile) //nolint:forbidigo
	require.NoError(t, err)
	assert.Contains(t, string(prom), `webcheck_tests_total{status="passed"} 1`)
	assert.Contains(t, string(prom), `webcheck_sessions_total{browser="firefox"} 1`)
}

func TestRunInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		suite string
		args  []string
		code  exitcodes.ExitCode
		msg   string
	}{
		{
			name:  "unknown action",
			suite: "tests:\n  - name: a\n    steps:\n      - action: teleport\n",
			code:  exitcodes.InvalidConfig,
			msg:   "teleport",
		},
		{
			name:  "bad flag value",
			suite: loginSuite,
			args:  []string{"--report-format", "doc"},
			code:  exitcodes.InvalidConfig,
			msg:   `unknown report format "doc"`,
		},
		{
			name:  "no match",
			suite: loginSuite,
			args:  []string{"--grep", "checkout"},
			code:  exitcodes.InvalidConfig,
			msg:   `no test matches "checkout"`,
		},
		{
			name:  "bad traces output",
			suite: loginSuite,
			args:  []string{"--traces-output", "jaeger"},
			code:  exitcodes.InvalidConfig,
			msg:   "jaeger",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newGlobalTestState(t)
			writeSuite(t, ts.fs, "/suite.yaml", tt.suite)
			ts.expectedExitCode = int(tt.code)
			ts.args = append(append([]string{"webcheck", "run"}, tt.args...), "/suite.yaml")
			newRootCommand(ts.globalState).execute()

			assert.Contains(t, strings.Join(ts.loggerHook.Lines(), "\n"), tt.msg)
			assert.Empty(t, ts.backend.Drivers())
		})
	}
}

func TestRunInterrupted(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t)
	sigs := make(chan chan<- os.Signal, 1)
	ts.signalNotify = func(c chan<- os.Signal, _ ...os.Signal) { sigs <- c }
	ts.backend.Setup = func(*browsertest.Driver) {
		select {
		case c := <-sigs:
			c <- os.Interrupt
		default:
		}
	}
	writeSuite(t, ts.fs, "/suite.yaml", `
tests:
  - name: slow
    steps:
      - action: open
        value: http://app.test
      - action: sleep
        value: "30"
`)
	ts.expectedExitCode = int(exitcodes.RunAborted)
	ts.args = []string{"webcheck", "run", "/suite.yaml"}
	newRootCommand(ts.globalState).execute()

	assert.Contains(t, ts.stdOut.String(), "✗ slow")
	assert.Contains(t, strings.Join(ts.loggerHook.Lines(), "\n"), "Stopping webcheck in response to signal")
	assert.Equal(t, 1, ts.backend.Last().QuitCount())
}
