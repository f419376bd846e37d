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
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/log"
	"github.com/liuxd6825/webcheck/webdriver"
)

// globalFlags contains global config values that apply for all webcheck
// sub-commands.
type globalFlags struct {
	configFilePath string
	noColor        bool
	logOutput      string
	logFormat      string
	verbose        bool
	quiet          bool
}

func getDefaultFlags() globalFlags {
	return globalFlags{
		logOutput: "stderr",
	}
}

func consolidateGlobalFlags(defaultFlags globalFlags, env map[string]string) globalFlags {
	result := defaultFlags

	if val, ok := env["WEBCHECK_CONFIG"]; ok {
		result.configFilePath = val
	}
	if val, ok := env["WEBCHECK_LOG_OUTPUT"]; ok {
		result.logOutput = val
	}
	if val, ok := env["WEBCHECK_LOG_FORMAT"]; ok {
		result.logFormat = val
	}
	if env["WEBCHECK_NO_COLOR"] != "" {
		result.noColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.noColor = true
	}
	return result
}

// globalState contains the globalFlags and accessors for most of the global
// process-external state like CLI arguments, env vars, standard input, output
// and error, etc. In practice, most of it is normally accessed through the
// `os` package from the Go stdlib.
//
// We group them here so we can prevent direct access to them from the rest of
// the codebase. This gives us the ability to mock them and have robust and
// easy-to-write integration-like tests.
type globalState struct {
	ctx context.Context

	fs      afero.Fs
	args    []string
	envVars map[string]string

	defaultFlags, flags globalFlags

	outMutex       *sync.Mutex
	stdOut, stdErr *consoleWriter

	osExit       func(int)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)

	newBackend func(webdriver.Options, *log.Logger) common.Backend

	logger         *logrus.Logger
	fallbackLogger logrus.FieldLogger
}

// Ideally, this should be the only function in the whole codebase where we use
// global variables and functions from the os package. Anywhere else, things
// like os.Stdout, os.Exit(), etc. should be avoided.
func newGlobalState(ctx context.Context) *globalState {
	isDumbTerm := os.Getenv("TERM") == "dumb"
	stdoutTTY := !isDumbTerm && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	stderrTTY := !isDumbTerm && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	outMutex := &sync.Mutex{}
	stdOut := &consoleWriter{colorable.NewColorableStdout(), stdoutTTY, outMutex}
	stdErr := &consoleWriter{colorable.NewColorableStderr(), stderrTTY, outMutex}

	envVars := buildEnvMap(os.Environ())
	defaultFlags := getDefaultFlags()
	flags := consolidateGlobalFlags(defaultFlags, envVars)

	logger := &logrus.Logger{
		Out: stdErr,
		Formatter: &logrus.TextFormatter{
			ForceColors:   stderrTTY,
			DisableColors: !stderrTTY || flags.noColor,
		},
		Hooks: make(logrus.LevelHooks),
		Level: logrus.InfoLevel,
	}

	return &globalState{
		ctx:          ctx,
		fs:           afero.NewOsFs(),
		args:         append([]string{}, os.Args...),
		envVars:      envVars,
		defaultFlags: defaultFlags,
		flags:        flags,
		outMutex:     outMutex,
		stdOut:       stdOut,
		stdErr:       stdErr,
		osExit:       os.Exit,
		signalNotify: signal.Notify,
		signalStop:   signal.Stop,
		newBackend: func(opts webdriver.Options, l *log.Logger) common.Backend {
			return webdriver.NewBrowserType(opts, l)
		},
		logger: logger,
		fallbackLogger: &logrus.Logger{ // we may modify the other one
			Out:       stdErr,
			Formatter: new(logrus.TextFormatter), // no fancy formatting here
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
	}
}

func buildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}

// consoleWriter syncs writes with a mutex and, if the output is a TTY,
// clears before newlines.
type consoleWriter struct {
	Writer io.Writer
	IsTTY  bool
	Mutex  *sync.Mutex
}

func (w *consoleWriter) Write(p []byte) (n int, err error) {
	origLen := len(p)
	if w.IsTTY {
		// Add a TTY code to erase till the end of line with each new line
		p = []byte(strings.ReplaceAll(string(p), "\n", "\x1b[0K\n"))
	}

	w.Mutex.Lock()
	n, err = w.Writer.Write(p)
	w.Mutex.Unlock()

	if err != nil && n < origLen {
		return n, err
	}
	return origLen, err
}
