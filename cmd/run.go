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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/webcheck/datasource"
	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
	"github.com/liuxd6825/webcheck/lifecycle"
	"github.com/liuxd6825/webcheck/log"
	"github.com/liuxd6825/webcheck/metrics"
	"github.com/liuxd6825/webcheck/report"
	"github.com/liuxd6825/webcheck/retry"
	"github.com/liuxd6825/webcheck/storage"
	"github.com/liuxd6825/webcheck/suite"
	"github.com/liuxd6825/webcheck/trace"
)

// cmdRun handles the `webcheck run` sub-command
type cmdRun struct {
	gs *globalState
}

//nolint:funlen
func (c *cmdRun) run(cmd *cobra.Command, args []string) (err error) {
	logger := log.New(c.gs.logger, nil)

	kv, err := loadConfigFile(c.gs)
	if err != nil {
		return err
	}
	cliConf, err := getConfig(cmd.Flags())
	if err != nil {
		return err
	}
	conf, err := getConsolidatedConfig(c.gs, cliConf, kv)
	if err != nil {
		return err
	}
	settings, err := deriveSettings(conf)
	if err != nil {
		return err
	}

	s, err := suite.Load(c.gs.fs, args[0])
	if err != nil {
		return err
	}
	vars := kv.Map()
	if settings.appURL != "" {
		vars["APP_URL"] = settings.appURL
	}
	tests, err := s.Compile(suite.CompileOptions{FS: c.gs.fs, Config: datasource.NewConfig(vars)})
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if tests, err = filterTests(cmd, tests); err != nil {
		return err
	}
	title := s.Name
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	var persister storage.Persister = storage.NewLocalFilePersister(c.gs.fs)
	if settings.artifactsURL != "" {
		persister = storage.NewRemoteFilePersister(settings.artifactsURL, nil, "")
	}
	store, err := report.NewStore(settings.reportFormat, settings.reportDir, persister)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	pipeline := report.NewPipeline(title, store, settings.reportFlush, c.gs.logger)

	tp, err := trace.TracerProviderFromConfigLine(c.gs.ctx, settings.tracesOutput)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	defer func() {
		if serr := tp.Shutdown(context.WithoutCancel(c.gs.ctx)); serr != nil {
			logger.Warnf("Run", "shutting down the tracer provider: %v", serr)
		}
	}()
	tracer := trace.NewTracer(tp, map[string]string{"suite": title})
	m := metrics.New()

	coord := lifecycle.NewCoordinator(pipeline, retry.NewTracker(settings.retries),
		lifecycle.WithTracer(tracer), lifecycle.WithMetrics(m), lifecycle.WithLogger(logger))
	runner := lifecycle.NewRunner(lifecycle.RunnerConfig{
		Backend:             c.gs.newBackend(settings.backend, logger),
		Browser:             settings.browser,
		Wait:                settings.wait,
		AppURL:              settings.appURL,
		Artifacts:           storage.NewScreenshotStore(settings.screenshotDir, persister),
		SlowMo:              settings.slowMo,
		ScreenshotOnFailure: settings.screenshotOnFailure,
		Parallel:            settings.parallel,
		Logger:              logger,
		Tracer:              tracer,
		Metrics:             m,
	}, coord)

	runCtx, runCancel := context.WithCancel(c.gs.ctx)
	defer runCancel()
	var interrupted atomic.Bool
	stopSignalHandling := handleTestAbortSignals(c.gs, func(sig os.Signal) {
		c.gs.logger.WithField("sig", sig).Warn("Stopping webcheck in response to signal...")
		interrupted.Store(true)
		runCancel()
	})
	defer stopSignalHandling()

	c.gs.logger.Debugf("Running %d tests of %s with %s", len(tests), args[0], settings.wait)
	summary, runErr := runner.Run(runCtx, tests)

	if !c.gs.flags.quiet {
		printSummary(c.gs, summary)
	}
	if settings.metricsFile != "" {
		if merr := m.WriteTextfile(settings.metricsFile); merr != nil {
			logger.Warnf("Run", "writing metrics to %s: %v", settings.metricsFile, merr)
		}
	}

	switch {
	case interrupted.Load():
		return &errext.InterruptError{Reason: errext.AbortRun}
	case runErr != nil:
		return runErr
	case summary.Failed() > 0:
		return errext.WithExitCodeIfNone(
			fmt.Errorf("%d of %d tests failed", summary.Failed(), len(summary.Results)), exitcodes.TestsFailed)
	}
	return nil
}

func filterTests(cmd *cobra.Command, tests []lifecycle.Test) ([]lifecycle.Test, error) {
	expr, err := cmd.Flags().GetString("grep")
	if err != nil || expr == "" {
		return tests, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("invalid --grep: %w", err), exitcodes.InvalidConfig)
	}
	var out []lifecycle.Test
	for _, t := range tests {
		if re.MatchString(t.Name) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, errext.WithExitCodeIfNone(
			fmt.Errorf("no test matches %q", expr), exitcodes.InvalidConfig)
	}
	return out, nil
}

// handleTestAbortSignals calls onStop on the first SIGINT or SIGTERM. A
// second signal exits the process immediately.
func handleTestAbortSignals(gs *globalState, onStop func(os.Signal)) (stop func()) {
	gs.logger.Debug("Trapping interrupt signals so webcheck can handle them gracefully...")
	sigC := make(chan os.Signal, 2)
	done := make(chan struct{})
	gs.signalNotify(sigC, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigC:
			onStop(sig)
		case <-done:
			return
		}

		select {
		case sig := <-sigC:
			gs.logger.WithField("sig", sig).Error("Aborting webcheck in response to signal")
			gs.osExit(int(exitcodes.RunAborted))
		case <-done:
			return
		}
	}()

	return func() {
		gs.logger.Debug("Releasing signal trap...")
		close(done)
		gs.signalStop(sigC)
	}
}

func (c *cmdRun) flagSet() *pflag.FlagSet {
	flags := configFlagSet()
	flags.StringP("grep", "g", "", "only run the tests whose name matches `regexp`")
	return flags
}

func getCmdRun(gs *globalState) *cobra.Command {
	c := &cmdRun{gs: gs}

	runCmd := &cobra.Command{
		Use:   "run [flags] suite.yaml",
		Short: "Run a test suite",
		Long: `Run a test suite.

The suite is a YAML file with a locator catalog and the tests to run. Every
key of the --config file, and the application url, is available to the
suite as ${KEY}.`,
		Example: `
  # Run a suite with the default settings.
  webcheck run login.yaml

  # Run headless Firefox against a Selenium grid, three tests at a time.
  webcheck run -b firefox --headless --webdriver-url http://grid:4444/wd/hub -p 3 login.yaml

  # Use a properties file for the settings and suite variables.
  webcheck -c env/test.properties run login.yaml`[1:],
		Args: exactArgsWithMsg(1, "arg should be the path of a suite file"),
		RunE: c.run,
	}

	runCmd.Flags().SortFlags = false
	runCmd.Flags().AddFlagSet(c.flagSet())

	return runCmd
}

func exactArgsWithMsg(n int, msg string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("accepts %d arg(s), received %d: %s", n, len(args), msg)
		}
		return nil
	}
}
