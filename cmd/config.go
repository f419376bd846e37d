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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/datasource"
	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
	"github.com/liuxd6825/webcheck/report"
	"github.com/liuxd6825/webcheck/retry"
	"github.com/liuxd6825/webcheck/webdriver"
)

func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", 0)
	flags.SortFlags = false
	flags.StringP("browser", "b", "chrome", "default browser: chrome, firefox or edge")
	flags.String("webdriver-url", webdriver.DefaultURL, "WebDriver server or grid `url`")
	flags.Bool("headless", false, "run browsers without a window")
	flags.StringSlice("browser-arg", nil, "extra browser command line `argument`, can be repeated")
	flags.String("app-url", "", "application url, available to suites as ${APP_URL}")
	flags.Float64P("wait", "w", common.DefaultTimeout.Seconds(), "explicit wait timeout in `seconds`")
	flags.String("poll-interval", common.DefaultPollInterval.String(), "interval between wait condition checks")
	flags.String("slow-mo", "", "delay after every browser interaction")
	flags.Int64P("retries", "r", retry.DefaultLimit, "extra attempts for a failed test")
	flags.Int64P("parallel", "p", 1, "number of tests running at once")
	flags.String("report-dir", "reports", "`directory` the report is written to")
	flags.String("report-format", string(report.FormatHTML), "report format: html, json or xlsx")
	flags.String("report-flush", report.FlushAtEnd.String(), "when the report is written: end or each-test")
	flags.String("screenshot-dir", "", "`directory` for screenshots, defaults to <report-dir>/screenshots")
	flags.Bool("screenshot-on-failure", true, "capture the window of every failed attempt")
	flags.String("artifacts-url", "", "upload reports and screenshots through the pre-signed url service at `url`")
	flags.String("metrics-file", "", "write Prometheus metrics of the run to `file`")
	flags.String("traces-output", "none", "traces output: none or otel[=endpoint][,proto=grpc|http][,header.<name>=<value>]")
	return flags
}

// Config is the consolidated run configuration.
type Config struct {
	Browser      null.String `json:"browser" envconfig:"WEBCHECK_BROWSER"`
	WebDriverURL null.String `json:"webdriverURL" envconfig:"WEBCHECK_WEBDRIVER_URL"`
	Headless     null.Bool   `json:"headless" envconfig:"WEBCHECK_HEADLESS"`
	BrowserArgs  null.String `json:"browserArgs" envconfig:"WEBCHECK_BROWSER_ARGS"`
	AppURL       null.String `json:"appURL" envconfig:"WEBCHECK_APP_URL"`

	WaitTime     null.Float  `json:"waitTime" envconfig:"WEBCHECK_WAIT_TIME"`
	PollInterval null.String `json:"pollInterval" envconfig:"WEBCHECK_POLL_INTERVAL"`
	SlowMo       null.String `json:"slowMo" envconfig:"WEBCHECK_SLOW_MO"`
	Retries      null.Int    `json:"retries" envconfig:"WEBCHECK_RETRIES"`
	Parallel     null.Int    `json:"parallel" envconfig:"WEBCHECK_PARALLEL"`

	ReportDir           null.String `json:"reportDir" envconfig:"WEBCHECK_REPORT_DIR"`
	ReportFormat        null.String `json:"reportFormat" envconfig:"WEBCHECK_REPORT_FORMAT"`
	ReportFlush         null.String `json:"reportFlush" envconfig:"WEBCHECK_REPORT_FLUSH"`
	ScreenshotDir       null.String `json:"screenshotDir" envconfig:"WEBCHECK_SCREENSHOT_DIR"`
	ScreenshotOnFailure null.Bool   `json:"screenshotOnFailure" envconfig:"WEBCHECK_SCREENSHOT_ON_FAILURE"`
	ArtifactsURL        null.String `json:"artifactsURL" envconfig:"WEBCHECK_ARTIFACTS_URL"`
	MetricsFile         null.String `json:"metricsFile" envconfig:"WEBCHECK_METRICS_FILE"`
	TracesOutput        null.String `json:"tracesOutput" envconfig:"WEBCHECK_TRACES_OUTPUT"`
}

// Apply the provided config on top of the current one, returning a new one. The provided config has priority.
func (c Config) Apply(cfg Config) Config {
	if cfg.Browser.Valid {
		c.Browser = cfg.Browser
	}
	if cfg.WebDriverURL.Valid {
		c.WebDriverURL = cfg.WebDriverURL
	}
	if cfg.Headless.Valid {
		c.Headless = cfg.Headless
	}
	if cfg.BrowserArgs.Valid {
		c.BrowserArgs = cfg.BrowserArgs
	}
	if cfg.AppURL.Valid {
		c.AppURL = cfg.AppURL
	}
	if cfg.WaitTime.Valid {
		c.WaitTime = cfg.WaitTime
	}
	if cfg.PollInterval.Valid {
		c.PollInterval = cfg.PollInterval
	}
	if cfg.SlowMo.Valid {
		c.SlowMo = cfg.SlowMo
	}
	if cfg.Retries.Valid {
		c.Retries = cfg.Retries
	}
	if cfg.Parallel.Valid {
		c.Parallel = cfg.Parallel
	}
	if cfg.ReportDir.Valid {
		c.ReportDir = cfg.ReportDir
	}
	if cfg.ReportFormat.Valid {
		c.ReportFormat = cfg.ReportFormat
	}
	if cfg.ReportFlush.Valid {
		c.ReportFlush = cfg.ReportFlush
	}
	if cfg.ScreenshotDir.Valid {
		c.ScreenshotDir = cfg.ScreenshotDir
	}
	if cfg.ScreenshotOnFailure.Valid {
		c.ScreenshotOnFailure = cfg.ScreenshotOnFailure
	}
	if cfg.ArtifactsURL.Valid {
		c.ArtifactsURL = cfg.ArtifactsURL
	}
	if cfg.MetricsFile.Valid {
		c.MetricsFile = cfg.MetricsFile
	}
	if cfg.TracesOutput.Valid {
		c.TracesOutput = cfg.TracesOutput
	}
	return c
}

// Gets configuration from CLI flags. Unset flags keep their default value
// but are not Valid, so they do not override the other layers.
func getConfig(flags *pflag.FlagSet) (Config, error) {
	args, err := flags.GetStringSlice("browser-arg")
	if err != nil {
		return Config{}, err
	}
	return Config{
		Browser:             getNullString(flags, "browser"),
		WebDriverURL:        getNullString(flags, "webdriver-url"),
		Headless:            getNullBool(flags, "headless"),
		BrowserArgs:         null.NewString(strings.Join(args, ","), flags.Changed("browser-arg")),
		AppURL:              getNullString(flags, "app-url"),
		WaitTime:            getNullFloat(flags, "wait"),
		PollInterval:        getNullString(flags, "poll-interval"),
		SlowMo:              getNullString(flags, "slow-mo"),
		Retries:             getNullInt64(flags, "retries"),
		Parallel:            getNullInt64(flags, "parallel"),
		ReportDir:           getNullString(flags, "report-dir"),
		ReportFormat:        getNullString(flags, "report-format"),
		ReportFlush:         getNullString(flags, "report-flush"),
		ScreenshotDir:       getNullString(flags, "screenshot-dir"),
		ScreenshotOnFailure: getNullBool(flags, "screenshot-on-failure"),
		ArtifactsURL:        getNullString(flags, "artifacts-url"),
		MetricsFile:         getNullString(flags, "metrics-file"),
		TracesOutput:        getNullString(flags, "traces-output"),
	}, nil
}

func defaultConfig() Config {
	return Config{
		Browser:             null.NewString(common.Chrome.String(), false),
		WebDriverURL:        null.NewString(webdriver.DefaultURL, false),
		WaitTime:            null.NewFloat(common.DefaultTimeout.Seconds(), false),
		PollInterval:        null.NewString(common.DefaultPollInterval.String(), false),
		Retries:             null.NewInt(retry.DefaultLimit, false),
		Parallel:            null.NewInt(1, false),
		ReportDir:           null.NewString("reports", false),
		ReportFormat:        null.NewString(string(report.FormatHTML), false),
		ReportFlush:         null.NewString(report.FlushAtEnd.String(), false),
		ScreenshotOnFailure: null.NewBool(true, false),
		TracesOutput:        null.NewString("none", false),
	}
}

// fileConfig reads the run settings out of a key/value config file. Keys are
// the environment variable names without the WEBCHECK_ prefix; any other key
// is left for the suites.
func fileConfig(kv *datasource.Config) (Config, error) {
	var (
		conf Config
		errs []error
	)
	str := func(key string, dst *null.String) {
		if v, ok := kv.Lookup(key); ok {
			*dst = null.StringFrom(v)
		}
	}
	boolean := func(key string, dst *null.Bool) {
		if v, ok := kv.Lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = null.BoolFrom(b)
		}
	}
	integer := func(key string, dst *null.Int) {
		if v, ok := kv.Lookup(key); ok {
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = null.IntFrom(i)
		}
	}

	str("BROWSER", &conf.Browser)
	str("WEBDRIVER_URL", &conf.WebDriverURL)
	boolean("HEADLESS", &conf.Headless)
	str("BROWSER_ARGS", &conf.BrowserArgs)
	str("APP_URL", &conf.AppURL)
	if v, ok := kv.Lookup("WAIT_TIME"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("WAIT_TIME: %w", err))
		} else {
			conf.WaitTime = null.FloatFrom(f)
		}
	}
	str("POLL_INTERVAL", &conf.PollInterval)
	str("SLOW_MO", &conf.SlowMo)
	integer("RETRIES", &conf.Retries)
	integer("PARALLEL", &conf.Parallel)
	str("REPORT_DIR", &conf.ReportDir)
	str("REPORT_FORMAT", &conf.ReportFormat)
	str("REPORT_FLUSH", &conf.ReportFlush)
	str("SCREENSHOT_DIR", &conf.ScreenshotDir)
	boolean("SCREENSHOT_ON_FAILURE", &conf.ScreenshotOnFailure)
	str("ARTIFACTS_URL", &conf.ArtifactsURL)
	str("METRICS_FILE", &conf.MetricsFile)
	str("TRACES_OUTPUT", &conf.TracesOutput)

	if len(errs) > 0 {
		return conf, fmt.Errorf("config file %s: %w", kv.Source(), errors.Join(errs...))
	}
	return conf, nil
}

// loadConfigFile reads the --config file. Without one, an empty
// configuration is returned.
func loadConfigFile(gs *globalState) (*datasource.Config, error) {
	if gs.flags.configFilePath == "" {
		return datasource.NewConfig(nil), nil
	}
	kv, err := datasource.LoadConfig(gs.fs, gs.flags.configFilePath)
	if err != nil {
		err = errext.WithHint(err, "the --config file must be a .properties, .yaml or .yml file")
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return kv, nil
}

// getConsolidatedConfig assembles the final run configuration. Priority, from
// lowest to highest: defaults, config file, environment variables, CLI flags.
func getConsolidatedConfig(gs *globalState, cliConf Config, kv *datasource.Config) (conf Config, err error) {
	fileConf, err := fileConfig(kv)
	if err != nil {
		return conf, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	envConf := Config{}
	err = envconfig.Process("", &envConf, func(key string) (string, bool) {
		v, ok := gs.envVars[key]
		return v, ok
	})
	if err != nil {
		return conf, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	conf = defaultConfig().Apply(fileConf).Apply(envConf).Apply(cliConf)
	return conf, nil
}

// runSettings are the typed values derived from a consolidated Config.
type runSettings struct {
	browser             string
	backend             webdriver.Options
	appURL              string
	wait                common.WaitConfiguration
	slowMo              time.Duration
	retries             int
	parallel            int
	reportDir           string
	reportFormat        report.Format
	reportFlush         report.FlushPolicy
	screenshotDir       string
	screenshotOnFailure bool
	artifactsURL        string
	metricsFile         string
	tracesOutput        string
}

// deriveSettings validates conf. All problems are reported at once.
func deriveSettings(conf Config) (runSettings, error) {
	var errs []error
	s := runSettings{
		browser: conf.Browser.String,
		backend: webdriver.Options{
			URL:      conf.WebDriverURL.String,
			Headless: conf.Headless.Bool,
		},
		appURL:              conf.AppURL.String,
		reportDir:           conf.ReportDir.String,
		screenshotDir:       conf.ScreenshotDir.String,
		screenshotOnFailure: conf.ScreenshotOnFailure.Bool,
		artifactsURL:        conf.ArtifactsURL.String,
		metricsFile:         conf.MetricsFile.String,
		tracesOutput:        conf.TracesOutput.String,
	}

	if _, err := common.ParseBrowserKind(s.browser); err != nil {
		errs = append(errs, err)
	}
	for _, arg := range strings.Split(conf.BrowserArgs.String, ",") {
		if arg = strings.TrimSpace(arg); arg != "" {
			s.backend.Args = append(s.backend.Args, arg)
		}
	}

	poll, err := parseDuration(conf.PollInterval.String)
	if err != nil {
		errs = append(errs, fmt.Errorf("poll interval: %w", err))
	}
	timeout := time.Duration(conf.WaitTime.Float64 * float64(time.Second))
	if s.wait, err = common.NewWaitConfiguration(timeout, poll); err != nil {
		errs = append(errs, fmt.Errorf("wait time: %w", err))
	}
	if s.slowMo, err = parseDuration(conf.SlowMo.String); err != nil {
		errs = append(errs, fmt.Errorf("slow-mo: %w", err))
	}

	if conf.Retries.Int64 < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", conf.Retries.Int64))
	}
	s.retries = int(conf.Retries.Int64)
	if conf.Parallel.Int64 < 1 {
		errs = append(errs, fmt.Errorf("parallel must be at least 1, got %d", conf.Parallel.Int64))
	}
	s.parallel = int(conf.Parallel.Int64)

	if s.reportFormat, err = report.ParseFormat(conf.ReportFormat.String); err != nil {
		errs = append(errs, err)
	}
	if s.reportFlush, err = report.ParseFlushPolicy(conf.ReportFlush.String); err != nil {
		errs = append(errs, err)
	}
	if s.screenshotDir == "" {
		s.screenshotDir = s.reportDir + "/screenshots"
	}

	if len(errs) > 0 {
		return s, errext.WithExitCode(errors.Join(errs...), exitcodes.InvalidConfig)
	}
	return s, nil
}

// parseDuration accepts a Go duration ("250ms") or a number of seconds.
// An empty value is zero.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	var d time.Duration
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		d = time.Duration(f * float64(time.Second))
	} else if d, err = time.ParseDuration(v); err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", v)
	}
	return d, nil
}

func getNullBool(flags *pflag.FlagSet, key string) null.Bool {
	v, err := flags.GetBool(key)
	if err != nil {
		panic(err)
	}
	return null.NewBool(v, flags.Changed(key))
}

func getNullInt64(flags *pflag.FlagSet, key string) null.Int {
	v, err := flags.GetInt64(key)
	if err != nil {
		panic(err)
	}
	return null.NewInt(v, flags.Changed(key))
}

func getNullFloat(flags *pflag.FlagSet, key string) null.Float {
	v, err := flags.GetFloat64(key)
	if err != nil {
		panic(err)
	}
	return null.NewFloat(v, flags.Changed(key))
}

func getNullString(flags *pflag.FlagSet, key string) null.String {
	v, err := flags.GetString(key)
	if err != nil {
		panic(err)
	}
	return null.NewString(v, flags.Changed(key))
}
