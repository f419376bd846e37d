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
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version contains the current semantic version of webcheck.
const Version = "0.4.0"

// buildSetting returns a value recorded by the go tool in the binary.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// fullVersion returns the version with the commit it was built from, if
// known, and the Go platform.
func fullVersion() string {
	goVersionArch := fmt.Sprintf("%s, %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	commit := buildSetting("vcs.revision")
	if commit == "" {
		return fmt.Sprintf("%s (%s)", Version, goVersionArch)
	}
	if len(commit) > 10 {
		commit = commit[:10]
	}
	if buildSetting("vcs.modified") == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit/%s, %s)", Version, commit, goVersionArch)
}

func versionDetails() map[string]string {
	details := map[string]string{
		"version":    "v" + Version,
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
		"go_version": runtime.Version(),
	}
	if commit := buildSetting("vcs.revision"); commit != "" {
		details["commit"] = commit
	}
	return details
}

func versionString() string {
	return "v" + fullVersion()
}

type versionCmd struct {
	gs     *globalState
	isJSON bool
}

func (c *versionCmd) run(cmd *cobra.Command, _ []string) error {
	if !c.isJSON {
		root := cmd.Root()
		root.SetArgs([]string{"--version"})
		_ = root.Execute()
		return nil
	}

	jsonDetails, err := json.Marshal(versionDetails())
	if err != nil {
		return fmt.Errorf("failed produce a JSON version details: %w", err)
	}

	_, err = fmt.Fprintln(c.gs.stdOut, string(jsonDetails))
	return err
}

func getCmdVersion(gs *globalState) *cobra.Command {
	versionCmd := &versionCmd{gs: gs}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Long:  `Show the application version and exit.`,
		RunE:  versionCmd.run,
	}

	cmd.Flags().BoolVar(&versionCmd.isJSON, "json", false, "if set, output version information will be in JSON format")

	return cmd
}
