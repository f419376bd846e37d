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

package log

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// reportLevels maps the report line levels to the logrus level their
// mirrored entries are logged at.
var reportLevels = map[string]logrus.Level{ //nolint:gochecknoglobals
	"pass": logrus.InfoLevel,
	"fail": logrus.ErrorLevel,
}

// parseLevels returns every level at least as severe as level. Besides the
// logrus names, the report levels pass and fail are accepted.
func parseLevels(level string) ([]logrus.Level, error) {
	lvl, ok := reportLevels[strings.ToLower(level)]
	if !ok {
		var err error
		if lvl, err = logrus.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("unknown log level %s", level)
		}
	}
	n := sort.Search(len(logrus.AllLevels), func(i int) bool {
		return logrus.AllLevels[i] > lvl
	})
	return logrus.AllLevels[:n], nil
}
