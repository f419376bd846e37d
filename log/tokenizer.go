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
	"strings"
)

type token struct {
	key   string
	value string
}

// tokenize splits a `key=value,key=value` configuration line. Empty values
// are kept; the caller decides whether a key may be empty.
func tokenize(line string) ([]token, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	parts := strings.Split(line, ",")
	tokens := make([]token, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty key in `%s`", line)
		}
		key, value, _ := strings.Cut(part, "=")
		if key == "" {
			return nil, fmt.Errorf("empty key in `%s`", line)
		}
		tokens = append(tokens, token{key: key, value: value})
	}
	return tokens, nil
}
