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

package datasource

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config is a read-only set of key/value pairs loaded once per run.
type Config struct {
	source string
	values map[string]string
}

// NewConfig returns a config holding values.
func NewConfig(values map[string]string) *Config {
	c := &Config{values: make(map[string]string, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// LoadConfig reads a .properties, .yaml or .yml file. Nested yaml mappings
// are flattened with dots, so app: {url: x} becomes app.url.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, newError("read config", path, err)
	}

	var values map[string]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".properties":
		values, err = parseProperties(data)
	case ".yaml", ".yml":
		values, err = parseYAML(data)
	default:
		err = fmt.Errorf("unsupported config format %q, expected .properties, .yaml or .yml", ext)
	}
	if err != nil {
		return nil, newError("parse config", path, err)
	}
	c := NewConfig(values)
	c.source = path
	return c, nil
}

func parseProperties(data []byte) (map[string]string, error) {
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}

func parseYAML(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	flatten("", raw, values)
	return values, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch vv := v.(type) {
		case map[string]any:
			flatten(key, vv, out)
		case nil:
			out[key] = ""
		case []any:
			parts := make([]string, len(vv))
			for i, p := range vv {
				parts[i] = fmt.Sprint(p)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(vv)
		}
	}
}

// Source returns the path the config was loaded from.
func (c *Config) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Get returns the value of key, or "" when it is missing.
func (c *Config) Get(key string) string {
	v, _ := c.Lookup(key)
	return v
}

// Lookup returns the value of key and whether it was present.
func (c *Config) Lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the sorted keys.
func (c *Config) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of all pairs.
func (c *Config) Map() map[string]string {
	out := make(map[string]string)
	if c == nil {
		return out
	}
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
