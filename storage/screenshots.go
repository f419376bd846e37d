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

package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/liuxd6825/webcheck/common"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`) //nolint:gochecknoglobals

// ScreenshotStore persists screenshots as <dir>/<name>.png.
type ScreenshotStore struct {
	dir       string
	persister Persister
}

var _ common.ArtifactStore = &ScreenshotStore{}

// NewScreenshotStore returns a screenshot store writing below dir.
func NewScreenshotStore(dir string, p Persister) *ScreenshotStore {
	return &ScreenshotStore{dir: dir, persister: p}
}

// Save implements common.ArtifactStore.
func (s *ScreenshotStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, FileName(name)+".png")
	if err := s.persister.Persist(ctx, path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return path, nil
}

// FileName turns an arbitrary test or step name into a file name.
func FileName(name string) string {
	n := strings.Trim(unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_"), "_.")
	if n == "" {
		return "unnamed"
	}
	return n
}
