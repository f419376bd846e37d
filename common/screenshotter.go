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

package common

import (
	"context"
	"fmt"

	"github.com/liuxd6825/webcheck/log"
)

// ArtifactStore persists raw screenshot bytes under a name and returns the
// resulting path.
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Screenshotter captures window and element screenshots into an
// ArtifactStore.
type Screenshotter struct {
	session *Session
	wait    *WaitEngine
	store   ArtifactStore
	logger  *log.Logger
}

// NewScreenshotter returns a screenshotter. A nil store makes every capture
// fail with ErrMissingArtifactSink.
func NewScreenshotter(s *Session, wait *WaitEngine, store ArtifactStore, logger *log.Logger) *Screenshotter {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Screenshotter{session: s, wait: wait, store: store, logger: logger}
}

// Window captures the focused window and returns the stored path.
func (sc *Screenshotter) Window(ctx context.Context, name string) (string, error) {
	if sc.store == nil {
		return "", ErrMissingArtifactSink
	}
	d, err := sc.session.Driver()
	if err != nil {
		return "", err
	}
	buf, err := d.Screenshot()
	if err != nil {
		return "", fmt.Errorf("capturing window screenshot %q: %w", name, err)
	}
	return sc.save(ctx, name, buf)
}

// Element captures the element addressed by loc and returns the stored path.
func (sc *Screenshotter) Element(ctx context.Context, loc Locator, name string) (string, error) {
	if sc.store == nil {
		return "", ErrMissingArtifactSink
	}
	el, err := sc.wait.WaitForVisible(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("capturing element screenshot %q: %w", name, err)
	}
	buf, err := el.Screenshot()
	if err != nil {
		return "", interactionError("screenshot", loc, err)
	}
	return sc.save(ctx, name, buf)
}

func (sc *Screenshotter) save(ctx context.Context, name string, buf []byte) (string, error) {
	path, err := sc.store.Save(ctx, name, buf)
	if err != nil {
		return "", fmt.Errorf("saving screenshot %q: %w", name, err)
	}
	sc.logger.Debugf(categoryShots, "saved screenshot %q to %s (%d bytes)", name, path, len(buf))
	return path, nil
}
