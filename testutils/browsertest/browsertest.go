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

// Package browsertest provides an in-memory browser automation backend and
// helpers to launch sessions against it in tests.
package browsertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/log"
)

// BrowserTest is a launched fake browser with a page bound to its session.
type BrowserTest struct {
	Ctx       context.Context
	Backend   *Backend
	Manager   *common.DriverManager
	Session   *common.Session
	Driver    *Driver
	Page      *common.Page
	Artifacts *MemoryArtifacts
}

// Option configures New.
type Option func(*options)

type options struct {
	wait   common.WaitConfiguration
	logger *log.Logger
	setup  func(*Driver)
	appURL string
}

// WithWait sets the wait configuration of the page.
func WithWait(timeout, poll time.Duration) Option {
	return func(o *options) { o.wait = mustWait(timeout, poll) }
}

// WithLogger sets the logger of the manager and the page.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSetup lays out the fake driver before the page is created.
func WithSetup(fn func(*Driver)) Option {
	return func(o *options) { o.setup = fn }
}

// WithAppURL sets the application URL opened by LaunchApplication.
func WithAppURL(url string) Option {
	return func(o *options) { o.appURL = url }
}

// New launches a fake chrome session and binds a page to it.
// It automatically tears the session down when `t` returns.
func New(tb testing.TB, opts ...Option) *BrowserTest {
	tb.Helper()

	o := options{
		wait:   mustWait(time.Second, 10*time.Millisecond),
		logger: log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	backend := NewBackend()
	backend.Setup = o.setup
	dm := common.NewDriverManager(backend, o.logger)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := dm.Launch(ctx, "chrome")
	require.NoError(tb, err)
	tb.Cleanup(func() {
		cancel()
		require.NoError(tb, dm.Teardown())
	})

	artifacts := NewMemoryArtifacts()
	return &BrowserTest{
		Ctx:       ctx,
		Backend:   backend,
		Manager:   dm,
		Session:   s,
		Driver:    backend.Last(),
		Artifacts: artifacts,
		Page: common.NewPage(s, common.PageOptions{
			Wait:      o.wait,
			AppURL:    o.appURL,
			Artifacts: artifacts,
			Logger:    o.logger,
		}),
	}
}

func mustWait(timeout, poll time.Duration) common.WaitConfiguration {
	cfg, err := common.NewWaitConfiguration(timeout, poll)
	if err != nil {
		panic(err)
	}
	return cfg
}

// MemoryArtifacts is a common.ArtifactStore keeping screenshots in memory.
type MemoryArtifacts struct {
	mu    sync.Mutex
	Files map[string][]byte
}

// NewMemoryArtifacts returns an empty artifact store.
func NewMemoryArtifacts() *MemoryArtifacts {
	return &MemoryArtifacts{Files: make(map[string][]byte)}
}

// Save implements common.ArtifactStore.
func (m *MemoryArtifacts) Save(_ context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "mem://" + name + ".png"
	m.Files[path] = data
	return path, nil
}

// Get returns the bytes saved under path.
func (m *MemoryArtifacts) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Files[path]
	return b, ok
}
