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

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/liuxd6825/webcheck/storage"
	"github.com/liuxd6825/webcheck/testutils"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Level{"info": Info, "PASS": Pass, " fail ": Fail, "Warn": Warn} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "debug", "error", "passed"} {
		_, err := ParseLevel(in)
		require.ErrorIs(t, err, ErrUnknownLevel, in)
	}

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, Warn, l)
	_, err := Level(0).MarshalText()
	require.ErrorIs(t, err, ErrUnknownLevel)
}

func TestEntry(t *testing.T) {
	t.Parallel()

	r := New("suite")
	e := r.StartEntry("cookies", 0)
	assert.Equal(t, 1, e.Attempt())
	assert.Equal(t, Pending, e.Status())
	assert.NotEmpty(t, e.ID())

	require.NoError(t, e.Info("opened home page"))
	require.NoError(t, e.Pass("banner visible"))
	require.NoError(t, e.Warn("slow response"))
	require.NoError(t, e.Fail("accept button missing"))
	require.ErrorIs(t, e.Log(Level(42), "x"), ErrUnknownLevel)

	lines := e.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, []Level{Info, Pass, Warn, Fail}, []Level{lines[0].Level, lines[1].Level, lines[2].Level, lines[3].Level})

	require.Error(t, e.Seal(Pending, ""))
	require.NoError(t, e.Seal(Failed, "boom"))
	require.ErrorIs(t, e.Seal(Passed, ""), ErrEntrySealed)
	require.ErrorIs(t, e.Info("late"), ErrEntrySealed)
	assert.Equal(t, Failed, e.Status())

	snap := e.Snapshot()
	assert.Equal(t, "boom", snap.Error)
	assert.Len(t, snap.Lines, 4)
	assert.GreaterOrEqual(t, snap.Duration.Nanoseconds(), int64(0))
}

func TestReportValidateAndSummary(t *testing.T) {
	t.Parallel()

	r := New("suite")
	a1 := r.StartEntry("a", 1)
	require.NoError(t, a1.Seal(Failed, "timeout"))
	a2 := r.StartEntry("a", 2)
	require.NoError(t, a2.Seal(Passed, ""))
	b := r.StartEntry("b", 1)
	c := r.StartEntry("c", 1)

	var pe *PendingEntriesError
	require.ErrorAs(t, r.Validate(), &pe)
	assert.Equal(t, []string{"b", "c"}, pe.Names)

	require.NoError(t, b.Seal(Failed, "x"))
	require.NoError(t, c.Seal(Passed, ""))
	require.NoError(t, r.Validate())

	s := r.Snapshot().Summary
	assert.Equal(t, Summary{Entries: 4, Passed: 2, Failed: 2, Tests: 3, Flaky: 1}, s)
}

type memStore struct {
	mu     sync.Mutex
	writes []Snapshot
}

func (m *memStore) Write(_ context.Context, s Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, s)
	return "mem://report", nil
}

func TestPipelineFlushPolicies(t *testing.T) {
	t.Parallel()

	t.Run("each test", func(t *testing.T) {
		t.Parallel()

		store := &memStore{}
		p := NewPipeline("suite", store, FlushEachTest, nil)
		for _, name := range []string{"a", "b", "c"} {
			e := p.StartReporting(name, 1)
			require.NoError(t, e.Pass("ok"))
			require.NoError(t, p.StopReporting(context.Background(), e, Passed, ""))
		}
		require.Len(t, store.writes, 3)
		// every flush serializes all entries so far
		assert.Len(t, store.writes[0].Entries, 1)
		assert.Len(t, store.writes[2].Entries, 3)
		assert.Equal(t, "mem://report", p.LastFlushed())
	})
	t.Run("at end", func(t *testing.T) {
		t.Parallel()

		store := &memStore{}
		p := NewPipeline("suite", store, FlushAtEnd, nil)
		for _, name := range []string{"a", "b"} {
			e := p.StartReporting(name, 1)
			require.NoError(t, p.StopReporting(context.Background(), e, Failed, "nope"))
		}
		assert.Empty(t, store.writes)

		path, err := p.Flush(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "mem://report", path)
		require.Len(t, store.writes, 1)
		assert.Len(t, store.writes[0].Entries, 2)
	})
	t.Run("pending entry blocks flush", func(t *testing.T) {
		t.Parallel()

		store := &memStore{}
		p := NewPipeline("suite", store, FlushAtEnd, nil)
		p.StartReporting("stuck", 1)

		_, err := p.Flush(context.Background())
		var pe *PendingEntriesError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, []string{"stuck"}, pe.Names)
		assert.Empty(t, store.writes)
	})
	t.Run("no store", func(t *testing.T) {
		t.Parallel()

		p := NewPipeline("suite", nil, FlushAtEnd, nil)
		_, err := p.Flush(context.Background())
		require.ErrorIs(t, err, ErrNoStore)
	})
	t.Run("double stop", func(t *testing.T) {
		t.Parallel()

		p := NewPipeline("suite", &memStore{}, FlushAtEnd, nil)
		e := p.StartReporting("a", 1)
		require.NoError(t, p.StopReporting(context.Background(), e, Passed, ""))
		require.ErrorIs(t, p.StopReporting(context.Background(), e, Failed, "x"), ErrEntrySealed)
		assert.Equal(t, Passed, e.Status())
	})
}

func TestPipelineMirrorsToLogrus(t *testing.T) {
	t.Parallel()

	hook := &testutils.SimpleLogrusHook{HookedLevels: logrus.AllLevels}
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.Out = &bytes.Buffer{}
	logger.AddHook(hook)

	p := NewPipeline("suite", nil, FlushAtEnd, logger)
	e := p.StartReporting("checkout", 2)
	require.NoError(t, e.Info("cart opened"))
	require.NoError(t, e.Warn("coupon ignored"))
	require.NoError(t, e.Fail("total mismatch"))

	all := hook.Drain()
	assert.True(t, testutils.LogContains(all, logrus.DebugLevel, "test started"))
	assert.True(t, testutils.FieldEquals(all, "test", "checkout"))

	var lines []logrus.Entry
	for _, le := range all {
		if _, ok := le.Data["level"]; ok {
			lines = append(lines, le)
		}
	}
	require.Len(t, lines, 3)
	assert.Equal(t, logrus.InfoLevel, lines[0].Level)
	assert.Equal(t, logrus.WarnLevel, lines[1].Level)
	assert.Equal(t, logrus.ErrorLevel, lines[2].Level)
	assert.Equal(t, "total mismatch", lines[2].Message)
	assert.Equal(t, "checkout", lines[2].Data["test"])
	assert.Equal(t, 2, lines[2].Data["attempt"])
	assert.Equal(t, "fail", lines[2].Data["level"])
}

func sealedReport(t *testing.T) *Report {
	t.Helper()

	r := New("Cookie checks <smoke>")
	e := r.StartEntry("accept cookies", 1)
	require.NoError(t, e.Info("opened https://example.com"))
	require.NoError(t, e.Fail("banner still visible"))
	e.Attach("shots/accept_cookies.png")
	require.NoError(t, e.Seal(Failed, "timed out"))
	e = r.StartEntry("accept cookies", 2)
	require.NoError(t, e.Pass("banner dismissed"))
	require.NoError(t, e.Seal(Passed, ""))
	return r
}

func TestHTMLStore(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store, err := NewStore(FormatHTML, "out", storage.NewLocalFilePersister(fs))
	require.NoError(t, err)

	path, err := store.Write(context.Background(), sealedReport(t).Snapshot())
	require.NoError(t, err)
	assert.Equal(t, "out/report.html", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "Cookie checks <smoke>", doc.Find("h1").Text())
	assert.Equal(t, "1 tests", doc.Find("#summary .tests").Text())
	assert.Equal(t, "1 flaky", doc.Find("#summary .flaky").Text())

	entries := doc.Find("section.entry")
	require.Equal(t, 2, entries.Length())
	first := entries.First()
	assert.True(t, first.HasClass("failed"))
	assert.Equal(t, "1", first.AttrOr("data-attempt", ""))
	assert.Equal(t, "timed out", first.Find("pre.error").Text())
	assert.Equal(t, "shots/accept_cookies.png", first.Find(".artifact img").AttrOr("src", ""))
	assert.Equal(t, []string{"info", "fail"}, first.Find("tr.line td.level").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	}))
	assert.True(t, entries.Last().HasClass("passed"))
	assert.Equal(t, 0, entries.Last().Find("pre.error").Length())
}

func TestJSONStore(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store, err := NewStore(FormatJSON, "out", storage.NewLocalFilePersister(fs))
	require.NoError(t, err)

	path, err := store.Write(context.Background(), sealedReport(t).Snapshot())
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var got struct {
		Title   string `json:"title"`
		Entries []struct {
			Name    string `json:"name"`
			Status  string `json:"status"`
			Attempt int    `json:"attempt"`
			Lines   []struct {
				Level string `json:"level"`
			} `json:"lines"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "failed", got.Entries[0].Status)
	assert.Equal(t, "fail", got.Entries[0].Lines[1].Level)
	assert.Equal(t, 2, got.Entries[1].Attempt)
}

func TestXLSXStore(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store, err := NewStore(FormatXLSX, "out", storage.NewLocalFilePersister(fs))
	require.NoError(t, err)

	path, err := store.Write(context.Background(), sealedReport(t).Snapshot())
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Test", "Attempt", "Status", "Duration", "Error", "Artifacts"}, rows[0])
	assert.Equal(t, "failed", rows[1][2])
	assert.Equal(t, "timed out", rows[1][4])

	logRows, err := f.GetRows(logSheet)
	require.NoError(t, err)
	assert.Len(t, logRows, 4)
}

func TestParseFormatAndPolicy(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("HTML")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)
	_, err = ParseFormat("pdf")
	require.Error(t, err)

	p, err := ParseFlushPolicy("each-test")
	require.NoError(t, err)
	assert.Equal(t, FlushEachTest, p)
	p, err = ParseFlushPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FlushAtEnd, p)
	_, err = ParseFlushPolicy("sometimes")
	require.Error(t, err)
}

type persisterFunc func() error

func (f persisterFunc) Persist(context.Context, string, io.Reader) error { return f() }

func TestStoreWriteFailure(t *testing.T) {
	t.Parallel()

	store := &JSONStore{Path: "r.json", Persister: persisterFunc(func() error { return errors.New("disk full") })}
	_, err := store.Write(context.Background(), New("x").Snapshot())
	require.ErrorContains(t, err, "disk full")
	assert.True(t, strings.HasPrefix(err.Error(), "writing json report"))
}
