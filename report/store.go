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
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/liuxd6825/webcheck/storage"
)

// Store persists a full report snapshot and returns where it was written.
type Store interface {
	Write(ctx context.Context, s Snapshot) (string, error)
}

// Format names a report file format.
type Format string

// Supported report formats.
const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat returns the format named s, ignoring case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q, expected one of html, json, xlsx", s)
	}
}

// NewStore returns the store for format writing <dir>/report.<format>
// through p.
func NewStore(format Format, dir string, p storage.Persister) (Store, error) {
	path := filepath.Join(dir, "report."+string(format))
	switch format {
	case FormatHTML:
		return &HTMLStore{Path: path, Persister: p}, nil
	case FormatJSON:
		return &JSONStore{Path: path, Persister: p}, nil
	case FormatXLSX:
		return &XLSXStore{Path: path, Persister: p}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

//go:embed report.html.tmpl
var htmlTemplate string

//nolint:gochecknoglobals
var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"since": func(d time.Duration) string { return d.Round(time.Millisecond).String() },
	"ts":    func(t time.Time) string { return t.Format("2006-01-02 15:04:05.000") },
}).Parse(htmlTemplate))

// HTMLStore renders the report as a single browsable HTML page.
type HTMLStore struct {
	Path      string
	Persister storage.Persister
}

// Write implements Store.
func (h *HTMLStore) Write(ctx context.Context, s Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("rendering html report: %w", err)
	}
	if err := h.Persister.Persist(ctx, h.Path, &buf); err != nil {
		return "", fmt.Errorf("writing html report: %w", err)
	}
	return h.Path, nil
}

// JSONStore writes the report as indented JSON.
type JSONStore struct {
	Path      string
	Persister storage.Persister
}

// Write implements Store.
func (j *JSONStore) Write(ctx context.Context, s Snapshot) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("encoding json report: %w", err)
	}
	if err := j.Persister.Persist(ctx, j.Path, &buf); err != nil {
		return "", fmt.Errorf("writing json report: %w", err)
	}
	return j.Path, nil
}

// XLSXStore writes one row per entry to a "Results" sheet and every log
// line to a "Log" sheet.
type XLSXStore struct {
	Path      string
	Persister storage.Persister
}

const (
	resultsSheet = "Results"
	logSheet     = "Log"
)

// Write implements Store.
func (x *XLSXStore) Write(ctx context.Context, s Snapshot) (_ string, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return "", fmt.Errorf("naming results sheet: %w", err)
	}
	if _, err := f.NewSheet(logSheet); err != nil {
		return "", fmt.Errorf("creating log sheet: %w", err)
	}

	results := [][]any{{"Test", "Attempt", "Status", "Duration", "Error", "Artifacts"}}
	logs := [][]any{{"Test", "Attempt", "Time", "Level", "Message"}}
	for _, e := range s.Entries {
		results = append(results, []any{
			e.Name, e.Attempt, e.Status.String(), e.Duration.String(), e.Error, strings.Join(e.Artifacts, "\n"),
		})
		for _, l := range e.Lines {
			logs = append(logs, []any{e.Name, e.Attempt, l.Time.Format(time.RFC3339Nano), l.Level.String(), l.Message})
		}
	}
	if err := writeRows(f, resultsSheet, results); err != nil {
		return "", err
	}
	if err := writeRows(f, logSheet, logs); err != nil {
		return "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("encoding xlsx report: %w", err)
	}
	if err := x.Persister.Persist(ctx, x.Path, buf); err != nil {
		return "", fmt.Errorf("writing xlsx report: %w", err)
	}
	return x.Path, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
