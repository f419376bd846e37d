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
	"strings"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by the header of its column.
type Row map[string]string

// Excel reads xlsx workbooks.
type Excel struct {
	fs afero.Fs
}

// NewExcel returns a reader on fs, or on the OS filesystem when fs is nil.
func NewExcel(fs afero.Fs) *Excel {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Excel{fs: fs}
}

func (x *Excel) rows(path, sheet string) ([][]string, error) {
	fh, err := x.fs.Open(path)
	if err != nil {
		return nil, newError("open", path, err)
	}
	defer fh.Close() //nolint:errcheck

	f, err := excelize.OpenReader(fh)
	if err != nil {
		return nil, newError("parse", path, err)
	}
	defer f.Close() //nolint:errcheck

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, newError("read", path, fmt.Errorf("workbook has no sheets: %w", ErrNoSuchSheet))
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, newError("read", path, fmt.Errorf("sheet %q: %w", sheet, ErrNoSuchSheet))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, newError("read", path, fmt.Errorf("sheet %q: %w", sheet, err))
	}
	return rows, nil
}

// ReadRows returns every data row of sheet as a mapping from column header
// to cell value. Row 1 holds the headers; columns with an empty header and
// rows without any value are skipped. An empty sheet name reads the first
// sheet.
func (x *Excel) ReadRows(path, sheet string) ([]Row, error) {
	rows, err := x.rows(path, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Row{}, nil
	}

	header := rows[0]
	out := make([]Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := make(Row, len(header))
		empty := true
		for i, h := range header {
			h = strings.TrimSpace(h)
			if h == "" {
				continue
			}
			var v string
			if i < len(cells) {
				v = cells[i]
			}
			if v != "" {
				empty = false
			}
			row[h] = v
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out, nil
}

// ReadGrid returns the raw cells of sheet, in order. With skipHeader the
// first row is left out.
func (x *Excel) ReadGrid(path, sheet string, skipHeader bool) ([][]string, error) {
	rows, err := x.rows(path, sheet)
	if err != nil {
		return nil, err
	}
	if skipHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}
