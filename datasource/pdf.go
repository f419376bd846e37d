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

	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"
)

// PDFText extracts the plain text of pages from..to (1-based, inclusive) of
// a PDF document. A to of 0 means the last page.
func PDFText(fs afero.Fs, path string, from, to int) (string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	fh, err := fs.Open(path)
	if err != nil {
		return "", newError("open", path, err)
	}
	defer fh.Close() //nolint:errcheck

	st, err := fh.Stat()
	if err != nil {
		return "", newError("stat", path, err)
	}
	r, err := pdf.NewReader(fh, st.Size())
	if err != nil {
		return "", newError("parse", path, err)
	}

	n := r.NumPage()
	if to == 0 {
		to = n
	}
	if from < 1 || to > n || from > to {
		return "", newError("read", path, fmt.Errorf("page range %d-%d outside of 1-%d", from, to, n))
	}

	var sb strings.Builder
	for i := from; i <= to; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", newError("read", path, fmt.Errorf("page %d: %w", i, err))
		}
		if sb.Len() > 0 && text != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
