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

import "time"

// Default timeouts and intervals.
const (
	DefaultTimeout      time.Duration = 30 * time.Second
	DefaultPollInterval time.Duration = 500 * time.Millisecond
	MinPollInterval     time.Duration = 10 * time.Millisecond
)

// Log categories.
const (
	categoryDriver  = "DriverManager"
	categoryActions = "ElementActions"
	categoryWait    = "WaitEngine"
	categoryWindows = "WindowManager"
	categoryPage    = "Page"
	categoryShots   = "Screenshotter"
)

const (
	scrollIntoViewScript = `arguments[0].scrollIntoView(true);`
	jsClickScript        = `arguments[0].click();`
	scrollToTopScript    = `window.scrollTo(0, 0);`
	scrollToBottomScript = `window.scrollTo(0, document.body.scrollHeight);`
)
