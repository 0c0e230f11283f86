// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var intervalUnits = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// ParseInterval parses a compact duration such as "5m", "1h30m", or "2d12h".
// Units are d, h, m, and s; segments are summed. The result must be positive.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("interval is empty")
	}

	var total time.Duration
	rest := s
	for rest != "" {
		i := 0
		for i < len(rest) && unicode.IsDigit(rune(rest[i])) {
			i++
		}
		if i == 0 || i == len(rest) {
			return 0, fmt.Errorf("invalid interval %q, want segments like 5m or 1h30m", s)
		}
		unit, ok := intervalUnits[rest[i]]
		if !ok {
			return 0, fmt.Errorf("invalid interval unit %q in %q, want d, h, m, or s", rest[i], s)
		}
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		total += time.Duration(n) * unit
		rest = rest[i+1:]
	}

	if total <= 0 {
		return 0, fmt.Errorf("interval %q must be positive", s)
	}
	return total, nil
}

// FormatInterval renders a duration in the compact form ParseInterval
// accepts, dropping zero segments. Seconds are the finest unit, so positive
// sub-second durations round up to "1s" to keep the output parseable.
func FormatInterval(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return "1s"
	}

	var b strings.Builder
	for _, seg := range []struct {
		unit time.Duration
		name byte
	}{
		{24 * time.Hour, 'd'},
		{time.Hour, 'h'},
		{time.Minute, 'm'},
		{time.Second, 's'},
	} {
		if n := d / seg.unit; n > 0 {
			fmt.Fprintf(&b, "%d%c", n, seg.name)
			d -= n * seg.unit
		}
	}
	if b.Len() == 0 {
		return "0s"
	}
	return b.String()
}
