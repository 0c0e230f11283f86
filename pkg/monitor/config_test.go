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
	"testing"
	"time"
)

func TestConfigFinish(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		MonitorIssues:        true,
		MonitorPRs:           true,
		MonitorIssueComments: true,
		MonitorPRComments:    true,
		ActiveOnly:           true,

		noMonitorPRs: true,
		noActiveOnly: true,
	}
	cfg.Finish()

	if !cfg.MonitorIssues || !cfg.MonitorIssueComments || !cfg.MonitorPRComments {
		t.Error("unnegated toggles were changed")
	}
	if cfg.MonitorPRs {
		t.Error("no-monitor-prs did not disable pr monitoring")
	}
	if cfg.ActiveOnly {
		t.Error("no-active-only did not disable active-only")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "minimal", cfg: Config{BasePath: "/tmp/x"}},
		{name: "missing_base", cfg: Config{}, wantErr: true},
		{name: "good_since", cfg: Config{BasePath: "/tmp/x", UpdatedSince: "2025-06-01T00:00:00Z"}},
		{name: "bad_since", cfg: Config{BasePath: "/tmp/x", UpdatedSince: "yesterday"}, wantErr: true},
		{name: "good_interval", cfg: Config{BasePath: "/tmp/x", Interval: "1h30m"}},
		{name: "bad_interval", cfg: Config{BasePath: "/tmp/x", Interval: "0s"}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %t", err, tc.wantErr)
			}
		})
	}
}

func TestConfigValidateParsesDerived(t *testing.T) {
	t.Parallel()

	cfg := Config{BasePath: "/tmp/x", UpdatedSince: "2025-06-01T02:00:00+02:00", Interval: "2d"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := cfg.UpdatedSinceTime(); got == nil || !got.Equal(want) {
		t.Errorf("UpdatedSinceTime = %v, want %v", got, want)
	}
	if got := cfg.IntervalDuration(); got != 48*time.Hour {
		t.Errorf("IntervalDuration = %v, want 48h", got)
	}
}
