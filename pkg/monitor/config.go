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
	"errors"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/cli"
)

// Config holds the monitor service configuration.
type Config struct {
	BasePath     string
	Repositories []string
	NATSServer   string
	DryRun       bool
	UpdatedSince string
	Interval     string

	MonitorIssues        bool
	MonitorPRs           bool
	MonitorIssueComments bool
	MonitorPRComments    bool
	ActiveOnly           bool

	// negated counterparts, resolved by Finish.
	noMonitorIssues        bool
	noMonitorPRs           bool
	noMonitorIssueComments bool
	noMonitorPRComments    bool
	noActiveOnly           bool

	// parsed forms, populated by Validate.
	updatedSince *time.Time
	interval     time.Duration
}

// ToFlags binds the config to the given [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("MONITOR OPTIONS")

	f.StringSliceVar(&cli.StringSliceVar{
		Name:   "repositories",
		Target: &cfg.Repositories,
		EnvVar: "GHACTIVITY_REPOSITORIES",
		Usage:  `Repositories to monitor as owner/name slugs. Defaults to the repositories already present under the base path.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "nats-server",
		Target:  &cfg.NATSServer,
		EnvVar:  "NATS_SERVER",
		Default: "nats://localhost:4222",
		Usage:   `NATS server URL.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "dry-run",
		Target: &cfg.DryRun,
		Usage:  `Log what would be published without publishing or writing state.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "updated-since",
		Target: &cfg.UpdatedSince,
		Usage:  `Only discover issues updated at or after this RFC 3339 timestamp.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "interval",
		Target: &cfg.Interval,
		Usage:  `Repeat cycles at this interval (for example 5m, 1h30m, 2d12h). Runs one cycle when unset.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "monitor-issues",
		Target:  &cfg.MonitorIssues,
		Default: true,
		Usage:   `Publish events for issues (new, updated, closed).`,
	})
	f.BoolVar(&cli.BoolVar{
		Name:   "no-monitor-issues",
		Target: &cfg.noMonitorIssues,
		Usage:  `Disable issue monitoring.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "monitor-prs",
		Target:  &cfg.MonitorPRs,
		Default: true,
		Usage:   `Publish events for pull requests (new, updated, closed).`,
	})
	f.BoolVar(&cli.BoolVar{
		Name:   "no-monitor-prs",
		Target: &cfg.noMonitorPRs,
		Usage:  `Disable pull request monitoring.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "monitor-issue-comments",
		Target:  &cfg.MonitorIssueComments,
		Default: true,
		Usage:   `Publish events for new comments on active issues.`,
	})
	f.BoolVar(&cli.BoolVar{
		Name:   "no-monitor-issue-comments",
		Target: &cfg.noMonitorIssueComments,
		Usage:  `Disable issue comment monitoring.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "monitor-pr-comments",
		Target:  &cfg.MonitorPRComments,
		Default: true,
		Usage:   `Publish events for new comments on active pull requests.`,
	})
	f.BoolVar(&cli.BoolVar{
		Name:   "no-monitor-pr-comments",
		Target: &cfg.noMonitorPRComments,
		Usage:  `Disable pull request comment monitoring.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "active-only",
		Target:  &cfg.ActiveOnly,
		Default: true,
		Usage:   `Only track items flagged with an .active file.`,
	})
	f.BoolVar(&cli.BoolVar{
		Name:   "no-active-only",
		Target: &cfg.noActiveOnly,
		Usage:  `Track every item directory regardless of .active flags.`,
	})

	return set
}

// Finish applies the negated flags. Call after flag parsing.
func (cfg *Config) Finish() {
	if cfg.noMonitorIssues {
		cfg.MonitorIssues = false
	}
	if cfg.noMonitorPRs {
		cfg.MonitorPRs = false
	}
	if cfg.noMonitorIssueComments {
		cfg.MonitorIssueComments = false
	}
	if cfg.noMonitorPRComments {
		cfg.MonitorPRComments = false
	}
	if cfg.noActiveOnly {
		cfg.ActiveOnly = false
	}
}

// Validate checks the config and parses the derived fields.
func (cfg *Config) Validate() error {
	var merr error

	if cfg.BasePath == "" {
		merr = errors.Join(merr, fmt.Errorf("base path argument is required"))
	}

	if cfg.UpdatedSince != "" {
		t, err := time.Parse(time.RFC3339, cfg.UpdatedSince)
		if err != nil {
			merr = errors.Join(merr, fmt.Errorf("invalid -updated-since %q: %w", cfg.UpdatedSince, err))
		} else {
			utc := t.UTC()
			cfg.updatedSince = &utc
		}
	}

	if cfg.Interval != "" {
		d, err := ParseInterval(cfg.Interval)
		if err != nil {
			merr = errors.Join(merr, fmt.Errorf("invalid -interval: %w", err))
		} else {
			cfg.interval = d
		}
	}

	return merr
}

// UpdatedSinceTime returns the parsed -updated-since bound, nil when unset.
func (cfg *Config) UpdatedSinceTime() *time.Time {
	return cfg.updatedSince
}

// IntervalDuration returns the parsed -interval, zero for one-shot mode.
func (cfg *Config) IntervalDuration() time.Duration {
	return cfg.interval
}
