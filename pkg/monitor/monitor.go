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

// Package monitor polls GitHub for issue, pull request, and comment activity
// and publishes events onto the stream.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghactivity/ghactivity/pkg/events"
	"github.com/ghactivity/ghactivity/pkg/state"
)

// Poller reads activity from GitHub.
type Poller interface {
	ListOpenItems(ctx context.Context, repository string, since *time.Time, kind events.Kind) (map[string]*events.TrackedItem, error)
	ListRepoComments(ctx context.Context, repository string, kind events.Kind, since *time.Time) (map[string][]*events.Comment, error)
	Classify(ctx context.Context, repository string, number int) (events.Kind, error)
}

// Publisher writes events onto the stream.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

// NopPublisher discards events. Used for dry runs, which gate publishing
// themselves but still need a Publisher wired.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, subject string, event any) error {
	return nil
}

// Stats counts what the monitor has published since it started.
type Stats struct {
	Cycles   int
	New      int
	Updated  int
	Closed   int
	Comments int
}

// Monitor runs polling cycles against a set of repositories.
type Monitor struct {
	cfg    *Config
	store  *state.Store
	poller Poller
	pub    Publisher

	// now is the clock, replaceable in tests.
	now func() time.Time

	stats Stats
}

// New builds a Monitor over the given collaborators.
func New(cfg *Config, store *state.Store, poller Poller, pub Publisher) *Monitor {
	return &Monitor{
		cfg:    cfg,
		store:  store,
		poller: poller,
		pub:    pub,
		now:    time.Now,
	}
}

// Stats returns a copy of the running totals.
func (m *Monitor) Stats() Stats {
	return m.stats
}

// Run executes cycles until the context is canceled. With no interval
// configured it runs exactly one cycle.
func (m *Monitor) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	interval := m.cfg.IntervalDuration()
	if interval == 0 {
		return m.runCycle(ctx)
	}

	logger.InfoContext(ctx, "starting interval mode", "interval", FormatInterval(interval))
	for {
		start := m.now()
		if err := m.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.ErrorContext(ctx, "cycle failed", "error", err)
		}

		elapsed := m.now().Sub(start)
		if elapsed >= interval {
			logger.WarnContext(ctx, "cycle exceeded interval, starting next cycle immediately",
				"elapsed", elapsed.String(),
				"interval", FormatInterval(interval))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		select {
		case <-time.After(interval - elapsed):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.InfoContext(ctx, "monitor interrupted",
		"cycles", m.stats.Cycles,
		"new", m.stats.New,
		"updated", m.stats.Updated,
		"closed", m.stats.Closed,
		"comments", m.stats.Comments)
	return nil
}

// enabledKinds lists the item kinds the config monitors.
func (m *Monitor) enabledKinds() []events.Kind {
	var kinds []events.Kind
	if m.cfg.MonitorIssues {
		kinds = append(kinds, events.KindIssue)
	}
	if m.cfg.MonitorPRs {
		kinds = append(kinds, events.KindPR)
	}
	return kinds
}

// commentKinds lists the kinds whose comments the config monitors.
func (m *Monitor) commentKinds() []events.Kind {
	var kinds []events.Kind
	if m.cfg.MonitorIssueComments {
		kinds = append(kinds, events.KindIssue)
	}
	if m.cfg.MonitorPRComments {
		kinds = append(kinds, events.KindPR)
	}
	return kinds
}

// runCycle performs one full monitoring pass. All state written during the
// cycle carries the cycle's start time.
func (m *Monitor) runCycle(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	repos := m.cfg.Repositories
	if len(repos) == 0 {
		var err error
		repos, err = m.store.ListRepositories()
		if err != nil {
			return fmt.Errorf("failed to list tracked repositories: %w", err)
		}
	}
	if len(repos) == 0 {
		return fmt.Errorf("no repositories to monitor: pass -repositories or seed the base path")
	}

	cycleStart := m.now().UTC()
	m.stats.Cycles++
	logger.InfoContext(ctx, "starting cycle", "repositories", repos, "dry_run", m.cfg.DryRun)

	m.discover(ctx, repos, cycleStart)

	active, err := m.store.ListItems(m.cfg.ActiveOnly, repos)
	if err != nil {
		return fmt.Errorf("failed to scan tracked items: %w", err)
	}
	byKind := m.splitByKind(ctx, active)

	m.updateAndClose(ctx, byKind, cycleStart)
	m.pollComments(ctx, byKind, cycleStart)

	logger.InfoContext(ctx, "cycle complete",
		"new", m.stats.New,
		"updated", m.stats.Updated,
		"closed", m.stats.Closed,
		"comments", m.stats.Comments)
	return ctx.Err()
}

// discover finds open items without a local directory and publishes new
// events for them.
func (m *Monitor) discover(ctx context.Context, repos []string, cycleStart time.Time) {
	logger := logging.FromContext(ctx)

	for _, kind := range m.enabledKinds() {
		for _, repo := range repos {
			items, err := m.poller.ListOpenItems(ctx, repo, m.cfg.UpdatedSinceTime(), kind)
			if err != nil {
				logger.ErrorContext(ctx, "discovery poll failed", "repository", repo, "kind", kind, "error", err)
				continue
			}

			for number, item := range items {
				if m.store.ItemExists(repo, number) {
					continue
				}
				logger.InfoContext(ctx, "new item discovered", "repository", repo, "number", number, "kind", kind)

				subject := events.Subject(kind, events.ActionNew)
				if m.cfg.DryRun {
					logger.InfoContext(ctx, "dry run: would publish and record", "subject", subject)
					continue
				}
				if err := m.pub.Publish(ctx, subject, events.NewItemEvent(item)); err != nil {
					logger.ErrorContext(ctx, "publish failed", "subject", subject, "error", err)
					continue
				}
				m.stats.New++
				if err := m.store.WriteWatermark(repo, number, state.WatermarkChecked, cycleStart); err != nil {
					logger.ErrorContext(ctx, "failed to write watermark", "repository", repo, "number", number, "error", err)
				}
				if err := m.store.WriteKind(repo, number, kind); err != nil {
					logger.ErrorContext(ctx, "failed to write kind", "repository", repo, "number", number, "error", err)
				}
			}
		}
	}
}

// splitByKind groups the active items by their cached kind, probing GitHub
// for items whose kind is not yet recorded.
func (m *Monitor) splitByKind(ctx context.Context, items []state.Item) map[events.Kind][]state.Item {
	logger := logging.FromContext(ctx)

	byKind := make(map[events.Kind][]state.Item)
	for _, item := range items {
		kind, ok := m.store.ReadKind(item.Repository, item.Number)
		if !ok {
			n, err := strconv.Atoi(item.Number)
			if err != nil {
				logger.WarnContext(ctx, "skipping item with non-numeric directory", "item", item.String())
				continue
			}
			kind, err = m.poller.Classify(ctx, item.Repository, n)
			if err != nil {
				logger.ErrorContext(ctx, "failed to classify item, skipping", "item", item.String(), "error", err)
				continue
			}
			if !m.cfg.DryRun {
				if err := m.store.WriteKind(item.Repository, item.Number, kind); err != nil {
					logger.WarnContext(ctx, "failed to cache item kind", "item", item.String(), "error", err)
				}
			}
		}
		byKind[kind] = append(byKind[kind], item)
	}
	return byKind
}

// updateAndClose publishes updated events for open active items whose
// upstream update time passed the stored watermark, and closed events for
// active items no longer in the open set.
func (m *Monitor) updateAndClose(ctx context.Context, byKind map[events.Kind][]state.Item, cycleStart time.Time) {
	logger := logging.FromContext(ctx)

	for _, kind := range m.enabledKinds() {
		for _, repo := range repositoriesOf(byKind[kind]) {
			open, err := m.poller.ListOpenItems(ctx, repo, nil, kind)
			if err != nil {
				logger.ErrorContext(ctx, "update poll failed", "repository", repo, "kind", kind, "error", err)
				continue
			}

			for _, item := range byKind[kind] {
				if item.Repository != repo {
					continue
				}
				if tracked, ok := open[item.Number]; ok {
					m.publishUpdated(ctx, kind, item, tracked, cycleStart)
				} else {
					m.publishClosed(ctx, kind, item, cycleStart)
				}
			}
		}
	}
}

func (m *Monitor) publishUpdated(ctx context.Context, kind events.Kind, item state.Item, tracked *events.TrackedItem, cycleStart time.Time) {
	logger := logging.FromContext(ctx)

	watermark, haveWatermark, err := m.store.ReadWatermark(item.Repository, item.Number, state.WatermarkChecked)
	if err != nil {
		logger.WarnContext(ctx, "failed to read watermark, treating item as updated", "item", item.String(), "error", err)
		haveWatermark = false
	}

	subject := events.Subject(kind, events.ActionUpdated)
	fresh := !haveWatermark || tracked.UpdatedAt.After(watermark)

	if m.cfg.DryRun {
		if fresh {
			logger.InfoContext(ctx, "dry run: would publish", "subject", subject, "item", item.String())
		}
		return
	}

	if fresh {
		if err := m.pub.Publish(ctx, subject, events.NewItemEvent(tracked)); err != nil {
			logger.ErrorContext(ctx, "publish failed", "subject", subject, "item", item.String(), "error", err)
			return
		}
		m.stats.Updated++
	}

	// The check time advances even when no event is emitted.
	if err := m.store.WriteWatermark(item.Repository, item.Number, state.WatermarkChecked, cycleStart); err != nil {
		logger.ErrorContext(ctx, "failed to write watermark", "item", item.String(), "error", err)
	}
}

func (m *Monitor) publishClosed(ctx context.Context, kind events.Kind, item state.Item, cycleStart time.Time) {
	logger := logging.FromContext(ctx)

	subject := events.Subject(kind, events.ActionClosed)
	logger.InfoContext(ctx, "item closed", "item", item.String(), "kind", kind)

	if m.cfg.DryRun {
		logger.InfoContext(ctx, "dry run: would publish", "subject", subject, "item", item.String())
		return
	}

	if err := m.pub.Publish(ctx, subject, events.NewClosedEvent(item.Repository, item.Number)); err != nil {
		logger.ErrorContext(ctx, "publish failed", "subject", subject, "item", item.String(), "error", err)
		return
	}
	m.stats.Closed++
	if err := m.store.WriteWatermark(item.Repository, item.Number, state.WatermarkChecked, cycleStart); err != nil {
		logger.ErrorContext(ctx, "failed to write watermark", "item", item.String(), "error", err)
	}
}

// pollComments publishes comment events for active items. The repo-wide
// query uses the earliest per-item watermark; each item then filters by its
// own watermark, which advances to the cycle start unless a publish failed.
func (m *Monitor) pollComments(ctx context.Context, byKind map[events.Kind][]state.Item, cycleStart time.Time) {
	logger := logging.FromContext(ctx)

	for _, kind := range m.commentKinds() {
		for _, repo := range repositoriesOf(byKind[kind]) {
			var since *time.Time
			earliest, bounded, err := m.store.EarliestCommentWatermark(repo, kind)
			if err != nil {
				logger.WarnContext(ctx, "failed to read comment watermarks, fetching everything", "repository", repo, "error", err)
			} else if bounded {
				since = &earliest
			}

			comments, err := m.poller.ListRepoComments(ctx, repo, kind, since)
			if err != nil {
				logger.ErrorContext(ctx, "comment poll failed", "repository", repo, "kind", kind, "error", err)
				continue
			}

			for _, item := range byKind[kind] {
				if item.Repository != repo {
					continue
				}
				m.publishComments(ctx, kind, item, comments[item.Number], cycleStart)
			}
		}
	}
}

func (m *Monitor) publishComments(ctx context.Context, kind events.Kind, item state.Item, comments []*events.Comment, cycleStart time.Time) {
	logger := logging.FromContext(ctx)

	watermark, haveWatermark, err := m.store.ReadWatermark(item.Repository, item.Number, state.CommentWatermark(kind))
	if err != nil {
		logger.WarnContext(ctx, "failed to read comment watermark, treating all comments as new", "item", item.String(), "error", err)
		haveWatermark = false
	}

	subject := events.Subject(kind, events.ActionCommentNew)
	publishFailed := false
	for _, c := range comments {
		if haveWatermark && !c.UpdatedAt.After(watermark) {
			continue
		}
		if m.cfg.DryRun {
			logger.InfoContext(ctx, "dry run: would publish", "subject", subject, "item", item.String(), "author", c.Author)
			continue
		}
		if err := m.pub.Publish(ctx, subject, events.NewCommentEvent(kind, item.Repository, item.Number, c)); err != nil {
			logger.ErrorContext(ctx, "publish failed", "subject", subject, "item", item.String(), "error", err)
			publishFailed = true
			continue
		}
		m.stats.Comments++
	}

	// Items with no new comments still advance their watermark. A failed
	// publish holds it back so the comment is retried next cycle.
	if !m.cfg.DryRun && !publishFailed {
		if err := m.store.WriteWatermark(item.Repository, item.Number, state.CommentWatermark(kind), cycleStart); err != nil {
			logger.ErrorContext(ctx, "failed to write comment watermark", "item", item.String(), "error", err)
		}
	}
}

// repositoriesOf returns the distinct repositories of the items, in first
// appearance order.
func repositoriesOf(items []state.Item) []string {
	var repos []string
	seen := make(map[string]bool)
	for _, item := range items {
		if !seen[item.Repository] {
			seen[item.Repository] = true
			repos = append(repos, item.Repository)
		}
	}
	return repos
}
