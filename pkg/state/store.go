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

// Package state persists the pipeline's only durable local state: the
// per-item directory tree of watermark and classification marker files
// beneath <base>/<owner>/<name>/<number>/.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ghactivity/ghactivity/pkg/events"
)

const (
	activeMarker = ".active"
	kindMarker   = ".type"

	// timeLayout is RFC3339 with a numeric UTC offset, matching the
	// timestamps historically written by the Python monitor.
	timeLayout = "2006-01-02T15:04:05.999999-07:00"
)

// Watermark names one of the three per-item timestamp marker files.
type Watermark string

const (
	WatermarkChecked       Watermark = ".last_checked"
	WatermarkIssueComments Watermark = ".last_issue_comment_check"
	WatermarkPRComments    Watermark = ".last_pr_comment_check"
)

// CommentWatermark maps an item kind to its comment-check watermark file.
func CommentWatermark(kind events.Kind) Watermark {
	if kind == events.KindPR {
		return WatermarkPRComments
	}
	return WatermarkIssueComments
}

// Item identifies a tracked item by its repository slug and number. Number is
// kept as a string because it is first and foremost a directory name.
type Item struct {
	Repository string
	Number     string
}

func (i Item) String() string {
	return i.Repository + "#" + i.Number
}

// Store reads and writes the marker-file tree under a base directory. All
// methods are best effort in the sense that a missing marker is a zero value,
// not an error; only I/O failures surface.
type Store struct {
	base string
}

// New creates a Store rooted at base. The directory itself is created lazily
// on first write.
func New(base string) *Store {
	return &Store{base: base}
}

// Base returns the root of the tree.
func (s *Store) Base() string {
	return s.base
}

// ItemDir returns the directory path for an item without creating it.
func (s *Store) ItemDir(repository, number string) string {
	return filepath.Join(s.base, filepath.FromSlash(repository), number)
}

// ItemExists reports whether the item's directory is already present.
func (s *Store) ItemExists(repository, number string) bool {
	info, err := os.Stat(s.ItemDir(repository, number))
	return err == nil && info.IsDir()
}

// EnsureItemDir creates the item's directory (and parents) if needed.
func (s *Store) EnsureItemDir(repository, number string) (string, error) {
	dir := s.ItemDir(repository, number)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create item directory %s: %w", dir, err)
	}
	return dir, nil
}

// ListRepositories enumerates the "owner/name" slugs that have a directory
// beneath the base path. A missing base path yields an empty list.
func (s *Store) ListRepositories() ([]string, error) {
	owners, err := os.ReadDir(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read base directory %s: %w", s.base, err)
	}

	var repos []string
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		names, err := os.ReadDir(filepath.Join(s.base, owner.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read owner directory %s: %w", owner.Name(), err)
		}
		for _, name := range names {
			if name.IsDir() {
				repos = append(repos, owner.Name()+"/"+name.Name())
			}
		}
	}
	return repos, nil
}

// ListItems walks exactly two directory levels beneath each owner directory
// and returns every directory with a numeric name as an item. When activeOnly
// is set, only items carrying the .active marker are returned. When repos is
// non-empty, items outside that repository set are excluded.
func (s *Store) ListItems(activeOnly bool, repos []string) ([]Item, error) {
	allRepos, err := s.ListRepositories()
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, repo := range allRepos {
		if len(repos) > 0 && !slices.Contains(repos, repo) {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.base, filepath.FromSlash(repo)))
		if err != nil {
			return nil, fmt.Errorf("failed to read repository directory %s: %w", repo, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || !isNumeric(entry.Name()) {
				continue
			}
			if activeOnly && !s.IsActive(repo, entry.Name()) {
				continue
			}
			items = append(items, Item{Repository: repo, Number: entry.Name()})
		}
	}
	return items, nil
}

// IsActive reports whether the operator has opted this item in via .active.
func (s *Store) IsActive(repository, number string) bool {
	_, err := os.Stat(filepath.Join(s.ItemDir(repository, number), activeMarker))
	return err == nil
}

// RemoveActive deletes the .active marker. The boolean reports whether the
// marker existed; its absence is not an error.
func (s *Store) RemoveActive(repository, number string) (bool, error) {
	path := filepath.Join(s.ItemDir(repository, number), activeMarker)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return true, nil
}

// ReadWatermark returns the stored timestamp for the named watermark. The
// boolean is false when the item has never been checked.
func (s *Store) ReadWatermark(repository, number string, w Watermark) (time.Time, bool, error) {
	path := filepath.Join(s.ItemDir(repository, number), string(w))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read watermark %s: %w", path, err)
	}
	ts, err := parseTimestamp(strings.TrimSpace(string(raw)))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed watermark %s: %w", path, err)
	}
	return ts, true, nil
}

// WriteWatermark stores the timestamp as the sole content of the watermark
// file, creating the item directory if needed.
func (s *Store) WriteWatermark(repository, number string, w Watermark, ts time.Time) error {
	dir, err := s.EnsureItemDir(repository, number)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, string(w))
	if err := os.WriteFile(path, []byte(formatTimestamp(ts)), 0o644); err != nil {
		return fmt.Errorf("failed to write watermark %s: %w", path, err)
	}
	return nil
}

// ReadKind returns the cached item classification. The boolean is false when
// no valid .type file exists.
func (s *Store) ReadKind(repository, number string) (events.Kind, bool) {
	raw, err := os.ReadFile(filepath.Join(s.ItemDir(repository, number), kindMarker))
	if err != nil {
		return "", false
	}
	kind, err := events.ParseKind(string(raw))
	if err != nil {
		return "", false
	}
	return kind, true
}

// WriteKind persists the item classification. Classification is assigned at
// most once; callers must not overwrite an existing value.
func (s *Store) WriteKind(repository, number string, kind events.Kind) error {
	dir, err := s.EnsureItemDir(repository, number)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, kindMarker)
	if err := os.WriteFile(path, []byte(kind), 0o644); err != nil {
		return fmt.Errorf("failed to write kind %s: %w", path, err)
	}
	return nil
}

// EarliestCommentWatermark returns the minimum comment watermark across all
// items of the given kind in the repository. The boolean is false when any
// such item has never been checked, meaning the poll window must be
// unbounded.
func (s *Store) EarliestCommentWatermark(repository string, kind events.Kind) (time.Time, bool, error) {
	items, err := s.ListItems(false, []string{repository})
	if err != nil {
		return time.Time{}, false, err
	}

	w := CommentWatermark(kind)
	var earliest time.Time
	found := false
	for _, item := range items {
		got, ok := s.ReadKind(item.Repository, item.Number)
		if !ok || got != kind {
			continue
		}
		ts, ok, err := s.ReadWatermark(item.Repository, item.Number, w)
		if err != nil {
			return time.Time{}, false, err
		}
		if !ok {
			return time.Time{}, false, nil
		}
		if !found || ts.Before(earliest) {
			earliest = ts
			found = true
		}
	}
	return earliest, found, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(timeLayout)
}

// parseTimestamp accepts both the offset form this store writes and the
// Zulu form GitHub emits.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
