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

package cli

import (
	"context"
	"testing"
	"time"

	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/testutil"

	"github.com/ghactivity/ghactivity/pkg/events"
)

type staticPoller struct {
	items map[string]*events.TrackedItem
}

func (p *staticPoller) ListOpenItems(ctx context.Context, repository string, since *time.Time, kind events.Kind) (map[string]*events.TrackedItem, error) {
	out := make(map[string]*events.TrackedItem)
	for n, item := range p.items {
		if item.Kind == kind {
			out[n] = item
		}
	}
	return out, nil
}

func (p *staticPoller) ListRepoComments(ctx context.Context, repository string, kind events.Kind, since *time.Time) (map[string][]*events.Comment, error) {
	return nil, nil
}

func (p *staticPoller) Classify(ctx context.Context, repository string, number int) (events.Kind, error) {
	return events.KindIssue, nil
}

type countingPublisher struct {
	subjects []string
}

func (p *countingPublisher) Publish(ctx context.Context, subject string, event any) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func TestMonitorCommand(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	cases := []struct {
		name         string
		args         []string
		expErr       string
		wantSubjects []string
	}{
		{
			name:   "missing_base_path",
			args:   []string{"-repositories", "octo/hello"},
			expErr: `expected exactly one <base-path> argument`,
		},
		{
			name:   "too_many_args",
			args:   []string{"a", "b"},
			expErr: `expected exactly one <base-path> argument`,
		},
		{
			name:   "bad_interval",
			args:   []string{"-repositories", "octo/hello", "-interval", "0s", "BASE"},
			expErr: `invalid configuration`,
		},
		{
			name:   "bad_updated_since",
			args:   []string{"-repositories", "octo/hello", "-updated-since", "yesterday", "BASE"},
			expErr: `invalid configuration`,
		},
		{
			name:         "one_shot_discovery",
			args:         []string{"-repositories", "octo/hello", "-no-monitor-prs", "BASE"},
			wantSubjects: []string{"github.issue.new"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			args := make([]string, 0, len(tc.args))
			for _, a := range tc.args {
				if a == "BASE" {
					a = t.TempDir()
				}
				args = append(args, a)
			}

			pub := &countingPublisher{}
			cmd := &MonitorCommand{
				testPoller: &staticPoller{items: map[string]*events.TrackedItem{
					"7": {
						Repository: "octo/hello",
						Number:     7,
						Kind:       events.KindIssue,
						State:      "OPEN",
						UpdatedAt:  time.Now().UTC(),
						Author:     "octocat",
					},
				}},
				testPublisher: pub,
			}

			err := cmd.Run(ctx, args)
			if diff := testutil.DiffErrString(err, tc.expErr); diff != "" {
				t.Fatal(diff)
			}
			if err != nil {
				return
			}

			if len(pub.subjects) != len(tc.wantSubjects) {
				t.Fatalf("published %v, want %v", pub.subjects, tc.wantSubjects)
			}
			for i := range tc.wantSubjects {
				if pub.subjects[i] != tc.wantSubjects[i] {
					t.Errorf("subject[%d] = %q, want %q", i, pub.subjects[i], tc.wantSubjects[i])
				}
			}
		})
	}
}
