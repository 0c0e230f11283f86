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

package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		kind   Kind
		action Action
		want   string
	}{
		{name: "issue_new", kind: KindIssue, action: ActionNew, want: "github.issue.new"},
		{name: "issue_updated", kind: KindIssue, action: ActionUpdated, want: "github.issue.updated"},
		{name: "issue_closed", kind: KindIssue, action: ActionClosed, want: "github.issue.closed"},
		{name: "issue_comment", kind: KindIssue, action: ActionCommentNew, want: "github.issue.comment.new"},
		{name: "pr_new", kind: KindPR, action: ActionNew, want: "github.pr.new"},
		{name: "pr_comment", kind: KindPR, action: ActionCommentNew, want: "github.pr.comment.new"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Subject(tc.kind, tc.action); got != tc.want {
				t.Errorf("Subject(%q, %q) = %q, want %q", tc.kind, tc.action, got, tc.want)
			}
		})
	}
}

func TestParseSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		subject    string
		wantKind   Kind
		wantAction Action
		wantErr    bool
	}{
		{name: "issue_new", subject: "github.issue.new", wantKind: KindIssue, wantAction: ActionNew},
		{name: "pr_comment_new", subject: "github.pr.comment.new", wantKind: KindPR, wantAction: ActionCommentNew},
		{name: "legacy_process", subject: "github.issue.process", wantKind: KindIssue, wantAction: ActionUpdated},
		{name: "unknown_domain", subject: "github.release.new", wantErr: true},
		{name: "unknown_action", subject: "github.issue.reopened", wantErr: true},
		{name: "wrong_prefix", subject: "gitlab.issue.new", wantErr: true},
		{name: "empty", subject: "", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			kind, action, err := ParseSubject(tc.subject)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSubject(%q) err = %v, want error? %t", tc.subject, err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if kind != tc.wantKind || action != tc.wantAction {
				t.Errorf("ParseSubject(%q) = (%q, %q), want (%q, %q)", tc.subject, kind, action, tc.wantKind, tc.wantAction)
			}
		})
	}
}

func TestItemEventJSON(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	item := &TrackedItem{
		Repository: "acme/widget",
		Number:     7,
		Kind:       KindIssue,
		Title:      "flaky test",
		Body:       "it flakes",
		URL:        "https://github.com/acme/widget/issues/7",
		State:      "OPEN",
		CreatedAt:  created,
		UpdatedAt:  created.Add(time.Hour),
		Author:     "octocat",
		Assignees:  []string{"octocat"},
		Labels:     []string{"bug"},
	}

	raw, err := json.Marshal(NewItemEvent(item))
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}

	// The envelope inlines the item fields; identity fields ride along as
	// repository plus a stringified number.
	if got["repository"] != "acme/widget" {
		t.Errorf("repository = %v, want acme/widget", got["repository"])
	}
	if got["number"] != "7" {
		t.Errorf("number = %v (%T), want string \"7\"", got["number"], got["number"])
	}
	if got["title"] != "flaky test" {
		t.Errorf("title = %v, want flaky test", got["title"])
	}
	if _, ok := got["merged_at"]; ok {
		t.Error("issue event unexpectedly carries merged_at")
	}
	if _, ok := got["closed_at"]; !ok {
		t.Error("closed_at should be present (null) on item events")
	}
}

func TestCommentEventLegacyKeys(t *testing.T) {
	t.Parallel()

	comment := &Comment{ID: "IC_x", Author: "octocat"}

	issueEv := NewCommentEvent(KindIssue, "acme/widget", "7", comment)
	if issueEv.IssueNumber != "7" || issueEv.PRNumber != "" {
		t.Errorf("issue comment legacy keys = (%q, %q), want (7, empty)", issueEv.IssueNumber, issueEv.PRNumber)
	}

	prEv := NewCommentEvent(KindPR, "acme/widget", "8", comment)
	if prEv.PRNumber != "8" || prEv.IssueNumber != "" {
		t.Errorf("pr comment legacy keys = (%q, %q), want (empty, 8)", prEv.IssueNumber, prEv.PRNumber)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    *Envelope
		wantErr bool
	}{
		{
			name: "string_number",
			data: `{"repository":"acme/widget","number":"7","author":"octocat","url":"u","title":"t"}`,
			want: &Envelope{Repository: "acme/widget", Number: "7", Author: "octocat", URL: "u", Title: "t"},
		},
		{
			name: "integer_number",
			data: `{"repository":"acme/widget","number":7}`,
			want: &Envelope{Repository: "acme/widget", Number: "7"},
		},
		{
			name: "missing_number",
			data: `{"repository":"acme/widget"}`,
			want: &Envelope{Repository: "acme/widget"},
		},
		{
			name:    "not_json",
			data:    `{{{`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeEnvelope([]byte(tc.data))
			if (err != nil) != tc.wantErr {
				t.Fatalf("DecodeEnvelope err = %v, want error? %t", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			ignoreRaw := cmp.FilterPath(func(p cmp.Path) bool {
				return p.String() == "RawNumber"
			}, cmp.Ignore())
			if diff := cmp.Diff(tc.want, got, ignoreRaw); diff != "" {
				t.Errorf("DecodeEnvelope diff (-want, +got):\n%s", diff)
			}
		})
	}
}
