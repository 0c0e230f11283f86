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

// Package events defines the event envelopes the monitor publishes and the
// handler consumes, plus the subject naming scheme that ties them together.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates issues from pull requests. It is persisted verbatim in
// the per-item .type marker file.
type Kind string

const (
	KindIssue Kind = "issue"
	KindPR    Kind = "pr"
)

// Action is the verb segment of an event subject.
type Action string

const (
	ActionNew        Action = "new"
	ActionUpdated    Action = "updated"
	ActionClosed     Action = "closed"
	ActionCommentNew Action = "comment.new"
)

// ParseKind validates a stored kind value.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIssue:
		return KindIssue, nil
	case KindPR:
		return KindPR, nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// Subject computes the stream subject for a kind/action pair, e.g.
// "github.pr.comment.new".
func Subject(kind Kind, action Action) string {
	return fmt.Sprintf("github.%s.%s", kind, action)
}

// legacySubjectProcess is accepted on the consuming side only; it predates
// the updated/closed split and maps to issue updates.
const legacySubjectProcess = "github.issue.process"

// ParseSubject splits a stream subject back into its kind and action. The
// legacy "github.issue.process" subject is folded into issue updates.
func ParseSubject(subject string) (Kind, Action, error) {
	if subject == legacySubjectProcess {
		return KindIssue, ActionUpdated, nil
	}
	rest, ok := strings.CutPrefix(subject, "github.")
	if !ok {
		return "", "", fmt.Errorf("unknown subject %q", subject)
	}
	kindPart, actionPart, ok := strings.Cut(rest, ".")
	if !ok {
		return "", "", fmt.Errorf("unknown subject %q", subject)
	}
	kind, err := ParseKind(kindPart)
	if err != nil {
		return "", "", fmt.Errorf("unknown subject %q", subject)
	}
	switch Action(actionPart) {
	case ActionNew, ActionUpdated, ActionClosed, ActionCommentNew:
		return kind, Action(actionPart), nil
	}
	return "", "", fmt.Errorf("unknown subject %q", subject)
}

// TrackedItem is an open issue or pull request in a tracked repository. The
// identity triple (Repository, Number, Kind) is carried out of band; only the
// GitHub attributes are part of the wire payload.
type TrackedItem struct {
	Repository string `json:"-"`
	Number     int    `json:"-"`
	Kind       Kind   `json:"-"`

	Title     string     `json:"title"`
	Body      string     `json:"body"`
	URL       string     `json:"url"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	Author    string     `json:"author"`
	Assignees []string   `json:"assignees"`
	Labels    []string   `json:"labels"`

	// Pull request attributes; absent on issues.
	MergedAt       *time.Time `json:"merged_at,omitempty"`
	IsDraft        *bool      `json:"is_draft,omitempty"`
	Mergeable      string     `json:"mergeable,omitempty"`
	ReviewDecision string     `json:"review_decision,omitempty"`
}

// Comment is a top-level comment on an issue or pull request.
type Comment struct {
	ID                string     `json:"id"`
	DatabaseID        int64      `json:"database_id"`
	URL               string     `json:"url"`
	Author            string     `json:"author"`
	AuthorAssociation string     `json:"author_association"`
	Body              string     `json:"body"`
	BodyText          string     `json:"body_text"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	PublishedAt       time.Time  `json:"published_at"`
	LastEditedAt      *time.Time `json:"last_edited_at"`
	IsMinimized       bool       `json:"is_minimized"`
	MinimizedReason   *string    `json:"minimized_reason"`
	Reactions         Reactions  `json:"reactions"`
}

// Reactions summarizes the reactions attached to a comment.
type Reactions struct {
	TotalCount int        `json:"total_count"`
	Items      []Reaction `json:"items"`
}

// Reaction is a single reaction entry.
type Reaction struct {
	Content string `json:"content"`
	User    string `json:"user"`
}

// GhostAuthor is the sentinel login substituted when GitHub reports a null
// author (deleted accounts).
const GhostAuthor = "ghost"

// ItemEvent is the envelope for new/updated item events. The embedded
// TrackedItem fields are inlined at the top level of the JSON object.
type ItemEvent struct {
	Repository string `json:"repository"`
	Number     string `json:"number"`
	TrackedItem
}

// ClosedEvent is the envelope for closed events. The monitor only learns of a
// closure by the item's absence from the open set, so no item attributes are
// available.
type ClosedEvent struct {
	Repository string `json:"repository"`
	Number     string `json:"number"`
}

// CommentEvent is the envelope for comment.new events. The embedded Comment
// fields are inlined; IssueNumber/PRNumber are legacy duplicates of Number
// keyed by the item kind.
type CommentEvent struct {
	Repository  string `json:"repository"`
	Number      string `json:"number"`
	IssueNumber string `json:"issue_number,omitempty"`
	PRNumber    string `json:"pr_number,omitempty"`
	Comment
}

// NewItemEvent builds the envelope for an item-level event.
func NewItemEvent(item *TrackedItem) *ItemEvent {
	return &ItemEvent{
		Repository:  item.Repository,
		Number:      fmt.Sprintf("%d", item.Number),
		TrackedItem: *item,
	}
}

// NewClosedEvent builds the envelope for a closed event.
func NewClosedEvent(repository, number string) *ClosedEvent {
	return &ClosedEvent{Repository: repository, Number: number}
}

// NewCommentEvent builds the envelope for a comment event, populating the
// kind-specific legacy number key.
func NewCommentEvent(kind Kind, repository, number string, comment *Comment) *CommentEvent {
	ev := &CommentEvent{
		Repository: repository,
		Number:     number,
		Comment:    *comment,
	}
	switch kind {
	case KindIssue:
		ev.IssueNumber = number
	case KindPR:
		ev.PRNumber = number
	}
	return ev
}

// Envelope is the consumer-side view of any event: the required routing
// fields plus the optional display fields the handler logs before
// dispatching.
type Envelope struct {
	Repository string `json:"repository"`
	Number     string `json:"-"`
	Author     string `json:"author"`
	URL        string `json:"url"`
	Title      string `json:"title"`

	RawNumber json.RawMessage `json:"number"`
}

// DecodeEnvelope parses an event payload. It tolerates both string and
// integer encodings of the number field; older producers published integers.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}
	if len(env.RawNumber) > 0 {
		var s string
		if err := json.Unmarshal(env.RawNumber, &s); err == nil {
			env.Number = s
		} else {
			var n int64
			if err := json.Unmarshal(env.RawNumber, &n); err == nil {
				env.Number = fmt.Sprintf("%d", n)
			}
		}
	}
	return &env, nil
}
