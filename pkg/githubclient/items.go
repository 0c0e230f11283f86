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

package githubclient

import (
	"context"
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"

	"github.com/ghactivity/ghactivity/pkg/events"
)

// maxListedRelations caps the assignees and labels carried per item.
const maxListedRelations = 10

type actorNode struct {
	Login githubv4.String
}

type issueNode struct {
	Number    githubv4.Int
	Title     githubv4.String
	Body      githubv4.String
	URL       githubv4.String
	State     githubv4.String
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	ClosedAt  *githubv4.DateTime
	Author    *actorNode
	Assignees struct {
		Nodes []actorNode
	} `graphql:"assignees(first: 10)"`
	Labels struct {
		Nodes []struct {
			Name githubv4.String
		}
	} `graphql:"labels(first: 10)"`
}

type pullRequestNode struct {
	issueNode
	MergedAt       *githubv4.DateTime
	IsDraft        githubv4.Boolean
	Mergeable      githubv4.String
	ReviewDecision githubv4.String
}

type pageInfo struct {
	EndCursor   githubv4.String
	HasNextPage githubv4.Boolean
}

// issuesPageQuery fetches one page of open issues. filterBy is null when no
// since bound applies.
type issuesPageQuery struct {
	Repository struct {
		Issues struct {
			PageInfo pageInfo
			Nodes    []issueNode
		} `graphql:"issues(first: 100, states: [OPEN], after: $cursor, filterBy: $filterBy)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// pullRequestsPageQuery fetches one page of open pull requests. The GraphQL
// schema offers no since filter for pull requests, so the open set is always
// fetched in full; freshness gating is the caller's concern.
type pullRequestsPageQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo pageInfo
			Nodes    []pullRequestNode
		} `graphql:"pullRequests(first: 100, states: [OPEN], after: $cursor)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// ListOpenItems pages through the open issues and/or pull requests of a
// repository and returns them keyed by decimal item number. since narrows the
// issues query server side; kind limits which queries are issued ("" means
// both). A failed page aborts the whole call.
func (g *GitHub) ListOpenItems(ctx context.Context, repository string, since *time.Time, kind events.Kind) (map[string]*events.TrackedItem, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	items := make(map[string]*events.TrackedItem)

	if kind == "" || kind == events.KindIssue {
		if err := g.listOpenIssues(ctx, owner, name, repository, since, items); err != nil {
			return nil, err
		}
	}
	if kind == "" || kind == events.KindPR {
		if err := g.listOpenPullRequests(ctx, owner, name, repository, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (g *GitHub) listOpenIssues(ctx context.Context, owner, name, repository string, since *time.Time, items map[string]*events.TrackedItem) error {
	var filterBy *githubv4.IssueFilters
	if since != nil {
		filterBy = &githubv4.IssueFilters{Since: githubv4.NewDateTime(githubv4.DateTime{Time: *since})}
	}

	variables := map[string]any{
		"owner":    githubv4.String(owner),
		"name":     githubv4.String(name),
		"cursor":   (*githubv4.String)(nil),
		"filterBy": filterBy,
	}

	for {
		var q issuesPageQuery
		if err := g.query(ctx, &q, variables); err != nil {
			return fmt.Errorf("failed to list open issues for %s: %w", repository, err)
		}
		for i := range q.Repository.Issues.Nodes {
			item := newTrackedItem(repository, events.KindIssue, &q.Repository.Issues.Nodes[i])
			items[fmt.Sprintf("%d", item.Number)] = item
		}
		if !bool(q.Repository.Issues.PageInfo.HasNextPage) {
			return nil
		}
		variables["cursor"] = githubv4.NewString(q.Repository.Issues.PageInfo.EndCursor)
	}
}

func (g *GitHub) listOpenPullRequests(ctx context.Context, owner, name, repository string, items map[string]*events.TrackedItem) error {
	variables := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"cursor": (*githubv4.String)(nil),
	}

	for {
		var q pullRequestsPageQuery
		if err := g.query(ctx, &q, variables); err != nil {
			return fmt.Errorf("failed to list open pull requests for %s: %w", repository, err)
		}
		for i := range q.Repository.PullRequests.Nodes {
			node := &q.Repository.PullRequests.Nodes[i]
			item := newTrackedItem(repository, events.KindPR, &node.issueNode)
			item.MergedAt = optionalTime(node.MergedAt)
			isDraft := bool(node.IsDraft)
			item.IsDraft = &isDraft
			item.Mergeable = string(node.Mergeable)
			item.ReviewDecision = string(node.ReviewDecision)
			items[fmt.Sprintf("%d", item.Number)] = item
		}
		if !bool(q.Repository.PullRequests.PageInfo.HasNextPage) {
			return nil
		}
		variables["cursor"] = githubv4.NewString(q.Repository.PullRequests.PageInfo.EndCursor)
	}
}

// newTrackedItem normalizes a GraphQL node into the wire model.
func newTrackedItem(repository string, kind events.Kind, node *issueNode) *events.TrackedItem {
	item := &events.TrackedItem{
		Repository: repository,
		Number:     int(node.Number),
		Kind:       kind,
		Title:      string(node.Title),
		Body:       string(node.Body),
		URL:        string(node.URL),
		State:      string(node.State),
		CreatedAt:  node.CreatedAt.Time,
		UpdatedAt:  node.UpdatedAt.Time,
		ClosedAt:   optionalTime(node.ClosedAt),
		Author:     loginOrGhost(node.Author),
	}
	for i, a := range node.Assignees.Nodes {
		if i >= maxListedRelations {
			break
		}
		item.Assignees = append(item.Assignees, string(a.Login))
	}
	for i, l := range node.Labels.Nodes {
		if i >= maxListedRelations {
			break
		}
		item.Labels = append(item.Labels, string(l.Name))
	}
	return item
}

// loginOrGhost maps GitHub's null author (deleted account) to the ghost
// sentinel.
func loginOrGhost(a *actorNode) string {
	if a == nil || a.Login == "" {
		return events.GhostAuthor
	}
	return string(a.Login)
}

func optionalTime(dt *githubv4.DateTime) *time.Time {
	if dt == nil {
		return nil
	}
	t := dt.Time
	return &t
}
