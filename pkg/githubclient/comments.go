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

type commentNode struct {
	ID                githubv4.String
	DatabaseID        int64 `graphql:"databaseId"`
	URL               githubv4.String
	Author            *actorNode
	AuthorAssociation githubv4.String
	Body              githubv4.String
	BodyText          githubv4.String
	CreatedAt         githubv4.DateTime
	UpdatedAt         githubv4.DateTime
	PublishedAt       githubv4.DateTime
	LastEditedAt      *githubv4.DateTime
	IsMinimized       githubv4.Boolean
	MinimizedReason   *githubv4.String
	Reactions         struct {
		TotalCount githubv4.Int
		Nodes      []struct {
			Content githubv4.String
			User    *actorNode
		}
	} `graphql:"reactions(first: 10)"`
}

type itemCommentsNode struct {
	Number   githubv4.Int
	Comments struct {
		Nodes []commentNode
	} `graphql:"comments(first: 100, orderBy: {field: UPDATED_AT, direction: DESC})"`
}

// issueCommentsPageQuery fetches one page of open issues, each with its 100
// most recently updated comments. Comments beyond 100 per item are not
// paginated; that truncation is an accepted limitation.
type issueCommentsPageQuery struct {
	Repository struct {
		Issues struct {
			PageInfo pageInfo
			Nodes    []itemCommentsNode
		} `graphql:"issues(first: 100, states: [OPEN], after: $cursor)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

type pullRequestCommentsPageQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo pageInfo
			Nodes    []itemCommentsNode
		} `graphql:"pullRequests(first: 100, states: [OPEN], after: $cursor)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// ListRepoComments returns, for every open item of the given kind in the
// repository, the comments updated strictly after since (all comments when
// since is nil), keyed by decimal item number and preserving the server's
// newest-first order.
func (g *GitHub) ListRepoComments(ctx context.Context, repository string, kind events.Kind, since *time.Time) (map[string][]*events.Comment, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	variables := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"cursor": (*githubv4.String)(nil),
	}

	comments := make(map[string][]*events.Comment)
	for {
		var nodes []itemCommentsNode
		var page pageInfo

		switch kind {
		case events.KindPR:
			var q pullRequestCommentsPageQuery
			if err := g.query(ctx, &q, variables); err != nil {
				return nil, fmt.Errorf("failed to list pr comments for %s: %w", repository, err)
			}
			nodes, page = q.Repository.PullRequests.Nodes, q.Repository.PullRequests.PageInfo
		default:
			var q issueCommentsPageQuery
			if err := g.query(ctx, &q, variables); err != nil {
				return nil, fmt.Errorf("failed to list issue comments for %s: %w", repository, err)
			}
			nodes, page = q.Repository.Issues.Nodes, q.Repository.Issues.PageInfo
		}

		for i := range nodes {
			number := fmt.Sprintf("%d", nodes[i].Number)
			for j := range nodes[i].Comments.Nodes {
				c := newComment(&nodes[i].Comments.Nodes[j])
				if since != nil && !c.UpdatedAt.After(*since) {
					continue
				}
				comments[number] = append(comments[number], c)
			}
		}

		if !bool(page.HasNextPage) {
			return comments, nil
		}
		variables["cursor"] = githubv4.NewString(page.EndCursor)
	}
}

func newComment(node *commentNode) *events.Comment {
	c := &events.Comment{
		ID:                string(node.ID),
		DatabaseID:        node.DatabaseID,
		URL:               string(node.URL),
		Author:            loginOrGhost(node.Author),
		AuthorAssociation: string(node.AuthorAssociation),
		Body:              string(node.Body),
		BodyText:          string(node.BodyText),
		CreatedAt:         node.CreatedAt.Time,
		UpdatedAt:         node.UpdatedAt.Time,
		PublishedAt:       node.PublishedAt.Time,
		LastEditedAt:      optionalTime(node.LastEditedAt),
		IsMinimized:       bool(node.IsMinimized),
		Reactions: events.Reactions{
			TotalCount: int(node.Reactions.TotalCount),
		},
	}
	if node.MinimizedReason != nil {
		reason := string(*node.MinimizedReason)
		c.MinimizedReason = &reason
	}
	for _, r := range node.Reactions.Nodes {
		c.Reactions.Items = append(c.Reactions.Items, events.Reaction{
			Content: string(r.Content),
			User:    loginOrGhost(r.User),
		})
	}
	return c
}
