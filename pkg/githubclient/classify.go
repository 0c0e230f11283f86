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

	"github.com/shurcooL/githubv4"

	"github.com/ghactivity/ghactivity/pkg/events"
)

type classifyQuery struct {
	Repository struct {
		IssueOrPullRequest struct {
			TypeName githubv4.String `graphql:"__typename"`
		} `graphql:"issueOrPullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// Classify reports whether the numbered item in the repository is an issue
// or a pull request.
func (g *GitHub) Classify(ctx context.Context, repository string, number int) (events.Kind, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	var q classifyQuery
	variables := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(name),
		"number": githubv4.Int(number),
	}
	if err := g.query(ctx, &q, variables); err != nil {
		return "", fmt.Errorf("failed to classify %s#%d: %w", repository, number, err)
	}

	switch string(q.Repository.IssueOrPullRequest.TypeName) {
	case "Issue":
		return events.KindIssue, nil
	case "PullRequest":
		return events.KindPR, nil
	default:
		return "", fmt.Errorf("unexpected type %q for %s#%d", q.Repository.IssueOrPullRequest.TypeName, repository, number)
	}
}
