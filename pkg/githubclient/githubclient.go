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

// Package githubclient reads issue, pull request, and comment activity from
// the GitHub GraphQL API.
//
// Authentication is delegated to the locally installed gh CLI: the client
// mints its token via "gh auth token" instead of reading any secret itself.
package githubclient

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

var (
	// ghExecutable can be overridden for testing.
	ghExecutable = "gh"

	// retry policy knobs, overridable for testing.
	retryMinWaitDuration        = 1 * time.Second
	retryMaxAttempts     uint64 = 3
	retryFunc                   = retry.NewFibonacci
)

// graphQLClient is the subset of githubv4.Client the pollers use. Extracted
// as an interface to enable testing with canned responses.
type graphQLClient interface {
	Query(ctx context.Context, q any, variables map[string]any) error
}

// GitHub is a read-only client for the GitHub GraphQL API.
type GitHub struct {
	graphql graphQLClient
}

// New creates a GitHub client authenticated with the token held by the gh
// CLI. It fails when gh is missing or not logged in.
func New(ctx context.Context) (*GitHub, error) {
	token, err := authToken(ctx)
	if err != nil {
		return nil, err
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &GitHub{
		graphql: githubv4.NewClient(oauth2.NewClient(ctx, src)),
	}, nil
}

// authToken asks the gh CLI for its stored token.
func authToken(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, ghExecutable, "auth", "token").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("gh auth token failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to run gh CLI (is it installed?): %w", err)
	}

	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned an empty token")
	}
	return token, nil
}

// query runs a single GraphQL query with the package retry policy.
func (g *GitHub) query(ctx context.Context, q any, variables map[string]any) error {
	backoff := retryFunc(retryMinWaitDuration)
	backoff = retry.WithMaxRetries(retryMaxAttempts, backoff)
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := g.graphql.Query(ctx, q, variables); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("GitHub GraphQL call failed: %w", err)
	}
	return nil
}

// splitRepository splits an "owner/name" slug.
func splitRepository(repository string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository slug %q, want owner/name", repository)
	}
	return owner, name, nil
}
