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

// Package template locates the prompt template for an event.
//
// Templates live under a root directory as <event>.md files, where <event> is
// the full stream subject (for example "github.issue.comment.new.md").
// Lookup walks a three level hierarchy:
//
//	<root>/<owner>/<repo>/<event>.md
//	<root>/<owner>/.default/<event>.md
//	<root>/.default/<event>.md
//
// The first file that exists wins. A template whose content is empty or
// whitespace only is a deliberate opt-out: resolution stops there with
// ErrSkip rather than falling through to a broader default.
package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is the directory name holding fallback templates.
const DefaultDir = ".default"

var (
	// ErrNotFound reports that no level of the hierarchy has a template for
	// the event.
	ErrNotFound = errors.New("no template found")

	// ErrSkip reports that the winning template is whitespace only, which
	// disables handling for the event at that scope.
	ErrSkip = errors.New("template disables event")
)

// Template is a resolved prompt template.
type Template struct {
	// Path is the file that won the hierarchy lookup.
	Path string
	// Content is the file's full text.
	Content string
}

// Resolve returns the template for the event, applying the fallback
// hierarchy. subject is the full stream subject, repository an "owner/name"
// slug.
func Resolve(root, repository, subject string) (*Template, error) {
	filename := subject + ".md"

	owner, name, found := strings.Cut(repository, "/")
	if !found || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository slug %q", repository)
	}

	candidates := []string{
		filepath.Join(root, owner, name, filename),
		filepath.Join(root, owner, DefaultDir, filename),
		filepath.Join(root, DefaultDir, filename),
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("%w: %s", ErrSkip, path)
		}
		return &Template{Path: path, Content: content}, nil
	}
	return nil, fmt.Errorf("%w for %s (repository %s)", ErrNotFound, subject, repository)
}
