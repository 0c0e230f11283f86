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

// Package version supplies build information injected at link time.
package version

import "fmt"

var (
	// Name is the name of the binary.
	Name = "ghactivity"

	// Version is the main package version, set via -ldflags.
	Version = "source"

	// Commit is the git sha, set via -ldflags.
	Commit = "HEAD"

	// HumanVersion is the compiled version, suitable for display.
	HumanVersion = fmt.Sprintf("%s %s (%s)", Name, Version, Commit)
)
