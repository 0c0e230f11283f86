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

package handler

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/abcxyz/pkg/cli"

	"github.com/ghactivity/ghactivity/pkg/stream"
)

// Config holds the handler service configuration.
type Config struct {
	BasePath     string
	TemplatesDir string
	NATSServer   string

	Stream           string
	Consumer         string
	BatchSize        int
	FetchTimeoutSecs int
	RecreateConsumer bool

	SkipUsers     string
	Repositories  string
	AutoConfirm   bool
	ClaudeVerbose bool

	// compiled forms, populated by Validate.
	skipUsers    *regexp.Regexp
	repositories *regexp.Regexp
}

// ToFlags binds the config to the given [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("HANDLER OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:   "templates-dir",
		Target: &cfg.TemplatesDir,
		EnvVar: "GHACTIVITY_TEMPLATES_DIR",
		Usage:  `Root directory of the prompt template hierarchy.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "nats-server",
		Target:  &cfg.NATSServer,
		EnvVar:  "NATS_SERVER",
		Default: "nats://localhost:4222",
		Usage:   `NATS server URL.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "stream",
		Target:  &cfg.Stream,
		Default: stream.StreamName,
		Usage:   `JetStream stream to consume from.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "consumer",
		Target:  &cfg.Consumer,
		Default: "github-event-handler",
		Usage:   `Durable consumer name.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "batch-size",
		Target:  &cfg.BatchSize,
		Default: 10,
		Usage:   `Messages fetched per pull.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "fetch-timeout",
		Target:  &cfg.FetchTimeoutSecs,
		Default: 5,
		Usage:   `Seconds to wait for messages on each pull.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "recreate-consumer",
		Target: &cfg.RecreateConsumer,
		Usage:  `Delete and recreate the durable consumer, replaying the whole stream.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "skip-users",
		Target: &cfg.SkipUsers,
		Usage:  `Regular expression of comment authors to ignore (for example bot accounts).`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "repositories",
		Target: &cfg.Repositories,
		Usage:  `Regular expression limiting which repositories are handled.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "auto-confirm",
		Target: &cfg.AutoConfirm,
		Usage:  `Process events without the interactive keystroke prompt.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "claude-verbose",
		Target: &cfg.ClaudeVerbose,
		Usage:  `Pass the raw LLM stream output through instead of rendering a transcript.`,
	})

	return set
}

// Validate checks the config and compiles the regex filters.
func (cfg *Config) Validate() error {
	var merr error

	if cfg.BasePath == "" {
		merr = errors.Join(merr, fmt.Errorf("base path argument is required"))
	}
	if cfg.TemplatesDir == "" {
		merr = errors.Join(merr, fmt.Errorf("-templates-dir is required"))
	}
	if cfg.BatchSize <= 0 {
		merr = errors.Join(merr, fmt.Errorf("-batch-size must be positive"))
	}
	if cfg.FetchTimeoutSecs <= 0 {
		merr = errors.Join(merr, fmt.Errorf("-fetch-timeout must be positive"))
	}

	if cfg.SkipUsers != "" {
		re, err := regexp.Compile(cfg.SkipUsers)
		if err != nil {
			merr = errors.Join(merr, fmt.Errorf("invalid -skip-users: %w", err))
		} else {
			cfg.skipUsers = re
		}
	}
	if cfg.Repositories != "" {
		re, err := regexp.Compile(cfg.Repositories)
		if err != nil {
			merr = errors.Join(merr, fmt.Errorf("invalid -repositories: %w", err))
		} else {
			cfg.repositories = re
		}
	}

	return merr
}

// SkipUsersRegexp returns the compiled author filter, nil when unset.
func (cfg *Config) SkipUsersRegexp() *regexp.Regexp {
	return cfg.skipUsers
}

// RepositoriesRegexp returns the compiled repository filter, nil when unset.
func (cfg *Config) RepositoriesRegexp() *regexp.Regexp {
	return cfg.repositories
}
