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
	"fmt"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/ghactivity/ghactivity/pkg/githubclient"
	"github.com/ghactivity/ghactivity/pkg/monitor"
	"github.com/ghactivity/ghactivity/pkg/state"
	"github.com/ghactivity/ghactivity/pkg/stream"
	"github.com/ghactivity/ghactivity/pkg/version"
)

var _ cli.Command = (*MonitorCommand)(nil)

// MonitorCommand polls GitHub and publishes activity events on the stream.
type MonitorCommand struct {
	cli.BaseCommand

	cfg *monitor.Config

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option

	// testPoller is only used for testing.
	testPoller monitor.Poller

	// testPublisher is only used for testing.
	testPublisher monitor.Publisher
}

func (c *MonitorCommand) Desc() string {
	return `Poll GitHub repositories and publish activity events`
}

func (c *MonitorCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] <base-path>

	Poll the configured repositories for issue, pull request, and comment
	activity and publish events onto the NATS JetStream stream. Tracking
	state lives under <base-path>.
`
}

func (c *MonitorCommand) Flags() *cli.FlagSet {
	c.cfg = &monitor.Config{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *MonitorCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one <base-path> argument, got %q", args)
	}
	c.cfg.BasePath = args[0]
	c.cfg.Finish()

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "running monitor",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	poller := c.testPoller
	if poller == nil {
		gh, err := githubclient.New(ctx)
		if err != nil {
			return fmt.Errorf("failed to create GitHub client: %w", err)
		}
		poller = gh
	}

	pub := c.testPublisher
	switch {
	case pub != nil:
	case c.cfg.DryRun:
		// Dry runs never publish, so skip the connection entirely.
		pub = monitor.NopPublisher{}
	default:
		p, err := stream.Connect(ctx, c.cfg.NATSServer)
		if err != nil {
			return err //nolint:wrapcheck // Already wrapped
		}
		defer p.Close()
		pub = p
	}

	m := monitor.New(c.cfg, state.New(c.cfg.BasePath), poller, pub)
	if err := m.Run(ctx); err != nil {
		return fmt.Errorf("monitor failed: %w", err)
	}
	return nil
}
