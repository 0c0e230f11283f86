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
	"time"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/ghactivity/ghactivity/pkg/handler"
	"github.com/ghactivity/ghactivity/pkg/llm"
	"github.com/ghactivity/ghactivity/pkg/state"
	"github.com/ghactivity/ghactivity/pkg/stream"
	"github.com/ghactivity/ghactivity/pkg/version"
)

var _ cli.Command = (*HandlerCommand)(nil)

// HandlerCommand consumes activity events from the stream and processes
// them with the LLM CLI.
type HandlerCommand struct {
	cli.BaseCommand

	cfg *handler.Config

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option
}

func (c *HandlerCommand) Desc() string {
	return `Consume activity events and process them with the LLM CLI`
}

func (c *HandlerCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options] <base-path>

	Consume github activity events from the NATS JetStream stream and act
	on them: maintain tracking directories under <base-path> and invoke
	the LLM CLI with the event's prompt template.
`
}

func (c *HandlerCommand) Flags() *cli.FlagSet {
	c.cfg = &handler.Config{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *HandlerCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one <base-path> argument, got %q", args)
	}
	c.cfg.BasePath = args[0]

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "running handler",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	llmCfg, err := llm.NewConfig(ctx)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped
	}
	invoker := llm.NewInvoker(llmCfg, c.Stdout())
	invoker.Verbose = c.cfg.ClaudeVerbose

	available := invoker.Available(ctx)
	if !available {
		logger.WarnContext(ctx, "LLM CLI not found, events will be acknowledged without invocation",
			"command", llmCfg.Command)
	}

	var confirm handler.Confirmer
	if !c.cfg.AutoConfirm {
		confirm = handler.NewTerminalConfirmer()
	}

	consumer, err := stream.OpenConsumer(ctx, c.cfg.NATSServer, stream.ConsumerOptions{
		Stream:       c.cfg.Stream,
		Name:         c.cfg.Consumer,
		Recreate:     c.cfg.RecreateConsumer,
		BatchSize:    c.cfg.BatchSize,
		FetchTimeout: time.Duration(c.cfg.FetchTimeoutSecs) * time.Second,
	})
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped
	}
	defer consumer.Close()

	ctx, abort := context.WithCancel(ctx)
	defer abort()

	h := handler.New(c.cfg, state.New(c.cfg.BasePath), invoker, confirm, available, abort)

	logger.InfoContext(ctx, "consuming events",
		"stream", c.cfg.Stream,
		"consumer", c.cfg.Consumer,
		"batch_size", c.cfg.BatchSize)
	if err := consumer.Run(ctx, h.Handle); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}
	return nil
}
