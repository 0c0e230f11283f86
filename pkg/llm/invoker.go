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

package llm

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// stderrTailLimit caps how much trailing stderr is kept for error reports.
const stderrTailLimit = 2048

const banner = "==== claude ===="

// Invoker runs the claude CLI for one event at a time.
type Invoker struct {
	command string

	// Verbose passes the raw stream-json output through instead of
	// rendering a transcript.
	Verbose bool

	// Stdout receives the rendered transcript (or raw output).
	Stdout io.Writer
}

// NewInvoker builds an Invoker writing to the given destination.
func NewInvoker(cfg *Config, stdout io.Writer) *Invoker {
	return &Invoker{command: cfg.Command, Stdout: stdout}
}

// Available reports whether the CLI is installed and runnable.
func (i *Invoker) Available(ctx context.Context) bool {
	return exec.CommandContext(ctx, i.command, "--help").Run() == nil
}

// Run invokes the CLI with the template as prompt. The event coordinates are
// injected ahead of the template content so the prompt can reference them.
func (i *Invoker) Run(ctx context.Context, repository, number, baseDir, templateContent string) error {
	prompt := fmt.Sprintf("REPOSITORY=%s NUMBER=%s BASE_DIR=%s\n\n%s", repository, number, baseDir, templateContent)

	cmd := exec.CommandContext(ctx, i.command,
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
		"--allowed-tools", "SlashCommand",
		"-p", prompt,
	)

	stderr := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = stderr

	fmt.Fprintln(i.Stdout, banner)

	var runErr error
	if i.Verbose {
		cmd.Stdout = i.Stdout
		runErr = cmd.Run()
	} else {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to open stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start %s: %w", i.command, err)
		}
		renderTranscript(stdout, i.Stdout)
		runErr = cmd.Wait()
	}

	fmt.Fprintf(i.Stdout, "\n%s\n", banner)

	if runErr != nil {
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("%s failed for %s#%s: %w: %s", i.command, repository, number, runErr, tail)
		}
		return fmt.Errorf("%s failed for %s#%s: %w", i.command, repository, number, runErr)
	}
	return nil
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
