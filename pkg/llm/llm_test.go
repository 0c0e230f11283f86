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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

// writeScript materializes a shell script and returns its path.
func writeScript(tb testing.TB, content string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "claude")
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		tb.Fatal(err)
	}
	return path
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "default", env: nil, want: "claude"},
		{name: "override", env: map[string]string{"CLAUDE_COMMAND": "/usr/local/bin/claude-next"}, want: "/usr/local/bin/claude-next"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := newConfig(context.Background(), envconfig.MapLookuper(tc.env))
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Command != tc.want {
				t.Errorf("Command = %q, want %q", cfg.Command, tc.want)
			}
		})
	}
}

func TestRenderTranscript(t *testing.T) {
	t.Parallel()

	stream := strings.Join([]string{
		`{"type":"system","subtype":"init","model":"claude-x","permissionMode":"default","tools":["Bash","Read"],"slash_commands":["/review"]}`,
		`not json at all`,
		`{"type":"assistant","message":{"id":"msg_1","content":[{"type":"text","text":"Looking at the issue"}]}}`,
		`{"type":"assistant","message":{"id":"msg_1","content":[{"type":"text","text":" now."}]}}`,
		`{"type":"assistant","message":{"id":"msg_1","content":[{"type":"tool_use","name":"Bash","input":{"command":"ls"}}]}}`,
		`{"type":"assistant","message":{"id":"msg_2","content":[{"type":"text","text":"Done."}]}}`,
		`{"type":"result","subtype":"success"}`,
	}, "\n")

	var out strings.Builder
	renderTranscript(strings.NewReader(stream), &out)

	want := strings.Join([]string{
		"Model: claude-x",
		"Permission mode: default",
		"",
		"Available tools: Bash, Read",
		"",
		"Available slash commands: /review",
		"",
		"Looking at the issue now.",
		"[Tool: Bash]",
		"Input: {",
		`  "command": "ls"`,
		"}",
		"",
		"Done.",
	}, "\n")
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("transcript diff (-want, +got):\n%s", diff)
	}
}

func TestRenderTranscriptEmptyToolInput(t *testing.T) {
	t.Parallel()

	stream := `{"type":"assistant","message":{"id":"msg_1","content":[{"type":"tool_use","name":"SlashCommand","input":{}}]}}`

	var out strings.Builder
	renderTranscript(strings.NewReader(stream), &out)

	want := "\n[Tool: SlashCommand]\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestInvokerRun(t *testing.T) {
	t.Parallel()

	// A stand-in for the claude CLI that echos a canned stream-json
	// transcript; the prompt arrives as the final argument.
	script := `#!/bin/sh
for last; do :; done
case "$last" in
  REPOSITORY=octo/hello*) ;;
  *) echo "unexpected prompt: $last" >&2; exit 1 ;;
esac
echo '{"type":"assistant","message":{"id":"m1","content":[{"type":"text","text":"ok"}]}}'
`
	cmd := writeScript(t, script)

	inv := NewInvoker(&Config{Command: cmd}, &strings.Builder{})
	var out strings.Builder
	inv.Stdout = &out

	if err := inv.Run(context.Background(), "octo/hello", "7", "/tmp/base", "do the thing"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "ok") {
		t.Errorf("transcript missing assistant text, got %q", out.String())
	}
	if !strings.Contains(out.String(), banner) {
		t.Errorf("output missing banner, got %q", out.String())
	}
}

func TestInvokerRunFailureIncludesStderr(t *testing.T) {
	t.Parallel()

	cmd := writeScript(t, "#!/bin/sh\necho 'rate limited' >&2\nexit 3\n")

	inv := NewInvoker(&Config{Command: cmd}, &strings.Builder{})
	err := inv.Run(context.Background(), "octo/hello", "7", "/tmp/base", "do the thing")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error %q does not carry stderr tail", err)
	}
}

func TestInvokerAvailable(t *testing.T) {
	t.Parallel()

	ok := NewInvoker(&Config{Command: writeScript(t, "#!/bin/sh\nexit 0\n")}, &strings.Builder{})
	if !ok.Available(context.Background()) {
		t.Error("expected available for zero-exit command")
	}

	missing := NewInvoker(&Config{Command: "/nonexistent/claude"}, &strings.Builder{})
	if missing.Available(context.Background()) {
		t.Error("expected unavailable for missing command")
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	b := &tailBuffer{limit: 8}
	for _, chunk := range []string{"aaaa", "bbbb", "cccc"} {
		if _, err := b.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := b.String(), "bbbbcccc"; got != want {
		t.Errorf("tail = %q, want %q", got, want)
	}
}
