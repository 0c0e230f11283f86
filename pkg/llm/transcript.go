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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxTranscriptLine bounds a single stream-json line. Tool results can carry
// whole files, so the default scanner limit is far too small.
const maxTranscriptLine = 4 * 1024 * 1024

type streamContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type streamLine struct {
	Type           string   `json:"type"`
	Subtype        string   `json:"subtype"`
	Model          string   `json:"model"`
	PermissionMode string   `json:"permissionMode"`
	Tools          []string `json:"tools"`
	SlashCommands  []string `json:"slash_commands"`
	Message        struct {
		ID      string          `json:"id"`
		Content []streamContent `json:"content"`
	} `json:"message"`
}

// renderTranscript turns the CLI's stream-json output into a readable
// transcript. Lines that are not valid JSON are dropped silently.
func renderTranscript(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxTranscriptLine)

	lastMessageID := ""
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var sl streamLine
		if err := json.Unmarshal(line, &sl); err != nil {
			continue
		}

		switch {
		case sl.Type == "system" && sl.Subtype == "init":
			if sl.Model != "" {
				fmt.Fprintf(w, "Model: %s\n", sl.Model)
			}
			if sl.PermissionMode != "" {
				fmt.Fprintf(w, "Permission mode: %s\n\n", sl.PermissionMode)
			}
			if len(sl.Tools) > 0 {
				fmt.Fprintf(w, "Available tools: %s\n\n", strings.Join(sl.Tools, ", "))
			}
			if len(sl.SlashCommands) > 0 {
				fmt.Fprintf(w, "Available slash commands: %s\n\n", strings.Join(sl.SlashCommands, ", "))
			}

		case sl.Type == "assistant":
			if lastMessageID != "" && sl.Message.ID != lastMessageID {
				fmt.Fprintln(w)
			}
			lastMessageID = sl.Message.ID

			for _, item := range sl.Message.Content {
				switch item.Type {
				case "text":
					fmt.Fprint(w, item.Text)
				case "tool_use":
					name := item.Name
					if name == "" {
						name = "unknown"
					}
					fmt.Fprintf(w, "\n[Tool: %s]\n", name)
					if input := renderToolInput(item.Input); input != "" {
						fmt.Fprintf(w, "Input: %s\n", input)
					}
				}
			}
		}
	}
}

// renderToolInput pretty-prints a tool's input object, or returns "" when
// there is nothing worth showing.
func renderToolInput(input json.RawMessage) string {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return ""
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return indented.String()
}
