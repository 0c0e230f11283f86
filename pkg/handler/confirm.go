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
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// TerminalConfirmer prompts on the controlling terminal and reads a single
// keystroke per event: Enter processes, s skips, Ctrl-C aborts.
type TerminalConfirmer struct {
	in  *os.File
	out io.Writer
}

// NewTerminalConfirmer prompts on stdin/stdout.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{in: os.Stdin, out: os.Stdout}
}

// Confirm blocks until the operator answers.
func (c *TerminalConfirmer) Confirm(summary string) (Decision, error) {
	fmt.Fprintf(c.out, "Process %s? [Enter=yes, s=skip, Ctrl-C=quit] ", summary)

	fd := int(c.in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return DecisionAbort, fmt.Errorf("failed to switch terminal to raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	for {
		if _, err := c.in.Read(buf); err != nil {
			return DecisionAbort, fmt.Errorf("failed to read keystroke: %w", err)
		}
		switch buf[0] {
		case '\r', '\n':
			fmt.Fprint(c.out, "\r\n")
			return DecisionProcess, nil
		case 's', 'S':
			fmt.Fprint(c.out, "skipped\r\n")
			return DecisionSkip, nil
		case 0x03: // Ctrl-C
			fmt.Fprint(c.out, "\r\n")
			return DecisionAbort, nil
		}
		// Any other key re-prompts.
		fmt.Fprintf(c.out, "\r\nProcess %s? [Enter=yes, s=skip, Ctrl-C=quit] ", summary)
	}
}
