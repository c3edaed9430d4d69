// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/term"
)

// Prompter asks the user for input.
type Prompter interface {
	// Prompt reads one line. def is shown and returned for empty input.
	Prompt(label, def string) (string, error)
	// PromptSecret reads one line without echo when on a terminal.
	PromptSecret(label string) (string, error)
}

type terminalPrompter struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer
}

func newTerminalPrompter(in *os.File, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Prompt(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	if line = strings.TrimSpace(line); line == "" {
		return def, nil
	}
	return line, nil
}

func (p *terminalPrompter) PromptSecret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	fd := int(p.in.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return p.readLine()
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", oops.Code("PROMPT_FAILED").With("label", label).Wrap(err)
	}
	return string(b), nil
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", oops.Code("PROMPT_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
