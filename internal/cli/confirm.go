package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/pipemirror/pkg/gateway"
	"golang.org/x/term"
)

// TerminalConfirmer asks on the controlling terminal before a delete.
// Without a terminal every request is declined, so scripts must opt in
// with --yes.
type TerminalConfirmer struct {
	In  *os.File
	Out io.Writer
}

var _ gateway.Confirmer = (*TerminalConfirmer)(nil)

// Confirm prints prompt and waits for a y/N answer.
func (c *TerminalConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if c.In == nil || !term.IsTerminal(int(c.In.Fd())) {
		return false, nil
	}
	fmt.Fprintf(c.Out, "%s [y/N] ", prompt)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(c.In).ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.Out)
		return false, ctx.Err()
	case line := <-answer:
		return parseAnswer(line), nil
	}
}

func parseAnswer(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// NewConfirmer picks the confirmer for a command.
func NewConfirmer(assumeYes bool, out io.Writer) gateway.Confirmer {
	if assumeYes {
		return gateway.AlwaysConfirm
	}
	return &TerminalConfirmer{In: os.Stdin, Out: out}
}
