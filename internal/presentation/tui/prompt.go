package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/aretw0/sieve/pkg/domain"
)

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Prompter reads gatekeeper commands line by line.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// ReadCommand asks until a valid command is entered. It returns io.EOF
// when the input ends first.
func (p *Prompter) ReadCommand() (domain.Command, error) {
	for {
		fmt.Fprint(p.out, "> ")
		line, err := p.in.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			if err != nil {
				return domain.Command{}, err
			}
			continue
		}

		cmd, perr := domain.ParseCommand(line)
		if perr == nil {
			return cmd, nil
		}
		if errors.Is(perr, domain.ErrUnknownCommand) {
			fmt.Fprintf(p.out, "%v\n%s\n", perr, CommandHelp)
		} else {
			fmt.Fprintf(p.out, "invalid input: %v\n", perr)
		}
		if err != nil {
			return domain.Command{}, err
		}
	}
}
