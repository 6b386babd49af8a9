package domain

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Decision is the human verdict recorded by the gatekeeper.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionEdit    Decision = "edit"
	DecisionReject  Decision = "reject"
	DecisionSkip    Decision = "skip"
	DecisionQuit    Decision = "quit"
)

// Command is what a host sends to resume a paused session.
type Command struct {
	Decision Decision `json:"decision" mapstructure:"decision"`
	Feedback string   `json:"feedback,omitempty" mapstructure:"feedback"`
	Path     string   `json:"path,omitempty" mapstructure:"path"`
}

func Approve() Command               { return Command{Decision: DecisionApprove} }
func Skip() Command                  { return Command{Decision: DecisionSkip} }
func Quit() Command                  { return Command{Decision: DecisionQuit} }
func Edit(path string) Command       { return Command{Decision: DecisionEdit, Path: path} }
func Reject(feedback string) Command { return Command{Decision: DecisionReject, Feedback: feedback} }

// Validate checks the command shape.
func (c Command) Validate() error {
	switch c.Decision {
	case DecisionApprove, DecisionSkip, DecisionQuit, DecisionReject:
		return nil
	case DecisionEdit:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("%w: edit requires a path", ErrUnknownCommand)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Decision)
	}
}

// ReviewEntry is one line of the audit log kept by the gatekeeper.
type ReviewEntry struct {
	Decision  Decision  `json:"decision"`
	Feedback  string    `json:"feedback,omitempty"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseCommand reads the console form of a command:
//
//	approve | skip | quit | reject <feedback> | edit <path>
//
// Single-letter shortcuts (a, s, q, r, e) are accepted.
func ParseCommand(input string) (Command, error) {
	clean, err := SanitizeInput(input)
	if err != nil {
		return Command{}, err
	}
	clean = strings.TrimSpace(clean)
	verb, rest, _ := strings.Cut(clean, " ")
	rest = strings.TrimSpace(rest)

	var cmd Command
	switch strings.ToLower(verb) {
	case "approve", "a":
		cmd = Approve()
	case "skip", "s":
		cmd = Skip()
	case "quit", "q", "exit":
		cmd = Quit()
	case "reject", "r":
		cmd = Reject(rest)
	case "edit", "e":
		cmd = Edit(rest)
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
	return cmd, cmd.Validate()
}

var (
	// DefaultMaxInputSize bounds free-form human input (feedback, paths).
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "SIEVE_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput enforces the size limit, rejects invalid UTF-8 and strips
// control characters other than newline, tab and carriage return. Feedback
// ends up in prompts and logs, so terminal escapes never get through.
func SanitizeInput(input string) (string, error) {
	limit := maxInputSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
