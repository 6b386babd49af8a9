package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/sieve"
	"github.com/aretw0/sieve/internal/presentation/tui"
	httpAdapter "github.com/aretw0/sieve/pkg/adapters/http"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/observability"
)

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	Flags
	SessionID    string
	RulesFile    string
	Instructions string
	ParseOnly    bool
	Headless     bool
	JSON         bool
	Fresh        bool
}

func (o RunOptions) mode() mode {
	switch {
	case o.JSON:
		return modeJSON
	case o.Headless:
		return modeHeadless
	}
	return modeInteractive
}

// Execute starts a session and drives it through the review loop.
func Execute(opts RunOptions) error {
	cfg, err := loadConfig(opts.Flags)
	if err != nil {
		return err
	}
	if opts.Instructions == "" {
		opts.Instructions = cfg.Instructions
	}
	logger, err := createLogger(cfg.LogLevel, opts.Debug)
	if err != nil {
		return err
	}
	rt, err := createEngine(cfg, logger, opts.Debug)
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.mode() == modeInteractive {
		tui.PrintBanner(os.Stdout, sieve.Version)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if opts.Fresh && opts.SessionID != "" {
		if err := rt.Engine.Discard(sigCtx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("reset session: %w", err)
		}
	}

	outcome, err := rt.Engine.Start(sigCtx, sieve.Request{
		SessionID:    opts.SessionID,
		Dir:          cfg.Dir,
		Model:        cfg.Model,
		RulesFile:    opts.RulesFile,
		Instructions: opts.Instructions,
		ParseOnly:    opts.ParseOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	logger.Info("Session Created", "session_id", outcome.SessionID)

	d := newDriver(rt.Engine, rt.Metrics, opts.mode(), NewInterruptibleReader(os.Stdin, sigCtx.Done()), os.Stdout)
	return handleExecutionError(d.drive(sigCtx, outcome))
}

type mode int

const (
	modeInteractive mode = iota
	modeHeadless
	modeJSON
)

type resumer interface {
	Resume(ctx context.Context, sessionID string, cmd domain.Command) (*domain.Outcome, error)
}

// driver shows each outcome and, while the session is paused, collects
// the next gatekeeper command.
type driver struct {
	engine  resumer
	metrics *observability.Metrics
	mode    mode
	out     io.Writer

	lines    *bufio.Reader
	prompter *tui.Prompter
	render   func(string) (string, error)
}

func newDriver(engine resumer, metrics *observability.Metrics, m mode, in io.Reader, out io.Writer) *driver {
	d := &driver{engine: engine, metrics: metrics, mode: m, out: out}
	switch m {
	case modeJSON:
		d.lines = bufio.NewReader(in)
	case modeInteractive:
		d.prompter = tui.NewPrompter(in, out)
		plain := true
		if f, ok := out.(*os.File); ok {
			plain = !tui.IsInteractive(f)
		}
		d.render = tui.NewRenderer(plain)
	}
	return d
}

// drive returns nil once the session completes or is left paused, and the
// outcome's error when it fails.
func (d *driver) drive(ctx context.Context, outcome *domain.Outcome) error {
	for {
		if d.metrics != nil {
			d.metrics.RecordOutcome(outcome)
		}
		if err := d.show(outcome); err != nil {
			return err
		}
		if !outcome.IsPaused() {
			return outcome.Error()
		}
		if d.mode == modeHeadless {
			return nil
		}

		cmd, err := d.next()
		if err != nil {
			if isInterrupted(err) && d.mode == modeInteractive {
				fmt.Fprintln(d.out)
				printSystemMessage(d.out, "Session '%s' left paused. Continue with: sieve resume %s", outcome.SessionID, outcome.SessionID)
			}
			return err
		}

		outcome, err = d.engine.Resume(ctx, outcome.SessionID, cmd)
		if err != nil {
			return err
		}
	}
}

func (d *driver) show(o *domain.Outcome) error {
	if d.mode == modeJSON {
		return json.NewEncoder(d.out).Encode(httpAdapter.NewOutcomeView(o))
	}

	switch o.Kind {
	case domain.OutcomePaused:
		if d.mode == modeHeadless {
			issues := 0
			if o.State != nil && o.State.AnalysisReport != nil {
				issues = len(o.State.AnalysisReport.Issues)
			}
			printSystemMessage(d.out, "Session '%s' paused for review (%d issues). Continue with: sieve resume %s approve", o.SessionID, issues, o.SessionID)
			return nil
		}
		var (
			report *domain.AnalysisReport
			round  int
		)
		if o.State != nil {
			report, round = o.State.AnalysisReport, o.State.AnalysisRounds
		}
		rendered, err := d.render(tui.ReportMarkdown(report, round))
		if err != nil {
			return err
		}
		fmt.Fprint(d.out, rendered)
		fmt.Fprintln(d.out, tui.CommandHelp)

	case domain.OutcomeCompleted:
		if o.State != nil && o.State.OutputPath != "" {
			printSystemMessage(d.out, "Finished. Parsed rules written to %s", o.State.OutputPath)
		} else if o.State != nil && o.State.ReportPath != "" {
			printSystemMessage(d.out, "Finished without parsing. Report written to %s", o.State.ReportPath)
		} else {
			printSystemMessage(d.out, "Finished at '%s' node.", o.Node)
		}

	case domain.OutcomePhaseFailed:
		attempts := len(o.Errors)
		if o.State != nil {
			attempts = o.State.IterationCount
		}
		printSystemMessage(d.out, "Parsing gave up after %d failed attempts:", attempts)
		for _, e := range o.Errors {
			fmt.Fprintf(d.out, "  - %s\n", e)
		}

	case domain.OutcomeFailed:
		if o.State != nil && o.State.Status == domain.StatusPaused {
			printSystemMessage(d.out, "Interrupted at '%s' node. Session '%s' left paused. Continue with: sieve resume %s", o.Node, o.SessionID, o.SessionID)
			return nil
		}
		printSystemMessage(d.out, "Failed at '%s' node: %v", o.Node, o.Err)
	}
	return nil
}

// next reads one command. JSON mode takes one Command object per line and
// reports malformed lines without giving up.
func (d *driver) next() (domain.Command, error) {
	if d.mode != modeJSON {
		return d.prompter.ReadCommand()
	}

	enc := json.NewEncoder(d.out)
	for {
		line, err := d.lines.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			var cmd domain.Command
			perr := json.Unmarshal([]byte(line), &cmd)
			if perr == nil {
				perr = cmd.Validate()
			}
			if perr == nil {
				return cmd, nil
			}
			_ = enc.Encode(map[string]string{"error": perr.Error()})
		}
		if err != nil {
			return domain.Command{}, err
		}
	}
}
