package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/sieve/internal/presentation/graph"
	"github.com/aretw0/sieve/pkg/domain"
)

// ResumeOptions configures the resume command.
type ResumeOptions struct {
	Flags
	SessionID string
	// Command is the console form, e.g. "reject merge High and Medium".
	// Empty re-opens the review prompt.
	Command  string
	Headless bool
	JSON     bool
}

// Resume delivers a command to a paused session, then keeps driving it
// like run does.
func Resume(opts ResumeOptions) error {
	rt, err := Open(opts.Flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	m := RunOptions{Headless: opts.Headless, JSON: opts.JSON}.mode()
	d := newDriver(rt.Engine, rt.Metrics, m, NewInterruptibleReader(os.Stdin, sigCtx.Done()), os.Stdout)

	var outcome *domain.Outcome
	if strings.TrimSpace(opts.Command) == "" {
		if m == modeHeadless {
			return fmt.Errorf("%w: a command is required in headless mode", domain.ErrUnknownCommand)
		}
		state, err := rt.Engine.Inspect(sigCtx, opts.SessionID)
		if err != nil {
			return err
		}
		if state.Status != domain.StatusPaused {
			return fmt.Errorf("%w: %s is %s", domain.ErrSessionNotPaused, opts.SessionID, state.Status)
		}
		outcome = &domain.Outcome{Kind: domain.OutcomePaused, SessionID: state.SessionID, Node: state.CurrentNodeID, State: state}
	} else {
		cmd, err := domain.ParseCommand(opts.Command)
		if err != nil {
			return err
		}
		outcome, err = rt.Engine.Resume(sigCtx, opts.SessionID, cmd)
		if err != nil {
			return err
		}
		rt.Logger.Info("Session Resumed", "session_id", opts.SessionID, "decision", cmd.Decision)
	}
	return handleExecutionError(d.drive(sigCtx, outcome))
}

// ListSessions prints stored session IDs with their status.
func ListSessions(ctx context.Context, w io.Writer, f Flags) error {
	rt, err := Open(f)
	if err != nil {
		return err
	}
	defer rt.Close()

	ids, err := rt.Engine.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	fmt.Fprintln(w, "Sessions:")
	for _, id := range ids {
		state, err := rt.Engine.Inspect(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(w, "- %s %s at %s\n", id, state.Status, state.CurrentNodeID)
	}
	return nil
}

// InspectSession prints the stored state as indented JSON.
func InspectSession(ctx context.Context, w io.Writer, f Flags, sessionID string) error {
	rt, err := Open(f)
	if err != nil {
		return err
	}
	defer rt.Close()

	state, err := rt.Engine.Inspect(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", sessionID, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveSessions discards each session, reporting every failure. force
// also removes sessions marked in progress.
func RemoveSessions(ctx context.Context, w io.Writer, f Flags, sessionIDs []string, force bool) error {
	rt, err := Open(f)
	if err != nil {
		return err
	}
	defer rt.Close()

	discard := rt.Engine.Discard
	if force {
		discard = rt.Engine.ForceDiscard
	}

	var errs []error
	for _, id := range sessionIDs {
		if err := discard(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("remove '%s': %w", id, err))
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}

// PrintGraph writes the workflow as a Mermaid diagram, highlighting the
// path of sessionID when given.
func PrintGraph(ctx context.Context, w io.Writer, f Flags, sessionID string) error {
	var overlay *graph.GraphOverlay
	if sessionID != "" {
		rt, err := Open(f)
		if err != nil {
			return err
		}
		defer rt.Close()

		state, err := rt.Engine.Inspect(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionID, err)
		}
		overlay = graph.OverlayFromState(state)
	}
	_, err := fmt.Fprint(w, graph.GenerateMermaid(domain.Transitions, overlay))
	return err
}
