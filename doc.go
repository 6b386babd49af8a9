/*
Package sieve is a checkpointed workflow engine that reviews and compiles
document prioritization rules with a language model.

A session runs in two phases. The analysis phase loads the rule, keyword and
synonym CSV files, asks the model for an analysis report and then pauses at
a human gatekeeper. The reviewer approves (optimizations are applied to the
rules), skips, rejects with feedback (the analysis runs again), points the
session at another rules file, or quits. The parse phase converts the rules
into structured filtering logic and validates the result, feeding every
validation error back to the model for at most three attempts.

# Sessions

A pause is not an error. Start and Resume return a tagged *domain.Outcome:

	out, err := eng.Start(ctx, sieve.Request{Dir: "./client", Model: "openai/gpt-4o"})
	if err != nil {
		log.Fatal(err) // the session could not be started at all
	}
	switch out.Kind {
	case domain.OutcomePaused:
		// show out.State.AnalysisReport, then later:
		out, err = eng.Resume(ctx, out.SessionID, domain.Approve())
	case domain.OutcomePhaseFailed:
		// out.Errors holds every validation error of every attempt
	case domain.OutcomeFailed:
		// out.Err is a *domain.NodeFailed
	}

Paused sessions are kept in a ports.StateStore (memory, file or redis) and
can be resumed by any process sharing it. The CLI, the HTTP server and the
MCP server in this module are such hosts.
*/
package sieve
