/*
Package domain contains the core models of the sieve workflow.

It defines the session record threaded through every step, the change sets
nodes return, the fixed transition table and the tagged outcome the engine
reports. The package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - State: the single record carrying all progress for one session.
  - Delta: what a node changes. The engine applies it; nodes never mutate State.
  - Transition: (node, signal) -> next node. The graph is fixed in code.
  - Command: a gatekeeper decision (approve, edit, reject, skip, quit).
  - Outcome: Completed, PhaseFailed, Paused or Failed.
*/
package domain
