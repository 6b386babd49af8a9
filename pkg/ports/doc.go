/*
Package ports defines the driven ports (interfaces) of the sieve engine.

These interfaces decouple the workflow core from external implementations, so
the engine runs unchanged against memory, file or redis storage and against a
real or scripted language model.

# Key Interfaces

  - StateStore: persists and loads session State.
  - DistributedLocker: serializes access to a session across processes.
  - LanguageModel: the generative collaborator.
  - DataSource, ReportSink, OutputSink: file collaborators.
  - ResumableEngine: what hosts call after a pause.
*/
package ports
