/*
Package session serializes access to stored sessions.

A Manager wraps a ports.StateStore with a per-session mutex (reference
counted so idle keys are dropped) and, optionally, a distributed lock. On top
of that it enforces the ownership rules of a session record:

  - Start refuses a key that is still in progress or paused.
  - Claim turns a paused record into an in-progress one before a resume.
  - Discard refuses to delete a record somebody is running.
*/
package session
