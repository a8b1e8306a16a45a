// Package writeback implements the mailbox that carries generated code from
// the desktop app back to editor integrations.
//
// Producers Put a payload keyed by file path; an editor polls with Take,
// which returns the pending payload and removes it in one step, so each
// payload is delivered at most once. A newer Put for the same file replaces
// the pending one. Entries never expire.
package writeback
