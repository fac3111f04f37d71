// Package app provides the application service layer.
//
// Candidate selection, the per-user vote ledger and the match detecting session actor.
// Service keeps one Session per local user and dispatches store insertions to them.
// Depends on domain interfaces, not concrete implementations.
package app
