// Package cli provides the interactive notekeeper command-line client.
//
// It wires configuration, the local store, the remote note store and the
// background workers, then runs a REPL. Notes stay usable while offline:
// edits are recorded locally and replayed by the sync engine once the
// server is reachable again.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See NewApp and runREPL for details.
package cli
