// Package history persists every squash run and its iterations in SQLite.
//
// The store is append-only from the CLI's point of view: Recorder saves the
// final report when the controller emits its Finished event, and the
// `squash history` command reads runs back with List, Find, and Iterations.
// Run identifiers are UUIDs; lookups accept any unique prefix.
package history
