// Package thread houses concrete implementations of core.ThreadStore and the
// scoped acquisition helpers used by the delegate functions. The interface
// itself (and the Thread handle) live in core so that higher level packages
// (actors, engine) never depend on concrete storage.
//
// Backends:
//
//   - InMemoryStore: process local, for tests and one-shot CLI runs
//   - FileStore: a directory per thread holding meta.json + messages.jsonl
//   - SQLiteStore: two tables in a single database file (modernc.org/sqlite)
package thread
