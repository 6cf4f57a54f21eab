// Package store provides the durable record of game sessions.
//
// A Game carries identity (uuid and a human-shareable 6-character
// code), both participant slots, the packed board, the current turn,
// the outcome, the append-only move log, and lifecycle timestamps.
//
// Core Types:
//
// Store is the persistence interface consumed by the service layer.
// MemoryStore is a mutex-guarded in-memory implementation used by
// tests and cacheless development runs. SQLiteStore persists games in
// a single SQLite file and shares its handle with the player
// directory.
//
// Concurrency:
//
// Every Game carries a Version counter. UpdateGame is a compare-and-
// swap on that counter: a write with a stale version returns
// ErrVersionConflict instead of silently clobbering a concurrent
// write. The service layer re-reads and re-validates on conflict, so
// a raced move surfaces as a turn or occupancy error, never as data
// loss.
package store
