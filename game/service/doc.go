// Package service provides the business logic layer for multiplayer
// tic-tac-toe sessions.
//
// The service package implements:
//   - Session lifecycle: create, join by code, public matchmaking
//   - Authoritative move validation and application
//   - Win/draw detection and post-game statistics updates
//   - Disconnect forfeiture
//   - Read-through projection caching
//
// Architecture:
//
// GameService sits between the transport layers (REST, WebSocket, MCP)
// and the durable game store. Rule validation is a pure transformation
// (old game + move -> new game) with no I/O, followed by one atomic
// compare-and-swap persistence call; the split keeps the rules unit-
// testable and the durability mockable.
//
// Concurrency:
//
// Mutations on one game are serialized two ways: a per-game lock
// within the process, and the store's version CAS across processes.
// Two simultaneous moves on the same game can never both succeed; the
// loser re-validates against the fresh record and observes a turn or
// occupancy error.
//
// The projection cache is advisory. The durable write completes and is
// acknowledged before the cache refresh, and cache failures never roll
// anything back.
package service
