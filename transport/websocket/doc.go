// Package websocket provides the realtime transport for multiplayer
// tic-tac-toe sessions.
//
// The websocket package implements:
//   - Identity-aware connections (credential token or anonymous)
//   - Game rooms with per-room broadcast isolation
//   - Inbound event dispatch (join_session, make_move, leave_session)
//   - Disconnect grace timers with automatic forfeiture
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages
// all WebSocket connections. Each client connection is handled by a
// dedicated goroutine pair for reading and writing; all room state,
// membership, and grace timers are owned by the single Run goroutine,
// so every subscriber observes game projections in mutation order.
//
// Message Protocol:
//
// Frames are JSON envelopes in both directions:
//   - Incoming: {"event": "make_move", "data": {"sessionId": "...", "cellIndex": 4}}
//   - Outgoing: {"event": "session_state", "data": {...projection...}}
//
// Rule violations are answered with an error event to the offending
// connection only; successful mutations fan the full projection out
// to the whole room.
//
// Disconnects:
//
// When a participant of an active game drops, the room is notified and
// a grace timer starts. Reconnecting within the grace period cancels
// it; expiry forfeits the game in favor of the remaining participant.
//
// Usage:
//
//	hub := websocket.NewHub(svc, verifier, registry, cacheSvc, 0)
//	go hub.Run()
//
//	router.HandleFunc("/ws", hub.ServeWS)
package websocket
