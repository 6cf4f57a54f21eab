// Package api provides the HTTP REST surface for multiplayer
// tic-tac-toe sessions.
//
// The api package implements:
//   - RESTful endpoints for game lifecycle and moves
//   - Public matchmaking with create-on-miss
//   - Bearer-token identity with anonymous fallback
//   - WebSocket upgrade handling
//   - Health check
//
// Endpoints:
//
// Game Lifecycle:
//   - POST /api/games - Create a game ({isPublic})
//   - POST /api/games/join - Join by code ({gameCode})
//   - POST /api/games/find - Match into a waiting public game, or
//     create a fresh one when none is available
//
// Game Operations:
//   - GET /api/games/{id}/state - Current projection
//   - POST /api/games/{id}/move - Place a mark ({position})
//   - POST /api/games/{id}/forfeit - Concede an active game
//
// Misc:
//   - GET /api/games/public/count?status= - Public game counter
//   - GET /health - Liveness check
//   - GET /ws - WebSocket upgrade
//
// Identity:
//
// An Authorization: Bearer token is verified and its subject becomes
// the acting player. Without a valid token an explicit playerId in
// the request body is honored; otherwise the caller acts anonymously.
//
// Error Handling:
//
// Errors are returned as JSON with mapped HTTP status codes:
//
//	{"error": "not your turn"}
//
// 404 unknown game, 400 bad position or malformed body, 403 not a
// participant, 409 rule conflicts (turn, occupancy, self join, not
// active), 500 everything else.
package api
