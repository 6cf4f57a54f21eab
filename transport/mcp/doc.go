// Package mcp provides the Model Context Protocol surface for
// multiplayer tic-tac-toe sessions.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for the game lifecycle and moves
//   - Thin proxying to the REST API
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - create_game: Create a game and get its join code
//   - join_game: Join a waiting game by code
//   - find_public_game: Public matchmaking with create-on-miss
//   - make_move: Place a mark on a cell (0-8)
//   - game_state: Get the board, turn, players, and result
//   - forfeit_game: Concede an active game
//   - public_count: Count public games by status
//   - game_instructions: Full rules and cell numbering
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: HTTP endpoint for remote MCP integration
//
// Identity:
//
// Tools that act on a player's behalf take an explicit player_id
// argument, which the proxy forwards to the REST API. Without one the
// agent plays anonymously.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
