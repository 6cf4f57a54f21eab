package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/tictactoe-live/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Tic-Tac-Toe Live",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Tic-Tac-Toe Live - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Place three of your marks in a row (horizontally, vertically, or diagonally) on a 3x3 board before your opponent does.

AVAILABLE TOOLS:
- create_game: Create a new game (public or private) and get its join code
- join_game: Join a game by its 6-character code
- find_public_game: Match into a waiting public game, or open a new one
- make_move: Place your mark on a cell (0-8)
- game_state: Get the current board, turn, and players
- forfeit_game: Concede an active game
- public_count: Count public games by status
- game_instructions: Get the complete rules and cell numbering

Pass your player_id to every tool that acts on your behalf. Cells are
numbered 0-8, left to right, top to bottom.`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Create a new game. Returns the game id and its 6-character join code.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID (optional; anonymous when omitted)",
				},
				"is_public": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether the game is open to public matchmaking (default true)",
				},
			},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join a waiting game by its 6-character code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_code": map[string]interface{}{
					"type":        "string",
					"description": "6-character game code (case-insensitive)",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID (optional; anonymous when omitted)",
				},
			},
			Required: []string{"game_code"},
		},
	}, c.handleJoinGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "find_public_game",
		Description: "Match into the oldest waiting public game, or create a fresh one when none is available",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID (optional; anonymous when omitted)",
				},
			},
		},
	}, c.handleFindPublicGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "make_move",
		Description: "Place your mark on a cell. Cells are numbered 0-8, left to right, top to bottom.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"position": map[string]interface{}{
					"type":        "integer",
					"description": "Cell index, 0-8",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID",
				},
			},
			Required: []string{"game_id", "position"},
		},
	}, c.handleMakeMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board, whose turn it is, the players, and the result if finished",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "forfeit_game",
		Description: "Concede an active game; your opponent wins",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleForfeitGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "public_count",
		Description: "Count public games in a status (waiting, active, or finished)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"waiting", "active", "finished"},
					"description": "Game status to count (default waiting)",
				},
			},
		},
	}, c.handlePublicCount)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the complete game rules and cell numbering",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	playerID, _ := args["player_id"].(string)

	isPublic := true
	if v, ok := args["is_public"].(bool); ok {
		isPublic = v
	}

	body := map[string]interface{}{
		"isPublic": isPublic,
		"playerId": playerID,
	}

	var created service.CreatedGame
	err := c.apiCall("POST", "/api/games", body, &created)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	visibility := "public"
	if !isPublic {
		visibility = "private"
	}
	result := fmt.Sprintf("Created %s game: %s\nJoin code: %s\nShare the code with your opponent, then wait for them to join.",
		visibility, created.GameID, created.GameCode)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameCode, _ := args["game_code"].(string)
	playerID, _ := args["player_id"].(string)

	body := map[string]interface{}{
		"gameCode": gameCode,
		"playerId": playerID,
	}

	var state service.GameState
	err := c.apiCall("POST", "/api/games/join", body, &state)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Joined game %s as O.\n\n%s", state.GameID, formatGameState(&state))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleFindPublicGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	playerID, _ := args["player_id"].(string)

	body := map[string]interface{}{
		"playerId": playerID,
	}

	var state service.GameState
	err := c.apiCall("POST", "/api/games/find", body, &state)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var header string
	if state.Status == "waiting" {
		header = fmt.Sprintf("No opponent available. Opened game %s (code %s); you play X. Waiting for an opponent.",
			state.GameID, state.GameCode)
	} else {
		header = fmt.Sprintf("Matched into game %s; you play O.", state.GameID)
	}

	result := fmt.Sprintf("%s\n\n%s", header, formatGameState(&state))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleMakeMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	playerID, _ := args["player_id"].(string)
	position := int(args["position"].(float64))

	body := map[string]interface{}{
		"position": position,
		"playerId": playerID,
	}

	var state service.GameState
	err := c.apiCall("POST", fmt.Sprintf("/api/games/%s/move", gameID), body, &state)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Placed a mark on cell %d.\n\n%s", position, formatGameState(&state))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)

	var state service.GameState
	err := c.apiCall("GET", fmt.Sprintf("/api/games/%s/state", gameID), nil, &state)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleForfeitGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	playerID, _ := args["player_id"].(string)

	body := map[string]interface{}{
		"playerId": playerID,
	}

	var state service.GameState
	err := c.apiCall("POST", fmt.Sprintf("/api/games/%s/forfeit", gameID), body, &state)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Game forfeited.\n\n%s", formatGameState(&state))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handlePublicCount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	status, _ := args["status"].(string)
	if status == "" {
		status = "waiting"
	}

	var response struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	err := c.apiCall("GET", "/api/games/public/count?status="+status, nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Public games (%s): %d", response.Status, response.Count)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Tic-Tac-Toe Live - Complete Instructions

GAME OBJECTIVE:
Be the first to place three of your marks in a row: horizontally,
vertically, or diagonally.

BOARD LAYOUT:
Cells are numbered 0-8, left to right, top to bottom:

 0 | 1 | 2
-----------
 3 | 4 | 5
-----------
 6 | 7 | 8

WINNING LINES:
Rows (0,1,2) (3,4,5) (6,7,8), columns (0,3,6) (1,4,7) (2,5,8),
diagonals (0,4,8) (2,4,6).

GAME FLOW:
1. One player creates a game (create_game) or both use matchmaking
   (find_public_game).
2. The creator plays X and always moves first.
3. The second player joins with the 6-character code (join_game) and
   plays O.
4. Players alternate placing marks (make_move) until one completes a
   line or the board fills (a draw).

RULES:
- You can only move on your turn.
- You can only place a mark on an empty cell.
- Moves are only accepted while the game is active (both players
  present, no result yet).
- Forfeiting (forfeit_game) hands the win to your opponent.

GAME VISIBILITY:
- Public games are matchable through find_public_game.
- Private games can only be joined with their code, and the code
  invitation expires after a few minutes.

TIPS:
- Check game_state before moving to confirm it is your turn.
- The center cell (4) participates in four winning lines; corners in
  three; edges in two.`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

// formatGameState renders the projection as a text board with players,
// turn, and result.
func formatGameState(state *service.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Game: %s (code %s)\n", state.GameID, state.GameCode))
	b.WriteString(fmt.Sprintf("X: %s | O: %s\n", state.Players.X.Username, state.Players.O.Username))
	b.WriteString(fmt.Sprintf("Status: %s", state.Status))
	if state.Status == "active" {
		b.WriteString(fmt.Sprintf(" | Turn: %s", state.CurrentTurn))
	}
	b.WriteString("\n\n")

	cell := func(i int) string {
		if state.Board[i] != nil {
			return *state.Board[i]
		}
		return fmt.Sprintf("%d", i)
	}
	for row := 0; row < 3; row++ {
		b.WriteString(fmt.Sprintf(" %s | %s | %s \n", cell(row*3), cell(row*3+1), cell(row*3+2)))
		if row < 2 {
			b.WriteString("-----------\n")
		}
	}

	if state.Winner != nil {
		if *state.Winner == "draw" {
			b.WriteString("\nResult: draw")
		} else {
			b.WriteString(fmt.Sprintf("\nResult: %s wins", *state.Winner))
		}
	}

	return b.String()
}
