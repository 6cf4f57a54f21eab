package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/wricardo/tictactoe-live/cache"
	"github.com/wricardo/tictactoe-live/game/service"
	"github.com/wricardo/tictactoe-live/game/store"
	"github.com/wricardo/tictactoe-live/players"
	"github.com/wricardo/tictactoe-live/presence"
)

// DefaultGraceTimeout is how long a disconnected participant of an
// active game has to reconnect before the game is forfeited.
const DefaultGraceTimeout = 30 * time.Second

// Inbound event names.
const (
	EventJoinSession  = "join_session"
	EventMakeMove     = "make_move"
	EventLeaveSession = "leave_session"
)

// Outbound event names.
const (
	EventSessionState            = "session_state"
	EventSessionEnded            = "session_ended"
	EventParticipantJoined       = "participant_joined"
	EventParticipantDisconnected = "participant_disconnected"
	EventParticipantReconnected  = "participant_reconnected"
	EventError                   = "error"
)

// envelope is the wire frame for every message in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	SessionID string `json:"sessionId"`
}

type movePayload struct {
	SessionID string `json:"sessionId"`
	CellIndex int    `json:"cellIndex"`
}

type participantPayload struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// inboundFrame pairs a decoded client frame with its origin.
type inboundFrame struct {
	client *Client
	event  string
	data   json.RawMessage
}

// graceKey identifies one pending disconnect grace timer.
type graceKey struct {
	gameID   string
	playerID string
}

// Hub owns all realtime state: which connections exist, which game
// room each one is subscribed to, and the pending disconnect grace
// timers. All of it is touched only from the Run goroutine, so every
// subscriber observes game projections in mutation order.
type Hub struct {
	svc      service.GameService
	verifier players.Verifier
	registry *presence.Registry
	cache    *cache.Service
	grace    time.Duration

	// Live connections and room membership by game id. A client's
	// send channel is only closed after it leaves clients, so every
	// send is preceded by a membership check. Hub-goroutine only.
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	timers  map[graceKey]*time.Timer

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	commands   chan func()
}

// NewHub creates a realtime hub. A non-positive grace duration falls
// back to DefaultGraceTimeout.
func NewHub(svc service.GameService, verifier players.Verifier, registry *presence.Registry, c *cache.Service, grace time.Duration) *Hub {
	if grace <= 0 {
		grace = DefaultGraceTimeout
	}
	return &Hub{
		svc:        svc,
		verifier:   verifier,
		registry:   registry,
		cache:      c,
		grace:      grace,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		timers:     make(map[graceKey]*time.Timer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		commands:   make(chan func()),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case frame := <-h.inbound:
			h.dispatch(frame)

		case fn := <-h.commands:
			fn()
		}
	}
}

// PushState broadcasts the current projection of a game to its room.
// Called by the REST layer after it mutates a game, so websocket
// subscribers see changes made over HTTP too. The closure runs after
// the originating request may have completed, so it cannot borrow a
// request context.
func (h *Hub) PushState(gameID string) {
	h.commands <- func() {
		state, err := h.svc.GetGameState(context.Background(), gameID)
		if err != nil {
			log.Printf("push state for game %s: %v", gameID, err)
			return
		}
		h.broadcastState(gameID, state)
	}
}

// registerClient records a new connection.
func (h *Hub) registerClient(c *Client) {
	h.clients[c] = true
	h.registry.Attach(c.id, c.identity.PlayerID, c.identity.Username)
	h.cache.SetUserOnline(context.Background(), c.identity.PlayerID, c.id)

	log.Printf("Client %s connected as %s (online players: %d)",
		c.id, c.identity.PlayerID, h.registry.Count())
}

// unregisterClient tears down a dropped connection and, when the
// player was mid-game, starts the forfeit grace timer.
func (h *Hub) unregisterClient(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)

	gameID := c.gameID
	if gameID != "" {
		h.leaveRoom(c)
	}

	_, last := h.registry.Detach(c.id)
	close(c.send)
	if last {
		h.cache.SetUserOffline(context.Background(), c.identity.PlayerID)
	}

	if gameID != "" {
		h.beginGrace(gameID, c.identity)
	}

	log.Printf("Client %s disconnected (online players: %d)", c.id, h.registry.Count())
}

// dispatch routes one inbound frame to its handler. A client's
// readPump can race its own drop, so frames from connections no
// longer registered are discarded.
func (h *Hub) dispatch(frame inboundFrame) {
	if !h.clients[frame.client] {
		return
	}

	switch frame.event {
	case EventJoinSession:
		var p joinPayload
		if err := json.Unmarshal(frame.data, &p); err != nil || p.SessionID == "" {
			h.sendError(frame.client, "join_session requires a sessionId")
			return
		}
		h.handleJoin(frame.client, p.SessionID)

	case EventMakeMove:
		var p movePayload
		if err := json.Unmarshal(frame.data, &p); err != nil || p.SessionID == "" {
			h.sendError(frame.client, "make_move requires a sessionId and cellIndex")
			return
		}
		h.handleMove(frame.client, p.SessionID, p.CellIndex)

	case EventLeaveSession:
		h.handleLeave(frame.client)

	default:
		h.sendError(frame.client, "unknown event: "+frame.event)
	}
}

// handleJoin subscribes a connection to a game room and pushes the
// current projection to it. A participant returning within the grace
// period cancels the pending forfeit.
func (h *Hub) handleJoin(c *Client, gameID string) {
	state, err := h.svc.GetGameState(context.Background(), gameID)
	if err != nil {
		h.sendError(c, userMessage(err))
		return
	}

	if c.gameID != "" && c.gameID != gameID {
		h.leaveRoom(c)
	}

	if h.rooms[gameID] == nil {
		h.rooms[gameID] = make(map[*Client]bool)
	}
	h.rooms[gameID][c] = true
	c.gameID = gameID
	h.registry.SetGame(c.id, gameID)

	reconnected := h.cancelGrace(graceKey{gameID: gameID, playerID: c.identity.PlayerID})
	event := EventParticipantJoined
	if reconnected {
		event = EventParticipantReconnected
	}
	h.broadcastExcept(gameID, c, event, participantPayload{
		ID:          c.identity.PlayerID,
		DisplayName: c.identity.Username,
	})

	h.sendEvent(c, EventSessionState, state)
}

// handleMove applies a move for the connection's player and fans the
// result out to the room. Rule violations go back to the mover only.
func (h *Hub) handleMove(c *Client, gameID string, cellIndex int) {
	state, err := h.svc.MakeMove(context.Background(), gameID, c.identity.PlayerID, cellIndex)
	if err != nil {
		h.sendError(c, userMessage(err))
		return
	}

	h.broadcastState(gameID, state)
}

// handleLeave unsubscribes a connection from its room. A participant
// leaving an active game gets the same grace treatment as a dropped
// connection.
func (h *Hub) handleLeave(c *Client) {
	gameID := c.gameID
	if gameID == "" {
		return
	}
	h.leaveRoom(c)
	h.beginGrace(gameID, c.identity)
}

// leaveRoom removes c from its room bookkeeping.
func (h *Hub) leaveRoom(c *Client) {
	if clients, ok := h.rooms[c.gameID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, c.gameID)
		}
	}
	c.gameID = ""
	h.registry.SetGame(c.id, "")
}

// beginGrace notifies the room that a participant is gone and arms
// the forfeit timer. Spectators and finished games arm nothing.
func (h *Hub) beginGrace(gameID string, identity players.Identity) {
	state, err := h.svc.GetGameState(context.Background(), gameID)
	if err != nil || state.Status != store.StatusActive {
		return
	}
	if state.Players.X.ID != identity.PlayerID && state.Players.O.ID != identity.PlayerID {
		return
	}

	key := graceKey{gameID: gameID, playerID: identity.PlayerID}
	if _, pending := h.timers[key]; pending {
		return
	}

	h.broadcast(gameID, EventParticipantDisconnected, participantPayload{
		ID:             identity.PlayerID,
		DisplayName:    identity.Username,
		TimeoutSeconds: int(h.grace / time.Second),
	})

	h.timers[key] = time.AfterFunc(h.grace, func() {
		h.commands <- func() { h.expireGrace(key) }
	})
}

// cancelGrace stops a pending grace timer, reporting whether one was
// pending.
func (h *Hub) cancelGrace(key graceKey) bool {
	timer, ok := h.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(h.timers, key)
	return true
}

// expireGrace forfeits the game in favor of the remaining participant.
func (h *Hub) expireGrace(key graceKey) {
	if _, ok := h.timers[key]; !ok {
		return
	}
	delete(h.timers, key)

	state, err := h.svc.ForfeitGame(context.Background(), key.gameID, key.playerID)
	if err != nil {
		// The game may have finished on its own in the meantime.
		log.Printf("forfeit game %s for absent player %s: %v", key.gameID, key.playerID, err)
		return
	}
	h.broadcast(key.gameID, EventSessionEnded, state)
}

// broadcastState sends the projection to the whole room, following up
// with session_ended when the game just finished.
func (h *Hub) broadcastState(gameID string, state *service.GameState) {
	h.broadcast(gameID, EventSessionState, state)
	if state.Status == store.StatusFinished {
		h.broadcast(gameID, EventSessionEnded, state)
	}
}

// broadcast fans an event out to every connection in a room.
func (h *Hub) broadcast(gameID, event string, data any) {
	h.broadcastExcept(gameID, nil, event, data)
}

// broadcastExcept fans an event out to a room, skipping one client.
// A subscriber with a full send buffer is dropped rather than allowed
// to stall the room.
func (h *Hub) broadcastExcept(gameID string, skip *Client, event string, data any) {
	clients, ok := h.rooms[gameID]
	if !ok {
		return
	}

	frame, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("encode %s event: %v", event, err)
		return
	}

	for client := range clients {
		// A drop mid-broadcast can cascade (beginGrace notifies the
		// same room), so membership is rechecked per client.
		if client == skip || !h.clients[client] {
			continue
		}
		select {
		case client.send <- frame:
		default:
			h.unregisterClient(client)
		}
	}
}

// sendEvent delivers one event to a single connection.
func (h *Hub) sendEvent(c *Client, event string, data any) {
	if !h.clients[c] {
		return
	}

	frame, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("encode %s event: %v", event, err)
		return
	}
	select {
	case c.send <- frame:
	default:
		h.unregisterClient(c)
	}
}

func (h *Hub) sendError(c *Client, message string) {
	h.sendEvent(c, EventError, errorPayload{Message: message})
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}

var knownErrs = []error{
	service.ErrGameNotFound,
	service.ErrSelfJoin,
	service.ErrNotActive,
	service.ErrNotYourTurn,
	service.ErrInvalidPosition,
	service.ErrCellOccupied,
	service.ErrNotAParticipant,
}

// userMessage strips internal wrapping from errors shown to clients.
// Known kinds carry their own stable text; anything else is masked.
func userMessage(err error) string {
	for _, known := range knownErrs {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
