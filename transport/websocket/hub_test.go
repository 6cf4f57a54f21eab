package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/wricardo/tictactoe-live/cache"
	"github.com/wricardo/tictactoe-live/game/service"
	"github.com/wricardo/tictactoe-live/game/store"
	"github.com/wricardo/tictactoe-live/players"
	"github.com/wricardo/tictactoe-live/presence"
)

const testSecret = "hub-test-secret"

type hubFixture struct {
	hub *Hub
	svc service.GameService
	dir *players.MemoryDirectory
}

// newHubFixture wires a hub over in-memory collaborators. The grace
// period is an hour so timers never fire on their own; expiry paths
// are driven explicitly.
func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	dir := players.NewMemoryDirectory()
	dir.AddPlayer(players.Info{ID: "alice", Username: "Alice"})
	dir.AddPlayer(players.Info{ID: "bob", Username: "Bob"})
	svc := service.NewGameService(store.NewMemoryStore(), cache.NewService(cache.NewMemoryKV()), dir, dir)
	hub := NewHub(svc, players.NewJWTVerifier(testSecret), presence.NewRegistry(), cache.NewService(cache.NewMemoryKV()), time.Hour)
	return &hubFixture{hub: hub, svc: svc, dir: dir}
}

// activeGame creates an active alice-vs-bob game and returns its id.
func (f *hubFixture) activeGame(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	created, err := f.svc.CreateGame(ctx, "alice", true)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := f.svc.JoinGame(ctx, created.GameCode, "bob"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	return created.GameID
}

// connect registers a fake client directly with the hub internals.
func (f *hubFixture) connect(connID, playerID, username string) *Client {
	c := &Client{
		hub:      f.hub,
		send:     make(chan []byte, 256),
		id:       connID,
		identity: players.Identity{PlayerID: playerID, Username: username},
	}
	f.hub.registerClient(c)
	return c
}

// readEvent pops one frame off a client's send channel.
func readEvent(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return env
	default:
		t.Fatal("no frame queued")
		return envelope{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestJoinSessionPushesState(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	f.hub.handleJoin(alice, gameID)

	env := readEvent(t, alice)
	if env.Event != EventSessionState {
		t.Fatalf("event = %s, want session_state", env.Event)
	}
	var state service.GameState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.GameID != gameID || state.Status != store.StatusActive {
		t.Errorf("state = %+v", state)
	}

	// A second subscriber announces itself to the first.
	bob := f.connect("c-bob", "bob", "Bob")
	f.hub.handleJoin(bob, gameID)

	env = readEvent(t, alice)
	if env.Event != EventParticipantJoined {
		t.Fatalf("event = %s, want participant_joined", env.Event)
	}
	var p participantPayload
	json.Unmarshal(env.Data, &p)
	if p.ID != "bob" || p.DisplayName != "Bob" {
		t.Errorf("payload = %+v", p)
	}

	// The joiner itself gets state, not its own announcement.
	if env := readEvent(t, bob); env.Event != EventSessionState {
		t.Errorf("joiner got %s, want session_state", env.Event)
	}
	assertNoEvent(t, bob)
}

func TestJoinUnknownSession(t *testing.T) {
	f := newHubFixture(t)

	alice := f.connect("c-alice", "alice", "Alice")
	f.hub.handleJoin(alice, "no-such-game")

	env := readEvent(t, alice)
	if env.Event != EventError {
		t.Fatalf("event = %s, want error", env.Event)
	}
	var e errorPayload
	json.Unmarshal(env.Data, &e)
	if e.Message != service.ErrGameNotFound.Error() {
		t.Errorf("message = %q", e.Message)
	}
}

func TestMakeMoveBroadcastsToRoom(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	bob := f.connect("c-bob", "bob", "Bob")
	f.hub.handleJoin(alice, gameID)
	f.hub.handleJoin(bob, gameID)
	drain(alice)
	drain(bob)

	f.hub.handleMove(alice, gameID, 4)

	for _, c := range []*Client{alice, bob} {
		env := readEvent(t, c)
		if env.Event != EventSessionState {
			t.Fatalf("event = %s, want session_state", env.Event)
		}
		var state service.GameState
		json.Unmarshal(env.Data, &state)
		if state.Board[4] == nil || *state.Board[4] != "X" {
			t.Errorf("board[4] = %v, want X", state.Board[4])
		}
		if state.CurrentTurn != "O" {
			t.Errorf("turn = %s, want O", state.CurrentTurn)
		}
	}
}

func TestMakeMoveErrorGoesToMoverOnly(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	bob := f.connect("c-bob", "bob", "Bob")
	f.hub.handleJoin(alice, gameID)
	f.hub.handleJoin(bob, gameID)
	drain(alice)
	drain(bob)

	// It is X's turn; O moving is a rule violation.
	f.hub.handleMove(bob, gameID, 0)

	env := readEvent(t, bob)
	if env.Event != EventError {
		t.Fatalf("event = %s, want error", env.Event)
	}
	var e errorPayload
	json.Unmarshal(env.Data, &e)
	if e.Message != service.ErrNotYourTurn.Error() {
		t.Errorf("message = %q", e.Message)
	}
	assertNoEvent(t, alice)
}

func TestWinningMoveEmitsSessionEnded(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)
	ctx := context.Background()

	// Bring the game to one move from an X win on the top row.
	f.svc.MakeMove(ctx, gameID, "alice", 0)
	f.svc.MakeMove(ctx, gameID, "bob", 3)
	f.svc.MakeMove(ctx, gameID, "alice", 1)
	f.svc.MakeMove(ctx, gameID, "bob", 4)

	alice := f.connect("c-alice", "alice", "Alice")
	f.hub.handleJoin(alice, gameID)
	drain(alice)

	f.hub.handleMove(alice, gameID, 2)

	if env := readEvent(t, alice); env.Event != EventSessionState {
		t.Fatalf("first event = %s, want session_state", env.Event)
	}
	env := readEvent(t, alice)
	if env.Event != EventSessionEnded {
		t.Fatalf("second event = %s, want session_ended", env.Event)
	}
	var state service.GameState
	json.Unmarshal(env.Data, &state)
	if state.Winner == nil || *state.Winner != "X" {
		t.Errorf("winner = %v, want X", state.Winner)
	}
}

func TestRoomBroadcastIsolation(t *testing.T) {
	f := newHubFixture(t)
	game1 := f.activeGame(t)

	ctx := context.Background()
	created, _ := f.svc.CreateGame(ctx, "carol", true)
	game2 := created.GameID

	alice := f.connect("c-alice", "alice", "Alice")
	carol := f.connect("c-carol", "carol", "Carol")
	f.hub.handleJoin(alice, game1)
	f.hub.handleJoin(carol, game2)
	drain(alice)
	drain(carol)

	f.hub.handleMove(alice, game1, 0)

	if env := readEvent(t, alice); env.Event != EventSessionState {
		t.Errorf("event = %s, want session_state", env.Event)
	}
	assertNoEvent(t, carol)
}

func TestDisconnectStartsGraceAndForfeits(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	bob := f.connect("c-bob", "bob", "Bob")
	f.hub.handleJoin(alice, gameID)
	f.hub.handleJoin(bob, gameID)
	drain(alice)
	drain(bob)

	f.hub.unregisterClient(bob)

	env := readEvent(t, alice)
	if env.Event != EventParticipantDisconnected {
		t.Fatalf("event = %s, want participant_disconnected", env.Event)
	}
	var p participantPayload
	json.Unmarshal(env.Data, &p)
	if p.ID != "bob" || p.TimeoutSeconds != 3600 {
		t.Errorf("payload = %+v", p)
	}

	key := graceKey{gameID: gameID, playerID: "bob"}
	if _, ok := f.hub.timers[key]; !ok {
		t.Fatal("no grace timer armed")
	}

	f.hub.expireGrace(key)

	env = readEvent(t, alice)
	if env.Event != EventSessionEnded {
		t.Fatalf("event = %s, want session_ended", env.Event)
	}
	var state service.GameState
	json.Unmarshal(env.Data, &state)
	if state.Winner == nil || *state.Winner != "X" {
		t.Errorf("winner = %v, want X (remaining player)", state.Winner)
	}
}

func TestReconnectCancelsGrace(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	bob := f.connect("c-bob", "bob", "Bob")
	f.hub.handleJoin(alice, gameID)
	f.hub.handleJoin(bob, gameID)
	drain(alice)
	drain(bob)

	f.hub.unregisterClient(bob)
	drain(alice)

	bob2 := f.connect("c-bob-2", "bob", "Bob")
	f.hub.handleJoin(bob2, gameID)

	env := readEvent(t, alice)
	if env.Event != EventParticipantReconnected {
		t.Fatalf("event = %s, want participant_reconnected", env.Event)
	}

	key := graceKey{gameID: gameID, playerID: "bob"}
	if _, ok := f.hub.timers[key]; ok {
		t.Fatal("grace timer should be cancelled")
	}

	// A stale expiry for the cancelled key does nothing.
	f.hub.expireGrace(key)
	state, err := f.svc.GetGameState(context.Background(), gameID)
	if err != nil {
		t.Fatalf("GetGameState: %v", err)
	}
	if state.Status != store.StatusActive {
		t.Errorf("status = %s, want still active", state.Status)
	}
}

func TestSpectatorDisconnectArmsNothing(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	watcher := f.connect("c-watcher", "mallory", "Mallory")
	f.hub.handleJoin(alice, gameID)
	f.hub.handleJoin(watcher, gameID)
	drain(alice)
	drain(watcher)

	f.hub.unregisterClient(watcher)

	assertNoEvent(t, alice)
	if len(f.hub.timers) != 0 {
		t.Errorf("timers = %d, want none for a spectator", len(f.hub.timers))
	}
}

func TestLeaveSessionNotifiesAndArmsGrace(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	bob := f.connect("c-bob", "bob", "Bob")
	f.hub.handleJoin(alice, gameID)
	f.hub.handleJoin(bob, gameID)
	drain(alice)
	drain(bob)

	f.hub.handleLeave(bob)

	env := readEvent(t, alice)
	if env.Event != EventParticipantDisconnected {
		t.Fatalf("event = %s, want participant_disconnected", env.Event)
	}
	if bob.gameID != "" {
		t.Errorf("leaver still subscribed to %s", bob.gameID)
	}
	key := graceKey{gameID: gameID, playerID: "bob"}
	if _, ok := f.hub.timers[key]; !ok {
		t.Error("leave of an active game should arm the grace timer")
	}
}

func TestDroppedClientLateFramesIgnored(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)

	alice := f.connect("c-alice", "alice", "Alice")
	f.hub.handleJoin(alice, gameID)
	drain(alice)

	// A subscriber whose buffer only fits the join reply.
	slow := &Client{
		hub:      f.hub,
		send:     make(chan []byte, 1),
		id:       "c-slow",
		identity: players.Identity{PlayerID: "mallory", Username: "Mallory"},
	}
	f.hub.registerClient(slow)
	f.hub.handleJoin(slow, gameID)
	drain(alice)

	// The broadcast overflows the stalled subscriber and the hub drops
	// it, closing its send channel.
	f.hub.handleMove(alice, gameID, 4)
	if f.hub.clients[slow] {
		t.Fatal("stalled subscriber should have been dropped")
	}
	if _, ok := f.hub.rooms[gameID][slow]; ok {
		t.Fatal("dropped client should have left its room")
	}

	// Its readPump may still deliver frames queued before the drop.
	// Every reply path must stay off the closed send channel.
	f.hub.dispatch(inboundFrame{client: slow, event: EventMakeMove, data: []byte(`{"sessionId":"` + gameID + `","cellIndex":0}`)})
	f.hub.dispatch(inboundFrame{client: slow, event: EventJoinSession, data: []byte(`{"sessionId":"` + gameID + `"}`)})
	f.hub.sendError(slow, "late")

	if _, ok := f.hub.rooms[gameID][slow]; ok {
		t.Error("dropped client should not rejoin a room")
	}
}

func TestPresenceAndOnlineMarks(t *testing.T) {
	f := newHubFixture(t)

	alice := f.connect("c-alice", "alice", "Alice")
	if !f.hub.registry.IsOnline("alice") {
		t.Error("alice should be online after connect")
	}
	if !f.hub.cache.IsUserOnline(context.Background(), "alice") {
		t.Error("online mark missing from cache")
	}

	f.hub.unregisterClient(alice)
	if f.hub.registry.IsOnline("alice") {
		t.Error("alice should be offline after disconnect")
	}
	if f.hub.cache.IsUserOnline(context.Background(), "alice") {
		t.Error("online mark should be cleared")
	}
}

func TestResolveIdentity(t *testing.T) {
	f := newHubFixture(t)

	token := signTestToken(t, "alice", "Alice")

	tests := []struct {
		name   string
		build  func(r *http.Request)
		wantID string
	}{
		{"query token", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", token)
			r.URL.RawQuery = q.Encode()
		}, "alice"},
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		}, "alice"},
		{"no token", func(r *http.Request) {}, players.AnonymousID},
		{"garbage token", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", "not-a-jwt")
			r.URL.RawQuery = q.Encode()
		}, players.AnonymousID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.build(r)
			identity := f.hub.resolveIdentity(r)
			if identity.PlayerID != tt.wantID {
				t.Errorf("player id = %s, want %s", identity.PlayerID, tt.wantID)
			}
		})
	}
}

func TestWebSocketEndToEnd(t *testing.T) {
	f := newHubFixture(t)
	gameID := f.activeGame(t)
	go f.hub.Run()

	server := httptest.NewServer(http.HandlerFunc(f.hub.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + signTestToken(t, "alice", "Alice")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	join, _ := json.Marshal(map[string]any{
		"event": EventJoinSession,
		"data":  map[string]any{"sessionId": gameID},
	})
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		t.Fatalf("write join: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != EventSessionState {
		t.Fatalf("event = %s, want session_state", env.Event)
	}
	var state service.GameState
	json.Unmarshal(env.Data, &state)
	if state.GameID != gameID {
		t.Errorf("game id = %s, want %s", state.GameID, gameID)
	}
}

func signTestToken(t *testing.T, sub, username string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      sub,
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
