package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/wricardo/tictactoe-live/game/service"
	"github.com/wricardo/tictactoe-live/game/store"
	"github.com/wricardo/tictactoe-live/players"
	"github.com/wricardo/tictactoe-live/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service  service.GameService
	verifier players.Verifier
	hub      *websocket.Hub
	router   *mux.Router
}

// NewServer creates a new API server. The hub may be nil when no
// realtime transport is mounted; REST mutations are then simply not
// fanned out.
func NewServer(gameService service.GameService, verifier players.Verifier, hub *websocket.Hub) *Server {
	s := &Server{
		service:  gameService,
		verifier: verifier,
		hub:      hub,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Game lifecycle
	api.HandleFunc("/games", s.handleCreateGame).Methods("POST")
	api.HandleFunc("/games/join", s.handleJoinGame).Methods("POST")
	api.HandleFunc("/games/find", s.handleFindGame).Methods("POST")

	// Game reads (fixed paths before the {id} pattern)
	api.HandleFunc("/games/public/count", s.handlePublicCount).Methods("GET")
	api.HandleFunc("/games/{id}/state", s.handleGetGameState).Methods("GET")

	// Game operations
	api.HandleFunc("/games/{id}/move", s.handleMove).Methods("POST")
	api.HandleFunc("/games/{id}/forfeit", s.handleForfeit).Methods("POST")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps game error kinds to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPosition):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotAParticipant):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSelfJoin),
		errors.Is(err, service.ErrNotActive),
		errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrCellOccupied):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// playerID resolves the acting player. A Bearer token wins; without
// one an explicit playerId in the request body is honored (the MCP
// proxy acts for named players this way); otherwise anonymous.
func (s *Server) playerID(r *http.Request, bodyPlayerID string) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		if identity, err := s.verifier.Verify(token); err == nil {
			return identity.PlayerID
		}
		log.Printf("rejecting credential token from %s", r.RemoteAddr)
	}
	if bodyPlayerID != "" {
		return bodyPlayerID
	}
	return players.AnonymousID
}

// Game Handlers

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsPublic *bool  `json:"isPublic,omitempty"`
		PlayerID string `json:"playerId,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	created, err := s.service.CreateGame(r.Context(), s.playerID(r, req.PlayerID), isPublic)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameCode string `json:"gameCode"`
		PlayerID string `json:"playerId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameCode == "" {
		respondError(w, http.StatusBadRequest, "gameCode is required")
		return
	}

	state, err := s.service.JoinGame(r.Context(), req.GameCode, s.playerID(r, req.PlayerID))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.pushState(state.GameID)
	respondJSON(w, http.StatusOK, state)
}

// handleFindGame matches the caller into the oldest waiting public
// game, creating a fresh one when nothing is available.
func (s *Server) handleFindGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	playerID := s.playerID(r, req.PlayerID)

	state, err := s.service.FindPublicGame(r.Context(), playerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if state != nil {
		s.pushState(state.GameID)
		respondJSON(w, http.StatusOK, state)
		return
	}

	created, err := s.service.CreateGame(r.Context(), playerID, true)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	fresh, err := s.service.GetGameState(r.Context(), created.GameID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, fresh)
}

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	state, err := s.service.GetGameState(r.Context(), gameID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	var req struct {
		Position *int   `json:"position"`
		PlayerID string `json:"playerId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		respondError(w, http.StatusBadRequest, "position is required")
		return
	}

	state, err := s.service.MakeMove(r.Context(), gameID, s.playerID(r, req.PlayerID), *req.Position)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.pushState(gameID)
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleForfeit(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	var req struct {
		PlayerID string `json:"playerId,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	state, err := s.service.ForfeitGame(r.Context(), gameID, s.playerID(r, req.PlayerID))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.pushState(gameID)
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handlePublicCount(w http.ResponseWriter, r *http.Request) {
	status := store.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = store.StatusWaiting
	}
	switch status {
	case store.StatusWaiting, store.StatusActive, store.StatusFinished:
	default:
		respondError(w, http.StatusBadRequest, "unknown status")
		return
	}

	count, err := s.service.CountPublicGames(r.Context(), status, true)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"count":  count,
	})
}

// pushState fans a REST mutation out to websocket subscribers.
func (s *Server) pushState(gameID string) {
	if s.hub != nil {
		s.hub.PushState(gameID)
	}
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
