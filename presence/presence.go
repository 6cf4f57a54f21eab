package presence

import "sync"

// Record describes one live connection.
type Record struct {
	ConnID   string
	PlayerID string
	Username string
	GameID   string
}

// Registry tracks which players currently hold a live connection and
// which game each connection is attached to. It is process-local
// bookkeeping for the realtime gateway; cross-instance online status
// lives in the shared cache.
type Registry struct {
	mu      sync.RWMutex
	byConn  map[string]Record
	players map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		byConn:  make(map[string]Record),
		players: make(map[string]int),
	}
}

// Attach registers a connection for a player. A player may hold more
// than one connection; they stay online until the last one detaches.
func (r *Registry) Attach(connID, playerID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[connID] = Record{ConnID: connID, PlayerID: playerID, Username: username}
	r.players[playerID]++
}

// Detach removes a connection and reports whether that was the
// player's last one.
func (r *Registry) Detach(connID string) (rec Record, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byConn[connID]
	if !ok {
		return Record{}, false
	}
	delete(r.byConn, connID)

	r.players[rec.PlayerID]--
	if r.players[rec.PlayerID] <= 0 {
		delete(r.players, rec.PlayerID)
		last = true
	}
	return rec, last
}

// SetGame records the game a connection is attached to. An empty id
// clears the attachment.
func (r *Registry) SetGame(connID, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byConn[connID]; ok {
		rec.GameID = gameID
		r.byConn[connID] = rec
	}
}

// Lookup returns the record for a connection.
func (r *Registry) Lookup(connID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byConn[connID]
	return rec, ok
}

// IsOnline reports whether the player has at least one connection.
func (r *Registry) IsOnline(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[playerID] > 0
}

// Count returns the number of distinct online players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
