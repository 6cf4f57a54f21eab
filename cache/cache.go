package cache

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"
)

// Default TTLs. Projections are cheap to rebuild, so an hour bounds
// memory without risking staleness (every mutation refreshes the
// entry). The public-game counter uses a single-digit TTL to bound
// staleness while still absorbing read load.
const (
	GameStateTTL   = time.Hour
	InvitationTTL  = 300 * time.Second
	PublicCountTTL = 8 * time.Second
)

// KV is the minimal key-value surface the cache needs. RedisKV backs
// it in production; MemoryKV backs tests and cacheless runs.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key, field string) error
	HExists(ctx context.Context, key, field string) (bool, error)
}

// Service is the advisory state cache. It is never authoritative:
// every read or write failure is logged and reported as a miss, so
// gameplay proceeds correctly with the cache down.
type Service struct {
	kv KV
}

func NewService(kv KV) *Service {
	return &Service{kv: kv}
}

const onlineUsersKey = "online_users"

func gameKey(id string) string      { return "game:" + id }
func inviteKey(code string) string  { return "invite:" + code }
func countKey(status string) string { return "public_games_count:" + status }

// PutGameState caches a projection under the game id.
func (s *Service) PutGameState(ctx context.Context, gameID string, state any) {
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("cache: marshal game state %s: %v", gameID, err)
		return
	}
	if err := s.kv.Set(ctx, gameKey(gameID), string(data), GameStateTTL); err != nil {
		log.Printf("cache: put game state %s: %v", gameID, err)
	}
}

// GetGameState loads a cached projection into dest. False means miss
// (absent, expired, undecodable, or cache failure).
func (s *Service) GetGameState(ctx context.Context, gameID string, dest any) bool {
	data, found, err := s.kv.Get(ctx, gameKey(gameID))
	if err != nil {
		log.Printf("cache: get game state %s: %v", gameID, err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		log.Printf("cache: decode game state %s: %v", gameID, err)
		return false
	}
	return true
}

// DeleteGameState invalidates the cached projection.
func (s *Service) DeleteGameState(ctx context.Context, gameID string) {
	if err := s.kv.Del(ctx, gameKey(gameID)); err != nil {
		log.Printf("cache: delete game state %s: %v", gameID, err)
	}
}

// CreateInvitation registers the time-boxed token binding a private
// game code to its creator.
func (s *Service) CreateInvitation(ctx context.Context, code, inviterID string) {
	if err := s.kv.Set(ctx, inviteKey(code), inviterID, InvitationTTL); err != nil {
		log.Printf("cache: create invitation %s: %v", code, err)
	}
}

// Invitation looks up the invitation for a code. The error is non-nil
// only when the cache itself failed; callers gating private joins fail
// open on it so a broken cache never blocks gameplay.
func (s *Service) Invitation(ctx context.Context, code string) (inviterID string, found bool, err error) {
	inviterID, found, err = s.kv.Get(ctx, inviteKey(code))
	if err != nil {
		log.Printf("cache: get invitation %s: %v", code, err)
	}
	return inviterID, found, err
}

// DeleteInvitation consumes the invitation token on join.
func (s *Service) DeleteInvitation(ctx context.Context, code string) {
	if err := s.kv.Del(ctx, inviteKey(code)); err != nil {
		log.Printf("cache: delete invitation %s: %v", code, err)
	}
}

// SetUserOnline marks a player online, recording the owning connection.
func (s *Service) SetUserOnline(ctx context.Context, playerID, connID string) {
	if err := s.kv.HSet(ctx, onlineUsersKey, playerID, connID); err != nil {
		log.Printf("cache: set user %s online: %v", playerID, err)
	}
}

// SetUserOffline clears the online mark.
func (s *Service) SetUserOffline(ctx context.Context, playerID string) {
	if err := s.kv.HDel(ctx, onlineUsersKey, playerID); err != nil {
		log.Printf("cache: set user %s offline: %v", playerID, err)
	}
}

// IsUserOnline reports whether a player currently has a marked
// connection. Cache failures read as offline.
func (s *Service) IsUserOnline(ctx context.Context, playerID string) bool {
	online, err := s.kv.HExists(ctx, onlineUsersKey, playerID)
	if err != nil {
		log.Printf("cache: check user %s online: %v", playerID, err)
		return false
	}
	return online
}

// PutPublicCount caches the low-cardinality public-game counter.
func (s *Service) PutPublicCount(ctx context.Context, status string, count int) {
	if err := s.kv.Set(ctx, countKey(status), strconv.Itoa(count), PublicCountTTL); err != nil {
		log.Printf("cache: put public count %s: %v", status, err)
	}
}

// GetPublicCount returns the cached counter, or a miss.
func (s *Service) GetPublicCount(ctx context.Context, status string) (int, bool) {
	data, found, err := s.kv.Get(ctx, countKey(status))
	if err != nil {
		log.Printf("cache: get public count %s: %v", status, err)
		return 0, false
	}
	if !found {
		return 0, false
	}
	count, err := strconv.Atoi(data)
	if err != nil {
		log.Printf("cache: decode public count %s: %v", status, err)
		return 0, false
	}
	return count, true
}
