package players

import (
	"context"
	"sync"
)

// Tally mirrors the statistics columns for one player.
type Tally struct {
	Wins, Losses, Draws, TotalGames int
}

// MemoryDirectory is an in-memory Directory + Recorder used by tests
// and cacheless development runs.
type MemoryDirectory struct {
	mu      sync.RWMutex
	infos   map[string]Info
	tallies map[string]Tally
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		infos:   make(map[string]Info),
		tallies: make(map[string]Tally),
	}
}

// AddPlayer registers display info for a player id.
func (d *MemoryDirectory) AddPlayer(info Info) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.infos[info.ID] = info
}

func (d *MemoryDirectory) GetPlayerInfo(ctx context.Context, id string) (Info, error) {
	if id == AnonymousID {
		return Info{ID: AnonymousID, Username: "Anonymous", IsAnonymous: true}, nil
	}
	if id == "" {
		return Info{Username: "Waiting..."}, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if info, ok := d.infos[id]; ok {
		return info, nil
	}
	return Info{ID: id, Username: "Unknown", IsAnonymous: true}, nil
}

func (d *MemoryDirectory) RecordResult(ctx context.Context, playerID string, result Result) error {
	if playerID == "" || playerID == AnonymousID {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.tallies[playerID]
	switch result {
	case ResultWin:
		t.Wins++
	case ResultLoss:
		t.Losses++
	case ResultDraw:
		t.Draws++
	}
	t.TotalGames++
	d.tallies[playerID] = t
	return nil
}

// TallyFor returns the recorded tally for a player id.
func (d *MemoryDirectory) TallyFor(playerID string) Tally {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tallies[playerID]
}
