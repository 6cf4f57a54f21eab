package players

import "context"

// AnonymousID is the sentinel participant id used for connections that
// present no (or an invalid) credential. Anonymous participants never
// accumulate statistics.
const AnonymousID = "anonymous"

// Identity is the resolved identity of a connection or request.
type Identity struct {
	PlayerID    string
	Username    string
	IsAnonymous bool
}

// Anonymous returns the sentinel identity.
func Anonymous() Identity {
	return Identity{PlayerID: AnonymousID, Username: "Anonymous", IsAnonymous: true}
}

// Verifier resolves a presented credential into an identity. An empty
// or invalid token is not an error condition for callers; they fall
// back to Anonymous().
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Info is the display view of a participant embedded in projections.
type Info struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// Directory resolves participant ids to display info. Unknown and
// anonymous ids resolve to placeholders rather than errors so a
// projection can always be built.
type Directory interface {
	GetPlayerInfo(ctx context.Context, id string) (Info, error)
}

// Result is the outcome recorded for one participant of a finished
// game. Every result also increments the participant's total game
// count, draws included.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Recorder increments win/loss/draw tallies for a participant.
type Recorder interface {
	RecordResult(ctx context.Context, playerID string, result Result) error
}
