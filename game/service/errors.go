package service

import "errors"

// Error kinds surfaced by game operations. All are recoverable at the
// calling boundary; the REST and realtime layers map them to their
// transport codes.
var (
	ErrGameNotFound    = errors.New("game not found")
	ErrSelfJoin        = errors.New("cannot join your own game")
	ErrNotActive       = errors.New("game is not active")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrInvalidPosition = errors.New("invalid position")
	ErrCellOccupied    = errors.New("position already taken")
	ErrNotAParticipant = errors.New("not a player in this game")
)
