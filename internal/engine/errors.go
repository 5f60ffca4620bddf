package engine

import "errors"

var (
	// ErrIllegalPlay covers must-follow violations, unowned cards, duplicate
	// plays and plays into a full trick.
	ErrIllegalPlay = errors.New("illegal play")
	// ErrNotYourTurn is returned when someone other than the turn holder acts.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrIncompleteTrick means resolution was attempted before four plays.
	// Only the engine resolves tricks, so seeing it is a logic error.
	ErrIncompleteTrick = errors.New("incomplete trick")
	ErrWrongPhase      = errors.New("action not allowed in current phase")
	ErrGameComplete    = errors.New("game complete")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrInvalidSetup    = errors.New("invalid game setup")
)
