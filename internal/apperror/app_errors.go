package apperror

import (
	"errors"
	"fmt"
)

// ErrInvalidMove is the parent of every rejected move; callers that only
// need to know a move was refused check for it with errors.Is.
var ErrInvalidMove = errors.New("invalid move")

var (
	ErrGameFinished = fmt.Errorf("%w: game is already finished", ErrInvalidMove)
	ErrNotYourTurn  = fmt.Errorf("%w: it's not your turn", ErrInvalidMove)
	ErrCellOccupied = fmt.Errorf("%w: cell is already occupied", ErrInvalidMove)
	ErrInvalidCell  = fmt.Errorf("%w: invalid cell index", ErrInvalidMove)
)

var (
	ErrNoMovesAvailable  = errors.New("no moves available")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnknownVariant    = errors.New("unknown game variant")
	ErrUnknownMode       = errors.New("unknown game mode")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)
