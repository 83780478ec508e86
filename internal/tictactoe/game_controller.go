package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

// Outcome is the evaluator's verdict on a board.
type Outcome struct {
	Status string
	Winner string
	Line   []int
}

func (that Outcome) IsFinished() bool {
	return that.Status == entity.StatusFinished
}

// Winner returns the mark owning the first complete line and that line.
func Winner(board entity.Board) (string, []int) {
	for _, combo := range entity.WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return a, []int{combo[0], combo[1], combo[2]}
		}
	}

	return "", nil
}

// Evaluate decides whether the board is won, drawn or still in progress.
func Evaluate(board entity.Board, rules entity.Rules, history entity.History) Outcome {
	if winner, line := Winner(board); winner != "" {
		return Outcome{Status: entity.StatusFinished, Winner: winner, Line: line}
	}

	if isDraw(board, rules, history) {
		return Outcome{Status: entity.StatusFinished, Winner: entity.PlayerTie}
	}

	return Outcome{Status: entity.StatusOngoing}
}

func isDraw(board entity.Board, rules entity.Rules, history entity.History) bool {
	if !board.IsFull() {
		return false
	}

	if !rules.Eviction {
		return true
	}

	// under vanish rules a full board only counts when both players sit at the cap
	return len(history.X) == entity.MarkLimit && len(history.O) == entity.MarkLimit
}

// ApplyMove places mark at cell and returns the next round. The input round is
// never modified; on error it is returned as is.
func ApplyMove(round entity.Round, rules entity.Rules, mark string, cell int) (entity.Round, error) {
	if err := validateMove(round, mark, cell); err != nil {
		return round, fmt.Errorf("invalid turn: %w", err)
	}

	next := round.Clone()
	next.Board[cell] = mark

	if rules.Eviction {
		if evicted, ok := next.History.Push(mark, cell, rules.MarkLimit()); ok {
			next.Board[evicted] = entity.EmptyCell
		}
	}

	next.Turn = entity.Opponent(mark)

	return next, nil
}

// Settle records the evaluator's outcome on the round.
func Settle(round entity.Round, outcome Outcome) entity.Round {
	if !outcome.IsFinished() {
		round.Status = entity.StatusOngoing
		return round
	}

	round.Status = entity.StatusFinished
	round.Winner = outcome.Winner
	round.WinningLine = outcome.Line
	round.Turn = ""

	return round
}

// Play applies a move and settles the resulting round.
func Play(round entity.Round, rules entity.Rules, mark string, cell int) (entity.Round, error) {
	next, err := ApplyMove(round, rules, mark, cell)
	if err != nil {
		return round, err
	}

	return Settle(next, Evaluate(next.Board, rules, next.History)), nil
}

// validateMove - checks if the move is valid.
func validateMove(round entity.Round, mark string, cell int) error {
	if round.IsFinished() {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= len(round.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if round.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if round.Board[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}
