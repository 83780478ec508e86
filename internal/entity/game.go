package entity

import (
	"fmt"
	"slices"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""
)

const (
	ClassicVariant = "classic"
	VanishVariant  = "vanish"
)

// MarkLimit is the number of live marks a player may hold under vanish rules.
const MarkLimit = 3

// WinCombos are scanned in this order: rows, columns, diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a 3x3 grid stored row-major.
type Board [9]string

func (that Board) EmptyCells() []int {
	cells := make([]int, 0, len(that))
	for i, cell := range that {
		if cell == EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// History keeps the cells each player currently holds, oldest first.
// It is only tracked under vanish rules.
type History struct {
	X []int `json:"x"`
	O []int `json:"o"`
}

func (that History) Of(mark string) []int {
	if mark == PlayerX {
		return that.X
	}
	return that.O
}

// Clone returns a deep copy so transitions never share backing arrays.
func (that History) Clone() History {
	return History{
		X: slices.Clone(that.X),
		O: slices.Clone(that.O),
	}
}

func (that *History) set(mark string, cells []int) {
	if mark == PlayerX {
		that.X = cells
		return
	}
	that.O = cells
}

// Push appends cell to mark's history. When the history grows past limit the
// oldest cell is dropped and returned.
func (that *History) Push(mark string, cell, limit int) (int, bool) {
	cells := append(slices.Clone(that.Of(mark)), cell)

	evicted, ok := -1, false
	if limit > 0 && len(cells) > limit {
		evicted, ok = cells[0], true
		cells = cells[1:]
	}

	that.set(mark, cells)

	return evicted, ok
}

// Rules is the variant policy shared by the applicator, the evaluator and the bot.
type Rules struct {
	Variant  string `json:"variant"`
	Eviction bool   `json:"eviction"`
}

func NewRules(variant string) (Rules, error) {
	switch variant {
	case ClassicVariant:
		return Rules{Variant: ClassicVariant}, nil
	case VanishVariant:
		return Rules{Variant: VanishVariant, Eviction: true}, nil
	default:
		return Rules{}, fmt.Errorf("%w: %q", apperror.ErrUnknownVariant, variant)
	}
}

// MarkLimit returns the cap on live marks, zero meaning unlimited.
func (that Rules) MarkLimit() int {
	if that.Eviction {
		return MarkLimit
	}
	return 0
}

type Round struct {
	Board       Board   `json:"board"`
	History     History `json:"history"`
	Turn        string  `json:"player_turn"`
	Status      string  `json:"status"`
	Winner      string  `json:"winner"`
	WinningLine []int   `json:"winning_line,omitempty"`
}

func NewRound(starter string) Round {
	return Round{
		Turn:   starter,
		Status: StatusOngoing,
	}
}

// Clone returns a copy of the round that shares no slices with the original.
func (that Round) Clone() Round {
	clone := that
	clone.History = that.History.Clone()
	clone.WinningLine = slices.Clone(that.WinningLine)

	return clone
}

func (that Round) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that Round) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that Round) IsDraw() bool {
	return that.IsFinished() && that.Winner == PlayerTie
}

// WonBy reports the winning mark, or "" when the round has no winner.
func (that Round) WonBy() string {
	if that.IsFinished() && that.Winner != PlayerTie {
		return that.Winner
	}
	return ""
}

func Opponent(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
