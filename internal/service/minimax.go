package service

import (
	"math"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/tictactoe"
)

const winScore = 10

// trail is a fixed-size copy of one player's vanish history, oldest first.
type trail struct {
	cells [entity.MarkLimit]int8
	n     int8
}

func newTrail(cells []int) trail {
	if len(cells) > entity.MarkLimit {
		cells = cells[len(cells)-entity.MarkLimit:]
	}

	var t trail
	for _, cell := range cells {
		t.cells[t.n] = int8(cell)
		t.n++
	}

	return t
}

// push appends cell and reports the cell that fell off the front, if any.
func (that *trail) push(cell int) (int, bool) {
	if int(that.n) < len(that.cells) {
		that.cells[that.n] = int8(cell)
		that.n++
		return NoMove, false
	}

	evicted := int(that.cells[0])
	copy(that.cells[:], that.cells[1:])
	that.cells[len(that.cells)-1] = int8(cell)

	return evicted, true
}

type position struct {
	board entity.Board
	bot   trail
	human trail
}

// stateKey identifies a search node. Histories are part of the key because the
// same board reached in a different order evicts different cells later.
type stateKey struct {
	position
	maximizing bool
	depth      int
}

// search is a single minimax run; its memo lives only as long as the request.
type search struct {
	rules    entity.Rules
	bot      string
	human    string
	maxDepth int
	memo     map[stateKey]int
}

// newSearch bounds every eviction search: vanish positions repeat, so an
// unbounded search never terminates.
func newSearch(rules entity.Rules, botMark string, maxDepth int) *search {
	if rules.Eviction && maxDepth <= Unbounded {
		maxDepth = VanishSearchDepth
	}

	return &search{
		rules:    rules,
		bot:      botMark,
		human:    entity.Opponent(botMark),
		maxDepth: maxDepth,
		memo:     make(map[stateKey]int),
	}
}

func (that *search) position(round entity.Round) position {
	pos := position{board: round.Board}
	if that.rules.Eviction {
		pos.bot = newTrail(round.History.Of(that.bot))
		pos.human = newTrail(round.History.Of(that.human))
	}

	return pos
}

// play returns pos with mark placed at cell and, under vanish rules, the
// mover's oldest mark removed once they exceed the cap.
func (that *search) play(pos position, cell int, mark string) position {
	pos.board[cell] = mark
	if !that.rules.Eviction {
		return pos
	}

	t := &pos.human
	if mark == that.bot {
		t = &pos.bot
	}

	if evicted, ok := t.push(cell); ok {
		pos.board[evicted] = entity.EmptyCell
	}

	return pos
}

func (that *search) winningCell(pos position, cells []int, mark string) (int, bool) {
	for _, cell := range cells {
		if winner, _ := tictactoe.Winner(that.play(pos, cell, mark).board); winner == mark {
			return cell, true
		}
	}

	return NoMove, false
}

// bestMove scores every cell and keeps the first one with the highest score.
func (that *search) bestMove(pos position, cells []int) (int, int) {
	bestScore, move := math.MinInt, NoMove

	for _, cell := range cells {
		score := that.minimax(that.play(pos, cell, that.bot), false, 1)
		if score > bestScore {
			bestScore, move = score, cell
		}
	}

	return move, bestScore
}

func (that *search) minimax(pos position, maximizing bool, depth int) int {
	key := stateKey{position: pos, maximizing: maximizing, depth: depth}
	if score, ok := that.memo[key]; ok {
		return score
	}

	switch winner, _ := tictactoe.Winner(pos.board); winner {
	case that.bot:
		return winScore - depth
	case that.human:
		return depth - winScore
	}

	if pos.board.IsFull() {
		return 0
	}

	if that.maxDepth != Unbounded && depth >= that.maxDepth {
		return 0
	}

	mark, best := that.human, math.MaxInt
	if maximizing {
		mark, best = that.bot, math.MinInt
	}

	for cell, value := range pos.board {
		if value != entity.EmptyCell {
			continue
		}

		score := that.minimax(that.play(pos, cell, mark), !maximizing, depth+1)
		if maximizing {
			best = max(best, score)
		} else {
			best = min(best, score)
		}
	}

	that.memo[key] = best

	return best
}
