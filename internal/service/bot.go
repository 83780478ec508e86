package service

import (
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/tictactoe"
)

// NoMove is returned together with apperror.ErrNoMovesAvailable.
const NoMove = -1

// Search depth limits, counted in plies including the bot's own move.
const (
	VanishSearchDepth = 5
	Unbounded         = 0
)

const DefaultMediumSearchChance = 0.4

type BotService interface {
	ChooseMove(round entity.Round, difficulty string) (int, error)
	MakeTurn(round entity.Round, difficulty string) (entity.Round, error)
}

type BotConfig struct {
	Mark string
	// Depth bounds the hard search; Unbounded searches to the end of the game.
	Depth int
	// MediumSearchChance is the probability that Medium runs the full search
	// instead of picking a random cell when it has nothing to win or block.
	MediumSearchChance float64
}

// DefaultBotConfig returns the tuning used for each rule variant.
func DefaultBotConfig(rules entity.Rules) BotConfig {
	if rules.Eviction {
		return BotConfig{
			Mark:               entity.BotMark,
			Depth:              VanishSearchDepth,
			MediumSearchChance: DefaultMediumSearchChance,
		}
	}

	return BotConfig{Mark: entity.BotMark, Depth: Unbounded}
}

type botService struct {
	logger *slog.Logger
	rules  entity.Rules
	config BotConfig
	random Random
}

func NewBotService(logger *slog.Logger, rules entity.Rules, config BotConfig, random Random) BotService {
	if config.Mark == "" {
		config.Mark = entity.BotMark
	}

	if rules.Eviction && config.Depth <= Unbounded {
		config.Depth = VanishSearchDepth
	}

	return &botService{
		logger: logger.With("component", "bot", "variant", rules.Variant),
		rules:  rules,
		config: config,
		random: random,
	}
}

func (that *botService) ChooseMove(round entity.Round, difficulty string) (int, error) {
	availableCells := round.Board.EmptyCells()
	if len(availableCells) == 0 {
		return NoMove, apperror.ErrNoMovesAvailable
	}

	switch difficulty {
	case entity.EasyDifficulty:
		return that.randomCell(availableCells), nil
	case entity.MediumDifficulty:
		return that.mediumMove(round, availableCells), nil
	case entity.HardDifficulty:
		return that.bestMove(round, availableCells), nil
	default:
		return NoMove, fmt.Errorf("%w: %q", apperror.ErrUnknownDifficulty, difficulty)
	}
}

func (that *botService) MakeTurn(round entity.Round, difficulty string) (entity.Round, error) {
	cell, err := that.ChooseMove(round, difficulty)
	if err != nil {
		return round, fmt.Errorf("bot failed to choose a cell: %w", err)
	}

	next, err := tictactoe.Play(round, that.rules, that.config.Mark, cell)
	if err != nil {
		return round, fmt.Errorf("bot failed to make turn: %w", err)
	}

	return next, nil
}

// mediumMove takes an immediate win, then blocks an immediate loss, and
// otherwise falls back to a random cell or, sometimes, the full search.
func (that *botService) mediumMove(round entity.Round, availableCells []int) int {
	s := that.newSearch()
	pos := s.position(round)

	if cell, ok := s.winningCell(pos, availableCells, that.config.Mark); ok {
		return cell
	}

	if cell, ok := s.winningCell(pos, availableCells, entity.Opponent(that.config.Mark)); ok {
		return cell
	}

	if that.config.MediumSearchChance > 0 && that.random.Float64() < that.config.MediumSearchChance {
		return that.bestMove(round, availableCells)
	}

	return that.randomCell(availableCells)
}

func (that *botService) bestMove(round entity.Round, availableCells []int) int {
	s := that.newSearch()

	cell, score := s.bestMove(s.position(round), availableCells)
	if cell == NoMove {
		that.logger.Debug("search found no move, falling back to random")
		return that.randomCell(availableCells)
	}

	that.logger.Debug("search finished", "cell", cell, "score", score, "states", len(s.memo))

	return cell
}

func (that *botService) newSearch() *search {
	return newSearch(that.rules, that.config.Mark, that.config.Depth)
}

func (that *botService) randomCell(availableCells []int) int {
	return availableCells[that.random.Intn(len(availableCells))]
}
