package entity

import (
	"fmt"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
)

const (
	FriendMode = "friend"
	BotMode    = "bot"
)

const (
	EasyDifficulty   = "easy"
	MediumDifficulty = "medium"
	HardDifficulty   = "hard"
)

// Difficulties lists the tiers in the order they are cycled through.
var Difficulties = []string{EasyDifficulty, MediumDifficulty, HardDifficulty}

// In bot mode the human always plays O and moves first.
const (
	HumanMark = PlayerO
	BotMark   = PlayerX
)

func ValidateMode(mode string) error {
	if mode != FriendMode && mode != BotMode {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownMode, mode)
	}
	return nil
}

func ValidateDifficulty(difficulty string) error {
	for _, known := range Difficulties {
		if known == difficulty {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", apperror.ErrUnknownDifficulty, difficulty)
}

// NextDifficulty returns the tier after current, wrapping Hard back to Easy.
func NextDifficulty(current string) string {
	for i, known := range Difficulties {
		if known == current {
			return Difficulties[(i+1)%len(Difficulties)]
		}
	}
	return EasyDifficulty
}

type Score struct {
	X int `json:"x"`
	O int `json:"o"`
}

func (that *Score) Credit(mark string) {
	switch mark {
	case PlayerX:
		that.X++
	case PlayerO:
		that.O++
	}
}

// Settings are chosen once per session by the navigation layer.
type Settings struct {
	Variant    string `json:"variant"`
	Mode       string `json:"mode"`
	Difficulty string `json:"difficulty"`
}

// WithDefaults fills an empty difficulty with Easy.
func (that Settings) WithDefaults() Settings {
	if that.Difficulty == "" {
		that.Difficulty = EasyDifficulty
	}

	return that
}

func (that Settings) Validate() error {
	if _, err := NewRules(that.Variant); err != nil {
		return err
	}

	if err := ValidateMode(that.Mode); err != nil {
		return err
	}

	return ValidateDifficulty(that.Difficulty)
}

// Snapshot is what the presentation layer renders and what storage keeps.
type Snapshot struct {
	SessionID string   `json:"session_id"`
	Settings  Settings `json:"settings"`
	Round     Round    `json:"round"`
	Score     Score    `json:"scores"`
	// LastMover is who moved last; between friends they open a round that
	// follows a finished one.
	LastMover string `json:"last_mover,omitempty"`
	// Vanishing maps a mark to the cell its next placement will clear.
	Vanishing map[string]int `json:"vanishing,omitempty"`
}
