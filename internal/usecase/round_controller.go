package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/tictactoe"
)

const (
	ClassicBotDelay   = 500 * time.Millisecond
	ClassicResetDelay = 2 * time.Second
	VanishBotDelay    = 700 * time.Millisecond
	VanishResetDelay  = 2500 * time.Millisecond
)

type ControllerConfig struct {
	BotDelay   time.Duration
	ResetDelay time.Duration
}

// DefaultControllerConfig returns the pacing each variant is played at.
func DefaultControllerConfig(variant string) ControllerConfig {
	if variant == entity.VanishVariant {
		return ControllerConfig{BotDelay: VanishBotDelay, ResetDelay: VanishResetDelay}
	}

	return ControllerConfig{BotDelay: ClassicBotDelay, ResetDelay: ClassicResetDelay}
}

// WithDefaults fills zero delays from the variant's defaults.
func (that ControllerConfig) WithDefaults(variant string) ControllerConfig {
	defaults := DefaultControllerConfig(variant)

	if that.BotDelay == 0 {
		that.BotDelay = defaults.BotDelay
	}

	if that.ResetDelay == 0 {
		that.ResetDelay = defaults.ResetDelay
	}

	return that
}

type BotPlayer interface {
	MakeTurn(round entity.Round, difficulty string) (entity.Round, error)
}

// RoundController owns one session: the current round, the score and the
// deferred bot moves and auto-resets. All state is guarded by mu; deferred
// tasks carry the version they were scheduled at and are dropped when any
// transition happened in between.
type RoundController struct {
	mu sync.Mutex

	logger    *slog.Logger
	id        string
	settings  entity.Settings
	rules     entity.Rules
	bot       BotPlayer
	scheduler Scheduler
	config    ControllerConfig

	round     entity.Round
	score     entity.Score
	lastMover string

	version uint64
	pending []func() bool
	closed  bool

	listeners map[int]func(entity.Snapshot)
	nextID    int
}

// NewRoundController starts a session with a fresh round. bot may be nil in friend mode.
func NewRoundController(
	logger *slog.Logger,
	id string,
	settings entity.Settings,
	bot BotPlayer,
	scheduler Scheduler,
	config ControllerConfig,
) (*RoundController, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	if settings.Mode == entity.BotMode && bot == nil {
		return nil, errors.New("bot mode requires a bot player")
	}

	rules, err := entity.NewRules(settings.Variant)
	if err != nil {
		return nil, err
	}

	that := &RoundController{
		logger:    logger.With("component", "round", "session", id),
		id:        id,
		settings:  settings,
		rules:     rules,
		bot:       bot,
		scheduler: scheduler,
		config:    config,
		listeners: make(map[int]func(entity.Snapshot)),
	}

	that.round = entity.NewRound(that.starter(true))

	return that, nil
}

// RestoreRoundController rebuilds a controller from a stored snapshot and
// reschedules whatever was pending when it was taken.
func RestoreRoundController(
	logger *slog.Logger,
	snapshot *entity.Snapshot,
	bot BotPlayer,
	scheduler Scheduler,
	config ControllerConfig,
) (*RoundController, error) {
	that, err := NewRoundController(logger, snapshot.SessionID, snapshot.Settings, bot, scheduler, config)
	if err != nil {
		return nil, err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.round = snapshot.Round.Clone()
	that.score = snapshot.Score
	that.lastMover = snapshot.LastMover
	that.scheduleFollowUp()

	return that, nil
}

func (that *RoundController) ID() string {
	return that.id
}

// Select handles a cell chosen by a human. Out-of-turn input, occupied cells,
// input on a finished round and input after Close are ignored.
func (that *RoundController) Select(cell int) entity.Snapshot {
	that.mu.Lock()

	if that.closed {
		return that.ignoreLocked("selection")
	}

	mark := that.round.Turn
	if that.settings.Mode == entity.BotMode && mark != entity.HumanMark {
		that.logger.Debug("ignored selection during bot turn", "cell", cell)
		snapshot := that.snapshotLocked()
		that.mu.Unlock()

		return snapshot
	}

	if !that.playLocked(mark, cell) {
		snapshot := that.snapshotLocked()
		that.mu.Unlock()

		return snapshot
	}

	return that.commit()
}

// Reset starts a new round at once. A hard reset also clears the score.
func (that *RoundController) Reset(hard bool) entity.Snapshot {
	that.mu.Lock()

	if that.closed {
		return that.ignoreLocked("reset")
	}

	that.resetLocked(hard)

	return that.commit()
}

// SetDifficulty switches the bot tier and performs a hard reset.
func (that *RoundController) SetDifficulty(difficulty string) (entity.Snapshot, error) {
	if err := entity.ValidateDifficulty(difficulty); err != nil {
		return entity.Snapshot{}, err
	}

	that.mu.Lock()

	if that.closed {
		return that.ignoreLocked("difficulty change"), nil
	}

	that.settings.Difficulty = difficulty
	that.resetLocked(true)

	return that.commit(), nil
}

// CycleDifficulty moves to the next tier, Hard wrapping to Easy.
func (that *RoundController) CycleDifficulty() entity.Snapshot {
	that.mu.Lock()

	if that.closed {
		return that.ignoreLocked("difficulty change")
	}

	that.settings.Difficulty = entity.NextDifficulty(that.settings.Difficulty)
	that.resetLocked(true)

	return that.commit()
}

func (that *RoundController) Snapshot() entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change,
// including the ones made by deferred tasks.
func (that *RoundController) Subscribe(fn func(entity.Snapshot)) (unsubscribe func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return func() {}
	}

	id := that.nextID
	that.nextID++
	that.listeners[id] = fn

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()

		delete(that.listeners, id)
	}
}

// IsClosed reports whether Close was called; a closed controller ignores input.
func (that *RoundController) IsClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.closed
}

// Close cancels every pending task and drops the listeners. Later input is
// ignored and notifies nobody.
func (that *RoundController) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	that.version++
	that.cancelPendingLocked()
	clear(that.listeners)
}

func (that *RoundController) ignoreLocked(what string) entity.Snapshot {
	that.logger.Debug("ignored input on closed session", "input", what)

	snapshot := that.snapshotLocked()
	that.mu.Unlock()

	return snapshot
}

func (that *RoundController) playLocked(mark string, cell int) bool {
	next, err := tictactoe.Play(that.round, that.rules, mark, cell)
	if errors.Is(err, apperror.ErrInvalidMove) {
		that.logger.Debug("ignored move", "mark", mark, "cell", cell, "reason", err)
		return false
	}

	if err != nil {
		that.logger.Error("failed to apply move", "mark", mark, "cell", cell, "error", err)
		return false
	}

	that.round = next
	that.lastMover = mark
	that.version++

	if winner := next.WonBy(); winner != "" {
		that.score.Credit(winner)
		that.logger.Info("round won", "winner", winner, "line", next.WinningLine)
	} else if next.IsDraw() {
		that.logger.Info("round drawn")
	}

	that.scheduleFollowUp()

	return true
}

// scheduleFollowUp queues the auto-reset after a finished round or the bot's
// move when the bot is next.
func (that *RoundController) scheduleFollowUp() {
	switch {
	case that.round.IsFinished():
		that.schedule(that.config.ResetDelay, that.autoResetLocked)
	case that.settings.Mode == entity.BotMode && that.round.Turn == entity.BotMark:
		that.schedule(that.config.BotDelay, that.botTurnLocked)
	}
}

func (that *RoundController) botTurnLocked() {
	next, err := that.bot.MakeTurn(that.round, that.settings.Difficulty)
	if errors.Is(err, apperror.ErrNoMovesAvailable) {
		that.logger.Warn("bot has no move available", "board", that.round.Board)
		return
	}

	if err != nil {
		that.logger.Error("bot failed to make turn", "error", err)
		return
	}

	that.round = next
	that.lastMover = entity.BotMark
	that.version++

	if winner := next.WonBy(); winner != "" {
		that.score.Credit(winner)
		that.logger.Info("round won", "winner", winner, "line", next.WinningLine)
	} else if next.IsDraw() {
		that.logger.Info("round drawn")
	}

	that.scheduleFollowUp()
}

func (that *RoundController) autoResetLocked() {
	that.resetLocked(false)
}

func (that *RoundController) resetLocked(hard bool) {
	starter := that.starter(hard)

	that.version++
	that.cancelPendingLocked()

	if hard {
		that.score = entity.Score{}
		that.lastMover = ""
	}

	that.round = entity.NewRound(starter)
	that.logger.Debug("new round", "hard", hard, "starter", starter)
}

// starter picks who opens the next round. Against the bot the human always
// starts; between friends O starts after a hard reset, otherwise the player
// whose turn it would have been.
func (that *RoundController) starter(hard bool) string {
	if that.settings.Mode == entity.BotMode || hard {
		return entity.HumanMark
	}

	if that.round.IsOngoing() && that.round.Turn != "" {
		return that.round.Turn
	}

	if that.lastMover != "" {
		return that.lastMover
	}

	return entity.HumanMark
}

func (that *RoundController) schedule(delay time.Duration, task func()) {
	version := that.version

	cancel := that.scheduler.AfterFunc(delay, func() {
		that.mu.Lock()
		if version != that.version {
			that.mu.Unlock()
			return
		}

		task()
		that.commit()
	})

	that.pending = append(that.pending, cancel)
}

func (that *RoundController) cancelPendingLocked() {
	for _, cancel := range that.pending {
		cancel()
	}

	that.pending = nil
}

// commit snapshots the state, releases mu and notifies listeners.
func (that *RoundController) commit() entity.Snapshot {
	snapshot := that.snapshotLocked()

	listeners := make([]func(entity.Snapshot), 0, len(that.listeners))
	for _, fn := range that.listeners {
		listeners = append(listeners, fn)
	}

	that.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}

	return snapshot
}

func (that *RoundController) snapshotLocked() entity.Snapshot {
	snapshot := entity.Snapshot{
		SessionID: that.id,
		Settings:  that.settings,
		Round:     that.round.Clone(),
		Score:     that.score,
		LastMover: that.lastMover,
	}

	if !that.rules.Eviction || that.round.IsFinished() {
		return snapshot
	}

	for _, mark := range []string{entity.PlayerX, entity.PlayerO} {
		if cells := that.round.History.Of(mark); len(cells) == entity.MarkLimit {
			if snapshot.Vanishing == nil {
				snapshot.Vanishing = make(map[string]int, 2)
			}
			snapshot.Vanishing[mark] = cells[0]
		}
	}

	return snapshot
}
