package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/apperror"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

const saveTimeout = 3 * time.Second

type sessionRepo interface {
	Save(ctx context.Context, snapshot *entity.Snapshot) error
	GetByID(ctx context.Context, id string) (*entity.Snapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

// BotFactory builds the computer opponent for a session's rules.
type BotFactory func(rules entity.Rules) BotPlayer

type ManagerConfig struct {
	// Controllers holds the pacing per variant; missing variants and zero
	// delays use DefaultControllerConfig.
	Controllers map[string]ControllerConfig
	// IdleTTL closes a live session after this long without a state change or
	// lookup. Zero keeps sessions until they are closed.
	IdleTTL time.Duration
}

func (that ManagerConfig) controllerConfig(variant string) ControllerConfig {
	return that.Controllers[variant].WithDefaults(variant)
}

type liveSession struct {
	controller *RoundController
	// generation invalidates idle timers armed before the latest touch.
	generation uint64
	cancelIdle func() bool
}

// SessionManager keeps the live controllers by session id and mirrors every
// change into the repository so a session survives a restart. Sessions left
// idle for IdleTTL are closed; their snapshot stays in the repository until
// its own TTL.
type SessionManager struct {
	logger    *slog.Logger
	repo      sessionRepo
	scheduler Scheduler
	config    ManagerConfig
	newBot    BotFactory

	mu       sync.Mutex
	sessions map[string]*liveSession
}

func NewSessionManager(
	logger *slog.Logger,
	repo sessionRepo,
	scheduler Scheduler,
	config ManagerConfig,
	newBot BotFactory,
) *SessionManager {
	return &SessionManager{
		logger: logger.With("component", "session_manager"),

		repo:      repo,
		scheduler: scheduler,
		config:    config,
		newBot:    newBot,
		sessions:  make(map[string]*liveSession),
	}
}

// Connect resumes the session with id, or starts a new one with settings when
// id is empty or unknown.
func (that *SessionManager) Connect(ctx context.Context, id string, settings entity.Settings) (*RoundController, error) {
	if id != "" {
		controller, err := that.Get(ctx, id)
		if err == nil {
			return controller, nil
		}

		if !errors.Is(err, apperror.ErrSessionNotFound) {
			return nil, err
		}
	}

	return that.Create(ctx, settings)
}

func (that *SessionManager) Create(ctx context.Context, settings entity.Settings) (*RoundController, error) {
	bot, err := that.botFor(settings)
	if err != nil {
		return nil, err
	}

	config := that.config.controllerConfig(settings.Variant)

	controller, err := NewRoundController(that.logger, uuid.NewString(), settings, bot, that.scheduler, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	snapshot := controller.Snapshot()
	if err = that.repo.Save(ctx, &snapshot); err != nil {
		controller.Close()
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	that.mu.Lock()
	that.register(controller)
	that.mu.Unlock()

	controller.Subscribe(that.persist)
	that.logger.Info("session created", "session", controller.ID(), "variant", settings.Variant, "mode", settings.Mode)

	return controller, nil
}

// Get returns the live controller for id, restoring it from storage if needed.
func (that *SessionManager) Get(ctx context.Context, id string) (*RoundController, error) {
	that.mu.Lock()
	live, ok := that.sessions[id]
	if ok {
		that.touchLocked(id, live)
	}
	that.mu.Unlock()

	if ok {
		return live.controller, nil
	}

	snapshot, err := that.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	bot, err := that.botFor(snapshot.Settings)
	if err != nil {
		return nil, err
	}

	config := that.config.controllerConfig(snapshot.Settings.Variant)

	restored, err := RestoreRoundController(that.logger, snapshot, bot, that.scheduler, config)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	that.mu.Lock()
	if existing, ok := that.sessions[id]; ok {
		that.touchLocked(id, existing)
		that.mu.Unlock()
		restored.Close()

		return existing.controller, nil
	}
	that.register(restored)
	that.mu.Unlock()

	restored.Subscribe(that.persist)
	that.logger.Info("session restored", "session", id)

	return restored, nil
}

func (that *SessionManager) Turn(ctx context.Context, id string, cell int) (entity.Snapshot, error) {
	controller, err := that.Get(ctx, id)
	if err != nil {
		return entity.Snapshot{}, err
	}

	return controller.Select(cell), nil
}

func (that *SessionManager) Reset(ctx context.Context, id string, hard bool) (entity.Snapshot, error) {
	controller, err := that.Get(ctx, id)
	if err != nil {
		return entity.Snapshot{}, err
	}

	return controller.Reset(hard), nil
}

// SetDifficulty switches to difficulty, or to the next tier when it is empty.
func (that *SessionManager) SetDifficulty(ctx context.Context, id, difficulty string) (entity.Snapshot, error) {
	controller, err := that.Get(ctx, id)
	if err != nil {
		return entity.Snapshot{}, err
	}

	if difficulty == "" {
		return controller.CycleDifficulty(), nil
	}

	return controller.SetDifficulty(difficulty)
}

func (that *SessionManager) Snapshot(ctx context.Context, id string) (entity.Snapshot, error) {
	controller, err := that.Get(ctx, id)
	if err != nil {
		return entity.Snapshot{}, err
	}

	return controller.Snapshot(), nil
}

// Close stops the session and removes it from storage.
func (that *SessionManager) Close(ctx context.Context, id string) error {
	that.mu.Lock()
	live, ok := that.sessions[id]
	that.removeLocked(id)
	that.mu.Unlock()

	if ok {
		live.controller.Close()
	}

	if err := that.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// Shutdown stops every live controller and keeps their stored snapshots.
func (that *SessionManager) Shutdown() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for id, live := range that.sessions {
		that.removeLocked(id)
		live.controller.Close()
	}
}

// Live reports how many sessions are held in memory.
func (that *SessionManager) Live() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.sessions)
}

// register must be called with mu held.
func (that *SessionManager) register(controller *RoundController) {
	live := &liveSession{controller: controller}
	that.sessions[controller.ID()] = live
	that.touchLocked(controller.ID(), live)
}

// touchLocked rearms the idle timer of a live session.
func (that *SessionManager) touchLocked(id string, live *liveSession) {
	if that.config.IdleTTL <= 0 {
		return
	}

	if live.cancelIdle != nil {
		live.cancelIdle()
	}

	live.generation++
	generation := live.generation

	live.cancelIdle = that.scheduler.AfterFunc(that.config.IdleTTL, func() {
		that.expire(id, live, generation)
	})
}

func (that *SessionManager) expire(id string, live *liveSession, generation uint64) {
	that.mu.Lock()
	if that.sessions[id] != live || live.generation != generation {
		that.mu.Unlock()
		return
	}
	that.removeLocked(id)
	that.mu.Unlock()

	live.controller.Close()
	that.logger.Info("idle session closed", "session", id)
}

func (that *SessionManager) removeLocked(id string) {
	if live, ok := that.sessions[id]; ok && live.cancelIdle != nil {
		live.cancelIdle()
	}

	delete(that.sessions, id)
}

func (that *SessionManager) botFor(settings entity.Settings) (BotPlayer, error) {
	if settings.Mode != entity.BotMode {
		return nil, nil
	}

	rules, err := entity.NewRules(settings.Variant)
	if err != nil {
		return nil, err
	}

	return that.newBot(rules), nil
}

func (that *SessionManager) persist(snapshot entity.Snapshot) {
	log := that.logger.With("method", "persist", "session", snapshot.SessionID)

	that.mu.Lock()
	live, ok := that.sessions[snapshot.SessionID]
	if ok {
		that.touchLocked(snapshot.SessionID, live)
	}
	that.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := that.repo.Save(ctx, &snapshot); err != nil {
		log.Error("failed to save session", "error", err)
	}
}
