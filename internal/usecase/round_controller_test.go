package usecase

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/tictactoe"
)

const (
	x = entity.PlayerX
	o = entity.PlayerO
	e = entity.EmptyCell
)

var testConfig = DefaultControllerConfig(entity.VanishVariant)

type manualTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

// manualScheduler records tasks and fires them only when the test says so.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

func (that *manualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	task := &manualTask{delay: d, fn: fn}
	that.tasks = append(that.tasks, task)

	return func() bool {
		that.mu.Lock()
		defer that.mu.Unlock()

		if task.cancelled || task.fired {
			return false
		}
		task.cancelled = true

		return true
	}
}

func (that *manualScheduler) pending() []*manualTask {
	that.mu.Lock()
	defer that.mu.Unlock()

	var tasks []*manualTask
	for _, task := range that.tasks {
		if !task.cancelled && !task.fired {
			tasks = append(tasks, task)
		}
	}

	return tasks
}

// fireNext runs the oldest pending task and reports its delay.
func (that *manualScheduler) fireNext(t *testing.T) time.Duration {
	t.Helper()

	tasks := that.pending()
	require.NotEmpty(t, tasks, "no pending task")

	that.mu.Lock()
	tasks[0].fired = true
	that.mu.Unlock()

	tasks[0].fn()

	return tasks[0].delay
}

// fireCancelled runs tasks that were cancelled, as a timer racing its Stop would.
func (that *manualScheduler) fireCancelled() {
	that.mu.Lock()
	var tasks []*manualTask
	for _, task := range that.tasks {
		if task.cancelled {
			tasks = append(tasks, task)
		}
	}
	that.mu.Unlock()

	for _, task := range tasks {
		task.fn()
	}
}

// stubBot plays its cells in order.
type stubBot struct {
	rules entity.Rules
	cells []int
}

func (that *stubBot) MakeTurn(round entity.Round, _ string) (entity.Round, error) {
	cell := that.cells[0]
	that.cells = that.cells[1:]

	return tictactoe.Play(round, that.rules, entity.BotMark, cell)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFriendController(t *testing.T, variant string) (*RoundController, *manualScheduler) {
	t.Helper()

	scheduler := &manualScheduler{}
	settings := entity.Settings{Variant: variant, Mode: entity.FriendMode, Difficulty: entity.EasyDifficulty}

	controller, err := NewRoundController(discardLogger(), "session", settings, nil, scheduler, testConfig)
	require.NoError(t, err)

	return controller, scheduler
}

func newBotController(t *testing.T, cells ...int) (*RoundController, *manualScheduler) {
	t.Helper()

	scheduler := &manualScheduler{}
	settings := entity.Settings{Variant: entity.ClassicVariant, Mode: entity.BotMode, Difficulty: entity.HardDifficulty}
	bot := &stubBot{rules: entity.Rules{Variant: entity.ClassicVariant}, cells: cells}

	controller, err := NewRoundController(discardLogger(), "session", settings, bot, scheduler, testConfig)
	require.NoError(t, err)

	return controller, scheduler
}

func selectAll(controller *RoundController, cells ...int) entity.Snapshot {
	var snapshot entity.Snapshot
	for _, cell := range cells {
		snapshot = controller.Select(cell)
	}

	return snapshot
}

func TestDefaultControllerConfig(t *testing.T) {
	t.Run("Each variant has its own pace", func(t *testing.T) {
		assert.Equal(t, ControllerConfig{BotDelay: 500 * time.Millisecond, ResetDelay: 2 * time.Second},
			DefaultControllerConfig(entity.ClassicVariant))
		assert.Equal(t, ControllerConfig{BotDelay: 700 * time.Millisecond, ResetDelay: 2500 * time.Millisecond},
			DefaultControllerConfig(entity.VanishVariant))
	})

	t.Run("Only zero delays are filled", func(t *testing.T) {
		config := ControllerConfig{BotDelay: time.Second}.WithDefaults(entity.ClassicVariant)

		assert.Equal(t, ControllerConfig{BotDelay: time.Second, ResetDelay: ClassicResetDelay}, config)
	})
}

func TestNewRoundController(t *testing.T) {
	t.Run("Rejects unknown settings", func(t *testing.T) {
		settings := entity.Settings{Variant: "giant", Mode: entity.FriendMode, Difficulty: entity.EasyDifficulty}

		_, err := NewRoundController(discardLogger(), "id", settings, nil, &manualScheduler{}, testConfig)

		require.Error(t, err)
	})

	t.Run("Bot mode needs a bot", func(t *testing.T) {
		settings := entity.Settings{Variant: entity.ClassicVariant, Mode: entity.BotMode, Difficulty: entity.EasyDifficulty}

		_, err := NewRoundController(discardLogger(), "id", settings, nil, &manualScheduler{}, testConfig)

		require.Error(t, err)
	})

	t.Run("O opens the first round", func(t *testing.T) {
		controller, scheduler := newFriendController(t, entity.ClassicVariant)

		snapshot := controller.Snapshot()

		assert.Equal(t, o, snapshot.Round.Turn)
		assert.Equal(t, entity.StatusOngoing, snapshot.Round.Status)
		assert.Empty(t, scheduler.pending())
	})
}

func TestRoundController_FriendRound(t *testing.T) {
	// Given: a classic friend session
	controller, scheduler := newFriendController(t, entity.ClassicVariant)

	// When: O completes the top row
	snapshot := selectAll(controller, 0, 3, 1, 4, 2)

	// Then: the round is won and the score credited
	assert.Equal(t, o, snapshot.Round.WonBy())
	assert.Equal(t, []int{0, 1, 2}, snapshot.Round.WinningLine)
	assert.Equal(t, entity.Score{O: 1}, snapshot.Score)

	// And: input on the finished board is ignored
	assert.Equal(t, snapshot, controller.Select(5))

	// When: the auto-reset fires
	delay := scheduler.fireNext(t)

	// Then: a new round starts with the last mover and the score kept
	after := controller.Snapshot()
	assert.Equal(t, testConfig.ResetDelay, delay)
	assert.Equal(t, entity.Board{}, after.Round.Board)
	assert.Equal(t, o, after.Round.Turn)
	assert.Equal(t, entity.Score{O: 1}, after.Score)
}

func TestRoundController_FriendSoftResetKeepsTurn(t *testing.T) {
	// Given: a friend round where X is to move
	controller, _ := newFriendController(t, entity.ClassicVariant)
	controller.Select(4)

	// When: a soft reset is requested mid-round
	snapshot := controller.Reset(false)

	// Then: X opens the new round
	assert.Equal(t, x, snapshot.Round.Turn)
	assert.Equal(t, entity.Board{}, snapshot.Round.Board)
}

func TestRoundController_IgnoresInvalidInput(t *testing.T) {
	controller, scheduler := newFriendController(t, entity.ClassicVariant)
	before := controller.Select(4)

	var notified int
	controller.Subscribe(func(entity.Snapshot) { notified++ })

	for _, cell := range []int{4, -1, 9} {
		assert.Equal(t, before, controller.Select(cell))
	}

	assert.Zero(t, notified)
	assert.Empty(t, scheduler.pending())
}

func TestRoundController_BotTurn(t *testing.T) {
	// Given: a bot session
	controller, scheduler := newBotController(t, 4)

	// When: the human plays
	snapshot := controller.Select(0)

	// Then: the bot is scheduled and human input is ignored meanwhile
	assert.Equal(t, x, snapshot.Round.Turn)
	require.Len(t, scheduler.pending(), 1)
	assert.Equal(t, snapshot, controller.Select(1))

	// When: the bot timer fires
	delay := scheduler.fireNext(t)

	// Then: the bot has moved and it is the human's turn again
	after := controller.Snapshot()
	assert.Equal(t, testConfig.BotDelay, delay)
	assert.Equal(t, x, after.Round.Board[4])
	assert.Equal(t, o, after.Round.Turn)
	assert.Empty(t, scheduler.pending())
}

func TestRoundController_BotWinsThenHumanStarts(t *testing.T) {
	controller, scheduler := newBotController(t, 3, 4, 5)

	controller.Select(0)
	scheduler.fireNext(t)
	controller.Select(1)
	scheduler.fireNext(t)
	controller.Select(8)
	scheduler.fireNext(t)

	won := controller.Snapshot()
	assert.Equal(t, x, won.Round.WonBy())
	assert.Equal(t, entity.Score{X: 1}, won.Score)

	scheduler.fireNext(t)

	next := controller.Snapshot()
	assert.Equal(t, o, next.Round.Turn)
	assert.Equal(t, entity.Score{X: 1}, next.Score)
}

func TestRoundController_HardResetCancelsPendingBot(t *testing.T) {
	// Given: a bot move scheduled after the human's move
	controller, scheduler := newBotController(t, 4)
	controller.Select(0)

	// When: a hard reset happens before the timer fires
	snapshot := controller.Reset(true)

	// Then: the pending task is cancelled
	assert.Empty(t, scheduler.pending())
	assert.Equal(t, entity.Board{}, snapshot.Round.Board)
	assert.Equal(t, o, snapshot.Round.Turn)

	// And: a stale firing does not touch the new round
	scheduler.fireCancelled()
	assert.Equal(t, snapshot, controller.Snapshot())
}

func TestRoundController_ResetScores(t *testing.T) {
	t.Run("Hard reset clears scores", func(t *testing.T) {
		controller, _ := newFriendController(t, entity.ClassicVariant)
		selectAll(controller, 0, 3, 1, 4, 2)

		snapshot := controller.Reset(true)

		assert.Equal(t, entity.Score{}, snapshot.Score)
		assert.Equal(t, o, snapshot.Round.Turn)
	})

	t.Run("Soft reset keeps scores", func(t *testing.T) {
		controller, _ := newFriendController(t, entity.ClassicVariant)
		selectAll(controller, 3, 0, 4, 1, 8, 2)

		snapshot := controller.Reset(false)

		assert.Equal(t, entity.Score{X: 1}, snapshot.Score)
		assert.Equal(t, x, snapshot.Round.Turn)
	})

	t.Run("Explicit reset cancels the pending auto-reset", func(t *testing.T) {
		controller, scheduler := newFriendController(t, entity.ClassicVariant)
		selectAll(controller, 0, 3, 1, 4, 2)
		require.Len(t, scheduler.pending(), 1)

		snapshot := controller.Reset(false)
		controller.Select(4)
		scheduler.fireCancelled()

		assert.Empty(t, scheduler.pending())
		assert.Equal(t, o, controller.Snapshot().Round.Board[4])
		assert.Equal(t, o, snapshot.Round.Turn)
	})
}

func TestRoundController_Difficulty(t *testing.T) {
	t.Run("Rejects an unknown tier", func(t *testing.T) {
		controller, _ := newBotController(t)

		_, err := controller.SetDifficulty("nightmare")

		require.Error(t, err)
		assert.Equal(t, entity.HardDifficulty, controller.Snapshot().Settings.Difficulty)
	})

	t.Run("Changing tier performs a hard reset", func(t *testing.T) {
		controller, scheduler := newBotController(t, 4)
		controller.Select(0)

		snapshot, err := controller.SetDifficulty(entity.MediumDifficulty)

		require.NoError(t, err)
		assert.Equal(t, entity.MediumDifficulty, snapshot.Settings.Difficulty)
		assert.Equal(t, entity.Board{}, snapshot.Round.Board)
		assert.Empty(t, scheduler.pending())
	})

	t.Run("Cycling wraps from hard to easy", func(t *testing.T) {
		controller, _ := newBotController(t)

		assert.Equal(t, entity.EasyDifficulty, controller.CycleDifficulty().Settings.Difficulty)
		assert.Equal(t, entity.MediumDifficulty, controller.CycleDifficulty().Settings.Difficulty)
	})
}

func TestRoundController_VanishingHint(t *testing.T) {
	// Given: a vanish friend round
	controller, _ := newFriendController(t, entity.VanishVariant)

	// When: O places a third mark
	snapshot := selectAll(controller, 0, 3, 1, 4, 8)

	// Then: O's oldest mark is flagged and X, below the cap, is not
	assert.Equal(t, map[string]int{o: 0}, snapshot.Vanishing)

	// When: X places a third mark too
	snapshot = controller.Select(6)

	// Then: both oldest marks are flagged
	assert.Equal(t, map[string]int{o: 0, x: 3}, snapshot.Vanishing)

	// When: O places a fourth mark
	snapshot = controller.Select(5)

	// Then: cell 0 vanished and O's next to go is cell 1
	assert.Equal(t, e, snapshot.Round.Board[0])
	assert.Equal(t, 1, snapshot.Vanishing[o])
}

func TestRoundController_Subscribe(t *testing.T) {
	// Given: a subscriber on a bot session
	controller, scheduler := newBotController(t, 4)

	var received []entity.Snapshot
	unsubscribe := controller.Subscribe(func(snapshot entity.Snapshot) {
		received = append(received, snapshot)
	})

	// When: the human moves and the bot answers on its timer
	controller.Select(0)
	scheduler.fireNext(t)

	// Then: both changes are pushed
	require.Len(t, received, 2)
	assert.Equal(t, x, received[1].Round.Board[4])

	// When: unsubscribed
	unsubscribe()
	controller.Reset(true)

	// Then: nothing more arrives
	assert.Len(t, received, 2)
}

func TestRestoreRoundController(t *testing.T) {
	// Given: a snapshot taken while the bot was about to move
	round := entity.NewRound(x)
	round.Board[0] = o
	snapshot := &entity.Snapshot{
		SessionID: "restored",
		Settings:  entity.Settings{Variant: entity.ClassicVariant, Mode: entity.BotMode, Difficulty: entity.EasyDifficulty},
		Round:     round,
		Score:     entity.Score{X: 2, O: 1},
	}
	scheduler := &manualScheduler{}
	bot := &stubBot{rules: entity.Rules{Variant: entity.ClassicVariant}, cells: []int{4}}

	// When: the controller is restored
	controller, err := RestoreRoundController(discardLogger(), snapshot, bot, scheduler, testConfig)
	require.NoError(t, err)

	// Then: the state is back and the bot move is rescheduled
	assert.Equal(t, "restored", controller.ID())
	assert.Equal(t, entity.Score{X: 2, O: 1}, controller.Snapshot().Score)
	require.Len(t, scheduler.pending(), 1)

	scheduler.fireNext(t)
	assert.Equal(t, x, controller.Snapshot().Round.Board[4])
}

func TestRestoreRoundController_KeepsLastMover(t *testing.T) {
	// Given: a friend round X just won
	original, _ := newFriendController(t, entity.ClassicVariant)
	snapshot := selectAll(original, 0, 3, 1, 4, 8, 5)
	require.Equal(t, x, snapshot.Round.WonBy())
	assert.Equal(t, x, snapshot.LastMover)

	// When: the session is restored and its auto-reset fires
	scheduler := &manualScheduler{}
	controller, err := RestoreRoundController(discardLogger(), &snapshot, nil, scheduler, testConfig)
	require.NoError(t, err)
	scheduler.fireNext(t)

	// Then: X opens the next round
	after := controller.Snapshot()
	assert.Equal(t, entity.Board{}, after.Round.Board)
	assert.Equal(t, x, after.Round.Turn)
}

func TestRoundController_Close(t *testing.T) {
	t.Run("Cancels the pending bot move", func(t *testing.T) {
		controller, scheduler := newBotController(t, 4)
		controller.Select(0)

		controller.Close()
		scheduler.fireCancelled()

		assert.Empty(t, scheduler.pending())
		assert.Equal(t, e, controller.Snapshot().Round.Board[4])
	})

	t.Run("Ignores input and notifies nobody", func(t *testing.T) {
		// Given: a closed friend session with a subscriber
		controller, scheduler := newFriendController(t, entity.ClassicVariant)

		var notified int
		controller.Subscribe(func(entity.Snapshot) { notified++ })
		controller.Close()
		controller.Subscribe(func(entity.Snapshot) { notified++ })

		// When: input keeps arriving
		controller.Select(4)
		controller.Reset(true)
		controller.CycleDifficulty()
		_, err := controller.SetDifficulty(entity.HardDifficulty)

		// Then: nothing changes and no listener fires
		require.NoError(t, err)
		assert.True(t, controller.IsClosed())
		assert.Equal(t, entity.Board{}, controller.Snapshot().Round.Board)
		assert.Equal(t, entity.EasyDifficulty, controller.Snapshot().Settings.Difficulty)
		assert.Zero(t, notified)
		assert.Empty(t, scheduler.pending())
	})
}
