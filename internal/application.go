package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/config"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/repository"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/repository/storage"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/service"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/usecase"
	"github.com/rocketscienceinc/vanish-tictactoe/transport/rest"
	"github.com/rocketscienceinc/vanish-tictactoe/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	sessionRepo, closeStorage, err := initSessionRepository(ctx, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeStorage(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}()

	random := service.NewTimeSeededRandom()
	newBot := func(rules entity.Rules) usecase.BotPlayer {
		botConfig := service.DefaultBotConfig(rules)
		if rules.Eviction {
			botConfig.Depth = conf.Game.VanishDepth
			botConfig.MediumSearchChance = conf.Game.MediumSearchChance
		}

		return service.NewBotService(logger, rules, botConfig, random)
	}

	sessionManager := usecase.NewSessionManager(
		logger,
		sessionRepo,
		usecase.NewTimeScheduler(),
		usecase.ManagerConfig{
			Controllers: map[string]usecase.ControllerConfig{
				entity.ClassicVariant: {BotDelay: conf.Game.Classic.BotDelay, ResetDelay: conf.Game.Classic.ResetDelay},
				entity.VanishVariant:  {BotDelay: conf.Game.Vanish.BotDelay, ResetDelay: conf.Game.Vanish.ResetDelay},
			},
			IdleTTL: conf.Session.TTL,
		},
		newBot,
	)
	defer sessionManager.Shutdown()

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, sessionManager).Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := websocket.New(logger, sessionManager).Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// initSessionRepository picks the configured backend and returns its closer.
func initSessionRepository(ctx context.Context, conf *config.Config) (repository.SessionRepository, func() error, error) {
	if conf.Storage != config.RedisStorage {
		return repository.NewMemorySessionRepository(conf.Session.TTL), func() error { return nil }, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	return repository.NewSessionRepository(redisStorage.Connection, conf.Session.TTL), redisStorage.Close, nil
}
