package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/cli"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/service"
	"github.com/rocketscienceinc/vanish-tictactoe/internal/usecase"
)

// main - plays one local session in the terminal.
func main() {
	variant := flag.String("variant", entity.VanishVariant, "rule variant: classic or vanish")
	mode := flag.String("mode", entity.BotMode, "opponent: friend or bot")
	difficulty := flag.String("difficulty", entity.EasyDifficulty, "bot tier: easy, medium or hard")
	botDelay := flag.Duration("bot-delay", 0, "pause before the bot moves (0: the variant's default)")
	resetDelay := flag.Duration("reset-delay", 0, "pause before the next round starts (0: the variant's default)")
	debug := flag.Bool("debug", false, "log debug output to stderr")
	flag.Parse()

	if err := run(*variant, *mode, *difficulty, *botDelay, *resetDelay, *debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(variant, mode, difficulty string, botDelay, resetDelay time.Duration, debug bool) error {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	settings := entity.Settings{Variant: variant, Mode: mode, Difficulty: difficulty}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	rules, err := entity.NewRules(variant)
	if err != nil {
		return err
	}

	var bot usecase.BotPlayer
	if mode == entity.BotMode {
		bot = service.NewBotService(logger, rules, service.DefaultBotConfig(rules), service.NewTimeSeededRandom())
	}

	controller, err := usecase.NewRoundController(
		logger,
		"local",
		settings,
		bot,
		usecase.NewTimeScheduler(),
		usecase.ControllerConfig{BotDelay: botDelay, ResetDelay: resetDelay}.WithDefaults(variant),
	)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer controller.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.Run(ctx, logger, os.Stdin, cli.NewRenderer(os.Stdout), controller)
}
