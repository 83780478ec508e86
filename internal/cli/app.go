package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

type session interface {
	Select(cell int) entity.Snapshot
	Reset(hard bool) entity.Snapshot
	CycleDifficulty() entity.Snapshot
	Snapshot() entity.Snapshot
	Subscribe(fn func(entity.Snapshot)) (unsubscribe func())
}

// Run draws every state change of s and feeds it commands read from in until
// quit, end of input, or ctx is done.
func Run(ctx context.Context, logger *slog.Logger, in io.Reader, renderer *Renderer, s session) error {
	log := logger.With("component", "cli")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	redraw := make(chan entity.Snapshot, 1)
	unsubscribe := s.Subscribe(func(snapshot entity.Snapshot) {
		// keep only the latest state
		select {
		case <-redraw:
		default:
		}

		select {
		case redraw <- snapshot:
		default:
		}
	})
	defer unsubscribe()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	renderer.Draw(s.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			renderer.Draw(s.Snapshot())

			return nil
		case snapshot := <-redraw:
			renderer.Draw(snapshot)
		case line := <-lines:
			command, err := ParseCommand(line)
			if errors.Is(err, ErrUnknownCommand) {
				log.Debug("ignored input", "line", line)
				continue
			}

			if command.Kind == Quit {
				return nil
			}

			apply(s, command)
		}
	}
}

func apply(s session, command Command) {
	switch command.Kind {
	case Select:
		s.Select(command.Cell)
	case SoftReset:
		s.Reset(false)
	case HardReset:
		s.Reset(true)
	case CycleDifficulty:
		s.CycleDifficulty()
	case Quit:
	}
}
