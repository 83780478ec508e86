package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type CommandKind int

const (
	Select CommandKind = iota
	SoftReset
	HardReset
	CycleDifficulty
	Quit
)

var ErrUnknownCommand = errors.New("unknown command")

type Command struct {
	Kind CommandKind
	// Cell is zero-based and only set for Select.
	Cell int
}

// ParseCommand reads one input line. Cells are typed 1-9.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)

	switch line {
	case "r":
		return Command{Kind: SoftReset}, nil
	case "R":
		return Command{Kind: HardReset}, nil
	case "d", "D":
		return Command{Kind: CycleDifficulty}, nil
	case "q", "Q", "quit", "exit":
		return Command{Kind: Quit}, nil
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > 9 {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	return Command{Kind: Select, Cell: n - 1}, nil
}
