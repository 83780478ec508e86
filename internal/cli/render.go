package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"github.com/rocketscienceinc/vanish-tictactoe/internal/entity"
)

const (
	colorX = "#E06C75"
	colorO = "#61AFEF"
)

type Renderer struct {
	out *termenv.Output
}

// NewRenderer writes to w; pass termenv.WithProfile(termenv.Ascii) for plain text.
func NewRenderer(w io.Writer, opts ...termenv.OutputOption) *Renderer {
	return &Renderer{out: termenv.NewOutput(w, opts...)}
}

// Draw clears the terminal and prints the snapshot with the command help.
func (that *Renderer) Draw(snapshot entity.Snapshot) {
	that.out.ClearScreen()
	_, _ = fmt.Fprint(that.out, that.Render(snapshot))
	_, _ = fmt.Fprintln(that.out, that.out.String(helpLine(snapshot.Settings)).Faint())
}

// Render formats the board, status and score. Empty cells show their key.
func (that *Renderer) Render(snapshot entity.Snapshot) string {
	var b strings.Builder

	b.WriteString(title(snapshot.Settings) + "\n\n")

	round := snapshot.Round
	for row := 0; row < 3; row++ {
		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			cell := row*3 + col
			cells[col] = that.cell(snapshot, cell)
		}

		b.WriteString(" " + strings.Join(cells, " │ ") + "\n")
		if row < 2 {
			b.WriteString("───┼───┼───\n")
		}
	}

	b.WriteString("\n" + that.status(snapshot.Settings, round) + "\n")
	b.WriteString(score(snapshot) + "\n")

	return b.String()
}

func (that *Renderer) cell(snapshot entity.Snapshot, cell int) string {
	mark := snapshot.Round.Board[cell]
	if mark == entity.EmptyCell {
		return that.out.String(strconv.Itoa(cell + 1)).Faint().String()
	}

	style := that.out.String(mark).Bold()
	switch mark {
	case entity.PlayerX:
		style = style.Foreground(that.out.Color(colorX))
	case entity.PlayerO:
		style = style.Foreground(that.out.Color(colorO))
	}

	if slices.Contains(snapshot.Round.WinningLine, cell) {
		style = style.Reverse()
	}

	if next, ok := snapshot.Vanishing[mark]; ok && next == cell && snapshot.Round.Turn == mark {
		style = style.Faint().Underline()
	}

	return style.String()
}

func (that *Renderer) status(settings entity.Settings, round entity.Round) string {
	switch {
	case round.IsDraw():
		return that.out.String("Draw!").Bold().String()
	case round.WonBy() != "":
		return that.out.String(name(settings, round.WonBy()) + " wins!").Bold().String()
	default:
		return name(settings, round.Turn) + " to move"
	}
}

func title(settings entity.Settings) string {
	variant := "Classic"
	if settings.Variant == entity.VanishVariant {
		variant = "Vanish"
	}

	if settings.Mode == entity.BotMode {
		return fmt.Sprintf("%s Tic-Tac-Toe vs Bot (%s)", variant, settings.Difficulty)
	}

	return variant + " Tic-Tac-Toe"
}

func name(settings entity.Settings, mark string) string {
	if settings.Mode != entity.BotMode {
		return mark
	}

	if mark == entity.HumanMark {
		return "You"
	}

	return "Bot"
}

func score(snapshot entity.Snapshot) string {
	if snapshot.Settings.Mode == entity.BotMode {
		return fmt.Sprintf("You %d : %d Bot", snapshot.Score.O, snapshot.Score.X)
	}

	return fmt.Sprintf("O %d : %d X", snapshot.Score.O, snapshot.Score.X)
}

func helpLine(settings entity.Settings) string {
	help := "1-9 place  r new round  R reset scores  q quit"
	if settings.Mode == entity.BotMode {
		help = "1-9 place  r new round  R reset scores  d difficulty  q quit"
	}

	return help
}
