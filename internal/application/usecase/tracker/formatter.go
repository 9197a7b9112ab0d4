package tracker

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/shopspring/decimal"

	"pricebot/internal/domain"
)

var decorations = []string{"💸", "🚀", "💰", "🌙", "⭐", "🖖", "🔥", "💎"}

const (
	arrowUp   = "📈"
	arrowDown = "📉"
	arrowFlat = "➡️"
)

// Line is one rendered coin of a session's price board.
type Line struct {
	Symbol string
	Price  decimal.Decimal
	// Direction is only rendered when the session has published a price
	// for the symbol before.
	Direction domain.Direction
	HasPrev   bool
}

// Formatter renders session boards as HTML chat text.
type Formatter struct {
	// Pick chooses the decoration of a line. Random by default.
	Pick func(options []string) string
}

func NewFormatter() *Formatter {
	return &Formatter{Pick: func(options []string) string {
		return options[rand.Intn(len(options))]
	}}
}

func (f *Formatter) deco() string {
	if f.Pick == nil {
		return decorations[0]
	}
	return f.Pick(decorations)
}

func (f *Formatter) Render(lines []Line) string {
	if len(lines) == 0 {
		return f.deco() + " No valid coins to show."
	}

	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.deco())
		sb.WriteString(" <b>")
		sb.WriteString(l.Symbol)
		sb.WriteString("</b>: $")
		sb.WriteString(l.Price.StringFixed(2))
		sb.WriteString(" ")
		if l.HasPrev {
			sb.WriteString(arrow(l.Direction))
		}
	}
	return sb.String()
}

func (f *Formatter) Empty() string {
	return f.deco() + " No coins tracked. Hit <code>/add ticker</code> to start."
}

func (f *Formatter) Failed(attempts int, err error) string {
	return fmt.Sprintf("⚠️ Price update failed after %d tries: %v. Try later.", attempts, err)
}

func (f *Formatter) Crashed(err error) string {
	return fmt.Sprintf("⚠️ Price tracking crashed: %v. Use /start to restart.", err)
}

func arrow(d domain.Direction) string {
	switch d {
	case domain.DirectionUp:
		return arrowUp
	case domain.DirectionDown:
		return arrowDown
	default:
		return arrowFlat
	}
}
