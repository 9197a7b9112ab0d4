package tracker

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"pricebot/internal/domain"
)

func TestFormatterRender(t *testing.T) {
	f := &Formatter{Pick: func(options []string) string { return "*" }}

	got := f.Render([]Line{
		{Symbol: "BTC", Price: decimal.RequireFromString("42000.456"), Direction: domain.DirectionUp, HasPrev: true},
		{Symbol: "ETH", Price: decimal.NewFromInt(2000), Direction: domain.DirectionSame, HasPrev: true},
		{Symbol: "SOL", Price: decimal.RequireFromString("0.5")},
	})
	want := "* <b>BTC</b>: $42000.46 📈\n* <b>ETH</b>: $2000.00 ➡️\n* <b>SOL</b>: $0.50 "
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestFormatterMessages(t *testing.T) {
	f := &Formatter{Pick: func(options []string) string { return "*" }}

	if got := f.Render(nil); got != "* No valid coins to show." {
		t.Errorf("unexpected empty board %q", got)
	}
	if got := f.Failed(5, errors.New("timeout")); got != "⚠️ Price update failed after 5 tries: timeout. Try later." {
		t.Errorf("unexpected failure text %q", got)
	}
}
