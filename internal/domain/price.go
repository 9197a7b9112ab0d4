package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the price movement direction
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

var hundred = decimal.NewFromInt(100)

// Observation is the last known price of one symbol.
// A zero ObservedAt means the symbol is subscribed but has not been seen yet.
type Observation struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Observed reports whether a price has been written for the symbol.
func (o Observation) Observed() bool { return !o.ObservedAt.IsZero() }

// Candle is one historical bar; only the close is kept.
type Candle struct {
	OpenTime time.Time
	Close    decimal.Decimal
}

// Prices is a resolve result: one entry per requested symbol, invalid when
// the price could not be determined.
type Prices map[string]decimal.NullDecimal

// Get returns the price of symbol if it was resolved.
func (p Prices) Get(symbol string) (decimal.Decimal, bool) {
	v, ok := p[symbol]
	if !ok || !v.Valid {
		return decimal.Decimal{}, false
	}
	return v.Decimal, true
}

// PercentChange returns (cur-prev)/prev*100.
// A zero prev yields 0 instead of a division error.
func PercentChange(prev, cur decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(hundred)
}

// Compare returns the direction of cur relative to prev.
func Compare(prev, cur decimal.Decimal) Direction {
	switch pc := PercentChange(prev, cur); pc.Sign() {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionSame
	}
}

// NormalizeSymbol uppercases and trims a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeSymbols normalizes, drops empties and deduplicates, keeping first-seen order.
func NormalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := NormalizeSymbol(s)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
