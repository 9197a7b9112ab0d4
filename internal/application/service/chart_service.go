package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pricebot/internal/application/port"
	"pricebot/internal/domain"
)

// ErrInvalidPeriod is returned for periods not shaped like 7d, 12h or 30m.
var ErrInvalidPeriod = errors.New("invalid period")

var klineIntervals = map[byte]string{
	'd': "1d",
	'h': "1h",
	'm': "1m",
}

// maxKlines is the upstream limit per request.
const maxKlines = 1000

// ChartService serves close-price series for the charting collaborator.
type ChartService struct {
	candles port.CandleSource
	quote   string
}

func NewChartService(candles port.CandleSource, quote string) *ChartService {
	return &ChartService{candles: candles, quote: domain.NormalizeSymbol(quote)}
}

// ParsePeriod maps "7d" to interval "1d" with limit 7.
func ParsePeriod(period string) (interval string, limit int, err error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if len(period) < 2 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	interval, ok := klineIntervals[period[len(period)-1]]
	if !ok {
		return "", 0, fmt.Errorf("%w: unit must be d, h or m", ErrInvalidPeriod)
	}
	limit, err = strconv.Atoi(period[:len(period)-1])
	if err != nil || limit <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	if limit > maxKlines {
		limit = maxKlines
	}
	return interval, limit, nil
}

// Series returns the candles of symbol over period.
func (s *ChartService) Series(ctx context.Context, symbol, period string) ([]domain.Candle, error) {
	interval, limit, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	symbol = domain.NormalizeSymbol(symbol)
	candles, err := s.candles.Klines(ctx, symbol+s.quote, interval, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no data for %s over %s: %w", symbol, period, domain.ErrDataUnavailable)
	}
	return candles, nil
}
