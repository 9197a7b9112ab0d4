package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"pricebot/internal/domain"
)

// ErrZeroTargetPrice is returned when converting into a coin priced at zero.
var ErrZeroTargetPrice = errors.New("target price is zero")

// Conversion is the result of converting an amount between two coins.
type Conversion struct {
	Amount decimal.Decimal
	From   string
	To     string
	Result decimal.Decimal
}

// ConvertService converts amounts between coins through their quote prices.
type ConvertService struct {
	prices *PriceService
}

func NewConvertService(prices *PriceService) *ConvertService {
	return &ConvertService{prices: prices}
}

// Convert computes amount*price(from)/price(to), both priced in the default
// quote. The result is rounded to 6 decimals.
func (s *ConvertService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*Conversion, error) {
	from = s.prices.NormalizeTicker(from)
	to = s.prices.NormalizeTicker(to)

	prices, err := s.prices.Resolve(ctx, []string{from, to}, s.prices.Quote(), false)
	if err != nil {
		return nil, err
	}
	src, ok := prices.Get(from)
	if !ok {
		return nil, fmt.Errorf("%s: %w", from, domain.ErrDataUnavailable)
	}
	dst, ok := prices.Get(to)
	if !ok {
		return nil, fmt.Errorf("%s: %w", to, domain.ErrDataUnavailable)
	}
	if dst.IsZero() {
		return nil, fmt.Errorf("%s: %w", to, ErrZeroTargetPrice)
	}

	return &Conversion{
		Amount: amount,
		From:   from,
		To:     to,
		Result: amount.Mul(src).Div(dst).Round(6),
	}, nil
}
