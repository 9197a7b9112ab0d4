package exchange

import (
	"strings"
)

// SymbolConverter 符号转换接口
type SymbolConverter interface {
	// Symbol2Coin 将交易对转换为币种
	// 例: BTCUSDC -> BTC
	Symbol2Coin(symbol string) string

	// Coin2Symbol 将币种转换为交易对
	// 例: BTC -> BTCUSDC
	Coin2Symbol(coin string) string

	// SymbolSuffix 返回主报价币种
	SymbolSuffix() string
}

// QuoteSymbolConverter strips any of several quote suffixes and appends
// the first one.
type QuoteSymbolConverter struct {
	quotes []string
}

// NewQuoteSymbolConverter 创建转换器, quotes[0] 为主报价币种
func NewQuoteSymbolConverter(quotes ...string) *QuoteSymbolConverter {
	c := &QuoteSymbolConverter{}
	for _, q := range quotes {
		q = strings.ToUpper(strings.TrimSpace(q))
		if q != "" {
			c.quotes = append(c.quotes, q)
		}
	}
	return c
}

func (c *QuoteSymbolConverter) SymbolSuffix() string {
	if len(c.quotes) == 0 {
		return ""
	}
	return c.quotes[0]
}

// Symbol2Coin 只去掉结尾的报价币种: USDCUSDT -> USDC
func (c *QuoteSymbolConverter) Symbol2Coin(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range c.quotes {
		if len(sym) > len(q) && strings.HasSuffix(sym, q) {
			return strings.TrimSuffix(sym, q)
		}
	}
	return sym
}

// Coin2Symbol 将币种转换为交易对
// 例: BTC -> BTCUSDC, BTCUSDC -> BTCUSDC
func (c *QuoteSymbolConverter) Coin2Symbol(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}
	suffix := c.SymbolSuffix()
	if suffix != "" && len(coin) > len(suffix) && strings.HasSuffix(coin, suffix) {
		return coin
	}
	return coin + suffix
}
