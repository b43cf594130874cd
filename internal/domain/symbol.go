package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SymbolTable maps a ticker to its base price.
type SymbolTable map[string]int64

// DefaultSymbols returns the built-in table of approximate S&P 500 base prices.
func DefaultSymbols() SymbolTable {
	return SymbolTable{
		"AAPL":  175,
		"MSFT":  325,
		"AMZN":  120,
		"TSLA":  220,
		"GOOGL": 135,
		"META":  250,
		"BRK.B": 310,
		"JPM":   140,
		"JNJ":   160,
		"V":     230,
		"PG":    150,
		"NVDA":  450,
		"HD":    340,
		"DIS":   100,
		"MA":    380,
	}
}

// ParseSymbolTable parses a comma-separated list of SYMBOL=price pairs,
// e.g. "AAPL=175,MSFT=325".
func ParseSymbolTable(s string) (SymbolTable, error) {
	table := make(SymbolTable)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, price, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, &ValidationError{Message: fmt.Sprintf("symbol entry %q must be SYMBOL=price", pair)}
		}
		sym = strings.TrimSpace(sym)
		p, err := strconv.ParseInt(strings.TrimSpace(price), 10, 64)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("symbol %q has invalid price %q", sym, price)}
		}
		table[sym] = p
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that the table is non-empty and every base price is positive.
func (t SymbolTable) Validate() error {
	if len(t) == 0 {
		return &ValidationError{Message: "symbol table must not be empty"}
	}
	for sym, price := range t {
		if sym == "" {
			return &ValidationError{Message: "symbol must not be empty"}
		}
		if price <= 0 {
			return &ValidationError{Message: fmt.Sprintf("base price for %s must be > 0", sym)}
		}
	}
	return nil
}

// Symbols returns the tickers in ascending order so that random draws
// over the table are reproducible for a given seed.
func (t SymbolTable) Symbols() []string {
	out := make([]string, 0, len(t))
	for sym := range t {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// BasePrice returns the base price for symbol or ErrUnknownSymbol.
func (t SymbolTable) BasePrice(symbol string) (int64, error) {
	p, ok := t[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return p, nil
}
