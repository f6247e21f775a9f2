package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedSymbol = errors.New("malformed option symbol")

type OptionSide string

const (
	SideCall OptionSide = "CALL"
	SidePut  OptionSide = "PUT"
)

// ParsedSymbol is the information encoded in an option symbol like BTC-240628-60000-C.
type ParsedSymbol struct {
	Underlying string
	ExpiryDate time.Time // UTC 零点
	Strike     float64
	Side       OptionSide
}

// ParseSymbol splits UNDERLYING-YYMMDD-STRIKE-SIDE. Anything that is not exactly
// four dash separated fields is rejected.
func ParseSymbol(symbol string) (ParsedSymbol, error) {
	parts := strings.Split(strings.TrimSpace(symbol), "-")
	if len(parts) != 4 {
		return ParsedSymbol{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedSymbol, symbol, len(parts))
	}
	if parts[0] == "" {
		return ParsedSymbol{}, fmt.Errorf("%w: %q empty underlying", ErrMalformedSymbol, symbol)
	}

	expiry, err := time.Parse("060102", parts[1])
	if err != nil {
		return ParsedSymbol{}, fmt.Errorf("%w: %q bad expiry: %v", ErrMalformedSymbol, symbol, err)
	}

	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strike <= 0 {
		return ParsedSymbol{}, fmt.Errorf("%w: %q bad strike", ErrMalformedSymbol, symbol)
	}

	var side OptionSide
	switch strings.ToUpper(parts[3]) {
	case "C":
		side = SideCall
	case "P":
		side = SidePut
	default:
		return ParsedSymbol{}, fmt.Errorf("%w: %q bad side %q", ErrMalformedSymbol, symbol, parts[3])
	}

	return ParsedSymbol{
		Underlying: strings.ToUpper(parts[0]),
		ExpiryDate: expiry.UTC(),
		Strike:     strike,
		Side:       side,
	}, nil
}

// Instrument 一个可交易的期权合约
type Instrument struct {
	Symbol          string     `json:"symbol"`
	Underlying      string     `json:"underlying"`
	QuoteAsset      string     `json:"quoteAsset"`
	ExpiryDate      time.Time  `json:"expiryDate"`
	ExpiryTimestamp int64      `json:"expiryTimestamp"`
	Strike          float64    `json:"strikePrice"`
	Side            OptionSide `json:"side"`
	Unit            float64    `json:"unit"`
	MinQty          float64    `json:"minQty"`
	MaxQty          float64    `json:"maxQty"`
	TickSize        float64    `json:"tickSize"`
	StepSize        float64    `json:"stepSize"`
	PriceScale      int        `json:"priceScale"`
	QuantityScale   int        `json:"quantityScale"`
}

// Catalog is the immutable set of instruments loaded at startup.
type Catalog struct {
	instruments []Instrument
	bySymbol    map[string]int
}

// NewCatalog parses every entry's symbol and fills fields the exchange listing left empty.
// Entries with a malformed symbol are left out and returned in skipped.
func NewCatalog(entries []Instrument) (cat *Catalog, skipped []string) {
	cat = &Catalog{
		instruments: make([]Instrument, 0, len(entries)),
		bySymbol:    make(map[string]int, len(entries)),
	}
	for _, in := range entries {
		p, err := ParseSymbol(in.Symbol)
		if err != nil {
			skipped = append(skipped, in.Symbol)
			continue
		}
		key := strings.ToUpper(in.Symbol)
		if _, dup := cat.bySymbol[key]; dup {
			continue
		}
		in.Symbol = key
		if in.Underlying == "" {
			in.Underlying = p.Underlying
		}
		in.Underlying = strings.ToUpper(in.Underlying)
		in.ExpiryDate = p.ExpiryDate
		if in.ExpiryTimestamp == 0 {
			in.ExpiryTimestamp = p.ExpiryDate.UnixMilli()
		}
		if in.Strike == 0 {
			in.Strike = p.Strike
		}
		if in.Side == "" {
			in.Side = p.Side
		}
		cat.bySymbol[key] = len(cat.instruments)
		cat.instruments = append(cat.instruments, in)
	}
	return cat, skipped
}

// CatalogFromSymbols builds a catalog from bare symbols.
func CatalogFromSymbols(symbols []string) (*Catalog, []string) {
	entries := make([]Instrument, 0, len(symbols))
	for _, s := range symbols {
		entries = append(entries, Instrument{Symbol: s})
	}
	return NewCatalog(entries)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.instruments)
}

// Instruments returns a copy of all instruments in listing order.
func (c *Catalog) Instruments() []Instrument {
	if c == nil {
		return nil
	}
	return append([]Instrument(nil), c.instruments...)
}

func (c *Catalog) Lookup(symbol string) (Instrument, bool) {
	if c == nil {
		return Instrument{}, false
	}
	i, ok := c.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Instrument{}, false
	}
	return c.instruments[i], true
}

// ForUnderlying 返回指定标的的所有合约
func (c *Catalog) ForUnderlying(underlying string) []Instrument {
	if c == nil {
		return nil
	}
	var out []Instrument
	for _, in := range c.instruments {
		if strings.EqualFold(in.Underlying, underlying) {
			out = append(out, in)
		}
	}
	return out
}

// Underlyings returns the sorted distinct underlyings.
func (c *Catalog) Underlyings() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, in := range c.instruments {
		if _, ok := seen[in.Underlying]; ok {
			continue
		}
		seen[in.Underlying] = struct{}{}
		out = append(out, in.Underlying)
	}
	sort.Strings(out)
	return out
}

// ExpiryDates returns the distinct calendar expiry dates of an underlying, ascending.
func (c *Catalog) ExpiryDates(underlying string) []time.Time {
	seen := make(map[time.Time]struct{})
	var out []time.Time
	for _, in := range c.ForUnderlying(underlying) {
		if _, ok := seen[in.ExpiryDate]; ok {
			continue
		}
		seen[in.ExpiryDate] = struct{}{}
		out = append(out, in.ExpiryDate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
