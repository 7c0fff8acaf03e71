package market

import (
	"strings"
	"time"
	"unicode"
)

// AssetClass determines which physical store a symbol's data lives in.
// It is derived once from the symbol's lexical form and never changes.
type AssetClass string

const (
	ClassEquityDomestic AssetClass = "equity_domestic"
	ClassEquityForeign  AssetClass = "equity_foreign"
	ClassFuture         AssetClass = "future"
	ClassCrypto         AssetClass = "crypto"
	ClassFund           AssetClass = "fund"
	ClassBond           AssetClass = "bond"
	ClassIndex          AssetClass = "index"
)

// AllAssetClasses lists every storage shard the system knows about.
var AllAssetClasses = []AssetClass{
	ClassEquityDomestic,
	ClassEquityForeign,
	ClassFuture,
	ClassCrypto,
	ClassFund,
	ClassBond,
	ClassIndex,
}

func (c AssetClass) Valid() bool {
	switch c {
	case ClassEquityDomestic, ClassEquityForeign, ClassFuture,
		ClassCrypto, ClassFund, ClassBond, ClassIndex:
		return true
	}
	return false
}

var cryptoQuotes = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

// ClassifySymbol derives the asset class from a symbol's lexical form.
// The mapping is deterministic so a symbol always routes to the same shard:
//
//	idx.000300     -> index (explicit prefix)
//	000001, 600519 -> equity_domestic (6-digit CN codes)
//	159915, 511880 -> fund
//	110059, 127007 -> bond
//	BTC/USDT       -> crypto (slash pair or crypto quote suffix)
//	IF2406, AU2412 -> future (letters then contract digits)
//	AAPL, BRK.B    -> equity_foreign
func ClassifySymbol(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return ClassEquityForeign
	}
	if strings.HasPrefix(s, "IDX.") || strings.HasPrefix(s, "INDEX.") {
		return ClassIndex
	}
	if strings.Contains(s, "/") {
		return ClassCrypto
	}
	if allDigits(s) && len(s) == 6 {
		switch {
		case strings.HasPrefix(s, "60"), strings.HasPrefix(s, "68"),
			strings.HasPrefix(s, "00"), strings.HasPrefix(s, "30"):
			return ClassEquityDomestic
		case strings.HasPrefix(s, "51"), strings.HasPrefix(s, "15"),
			strings.HasPrefix(s, "16"), strings.HasPrefix(s, "50"):
			return ClassFund
		case strings.HasPrefix(s, "11"), strings.HasPrefix(s, "12"),
			strings.HasPrefix(s, "10"):
			return ClassBond
		case strings.HasPrefix(s, "39"), strings.HasPrefix(s, "99"):
			return ClassIndex
		default:
			return ClassEquityDomestic
		}
	}
	for _, quote := range cryptoQuotes {
		if len(s) > len(quote) && strings.HasSuffix(s, quote) && allLetters(s) {
			return ClassCrypto
		}
	}
	if isFutureCode(s) {
		return ClassFuture
	}
	return ClassEquityForeign
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func allLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}

// isFutureCode matches contract codes of 1-2 letters followed by 3-4 digits.
func isFutureCode(s string) bool {
	i := 0
	for i < len(s) && unicode.IsLetter(rune(s[i])) {
		i++
	}
	if i == 0 || i > 2 {
		return false
	}
	digits := len(s) - i
	if digits < 3 || digits > 4 {
		return false
	}
	return allDigits(s[i:])
}

// AssetMetadata is the per-symbol registry row. Sources is append-only:
// re-discovery from a new provider merges into the set, never replaces it.
type AssetMetadata struct {
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	AssetClass    AssetClass `json:"asset_class"`
	Market        string     `json:"market"`
	Sources       []string   `json:"sources"`
	PrimarySource string     `json:"primary_source"`
	LastVerified  time.Time  `json:"last_verified"`
}

// MergeSources appends new sources, deduplicated, preserving order.
func (m *AssetMetadata) MergeSources(sources ...string) {
	seen := make(map[string]bool, len(m.Sources))
	for _, s := range m.Sources {
		seen[s] = true
	}
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		m.Sources = append(m.Sources, s)
	}
	if m.PrimarySource == "" && len(m.Sources) > 0 {
		m.PrimarySource = m.Sources[0]
	}
}
