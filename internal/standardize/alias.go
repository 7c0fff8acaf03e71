package standardize

import "strings"

// Canonical field names produced by alias resolution.
const (
	fieldSymbol    = "symbol"
	fieldTimestamp = "timestamp"
	fieldOpen      = "open"
	fieldHigh      = "high"
	fieldLow       = "low"
	fieldClose     = "close"
	fieldVolume    = "volume"
	fieldAmount    = "amount"
)

// AliasTable maps a canonical field to the provider-specific names it may
// arrive under. Matching is case-insensitive and ignores '_' and '-'.
type AliasTable map[string][]string

var defaultAliases = AliasTable{
	fieldSymbol:    {"code", "ticker", "pair", "instrument", "s"},
	fieldTimestamp: {"date", "time", "datetime", "day", "open_time", "opentime", "t", "ts"},
	fieldOpen:      {"o", "open_price"},
	fieldHigh:      {"h", "high_price", "max"},
	fieldLow:       {"l", "low_price", "min"},
	fieldClose:     {"c", "close_price", "last"},
	fieldVolume:    {"vol", "v", "qty", "quantity", "base_volume"},
	fieldAmount:    {"amt", "turnover", "quote_volume", "quote_asset_volume", "money"},
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, "_", "")
	return strings.ReplaceAll(k, "-", "")
}

// aliasIndex is the inverted lookup: normalized provider name -> canonical.
type aliasIndex map[string]string

func buildIndex(tables ...AliasTable) aliasIndex {
	idx := make(aliasIndex)
	for _, table := range tables {
		for canonical, names := range table {
			idx[normalizeKey(canonical)] = canonical
			for _, name := range names {
				idx[normalizeKey(name)] = canonical
			}
		}
	}
	return idx
}

// resolve maps a raw record's keys to canonical names. Keys with no alias
// mapping are preserved under their original name in extra.
func (idx aliasIndex) resolve(raw map[string]any) (fields map[string]any, extra map[string]any) {
	fields = make(map[string]any, len(raw))
	for k, v := range raw {
		canonical, ok := idx[normalizeKey(k)]
		if !ok {
			if extra == nil {
				extra = make(map[string]any)
			}
			extra[k] = v
			continue
		}
		// first writer wins when two raw keys collapse to one canonical name
		if _, exists := fields[canonical]; !exists {
			fields[canonical] = v
		}
	}
	return fields, extra
}
