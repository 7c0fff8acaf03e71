package standardize

import (
	"fmt"

	"candleflow/internal/market"
	"candleflow/internal/provider"

	"github.com/tidwall/gjson"
)

// TransformJSON ingests a raw provider payload: either a JSON array of
// row objects or an object wrapping one under "data", "rows" or "result".
// Each row is standardized independently, same as TransformBatch.
func (p *Pipeline) TransformJSON(payload []byte, sourceID string, freq market.Frequency) ([]market.CandleRecord, BatchSummary, error) {
	if !gjson.ValidBytes(payload) {
		return nil, BatchSummary{}, fmt.Errorf("invalid json payload from %s", sourceID)
	}
	parsed := gjson.ParseBytes(payload)
	rows := parsed
	if !parsed.IsArray() {
		for _, key := range []string{"data", "rows", "result"} {
			if arr := parsed.Get(key); arr.IsArray() {
				rows = arr
				break
			}
		}
		if !rows.IsArray() {
			return nil, BatchSummary{}, fmt.Errorf("json payload from %s has no row array", sourceID)
		}
	}

	var raws []provider.RawRecord
	rows.ForEach(func(_, value gjson.Result) bool {
		obj, ok := value.Value().(map[string]any)
		if !ok {
			raws = append(raws, nil) // non-object rows drop in TransformBatch
			return true
		}
		raws = append(raws, provider.RawRecord(obj))
		return true
	})
	records, sum := p.TransformBatch(raws, sourceID, freq)
	return records, sum, nil
}
