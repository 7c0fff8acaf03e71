package standardize

import (
	"testing"

	"candleflow/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformJSONArray(t *testing.T) {
	p := testPipeline()
	payload := []byte(`[
		{"code":"000001","date":"2024-07-01","open":"10.2","high":"10.5","low":"10.1","close":"10.4","vol":"1000000"},
		{"code":"000001","date":"2024-07-02","open":"10.4","high":"10.8","low":"10.3","close":"10.7","vol":"900000"}
	]`)

	records, sum, err := p.TransformJSON(payload, "X", market.FreqDay)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, sum.Accepted)
	assert.Equal(t, 0, sum.Dropped)
	assert.Equal(t, "000001", records[0].Symbol)
	assert.Equal(t, "X", records[0].Source)
}

func TestTransformJSONWrappedRows(t *testing.T) {
	p := testPipeline()
	payload := []byte(`{"status":"ok","data":[
		{"code":"600519","date":"2024-07-01","open":"1688","high":"1700","low":"1680","close":"1695","vol":25000}
	]}`)

	records, sum, err := p.TransformJSON(payload, "tushare", market.FreqDay)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "600519", records[0].Symbol)
	assert.Equal(t, 1, sum.Accepted)
}

func TestTransformJSONNonObjectRowsDrop(t *testing.T) {
	p := testPipeline()
	payload := []byte(`[
		{"code":"000001","date":"2024-07-01","open":"10","high":"11","low":"9","close":"10.5","vol":100},
		"garbage",
		42
	]`)

	records, sum, err := p.TransformJSON(payload, "X", market.FreqDay)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, sum.Dropped)
}

func TestTransformJSONRejectsBadPayloads(t *testing.T) {
	p := testPipeline()

	_, _, err := p.TransformJSON([]byte(`{"not":"closed`), "X", market.FreqDay)
	assert.Error(t, err)

	_, _, err = p.TransformJSON([]byte(`{"status":"ok"}`), "X", market.FreqDay)
	assert.Error(t, err, "object with no row array")
}
