package nodehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"candleflow/internal/dispatch"
	"candleflow/internal/market"
	"candleflow/internal/orchestrator"
	"candleflow/internal/provider"
	"candleflow/internal/router"
	"candleflow/internal/standardize"
	"candleflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct{}

func (stubSource) Name() string { return "X" }

func (stubSource) FetchBars(ctx context.Context, symbol string, r market.DateRange, freq market.Frequency) ([]provider.RawRecord, error) {
	var out []provider.RawRecord
	for ts := r.Start; !ts.After(r.End); ts = ts.Add(freq.Duration()) {
		out = append(out, provider.RawRecord{
			"symbol": symbol, "date": ts.Format("2006-01-02"),
			"open": "10", "high": "11", "low": "9", "close": "10.5", "volume": 100,
		})
	}
	return out, nil
}

func (stubSource) FetchAssetList(ctx context.Context, class market.AssetClass) ([]provider.RawAssetInfo, error) {
	return nil, nil
}

func (stubSource) Health(ctx context.Context) bool { return true }

func testServer(t *testing.T) *Server {
	t.Helper()
	rt := router.New()
	require.NoError(t, rt.Register(stubSource{}, 1))
	st, err := store.NewShardedStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	orch, err := orchestrator.New(orchestrator.Options{RetryCount: 0}, rt, standardize.New(), st, nil)
	require.NoError(t, err)
	s, err := NewServer(":0", orch)
	require.NoError(t, err)
	return s
}

func executeBody(t *testing.T, symbols ...string) []byte {
	t.Helper()
	body, err := json.Marshal(dispatch.ExecuteRequest{
		SchemaID:  dispatch.SchemaID,
		TaskID:    "task-1",
		Symbols:   symbols,
		Mode:      "full",
		Frequency: "1d",
		Start:     time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return body
}

func TestHandleExecute(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/node/execute", bytes.NewReader(executeBody(t, "600519", "000001")))
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dispatch.ExecuteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, dispatch.SchemaID, resp.SchemaID)
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, string(orchestrator.StatusCompleted), resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int64(6), resp.Records, "3 daily bars per symbol")
	for _, r := range resp.Results {
		assert.Equal(t, orchestrator.SymbolSucceeded, r.Status)
	}
}

func TestHandleExecuteRejectsInvalidPayloads(t *testing.T) {
	s := testServer(t)

	cases := map[string]string{
		"empty body":      ``,
		"wrong schema id": `{"schema_id":"other/v2","task_id":"t","symbols":["a"],"mode":"full","frequency":"1d","start":"2024-07-01T00:00:00Z","end":"2024-07-03T00:00:00Z"}`,
		"no symbols":      `{"schema_id":"candleflow/node-rpc/v1","task_id":"t","symbols":[],"mode":"full","frequency":"1d","start":"2024-07-01T00:00:00Z","end":"2024-07-03T00:00:00Z"}`,
		"bad mode":        `{"schema_id":"candleflow/node-rpc/v1","task_id":"t","symbols":["a"],"mode":"turbo","frequency":"1d","start":"2024-07-01T00:00:00Z","end":"2024-07-03T00:00:00Z"}`,
	}
	for name, payload := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/node/execute", bytes.NewReader([]byte(payload)))
		w := httptest.NewRecorder()
		s.Engine().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, name)
	}
}

func TestHandleExecuteRejectsInvalidRange(t *testing.T) {
	s := testServer(t)
	body, err := json.Marshal(dispatch.ExecuteRequest{
		SchemaID:  dispatch.SchemaID,
		TaskID:    "t",
		Symbols:   []string{"600519"},
		Mode:      "full",
		Frequency: "1d",
		Start:     time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/node/execute", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/node/health", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dispatch.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dispatch.SchemaID, resp.SchemaID)
	assert.Equal(t, "healthy", resp.Status)
	assert.Zero(t, resp.RunningTasks)
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
