package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"candleflow/internal/bus"
	"candleflow/internal/market"
	"candleflow/internal/provider"
	"candleflow/internal/router"
	"candleflow/internal/standardize"
	"candleflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC)
}

// fakeSource serves one synthetic daily bar per slot in the requested range
// and records every fetch window it was asked for.
type fakeSource struct {
	name string

	mu       sync.Mutex
	windows  map[string][]market.DateRange
	failFor  map[string]error
	failures int // remaining transient failures before recovery
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name:    name,
		windows: make(map[string][]market.DateRange),
		failFor: make(map[string]error),
	}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchBars(ctx context.Context, symbol string, r market.DateRange, freq market.Frequency) ([]provider.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[symbol] = append(f.windows[symbol], r)
	if err := f.failFor[symbol]; err != nil {
		return nil, err
	}
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("transient upstream hiccup")
	}
	var out []provider.RawRecord
	for ts := r.Start; !ts.After(r.End); ts = ts.Add(freq.Duration()) {
		out = append(out, provider.RawRecord{
			"symbol": symbol,
			"date":   ts.Format("2006-01-02"),
			"open":   "10.0", "high": "10.5", "low": "9.8", "close": "10.2",
			"volume": 1000,
		})
	}
	return out, nil
}

func (f *fakeSource) FetchAssetList(ctx context.Context, class market.AssetClass) ([]provider.RawAssetInfo, error) {
	return nil, nil
}

func (f *fakeSource) Health(ctx context.Context) bool { return true }

func (f *fakeSource) windowsFor(symbol string) []market.DateRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]market.DateRange(nil), f.windows[symbol]...)
}

// memStore is an in-memory CandleStore double.
type memStore struct {
	mu           sync.Mutex
	rows         map[string]market.CandleRecord
	latest       map[string]time.Time
	persisted    map[string][]time.Time
	provisionErr error
	upsertErrs   int // transient failures before upserts start succeeding
	metadata     map[string]market.AssetMetadata
}

func newMemStore() *memStore {
	return &memStore{
		rows:      make(map[string]market.CandleRecord),
		latest:    make(map[string]time.Time),
		persisted: make(map[string][]time.Time),
		metadata:  make(map[string]market.AssetMetadata),
	}
}

func (m *memStore) Provision(ctx context.Context, class market.AssetClass) error {
	return m.provisionErr
}

func (m *memStore) Upsert(ctx context.Context, class market.AssetClass, records []market.CandleRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErrs > 0 {
		m.upsertErrs--
		return 0, errors.New("store temporarily locked")
	}
	for _, rec := range records {
		m.rows[rec.Key()] = rec
	}
	return int64(len(records)), nil
}

func (m *memStore) UpsertMetadata(ctx context.Context, meta market.AssetMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[meta.Symbol] = meta
	return nil
}

func (m *memStore) LatestTimestamp(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.latest[symbol]
	return ts, ok, nil
}

func (m *memStore) PersistedTimestamps(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency, r market.DateRange) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.persisted[symbol]...), nil
}

func (m *memStore) MissingGaps(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency, r market.DateRange, thresholdDays int) ([]market.DateRange, error) {
	persisted, _ := m.PersistedTimestamps(ctx, class, symbol, freq, r)
	return store.ComputeGaps(persisted, r, freq, thresholdDays), nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func testOrchestrator(t *testing.T, src *fakeSource, st store.CandleStore, eventBus bus.Bus) *Orchestrator {
	t.Helper()
	rt := router.New()
	require.NoError(t, rt.Register(src, 1))
	o, err := New(Options{RetryCount: 1, RetryBackoff: time.Millisecond}, rt, standardize.New(), st, eventBus)
	require.NoError(t, err)
	return o
}

func fullTask(symbols ...string) *ImportTask {
	return NewTask(symbols, ModeFull, market.FreqDay, market.DateRange{Start: day(1), End: day(5)})
}

func TestRunFullImport(t *testing.T) {
	src := newFakeSource("X")
	st := newMemStore()
	o := testOrchestrator(t, src, st, nil)

	result, err := o.Run(context.Background(), fullTask("600519", "000001"))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Equal(t, int64(10), result.Records, "5 daily bars per symbol")
	assert.Equal(t, 10, st.rowCount())

	for _, r := range result.Symbols {
		assert.Equal(t, SymbolSucceeded, r.Status)
		assert.Equal(t, int64(5), r.Records)
	}
	assert.Contains(t, st.metadata, "600519", "provenance registered after success")
	assert.Equal(t, []string{"X"}, st.metadata["600519"].Sources)
}

func TestRunIsolatesSymbolFailures(t *testing.T) {
	src := newFakeSource("X")
	src.failFor["FAILME"] = errors.New("symbol not found")
	st := newMemStore()
	o := testOrchestrator(t, src, st, nil)

	result, err := o.Run(context.Background(), fullTask("600519", "FAILME", "000001"))
	require.NoError(t, err, "per-symbol failures never fail the task")

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	byName := make(map[string]SymbolResult)
	for _, r := range result.Symbols {
		byName[r.Symbol] = r
	}
	assert.Equal(t, SymbolFailed, byName["FAILME"].Status)
	assert.Equal(t, KindRouting, byName["FAILME"].ErrorKind, "exhausted failover reads as routing")
	assert.Equal(t, SymbolSucceeded, byName["600519"].Status)
	assert.Equal(t, SymbolSucceeded, byName["000001"].Status)
}

func TestRunProvisionFailureIsFatal(t *testing.T) {
	src := newFakeSource("X")
	st := newMemStore()
	st.provisionErr = fmt.Errorf("%w: disk full", store.ErrProvision)
	o := testOrchestrator(t, src, st, nil)

	result, err := o.Run(context.Background(), fullTask("600519"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrProvision)
	require.NotNil(t, result)
	assert.Equal(t, StatusFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestRunRetriesTransientStoreErrors(t *testing.T) {
	src := newFakeSource("X")
	st := newMemStore()
	st.upsertErrs = 1
	o := testOrchestrator(t, src, st, nil)

	result, err := o.Run(context.Background(), fullTask("600519"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 5, st.rowCount(), "retry after the transient failure persisted everything")
	assert.Len(t, src.windowsFor("600519"), 2, "the window was re-fetched on retry")
}

func TestRunIncrementalFetchesStrictlyAfterLatest(t *testing.T) {
	src := newFakeSource("X")
	st := newMemStore()
	st.latest["600519"] = day(3)
	o := testOrchestrator(t, src, st, nil)

	task := NewTask([]string{"600519"}, ModeIncremental, market.FreqDay,
		market.DateRange{Start: day(1), End: day(5)})
	result, err := o.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	windows := src.windowsFor("600519")
	require.Len(t, windows, 1)
	assert.Equal(t, day(4), windows[0].Start, "resume strictly after the newest persisted bar")
	assert.Equal(t, day(5), windows[0].End)
	assert.Equal(t, int64(2), result.Records)
}

func TestRunIncrementalUpToDateFetchesNothing(t *testing.T) {
	src := newFakeSource("X")
	st := newMemStore()
	st.latest["600519"] = day(5)
	o := testOrchestrator(t, src, st, nil)

	task := NewTask([]string{"600519"}, ModeIncremental, market.FreqDay,
		market.DateRange{Start: day(1), End: day(5)})
	result, err := o.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded, "nothing to do still succeeds")
	assert.Empty(t, src.windowsFor("600519"))
	assert.Zero(t, result.Records)
}

func TestRunGapFillFetchesOnlyGaps(t *testing.T) {
	src := newFakeSource("X")
	st := newMemStore()
	st.persisted["000001"] = []time.Time{day(1), day(3), day(5)}
	o := testOrchestrator(t, src, st, nil)

	task := NewTask([]string{"000001"}, ModeGapFill, market.FreqDay,
		market.DateRange{Start: day(1), End: day(5)})
	result, err := o.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	windows := src.windowsFor("000001")
	require.Len(t, windows, 2)
	assert.Equal(t, market.DateRange{Start: day(2), End: day(2)}, windows[0])
	assert.Equal(t, market.DateRange{Start: day(4), End: day(4)}, windows[1])
	assert.Equal(t, int64(2), result.Records)
}

func TestRunCanceledBeforeStart(t *testing.T) {
	src := newFakeSource("X")
	st := newMemStore()
	o := testOrchestrator(t, src, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := o.Run(ctx, fullTask("600519", "000001"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	for _, r := range result.Symbols {
		assert.Equal(t, KindCanceled, r.ErrorKind)
	}
	assert.Empty(t, src.windowsFor("600519"))
}

func TestRunPublishesLifecycleEvents(t *testing.T) {
	src := newFakeSource("X")
	src.failFor["FAILME"] = errors.New("nope")
	eventBus := bus.NewChanBus(64)
	o := testOrchestrator(t, src, newMemStore(), eventBus)

	_, err := o.Run(context.Background(), fullTask("600519", "FAILME"))
	require.NoError(t, err)

	var started, progress, completed, failures int
	for {
		select {
		case ev := <-eventBus.Events():
			switch ev.(type) {
			case bus.Started:
				started++
			case bus.Progress:
				progress++
			case bus.Completed:
				completed++
			case bus.Error:
				failures++
			}
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 2, progress, "one progress event per symbol")
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failures)
}

func TestRunRejectsInvalidTasks(t *testing.T) {
	o := testOrchestrator(t, newFakeSource("X"), newMemStore(), nil)
	ctx := context.Background()

	_, err := o.Run(ctx, fullTask())
	assert.Error(t, err, "no symbols")

	task := fullTask("600519")
	task.Mode = Mode("bogus")
	_, err = o.Run(ctx, task)
	assert.Error(t, err)

	task = fullTask("600519")
	task.Frequency = market.Frequency("2d")
	_, err = o.Run(ctx, task)
	assert.Error(t, err)

	task = fullTask("600519")
	task.Status = StatusRunning
	_, err = o.Run(ctx, task)
	assert.Error(t, err, "only pending tasks start")
}

func TestClassifyErrorKinds(t *testing.T) {
	assert.Equal(t, KindCanceled, classify(context.Canceled))
	assert.Equal(t, KindProvision, classify(fmt.Errorf("wrap: %w", store.ErrProvision)))
	assert.Equal(t, KindRouting, classify(fmt.Errorf("wrap: %w", router.ErrNoProviderAvailable)))
	assert.Equal(t, KindValidation, classify(&standardize.ValidationError{Field: "symbol", Reason: "missing"}))
	assert.Equal(t, KindTransient, classify(errors.New("connection reset")))
	assert.Empty(t, classify(nil))

	assert.True(t, retryable(errors.New("timeout")))
	assert.False(t, retryable(context.Canceled))
	assert.False(t, retryable(fmt.Errorf("wrap: %w", router.ErrNoProviderAvailable)))
}

func TestRecentWindowStrategy(t *testing.T) {
	r := market.DateRange{Start: day(1), End: day(20)}
	persisted := []time.Time{day(15), day(16), day(18), day(19), day(20)}

	s := RecentWindowStrategy{Days: 7}
	// window is [day 14, day 20]; day 14 and day 17 are missing
	gaps := s.Select(persisted, r, market.FreqDay)
	require.Len(t, gaps, 2)
	assert.Equal(t, market.DateRange{Start: day(14), End: day(14)}, gaps[0])
	assert.Equal(t, market.DateRange{Start: day(17), End: day(17)}, gaps[1])
}

func TestThresholdGapStrategy(t *testing.T) {
	r := market.DateRange{Start: day(1), End: day(10)}
	persisted := []time.Time{day(1), day(2), day(8), day(9), day(10)}

	s := ThresholdGapStrategy{ThresholdDays: 3}
	gaps := s.Select(persisted, r, market.FreqDay)
	require.Len(t, gaps, 1)
	assert.Equal(t, market.DateRange{Start: day(3), End: day(7)}, gaps[0])
}
