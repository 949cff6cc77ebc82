package derive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"poolscope/internal/engine"
	"poolscope/internal/model"
	"poolscope/internal/store"
)

const (
	testPool   = "0x1000000000000000000000000000000000000001"
	testCtl    = "0x2000000000000000000000000000000000000002"
	testStable = "0xdddd000000000000000000000000000000000001"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	reg, err := engine.NewRegistry([]string{testStable}, []string{testStable})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return engine.New(store.New(), reg, nil)
}

func testEvent(t *testing.T, name string, block, logIndex uint64, data interface{}) model.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	return model.Event{
		ChainID:     56,
		BlockNumber: block,
		TxHash:      "0xtx",
		LogIndex:    logIndex,
		Address:     testPool,
		EventName:   name,
		Timestamp:   block * 3,
		Data:        raw,
	}
}

func writeEvents(t *testing.T, path string, events []model.Event) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create input: %v", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("encode event: %v", err)
		}
	}
}

type countingSink struct {
	flushes int
}

func (s *countingSink) Flush(_ context.Context, _ *store.Store) error {
	s.flushes++
	return nil
}

func TestRunAppliesAndSavesCursor(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input, []model.Event{
		testEvent(t, model.EventPoolCreated, 1, 0, model.PoolCreatedData{Pool: testPool, Controller: testCtl}),
		testEvent(t, model.EventFeeRateChanged, 2, 0, model.FeeRateChangedData{SwapFee: "10000000000000000"}),
	})

	eng := newTestEngine(t)
	cursor := NewFileCursorStore(filepath.Join(dir, "cursor.json"))
	sink := &countingSink{}

	runner := NewRunner(Config{Input: input}, eng, cursor, sink, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	pool, ok := eng.Store().Pool(testPool)
	if !ok {
		t.Fatalf("pool not derived")
	}
	if pool.SwapFee.IsZero() {
		t.Fatalf("fee change not applied")
	}

	saved, haveCursor, err := cursor.Load(context.Background())
	if err != nil || !haveCursor {
		t.Fatalf("cursor load: ok=%v err=%v", haveCursor, err)
	}
	if saved.BlockNumber != 2 || saved.LogIndex != 0 {
		t.Fatalf("cursor = %+v, want block 2 log 0", saved)
	}
	if sink.flushes != 1 {
		t.Fatalf("flushes = %d, want the final flush only", sink.flushes)
	}
}

func TestRunResumeRebuildsStateWithoutFlushing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input, []model.Event{
		testEvent(t, model.EventPoolCreated, 1, 0, model.PoolCreatedData{Pool: testPool, Controller: testCtl}),
	})

	cursorPath := filepath.Join(dir, "cursor.json")
	cursor := NewFileCursorStore(cursorPath)
	if err := cursor.Save(context.Background(), Cursor{BlockNumber: 1, LogIndex: 0}); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	eng := newTestEngine(t)
	sink := &countingSink{}
	runner := NewRunner(Config{Input: input}, eng, cursor, sink, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The covered event is replayed so in-memory state is whole again.
	if _, ok := eng.Store().Pool(testPool); !ok {
		t.Fatalf("covered event was not replayed; pool missing after resume")
	}
	// Nothing past the cursor, so the sink holds it all already.
	if sink.flushes != 0 {
		t.Fatalf("no new events but sink flushed %d times", sink.flushes)
	}
}

func TestRunResumeAppliesNewEventsOnRebuiltState(t *testing.T) {
	dir := t.TempDir()
	cursorPath := filepath.Join(dir, "cursor.json")

	created := testEvent(t, model.EventPoolCreated, 1, 0, model.PoolCreatedData{Pool: testPool, Controller: testCtl})
	minted := testEvent(t, model.EventSharesMinted, 2, 0, model.ShareTransferData{To: testCtl, Amount: "100000000000000000000"})

	// First run covers only the creation.
	firstInput := filepath.Join(dir, "first.jsonl")
	writeEvents(t, firstInput, []model.Event{created})
	runner := NewRunner(Config{Input: firstInput}, newTestEngine(t), NewFileCursorStore(cursorPath), &countingSink{}, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Second run sees the full stream with a fresh engine, as after a
	// process restart. The mint at block 2 must land on the replayed pool.
	fullInput := filepath.Join(dir, "full.jsonl")
	writeEvents(t, fullInput, []model.Event{created, minted})
	eng := newTestEngine(t)
	sink := &countingSink{}
	runner = NewRunner(Config{Input: fullInput}, eng, NewFileCursorStore(cursorPath), sink, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("resumed run: %v", err)
	}

	pool, ok := eng.Store().Pool(testPool)
	if !ok {
		t.Fatalf("pool missing after resume")
	}
	if pool.TotalShares.String() != "100" {
		t.Fatalf("total shares after resume = %s, want 100", pool.TotalShares)
	}
	if sink.flushes != 1 {
		t.Fatalf("flushes = %d, want 1 for the newly applied mint", sink.flushes)
	}

	saved, haveCursor, err := NewFileCursorStore(cursorPath).Load(context.Background())
	if err != nil || !haveCursor {
		t.Fatalf("cursor load: ok=%v err=%v", haveCursor, err)
	}
	if saved.BlockNumber != 2 || saved.LogIndex != 0 {
		t.Fatalf("cursor = %+v, want block 2 log 0", saved)
	}
}

func TestRunBatchedFlushes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input, []model.Event{
		testEvent(t, model.EventPoolCreated, 1, 0, model.PoolCreatedData{Pool: testPool, Controller: testCtl}),
		testEvent(t, model.EventFeeRateChanged, 2, 0, model.FeeRateChangedData{SwapFee: "1"}),
		testEvent(t, model.EventFeeRateChanged, 2, 1, model.FeeRateChangedData{SwapFee: "2"}),
	})

	eng := newTestEngine(t)
	sink := &countingSink{}
	runner := NewRunner(Config{Input: input, BatchSize: 2}, eng, NewFileCursorStore(""), sink, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// One batch flush after two applied events plus the final flush.
	if sink.flushes != 2 {
		t.Fatalf("flushes = %d, want 2", sink.flushes)
	}
}

func TestRunRejectsOutOfOrderInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	writeEvents(t, input, []model.Event{
		testEvent(t, model.EventPoolCreated, 5, 1, model.PoolCreatedData{Pool: testPool, Controller: testCtl}),
		testEvent(t, model.EventFeeRateChanged, 5, 0, model.FeeRateChangedData{SwapFee: "1"}),
	})

	runner := NewRunner(Config{Input: input}, newTestEngine(t), NewFileCursorStore(""), nil, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("out-of-order input accepted")
	}
}

func TestRunRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	if err := os.WriteFile(input, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	runner := NewRunner(Config{Input: input}, newTestEngine(t), NewFileCursorStore(""), nil, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("malformed line accepted")
	}
}

func TestCursorCovers(t *testing.T) {
	c := Cursor{BlockNumber: 10, LogIndex: 5}
	cases := []struct {
		block, logIndex uint64
		want            bool
	}{
		{9, 99, true},
		{10, 5, true},
		{10, 6, false},
		{11, 0, false},
	}
	for _, tc := range cases {
		if got := c.Covers(tc.block, tc.logIndex); got != tc.want {
			t.Fatalf("Covers(%d, %d) = %v, want %v", tc.block, tc.logIndex, got, tc.want)
		}
	}
}

func TestFileCursorStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cursor.json")
	s := NewFileCursorStore(path)

	if _, ok, err := s.Load(context.Background()); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	if err := s.Save(context.Background(), Cursor{BlockNumber: 7, LogIndex: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	cursor, ok, err := s.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if cursor.BlockNumber != 7 || cursor.LogIndex != 2 {
		t.Fatalf("cursor = %+v", cursor)
	}
	if cursor.UpdatedAt == "" {
		t.Fatalf("updated_at not set")
	}
}

func TestNoopCursorStore(t *testing.T) {
	s := NewFileCursorStore("")
	if err := s.Save(context.Background(), Cursor{BlockNumber: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, err := s.Load(context.Background()); err != nil || ok {
		t.Fatalf("empty-path store must stay empty: ok=%v err=%v", ok, err)
	}
}
