// Package derive replays a decoded event stream through the valuation
// engine and flushes the derived state to a sink.
package derive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"poolscope/internal/engine"
	"poolscope/internal/model"
	"poolscope/internal/store"
)

// Sink receives the derived state after a batch of events has been applied.
// Flush must be idempotent: the same store may be flushed more than once.
type Sink interface {
	Flush(ctx context.Context, st *store.Store) error
}

type Config struct {
	// Input is the path to the decoded-events JSONL file, ordered by
	// (block number, log index).
	Input string

	// BatchSize is the number of applied events between sink flushes and
	// cursor saves. Zero flushes only at the end.
	BatchSize int
}

// Runner drives one derive pass: scan, order-check, apply, and periodically
// persist. On a resumed run events at or before the cursor are still applied
// so the in-memory state is rebuilt from the start of the stream; the cursor
// only suppresses flushing until new ground is covered.
type Runner struct {
	cfg    Config
	engine *engine.Engine
	cursor CursorStore
	sink   Sink
	logger *zap.Logger
}

func NewRunner(cfg Config, eng *engine.Engine, cursor CursorStore, sink Sink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, engine: eng, cursor: cursor, sink: sink, logger: logger}
}

func (r *Runner) Run(ctx context.Context) error {
	in, err := os.Open(r.cfg.Input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	cursor, haveCursor, err := r.cursor.Load(ctx)
	if err != nil {
		return err
	}
	if haveCursor {
		r.logger.Info("resuming from cursor",
			zap.Uint64("block", cursor.BlockNumber),
			zap.Uint64("log_index", cursor.LogIndex))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	var (
		total      int
		applied    int
		replayed   int
		failed     int
		sinceFlush int

		last     model.Event
		haveLast bool
	)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		total++

		var ev model.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("parse event line %d: %w", total, err)
		}

		// The derivation is order-sensitive; a regression in the stream is
		// an input defect, not something to paper over.
		if haveLast && olderThan(ev, last) {
			return fmt.Errorf("out-of-order event at line %d: block %d log %d after block %d log %d",
				total, ev.BlockNumber, ev.LogIndex, last.BlockNumber, last.LogIndex)
		}
		last, haveLast = ev, true

		if err := r.engine.Apply(ev); err != nil {
			failed++
			r.logger.Warn("apply event failed",
				zap.String("event", ev.EventName),
				zap.Uint64("block", ev.BlockNumber),
				zap.Uint64("log_index", ev.LogIndex),
				zap.Error(err))
			continue
		}

		// Covered events rebuild state the sink already holds. Applying is
		// deterministic, so re-derivation converges on the flushed rows;
		// only events past the cursor count toward new flushes.
		if haveCursor && cursor.Covers(ev.BlockNumber, ev.LogIndex) {
			replayed++
			continue
		}
		applied++
		sinceFlush++

		if r.cfg.BatchSize > 0 && sinceFlush >= r.cfg.BatchSize {
			if err := r.persist(ctx, ev); err != nil {
				return err
			}
			sinceFlush = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if haveLast && (applied > 0 || !haveCursor) {
		if err := r.persist(ctx, last); err != nil {
			return err
		}
	}

	r.logger.Info("derive complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("replayed", replayed),
		zap.Int("failed", failed))
	return nil
}

func (r *Runner) persist(ctx context.Context, ev model.Event) error {
	if r.sink != nil {
		if err := r.sink.Flush(ctx, r.engine.Store()); err != nil {
			return fmt.Errorf("flush sink: %w", err)
		}
	}
	if err := r.cursor.Save(ctx, Cursor{BlockNumber: ev.BlockNumber, LogIndex: ev.LogIndex}); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func olderThan(a, b model.Event) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	return a.LogIndex < b.LogIndex
}
