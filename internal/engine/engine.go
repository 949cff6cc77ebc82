// Package engine derives AMM valuation and proportional-accounting state
// from a strictly ordered stream of decoded pool events.
package engine

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"poolscope/internal/model"
	"poolscope/internal/store"
)

// Engine wires the components over one shared store and dispatches decoded
// events one at a time. Processing is strictly single-threaded: an event
// runs to completion before the next is admitted, and replaying the same
// ordered range overwrites rather than duplicates.
type Engine struct {
	store     *store.Store
	registry  *Registry
	logger    *zap.Logger
	oracle    *Oracle
	valuator  *Valuator
	ledger    *ShareLedger
	snapshots *Snapshots
	swaps     *SwapProcessor
	lifecycle *Lifecycle
}

func New(st *store.Store, registry *Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	oracle := NewOracle(st, registry)
	valuator := NewValuator(st, oracle)
	ledger := NewShareLedger(st, registry, oracle, logger)
	snapshots := NewSnapshots(st)
	return &Engine{
		store:     st,
		registry:  registry,
		logger:    logger,
		oracle:    oracle,
		valuator:  valuator,
		ledger:    ledger,
		snapshots: snapshots,
		swaps:     NewSwapProcessor(st, registry, oracle, valuator, ledger, snapshots, logger),
		lifecycle: NewLifecycle(st, registry, oracle, valuator, snapshots, logger),
	}
}

// Store exposes the derived state for flushing and queries.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Apply dispatches one decoded event. A malformed payload is an error;
// domain-level absences (unknown pool, unpriced asset) are handled inside
// the components per their documented discipline and never abort the run.
func (e *Engine) Apply(ev model.Event) error {
	switch ev.EventName {
	case model.EventPoolCreated:
		var data model.PoolCreatedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.lifecycle.ApplyPoolCreated(ev, data)

	case model.EventSwapExecuted:
		var data model.SwapExecutedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.swaps.Process(ev, data)

	case model.EventSharesMinted, model.EventSharesBurned, model.EventSharesTransferred:
		var data model.ShareTransferData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		amount, err := shareAmount(data.Amount)
		if err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		switch ev.EventName {
		case model.EventSharesMinted:
			e.ledger.ApplyMint(ev.Address, data.To, amount)
		case model.EventSharesBurned:
			e.ledger.ApplyBurn(ev.Address, data.From, amount)
		default:
			e.ledger.ApplyTransfer(ev.Address, data.From, data.To, amount)
		}

	case model.EventTokenBound:
		var data model.TokenBoundData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.lifecycle.ApplyTokenBound(ev, data)

	case model.EventTokenUnbound:
		var data model.TokenUnboundData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.lifecycle.ApplyTokenUnbound(ev, data)

	case model.EventFeeRateChanged:
		var data model.FeeRateChangedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.lifecycle.ApplyFeeRateChanged(ev, data)

	case model.EventPoolFinalized:
		e.lifecycle.ApplyPoolFinalized(ev)

	case model.EventPublicSwapSet:
		var data model.PublicSwapSetData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.lifecycle.ApplyPublicSwapSet(ev, data)

	case model.EventPoolJoined:
		var data model.PoolJoinedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.lifecycle.ApplyJoin(ev, data)

	case model.EventPoolExited:
		var data model.PoolExitedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", ev.EventName, err)
		}
		e.lifecycle.ApplyExit(ev, data)

	default:
		return fmt.Errorf("unsupported event: %s", ev.EventName)
	}
	return nil
}
