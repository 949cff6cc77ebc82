// Package decode turns raw chain logs into the typed events the derivation
// engine consumes. Pool events arrive two ways: regular emitted events
// (LOG_SWAP, LOG_JOIN, LOG_EXIT, Transfer) and anonymous LOG_CALL records
// whose topic0 carries the invoked function selector and whose data carries
// the full calldata.
package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"poolscope/internal/chain"
	"poolscope/internal/model"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Config configures the pool decoder.
type Config struct {
	// FactoryAddresses are the pool factory contracts whose LOG_NEW_POOL
	// events register pools.
	FactoryAddresses []string

	// CrpControllers are controller addresses whose pools are flagged as
	// configurable-rights pools.
	CrpControllers []string
}

// DecodeContext provides shared dependencies for one decode run.
type DecodeContext struct {
	Context context.Context
	Chain   *chain.Client
	Tokens  *TokenMetaCache
	Senders *SenderCache
	Logger  *zap.Logger

	// FetchMeta enables live RPC enrichment: ERC20 metadata on token binds
	// and transaction senders on swaps.
	FetchMeta bool
}

// PoolDecoder decodes pool and factory logs into typed events.
type PoolDecoder struct {
	poolABI        abi.ABI
	factoryABI     abi.ABI
	topicToName    map[string]string
	factories      map[string]bool
	crpControllers map[string]bool
}

func NewPoolDecoder(cfg Config) (*PoolDecoder, error) {
	pABI, err := PoolABI()
	if err != nil {
		return nil, err
	}
	fABI, err := FactoryABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(pABI.Events["LOG_SWAP"].ID.Hex()):     "LOG_SWAP",
		strings.ToLower(pABI.Events["LOG_JOIN"].ID.Hex()):     "LOG_JOIN",
		strings.ToLower(pABI.Events["LOG_EXIT"].ID.Hex()):     "LOG_EXIT",
		strings.ToLower(pABI.Events["Transfer"].ID.Hex()):     "Transfer",
		strings.ToLower(fABI.Events["LOG_NEW_POOL"].ID.Hex()): "LOG_NEW_POOL",

		selectorTopic("setSwapFee(uint256)"):             "setSwapFee",
		selectorTopic("setProtocolFee(uint256)"):         "setProtocolFee",
		selectorTopic("setPublicSwap(bool)"):             "setPublicSwap",
		selectorTopic("finalize()"):                      "finalize",
		selectorTopic("bind(address,uint256,uint256)"):   "bind",
		selectorTopic("rebind(address,uint256,uint256)"): "rebind",
		selectorTopic("unbind(address)"):                 "unbind",
	}

	factories := make(map[string]bool, len(cfg.FactoryAddresses))
	for _, addr := range cfg.FactoryAddresses {
		factories[strings.ToLower(addr)] = true
	}
	crpControllers := make(map[string]bool, len(cfg.CrpControllers))
	for _, addr := range cfg.CrpControllers {
		crpControllers[strings.ToLower(addr)] = true
	}

	return &PoolDecoder{
		poolABI:        pABI,
		factoryABI:     fABI,
		topicToName:    topicToName,
		factories:      factories,
		crpControllers: crpControllers,
	}, nil
}

// Topics returns all topic0 values this decoder handles, for log filtering.
func (d *PoolDecoder) Topics() []string {
	out := make([]string, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, topic)
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a typed Event. All addresses are
// lowercased so downstream keys are canonical.
func (d *PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.Event, error) {
	topic0 := log.Topic0()
	if topic0 == "" {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(topic0)]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", topic0)
	}

	switch name {
	case "LOG_NEW_POOL":
		return d.decodePoolCreated(log)
	case "LOG_SWAP":
		return d.decodeSwap(log, ctx)
	case "LOG_JOIN":
		return d.decodeJoin(log)
	case "LOG_EXIT":
		return d.decodeExit(log)
	case "Transfer":
		return d.decodeTransfer(log)
	case "setSwapFee", "setProtocolFee", "setPublicSwap", "finalize", "bind", "rebind", "unbind":
		return d.decodeCall(log, name, ctx)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

func (d *PoolDecoder) decodePoolCreated(log model.LogRecord) (*model.Event, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("expected 3 topics for LOG_NEW_POOL, got %d", len(log.Topics))
	}
	// With a configured factory list, creations from any other emitter are
	// rejected rather than registering a pool of unknown provenance.
	if len(d.factories) > 0 && !d.factories[strings.ToLower(log.Address)] {
		return nil, fmt.Errorf("LOG_NEW_POOL from unconfigured factory %s", log.Address)
	}
	controller, err := topicAddress(log.Topics[1])
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	pool, err := topicAddress(log.Topics[2])
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	ev := envelope(log, model.EventPoolCreated)
	// Downstream addressing is by pool, not by the factory that emitted
	// the log.
	ev.Address = pool
	return withData(ev, model.PoolCreatedData{
		Pool:       pool,
		Controller: controller,
		Crp:        d.crpControllers[controller],
	})
}

func (d *PoolDecoder) decodeSwap(log model.LogRecord, ctx DecodeContext) (*model.Event, error) {
	if len(log.Topics) != 4 {
		return nil, fmt.Errorf("expected 4 topics for LOG_SWAP, got %d", len(log.Topics))
	}
	caller, err := topicAddress(log.Topics[1])
	if err != nil {
		return nil, fmt.Errorf("caller: %w", err)
	}
	tokenIn, err := topicAddress(log.Topics[2])
	if err != nil {
		return nil, fmt.Errorf("tokenIn: %w", err)
	}
	tokenOut, err := topicAddress(log.Topics[3])
	if err != nil {
		return nil, fmt.Errorf("tokenOut: %w", err)
	}

	values, err := d.unpackNonIndexed("LOG_SWAP", log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amountIn, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	amountOut, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}

	ev := envelope(log, model.EventSwapExecuted)
	ev.TxFrom = lookupSender(log, ctx)
	return withData(ev, model.SwapExecutedData{
		Caller:    caller,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
	})
}

func (d *PoolDecoder) decodeJoin(log model.LogRecord) (*model.Event, error) {
	caller, token, amount, err := d.decodeLiquidityChange("LOG_JOIN", log)
	if err != nil {
		return nil, err
	}
	return withData(envelope(log, model.EventPoolJoined), model.PoolJoinedData{
		Caller: caller,
		Token:  token,
		Amount: amount,
	})
}

func (d *PoolDecoder) decodeExit(log model.LogRecord) (*model.Event, error) {
	caller, token, amount, err := d.decodeLiquidityChange("LOG_EXIT", log)
	if err != nil {
		return nil, err
	}
	return withData(envelope(log, model.EventPoolExited), model.PoolExitedData{
		Caller: caller,
		Token:  token,
		Amount: amount,
	})
}

func (d *PoolDecoder) decodeLiquidityChange(name string, log model.LogRecord) (caller, token, amount string, err error) {
	if len(log.Topics) != 3 {
		return "", "", "", fmt.Errorf("expected 3 topics for %s, got %d", name, len(log.Topics))
	}
	caller, err = topicAddress(log.Topics[1])
	if err != nil {
		return "", "", "", fmt.Errorf("caller: %w", err)
	}
	token, err = topicAddress(log.Topics[2])
	if err != nil {
		return "", "", "", fmt.Errorf("token: %w", err)
	}

	values, err := d.unpackNonIndexed(name, log.Data)
	if err != nil {
		return "", "", "", err
	}
	if len(values) != 1 {
		return "", "", "", fmt.Errorf("unexpected %s values: %d", name, len(values))
	}
	v, err := asBigInt(values[0])
	if err != nil {
		return "", "", "", err
	}
	return caller, token, v.String(), nil
}

func (d *PoolDecoder) decodeTransfer(log model.LogRecord) (*model.Event, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("expected 3 topics for Transfer, got %d", len(log.Topics))
	}
	src, err := topicAddress(log.Topics[1])
	if err != nil {
		return nil, fmt.Errorf("src: %w", err)
	}
	dst, err := topicAddress(log.Topics[2])
	if err != nil {
		return nil, fmt.Errorf("dst: %w", err)
	}

	values, err := d.unpackNonIndexed("Transfer", log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}

	name := model.EventSharesTransferred
	switch {
	case src == zeroAddress:
		name = model.EventSharesMinted
	case dst == zeroAddress:
		name = model.EventSharesBurned
	}
	return withData(envelope(log, name), model.ShareTransferData{
		From:   src,
		To:     dst,
		Amount: amount.String(),
	})
}

// decodeCall unpacks an anonymous LOG_CALL record: the data field holds the
// full calldata of the invoked function, selector included.
func (d *PoolDecoder) decodeCall(log model.LogRecord, name string, ctx DecodeContext) (*model.Event, error) {
	values, err := d.unpackNonIndexed("LOG_CALL", log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected call values: %d", len(values))
	}
	calldata, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported calldata type %T", values[0])
	}

	switch name {
	case "setSwapFee":
		v, err := calldataWord(calldata, 0)
		if err != nil {
			return nil, err
		}
		return withData(envelope(log, model.EventFeeRateChanged), model.FeeRateChangedData{
			SwapFee: new(big.Int).SetBytes(v).String(),
		})
	case "setProtocolFee":
		v, err := calldataWord(calldata, 0)
		if err != nil {
			return nil, err
		}
		return withData(envelope(log, model.EventFeeRateChanged), model.FeeRateChangedData{
			ProtocolFee: new(big.Int).SetBytes(v).String(),
		})
	case "setPublicSwap":
		v, err := calldataWord(calldata, 0)
		if err != nil {
			return nil, err
		}
		return withData(envelope(log, model.EventPublicSwapSet), model.PublicSwapSetData{
			Enabled: new(big.Int).SetBytes(v).Sign() != 0,
		})
	case "finalize":
		return withData(envelope(log, model.EventPoolFinalized), model.PoolFinalizedData{})
	case "bind", "rebind":
		return d.decodeBind(log, calldata, ctx)
	case "unbind":
		v, err := calldataWord(calldata, 0)
		if err != nil {
			return nil, err
		}
		return withData(envelope(log, model.EventTokenUnbound), model.TokenUnboundData{
			Token: wordAddress(v),
		})
	default:
		return nil, fmt.Errorf("unsupported call: %s", name)
	}
}

func (d *PoolDecoder) decodeBind(log model.LogRecord, calldata []byte, ctx DecodeContext) (*model.Event, error) {
	tokenWord, err := calldataWord(calldata, 0)
	if err != nil {
		return nil, err
	}
	balanceWord, err := calldataWord(calldata, 1)
	if err != nil {
		return nil, err
	}
	weightWord, err := calldataWord(calldata, 2)
	if err != nil {
		return nil, err
	}

	data := model.TokenBoundData{
		Token:   wordAddress(tokenWord),
		Balance: new(big.Int).SetBytes(balanceWord).String(),
		Weight:  new(big.Int).SetBytes(weightWord).String(),
	}

	if meta, ok := lookupTokenMeta(data.Token, ctx); ok {
		data.Decimals = meta.Decimals
		data.Symbol = meta.Symbol
		data.Name = meta.Name
	}
	return withData(envelope(log, model.EventTokenBound), data)
}

func (d *PoolDecoder) unpackNonIndexed(name string, dataHex string) ([]interface{}, error) {
	event := d.poolABI.Events[name]
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return values, nil
}

func envelope(log model.LogRecord, name string) model.Event {
	return model.Event{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     strings.ToLower(log.Address),
		EventName:   name,
		Timestamp:   log.Timestamp,
	}
}

func withData(ev model.Event, data interface{}) (*model.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.EventName, err)
	}
	ev.Data = raw
	return &ev, nil
}

// topicAddress extracts the address packed into a 32-byte topic.
func topicAddress(topic string) (string, error) {
	data, err := hexutil.Decode(topic)
	if err != nil {
		return "", fmt.Errorf("invalid topic: %w", err)
	}
	if len(data) != 32 {
		return "", fmt.Errorf("topic length %d", len(data))
	}
	return strings.ToLower(common.BytesToAddress(data).Hex()), nil
}

// calldataWord returns the i-th 32-byte argument word after the 4-byte
// selector.
func calldataWord(calldata []byte, i int) ([]byte, error) {
	start := 4 + 32*i
	if len(calldata) < start+32 {
		return nil, fmt.Errorf("calldata too short: %d bytes, want arg %d", len(calldata), i)
	}
	return calldata[start : start+32], nil
}

func wordAddress(word []byte) string {
	return strings.ToLower(common.BytesToAddress(word).Hex())
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
