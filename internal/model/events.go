package model

import "encoding/json"

// Event names produced by the decoder and dispatched by the engine.
const (
	EventPoolCreated       = "PoolCreated"
	EventSwapExecuted      = "SwapExecuted"
	EventSharesMinted      = "SharesMinted"
	EventSharesBurned      = "SharesBurned"
	EventSharesTransferred = "SharesTransferred"
	EventTokenBound        = "TokenBound"
	EventTokenUnbound      = "TokenUnbound"
	EventFeeRateChanged    = "FeeRateChanged"
	EventPoolFinalized     = "PoolFinalized"
	EventPublicSwapSet     = "PublicSwapSet"
	EventPoolJoined        = "PoolJoined"
	EventPoolExited        = "PoolExited"
)

// Event is the JSON envelope for one decoded pool event. Address is the
// lowercase hex address of the emitting contract (the pool, or the factory
// for PoolCreated).
type Event struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	TxFrom      string          `json:"tx_from,omitempty"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// Raw integer amounts below are base-10 strings of on-chain values; the
// engine scales them by token decimals.

type PoolCreatedData struct {
	Pool       string `json:"pool"`
	Controller string `json:"controller"`
	Crp        bool   `json:"crp"`
}

type SwapExecutedData struct {
	Caller    string `json:"caller"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// ShareTransferData carries mint, burn, and transfer movements; the decoder
// classifies the kind by the zero address and sets the event name.
type ShareTransferData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TokenBoundData struct {
	Token    string `json:"token"`
	Balance  string `json:"balance"`
	Weight   string `json:"weight"`
	Decimals int32  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
}

type TokenUnboundData struct {
	Token string `json:"token"`
}

// FeeRateChangedData sets exactly one of the two rates. Raw values are
// 1e18-scaled on-chain integers.
type FeeRateChangedData struct {
	SwapFee     string `json:"swap_fee,omitempty"`
	ProtocolFee string `json:"protocol_fee,omitempty"`
}

type PoolFinalizedData struct{}

type PublicSwapSetData struct {
	Enabled bool `json:"enabled"`
}

type PoolJoinedData struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type PoolExitedData struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}
