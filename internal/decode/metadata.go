package decode

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolscope/internal/chain"
	"poolscope/internal/model"
)

// TokenMeta holds ERC20 metadata fetched from chain.
type TokenMeta struct {
	Address  string
	Symbol   string
	Name     string
	Decimals int32
}

// TokenMetaCache caches token metadata by lowercase address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[string]TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[string]TokenMeta)}
}

func (c *TokenMetaCache) Get(address string) (TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address string, meta TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// SenderCache caches transaction senders by tx hash. A transaction emits
// many logs; the sender lookup runs once per transaction.
type SenderCache struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewSenderCache() *SenderCache {
	return &SenderCache{data: make(map[string]string)}
}

func (c *SenderCache) Get(txHash string) (string, bool) {
	c.mu.RLock()
	from, ok := c.data[txHash]
	c.mu.RUnlock()
	return from, ok
}

func (c *SenderCache) Set(txHash string, from string) {
	c.mu.Lock()
	c.data[txHash] = from
	c.mu.Unlock()
}

// lookupTokenMeta resolves ERC20 metadata for a bind event, from cache first
// and from chain when live enrichment is enabled. A failed fetch is cached
// empty so the token is not retried on every rebind.
func lookupTokenMeta(token string, ctx DecodeContext) (TokenMeta, bool) {
	if ctx.Tokens != nil {
		if meta, ok := ctx.Tokens.Get(token); ok {
			return meta, meta.Decimals > 0
		}
	}
	if !ctx.FetchMeta || ctx.Chain == nil {
		return TokenMeta{}, false
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	meta, err := FetchTokenMeta(callCtx, ctx.Chain, common.HexToAddress(token))
	if err != nil {
		if ctx.Logger != nil {
			ctx.Logger.Warn("token metadata fetch failed", zap.String("token", token), zap.Error(err))
		}
	}
	if ctx.Tokens != nil {
		ctx.Tokens.Set(token, meta)
	}
	return meta, err == nil
}

// lookupSender resolves the transaction sender for a swap, from cache first.
// Missing senders degrade to empty rather than failing the decode.
func lookupSender(log model.LogRecord, ctx DecodeContext) string {
	if ctx.Senders != nil {
		if from, ok := ctx.Senders.Get(log.TxHash); ok {
			return from
		}
	}
	if !ctx.FetchMeta || ctx.Chain == nil {
		return ""
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	from, err := ctx.Chain.TxSender(callCtx,
		common.HexToHash(log.TxHash),
		common.HexToHash(log.BlockHash),
		uint(log.TxIndex))
	if err != nil {
		if ctx.Logger != nil {
			ctx.Logger.Warn("tx sender fetch failed", zap.String("tx", log.TxHash), zap.Error(err))
		}
		return ""
	}

	sender := strings.ToLower(from.Hex())
	if ctx.Senders != nil {
		ctx.Senders.Set(log.TxHash, sender)
	}
	return sender
}

// FetchTokenMeta loads token metadata via ERC20 calls, falling back to the
// bytes32 variants some older tokens use for symbol and name.
func FetchTokenMeta(ctx context.Context, chainClient *chain.Client, token common.Address) (TokenMeta, error) {
	meta := TokenMeta{Address: strings.ToLower(token.Hex())}
	if chainClient == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := erc20StringABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := chainClient.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	if decimals, ok := values[0].(uint8); ok {
		meta.Decimals = int32(decimals)
	}

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
