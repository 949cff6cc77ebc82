package decode

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"poolscope/internal/model"
)

const (
	testPool     = "0x1000000000000000000000000000000000000001"
	testCaller   = "0x2000000000000000000000000000000000000002"
	testTokenIn  = "0xAAAA000000000000000000000000000000000001"
	testTokenOut = "0xBBBB000000000000000000000000000000000002"
	testCrpCtl   = "0xCCCC000000000000000000000000000000000003"
)

func newTestDecoder(t *testing.T) *PoolDecoder {
	t.Helper()
	d, err := NewPoolDecoder(Config{CrpControllers: []string{testCrpCtl}})
	if err != nil {
		t.Fatalf("build decoder: %v", err)
	}
	return d
}

func testCtx() DecodeContext {
	return DecodeContext{Context: context.Background()}
}

func testLog(topics []string, data string) model.LogRecord {
	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 42,
		BlockHash:   "0xblock",
		TxHash:      "0xabc",
		LogIndex:    3,
		Address:     testPool,
		Topics:      topics,
		Data:        data,
		Timestamp:   1700000000,
	}
}

func addrTopic(addr string) string {
	return common.HexToHash(addr).Hex()
}

func wordsHex(words ...*big.Int) string {
	buf := make([]byte, 0, 32*len(words))
	for _, w := range words {
		buf = append(buf, common.BigToHash(w).Bytes()...)
	}
	return hexutil.Encode(buf)
}

// callDataHex builds the LOG_CALL data payload: the ABI-encoded bytes value
// holding selector plus argument words.
func callDataHex(t *testing.T, signature string, words ...*big.Int) string {
	t.Helper()
	calldata := crypto.Keccak256([]byte(signature))[:4]
	for _, w := range words {
		calldata = append(calldata, common.BigToHash(w).Bytes()...)
	}
	pABI, err := PoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	packed, err := pABI.Events["LOG_CALL"].Inputs.NonIndexed().Pack(calldata)
	if err != nil {
		t.Fatalf("pack calldata: %v", err)
	}
	return hexutil.Encode(packed)
}

func addrWord(addr string) *big.Int {
	return new(big.Int).SetBytes(common.HexToAddress(addr).Bytes())
}

func eventTopic(t *testing.T, name string) string {
	t.Helper()
	pABI, err := PoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	return pABI.Events[name].ID.Hex()
}

func TestDecodeSwap(t *testing.T) {
	d := newTestDecoder(t)

	log := testLog([]string{
		eventTopic(t, "LOG_SWAP"),
		addrTopic(testCaller),
		addrTopic(testTokenIn),
		addrTopic(testTokenOut),
	}, wordsHex(big.NewInt(100), big.NewInt(10)))

	ev, err := d.Decode(log, testCtx())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.EventName != model.EventSwapExecuted {
		t.Fatalf("event name = %s", ev.EventName)
	}

	var data model.SwapExecutedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.TokenIn != "0xaaaa000000000000000000000000000000000001" {
		t.Fatalf("tokenIn not lowercased: %s", data.TokenIn)
	}
	if data.AmountIn != "100" || data.AmountOut != "10" {
		t.Fatalf("amounts = %s / %s", data.AmountIn, data.AmountOut)
	}
	if data.Caller != "0x2000000000000000000000000000000000000002" {
		t.Fatalf("caller = %s", data.Caller)
	}
}

func TestDecodeTransferClassification(t *testing.T) {
	d := newTestDecoder(t)
	transferTopic := eventTopic(t, "Transfer")
	amount := wordsHex(big.NewInt(55))

	cases := []struct {
		src, dst string
		want     string
	}{
		{zeroAddress, testCaller, model.EventSharesMinted},
		{testCaller, zeroAddress, model.EventSharesBurned},
		{testCaller, testTokenIn, model.EventSharesTransferred},
	}
	for _, tc := range cases {
		log := testLog([]string{transferTopic, addrTopic(tc.src), addrTopic(tc.dst)}, amount)
		ev, err := d.Decode(log, testCtx())
		if err != nil {
			t.Fatalf("decode transfer: %v", err)
		}
		if ev.EventName != tc.want {
			t.Fatalf("transfer %s -> %s classified %s, want %s", tc.src, tc.dst, ev.EventName, tc.want)
		}
	}
}

func TestDecodeSetSwapFeeCall(t *testing.T) {
	d := newTestDecoder(t)

	fee := new(big.Int)
	fee.SetString("10000000000000000", 10)
	log := testLog([]string{
		selectorTopic("setSwapFee(uint256)"),
		addrTopic(testCaller),
	}, callDataHex(t, "setSwapFee(uint256)", fee))

	ev, err := d.Decode(log, testCtx())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.EventName != model.EventFeeRateChanged {
		t.Fatalf("event name = %s", ev.EventName)
	}

	var data model.FeeRateChangedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.SwapFee != "10000000000000000" || data.ProtocolFee != "" {
		t.Fatalf("fee data: %+v", data)
	}
}

func TestDecodeBindCall(t *testing.T) {
	d := newTestDecoder(t)

	log := testLog([]string{
		selectorTopic("bind(address,uint256,uint256)"),
		addrTopic(testCaller),
	}, callDataHex(t, "bind(address,uint256,uint256)",
		addrWord(testTokenIn), big.NewInt(1000), big.NewInt(25)))

	ev, err := d.Decode(log, testCtx())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.EventName != model.EventTokenBound {
		t.Fatalf("event name = %s", ev.EventName)
	}

	var data model.TokenBoundData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Token != "0xaaaa000000000000000000000000000000000001" {
		t.Fatalf("token = %s", data.Token)
	}
	if data.Balance != "1000" || data.Weight != "25" {
		t.Fatalf("balance/weight = %s / %s", data.Balance, data.Weight)
	}
	// No enrichment without a chain client.
	if data.Decimals != 0 || data.Symbol != "" {
		t.Fatalf("unexpected metadata: %+v", data)
	}
}

func TestDecodeUnbindCall(t *testing.T) {
	d := newTestDecoder(t)

	log := testLog([]string{
		selectorTopic("unbind(address)"),
		addrTopic(testCaller),
	}, callDataHex(t, "unbind(address)", addrWord(testTokenOut)))

	ev, err := d.Decode(log, testCtx())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var data model.TokenUnboundData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Token != "0xbbbb000000000000000000000000000000000002" {
		t.Fatalf("token = %s", data.Token)
	}
}

func TestDecodePoolCreated(t *testing.T) {
	d := newTestDecoder(t)

	fABI, err := FactoryABI()
	if err != nil {
		t.Fatalf("factory abi: %v", err)
	}
	factory := "0x9000000000000000000000000000000000000009"
	log := testLog([]string{
		fABI.Events["LOG_NEW_POOL"].ID.Hex(),
		addrTopic(testCrpCtl),
		addrTopic(testPool),
	}, "0x")
	log.Address = factory

	ev, err := d.Decode(log, testCtx())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Address != testPool {
		t.Fatalf("event address = %s, want the pool", ev.Address)
	}

	var data model.PoolCreatedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !data.Crp {
		t.Fatalf("controller %s must flag the pool as crp", testCrpCtl)
	}
	if data.Pool != testPool {
		t.Fatalf("pool = %s", data.Pool)
	}
}

func TestDecodePoolCreatedRejectsUnknownFactory(t *testing.T) {
	d, err := NewPoolDecoder(Config{
		FactoryAddresses: []string{"0x9000000000000000000000000000000000000009"},
	})
	if err != nil {
		t.Fatalf("build decoder: %v", err)
	}

	fABI, err := FactoryABI()
	if err != nil {
		t.Fatalf("factory abi: %v", err)
	}
	log := testLog([]string{
		fABI.Events["LOG_NEW_POOL"].ID.Hex(),
		addrTopic(testCaller),
		addrTopic(testPool),
	}, "0x")
	log.Address = "0x8000000000000000000000000000000000000008"

	if _, err := d.Decode(log, testCtx()); err == nil {
		t.Fatalf("creation from unconfigured factory accepted")
	}
}

func TestCanDecode(t *testing.T) {
	d := newTestDecoder(t)

	if !d.CanDecode(eventTopic(t, "LOG_SWAP")) {
		t.Fatalf("LOG_SWAP not decodable")
	}
	if !d.CanDecode(selectorTopic("finalize()")) {
		t.Fatalf("finalize call not decodable")
	}
	if d.CanDecode("0xdeadbeef00000000000000000000000000000000000000000000000000000000") {
		t.Fatalf("unknown topic0 accepted")
	}
	if d.CanDecode("") {
		t.Fatalf("empty topic0 accepted")
	}
	if len(d.Topics()) != 12 {
		t.Fatalf("topics = %d, want 12", len(d.Topics()))
	}
}
