package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/resilience"
)

var testContracts = config.ContractsConfig{
	RDLN: "0x1111111111111111111111111111111111111111",
	RON:  "0x2222222222222222222222222222222222222222",
	NFT:  "0x3333333333333333333333333333333333333333",
}

type handler func(args []any) ([]any, error)

// fakeChain answers eth_call with ABI-packed outputs produced by handlers
// keyed "TOKEN.method". Unknown methods revert.
type fakeChain struct {
	mu       sync.Mutex
	tokens   map[common.Address]Token
	abis     map[Token]abi.ABI
	handlers map[string]handler
	calls    map[string]int
	batches  int

	gasPrice    *big.Int
	gasErr      error
	estimate    uint64
	estimateErr error
	lastMsg     ethereum.CallMsg
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()

	f := &fakeChain{
		tokens:   map[common.Address]Token{},
		abis:     map[Token]abi.ABI{},
		handlers: map[string]handler{},
		calls:    map[string]int{},
		gasPrice: big.NewInt(30_000_000_000),
		estimate: 120_000,
	}
	for token, spec := range map[Token]struct{ addr, abi string }{
		RDLN: {testContracts.RDLN, erc20ABI},
		RON:  {testContracts.RON, ronABI},
		NFT:  {testContracts.NFT, riddleNFTABI},
	} {
		parsed, err := abi.JSON(strings.NewReader(spec.abi))
		if err != nil {
			t.Fatalf("parse %s ABI: %v", token, err)
		}
		f.tokens[common.HexToAddress(spec.addr)] = token
		f.abis[token] = parsed
	}
	return f
}

func (f *fakeChain) on(key string, h handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key] = h
}

func (f *fakeChain) returns(key string, values ...any) {
	f.on(key, func([]any) ([]any, error) { return values, nil })
}

func (f *fakeChain) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeChain) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func (f *fakeChain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("missing to")
	}
	return f.dispatch(*msg.To, msg.Data)
}

func (f *fakeChain) dispatch(to common.Address, data []byte) ([]byte, error) {
	token, ok := f.tokens[to]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	parsed := f.abis[token]
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	key := string(token) + "." + method.Name
	f.mu.Lock()
	f.calls[key]++
	h := f.handlers[key]
	f.mu.Unlock()

	if h == nil {
		return nil, errors.New("execution reverted")
	}
	values, err := h(args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(values...)
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if f.gasErr != nil {
		return nil, f.gasErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	f.lastMsg = msg
	f.mu.Unlock()
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return 4_200_000, nil
}

// BatchCallContext serves eth_call batch elements through dispatch
func (f *fakeChain) BatchCallContext(ctx context.Context, b []rpc.BatchElem) error {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()

	for i := range b {
		arg := b[i].Args[0].(map[string]any)
		out, err := f.dispatch(arg["to"].(common.Address), arg["data"].(hexutil.Bytes))
		if err != nil {
			b[i].Error = err
			continue
		}
		*b[i].Result.(*hexutil.Bytes) = out
	}
	return nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Retryable:   resilience.IsRetryable,
	}
}

func newTestReader(t *testing.T, f *fakeChain, batching bool, mutate ...func(*ReaderConfig)) *Reader {
	t.Helper()

	cfg := ReaderConfig{
		Backend:   f,
		Contracts: testContracts,
		Limiter:   resilience.NewAdaptiveLimiter(resilience.AdaptiveLimiterConfig{BaseRate: 10000, Burst: 1000}),
		Retry:     fastRetry(),
	}
	if batching {
		cfg.Batcher = f
	}
	for _, m := range mutate {
		m(&cfg)
	}

	r, err := NewReader(cfg)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}
