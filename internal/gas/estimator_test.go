package gas

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
)

var nftAddress = common.HexToAddress("0x3333333333333333333333333333333333333333")

type fakeChain struct {
	mu sync.Mutex

	gas    uint64
	gasErr error
	price  *big.Int

	lastMsg    ethereum.CallMsg
	priceCalls int
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		gas:   120_000,
		price: gwei(30),
	}
}

func (f *fakeChain) MintCallMsg() (ethereum.CallMsg, error) {
	return ethereum.CallMsg{To: &nftAddress, Value: new(big.Int), Data: []byte{0x01, 0x02, 0x03, 0x04}}, nil
}

func (f *fakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMsg = msg
	return f.gas, f.gasErr
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls++
	return f.price, nil
}

func newTestEstimator(t *testing.T, f *fakeChain, now func() time.Time) *Estimator {
	t.Helper()
	e, err := NewEstimator(EstimatorConfig{
		Chain: f,
		Gas:   config.GasConfig{NativeSymbol: "POL", NativeUSDRate: 0.50, PriceCacheTTL: 12 * time.Second},
		Now:   now,
	})
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

func TestEstimateMint(t *testing.T) {
	f := newFakeChain()
	e := newTestEstimator(t, f, nil)

	got := e.EstimateMint(context.Background())

	if got.IsEstimate {
		t.Error("Expected a live estimate")
	}
	if got.GasUnits != 120_000 || got.GasPriceGwei != "30" {
		t.Errorf("unexpected gas figures: %+v", got)
	}
	// 120,000 gas x 30 gwei = 0.0036 POL; at $0.50 that is $0.0018
	if got.CostNative != "0.0036" || got.NativeSymbol != "POL" {
		t.Errorf("Expected 0.0036 POL, got %s %s", got.CostNative, got.NativeSymbol)
	}
	if got.USD.Micros() != 1800 || got.CostUSD != "$0.0018" {
		t.Errorf("Expected $0.0018, got %s (%d micros)", got.CostUSD, got.USD.Micros())
	}
	if f.lastMsg.Value == nil || f.lastMsg.Value.Sign() != 0 {
		t.Errorf("Expected simulation without native value, got %v", f.lastMsg.Value)
	}

	t.Log("✓ Mint cost estimated from simulated gas and network price")
}

func TestEstimateMint_Placeholder(t *testing.T) {
	f := newFakeChain()
	f.gasErr = errors.New("insufficient funds for gas * price + value")
	e := newTestEstimator(t, f, nil)

	got := e.EstimateMint(context.Background())

	if !got.IsEstimate {
		t.Fatal("Expected placeholder estimate")
	}
	if got.GasUnits != PlaceholderGasUnits || got.GasPriceGwei != "30" || got.CostNative != "0.0045" {
		t.Errorf("unexpected placeholder: %+v", got)
	}
	if got.USD.Micros() != 2250 {
		t.Errorf("Expected 2250 micros, got %d", got.USD.Micros())
	}
}

func TestGasPriceCached(t *testing.T) {
	f := newFakeChain()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	e := newTestEstimator(t, f, clock)
	ctx := context.Background()

	e.EstimateMint(ctx)
	now = now.Add(11 * time.Second)
	e.EstimateMint(ctx)
	if f.priceCalls != 1 {
		t.Errorf("Expected 1 gas price read within 12s, got %d", f.priceCalls)
	}

	now = now.Add(2 * time.Second)
	e.EstimateMint(ctx)
	if f.priceCalls != 2 {
		t.Errorf("Expected gas price refreshed after 12s, got %d reads", f.priceCalls)
	}
}

func TestNewEstimator_RequiresChain(t *testing.T) {
	if _, err := NewEstimator(EstimatorConfig{}); err == nil {
		t.Error("Expected error without chain reader")
	}
}
