package riddlen

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/chain"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
)

var errRPC = errors.New("chain read failed: connection refused")

var (
	addrA = common.HexToAddress("0xAAAA00000000000000000000000000000000aaaa")
	addrB = common.HexToAddress("0xBBBB00000000000000000000000000000000bbbb")
	addrC = common.HexToAddress("0xCCCC00000000000000000000000000000000cccc")
	burn  = common.HexToAddress(config.DefaultBurnAddress)
)

// fakeReader is an in-memory ChainReader. Operations listed in fail return
// errRPC; every call is counted by operation name.
type fakeReader struct {
	mu sync.Mutex

	supplies map[chain.Token]*big.Int
	balances map[chain.Token]map[common.Address]*big.Int
	tiers    map[common.Address]uint8
	mintCost *big.Int
	riddle   chain.RiddleRecord
	meta     map[chain.Token]chain.TokenMetadata

	fail        map[string]bool
	failHolders map[common.Address]bool
	calls       map[string]int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		supplies: map[chain.Token]*big.Int{
			chain.RDLN: ether(1_000_000_000),
			chain.NFT:  big.NewInt(5),
		},
		balances: map[chain.Token]map[common.Address]*big.Int{
			chain.RDLN: {},
			chain.RON:  {},
			chain.NFT:  {},
		},
		tiers:       map[common.Address]uint8{},
		mintCost:    ether(1000),
		riddle:      chain.RiddleRecord{Difficulty: 2, Solved: false, WinnerCount: big.NewInt(3), MaxWinners: big.NewInt(10)},
		meta:        map[chain.Token]chain.TokenMetadata{},
		fail:        map[string]bool{},
		failHolders: map[common.Address]bool{},
		calls:       map[string]int{},
	}
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func (f *fakeReader) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.fail[op] {
		return errRPC
	}
	return nil
}

func (f *fakeReader) setFail(op string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = fail
}

func (f *fakeReader) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeReader) TotalSupply(ctx context.Context, token chain.Token) (*big.Int, error) {
	if err := f.record("totalSupply:" + string(token)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.supplies[token]), nil
}

func (f *fakeReader) BalanceOf(ctx context.Context, token chain.Token, holder common.Address) (*big.Int, error) {
	if err := f.record("balanceOf:" + string(token)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[token][holder]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeReader) UserTier(ctx context.Context, holder common.Address) (uint8, error) {
	if err := f.record("userTier"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tiers[holder], nil
}

func (f *fakeReader) CurrentMintCost(ctx context.Context) (*big.Int, error) {
	if err := f.record("mintCost"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(f.mintCost), nil
}

func (f *fakeReader) Riddle(ctx context.Context, id *big.Int) (chain.RiddleRecord, error) {
	if err := f.record("riddle"); err != nil {
		return chain.RiddleRecord{}, err
	}
	rec := f.riddle
	rec.ID = new(big.Int).Set(id)
	return rec, nil
}

func (f *fakeReader) HolderReadings(ctx context.Context, holders []common.Address) []chain.HolderReading {
	_ = f.record("holders")
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]chain.HolderReading, len(holders))
	for i, h := range holders {
		out[i].Holder = h
		if f.failHolders[h] {
			out[i].Err = errRPC
			continue
		}
		out[i].Balance = new(big.Int)
		if b, ok := f.balances[chain.RON][h]; ok {
			out[i].Balance.Set(b)
		}
		out[i].Tier = f.tiers[h]
	}
	return out
}

func (f *fakeReader) TokenMetadata(ctx context.Context, token chain.Token) (chain.TokenMetadata, error) {
	if err := f.record("metadata:" + string(token)); err != nil {
		return chain.TokenMetadata{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.meta[token]
	if !ok {
		return chain.TokenMetadata{}, errRPC
	}
	return meta, nil
}

func (f *fakeReader) BurnAddress() common.Address {
	return burn
}

func testRegistry() []config.ContractInfo {
	return config.ContractsConfig{
		RDLN: "0x1111111111111111111111111111111111111111",
		RON:  "0x2222222222222222222222222222222222222222",
		NFT:  "0x3333333333333333333333333333333333333333",
	}.Registry()
}

func newTestAggregator(f *fakeReader, candidates ...common.Address) *Aggregator {
	return NewAggregator(AggregatorConfig{
		Chain:      f,
		Candidates: StaticCandidates(candidates),
		Registry:   testRegistry(),
	})
}
