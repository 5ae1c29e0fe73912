package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/worker"
)

// Call is one independent view call in a batch
type Call struct {
	Token  Token
	Method string
	Args   []any
}

// CallResult holds the decoded outputs of one Call, or its error
type CallResult struct {
	Values []any
	Err    error
}

// Batch runs independent calls. With a BatchCaller they share JSON-RPC batch
// requests of at most BatchSize calls; otherwise they run on the worker pool.
// Results are returned in call order and each call succeeds or fails on its own.
func (r *Reader) Batch(ctx context.Context, calls []Call) []CallResult {
	if len(calls) == 0 {
		return nil
	}
	r.metrics.RecordRPCBatch(ctx, len(calls))

	if r.batcher == nil {
		return r.batchOnPool(ctx, calls)
	}

	results := make([]CallResult, len(calls))
	for start := 0; start < len(calls); start += r.batchSize {
		end := min(start+r.batchSize, len(calls))
		r.batchChunk(ctx, calls[start:end], results[start:end])
	}
	return results
}

func (r *Reader) batchOnPool(ctx context.Context, calls []Call) []CallResult {
	jobs := make([]worker.Job[[]any], len(calls))
	for i, c := range calls {
		c := c
		jobs[i] = worker.Job[[]any]{
			ID: opName(c.Token, c.Method),
			Execute: func(ctx context.Context) ([]any, error) {
				return r.call(ctx, c.Token, c.Method, c.Args...)
			},
		}
	}

	results := make([]CallResult, len(calls))
	for i, res := range worker.Map(ctx, r.pool, jobs) {
		if res.Err != nil && !errors.Is(res.Err, ErrReadFailed) {
			res.Err = fmt.Errorf("%w: %s: %w", ErrReadFailed, res.JobID, res.Err)
		}
		results[i] = CallResult{Values: res.Value, Err: res.Err}
	}
	return results
}

type pendingCall struct {
	index    int
	contract *Contract
	method   string
	output   hexutil.Bytes
}

// batchChunk fills results for one JSON-RPC batch request
func (r *Reader) batchChunk(ctx context.Context, calls []Call, results []CallResult) {
	pending := make([]*pendingCall, 0, len(calls))
	elems := make([]rpc.BatchElem, 0, len(calls))

	for i, c := range calls {
		contract, err := r.Contract(c.Token)
		if err != nil {
			results[i].Err = err
			continue
		}
		data, err := contract.ABI.Pack(c.Method, c.Args...)
		if err != nil {
			results[i].Err = fmt.Errorf("%w: %s: %w", ErrReadFailed, opName(c.Token, c.Method), err)
			continue
		}

		p := &pendingCall{index: i, contract: contract, method: c.Method}
		pending = append(pending, p)
		elems = append(elems, rpc.BatchElem{
			Method: "eth_call",
			Args:   []any{callArg(contract.Address, data), "latest"},
			Result: &p.output,
		})
	}
	if len(elems) == 0 {
		return
	}

	_, err := run(ctx, r, "chain.batch", func(ctx context.Context) (struct{}, error) {
		for i := range elems {
			elems[i].Error = nil
		}
		return struct{}{}, r.batcher.BatchCallContext(ctx, elems)
	})
	if err != nil {
		for _, p := range pending {
			results[p.index].Err = err
		}
		return
	}

	for i, p := range pending {
		name := opName(p.contract.Token, p.method)
		if elems[i].Error != nil {
			results[p.index].Err = fmt.Errorf("%w: %s: %w", ErrReadFailed, name, elems[i].Error)
			continue
		}
		values, err := p.contract.ABI.Unpack(p.method, p.output)
		if err != nil {
			results[p.index].Err = fmt.Errorf("%w: %s: %w", ErrReadFailed, name, err)
			continue
		}
		results[p.index].Values = values
	}
}

// callArg is the eth_call transaction object
func callArg(to common.Address, data []byte) map[string]any {
	return map[string]any{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
}

// HolderReading is the RON balance and tier of one address
type HolderReading struct {
	Holder  common.Address
	Balance *big.Int
	Tier    uint8
	Err     error
}

// HolderReadings reads RON balance and tier for every holder in one batch.
// A failure for one holder does not affect the others.
func (r *Reader) HolderReadings(ctx context.Context, holders []common.Address) []HolderReading {
	calls := make([]Call, 0, len(holders)*2)
	for _, h := range holders {
		calls = append(calls,
			Call{Token: RON, Method: "balanceOf", Args: []any{h}},
			Call{Token: RON, Method: "getUserTier", Args: []any{h}},
		)
	}
	results := r.Batch(ctx, calls)

	readings := make([]HolderReading, len(holders))
	for i, h := range holders {
		reading := HolderReading{Holder: h}
		balance, balErr := single[*big.Int](results[2*i].Values, results[2*i].Err)
		tier, tierErr := single[uint8](results[2*i+1].Values, results[2*i+1].Err)
		if err := errors.Join(balErr, tierErr); err != nil {
			reading.Err = err
		} else {
			reading.Balance = balance
			reading.Tier = tier
		}
		readings[i] = reading
	}
	return readings
}

// TokenMetadata is a contract's self-reported name, symbol and decimals
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// TokenMetadata reads name, symbol and, where declared, decimals of token
func (r *Reader) TokenMetadata(ctx context.Context, token Token) (TokenMetadata, error) {
	c, err := r.Contract(token)
	if err != nil {
		return TokenMetadata{}, err
	}

	calls := []Call{
		{Token: token, Method: "name"},
		{Token: token, Method: "symbol"},
	}
	if c.HasMethod("decimals") {
		calls = append(calls, Call{Token: token, Method: "decimals"})
	}
	results := r.Batch(ctx, calls)

	var meta TokenMetadata
	var errs []error

	name, err := single[string](results[0].Values, results[0].Err)
	errs = append(errs, err)
	meta.Name = name

	symbol, err := single[string](results[1].Values, results[1].Err)
	errs = append(errs, err)
	meta.Symbol = symbol

	if len(results) > 2 {
		decimals, err := single[uint8](results[2].Values, results[2].Err)
		errs = append(errs, err)
		meta.Decimals = decimals
	}

	if err := errors.Join(errs...); err != nil {
		return TokenMetadata{}, err
	}
	return meta, nil
}
