// Package chain is the read-only accessor for the Riddlen contracts. Every
// call goes through the RPC rate limiter, a circuit breaker and bounded retry,
// and is measured by the performance monitor. All failures are reported as
// ErrReadFailed; fallback values are the caller's business.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel/attribute"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/resilience"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/worker"
)

// ErrReadFailed wraps every network, timeout, decode and revert failure
var ErrReadFailed = errors.New("chain read failed")

// Backend is the subset of ethclient.Client the reader needs
type Backend interface {
	bind.ContractCaller
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// BatchCaller sends several JSON-RPC requests in one round trip.
// *rpc.Client implements it.
type BatchCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// ReaderConfig holds the reader's collaborators. Only Backend and Contracts
// are required.
type ReaderConfig struct {
	Backend   Backend
	Batcher   BatchCaller // optional; without it batches run on the worker pool
	Contracts config.ContractsConfig

	RequestTimeout time.Duration
	BatchSize      int

	Limiter *resilience.AdaptiveLimiter
	Breaker *resilience.CircuitBreaker
	Retry   resilience.RetryConfig
	Pool    *worker.Pool

	Perf    *observability.PerfMonitor
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  observability.Tracer
}

// Reader issues typed read-only calls against the Riddlen contracts
type Reader struct {
	backend   Backend
	batcher   BatchCaller
	contracts map[Token]*Contract
	burn      common.Address

	timeout   time.Duration
	batchSize int

	limiter *resilience.AdaptiveLimiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	pool    *worker.Pool
	ownPool bool

	perf    *observability.PerfMonitor
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  observability.Tracer

	closeFn func()
}

// NewReader creates a reader over an existing backend
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("chain backend is required")
	}
	if err := cfg.Contracts.Validate(); err != nil {
		return nil, err
	}

	contracts, err := buildContracts(cfg.Contracts, cfg.Backend)
	if err != nil {
		return nil, err
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = resilience.NewAdaptiveLimiter(resilience.AdaptiveLimiterConfig{BaseRate: 25, Burst: 10})
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:      "rpc",
			IsFailure: resilience.IsRetryable,
		})
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}

	ownPool := false
	if cfg.Pool == nil {
		cfg.Pool = worker.NewPool(8, 64)
		ownPool = true
	}

	return &Reader{
		backend:   cfg.Backend,
		batcher:   cfg.Batcher,
		contracts: contracts,
		burn:      cfg.Contracts.Burn(),
		timeout:   cfg.RequestTimeout,
		batchSize: cfg.BatchSize,
		limiter:   cfg.Limiter,
		breaker:   cfg.Breaker,
		retry:     cfg.Retry,
		pool:      cfg.Pool,
		ownPool:   ownPool,
		perf:      cfg.Perf,
		logger:    cfg.Logger.Component("chain"),
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}, nil
}

// Options carries the observability collaborators for Dial
type Options struct {
	Perf    *observability.PerfMonitor
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  observability.Tracer
	Pool    *worker.Pool
}

// Dial connects to the configured RPC endpoint and builds a reader with the
// configured limiter, breaker and retry policy.
func Dial(ctx context.Context, chainCfg config.ChainConfig, contracts config.ContractsConfig, opts Options) (*Reader, error) {
	client, err := ethclient.DialContext(ctx, chainCfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}

	limiter := resilience.NewAdaptiveLimiter(resilience.AdaptiveLimiterConfig{
		BaseRate: chainCfg.RateLimit.RequestsPerSecond,
		Burst:    chainCfg.RateLimit.Burst,
		OnChange: func(rps float64) {
			logger.Warn("adjusted RPC rate limit", "rps", rps)
			metrics.SetRPCRateLimit(context.Background(), rps)
		},
	})
	metrics.SetRPCRateLimit(ctx, limiter.Rate())

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "rpc",
		FailureThreshold: chainCfg.Breaker.MaxFailures,
		Timeout:          chainCfg.Breaker.Timeout,
		IsFailure:        resilience.IsRetryable,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.SetCircuitBreakerState(context.Background(), name, int64(to))
		},
	})

	retry := resilience.DefaultRetryConfig()
	if chainCfg.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = chainCfg.Retry.MaxAttempts
	}
	if chainCfg.Retry.InitialDelay > 0 {
		retry.BaseDelay = chainCfg.Retry.InitialDelay
	}
	if chainCfg.Retry.MaxDelay > 0 {
		retry.MaxDelay = chainCfg.Retry.MaxDelay
	}

	r, err := NewReader(ReaderConfig{
		Backend:        client,
		Batcher:        client.Client(),
		Contracts:      contracts,
		RequestTimeout: chainCfg.RequestTimeout,
		BatchSize:      chainCfg.BatchSize,
		Limiter:        limiter,
		Breaker:        breaker,
		Retry:          retry,
		Pool:           opts.Pool,
		Perf:           opts.Perf,
		Logger:         logger,
		Metrics:        metrics,
		Tracer:         opts.Tracer,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	r.closeFn = client.Close

	if chainCfg.ChainID > 0 {
		idCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if id, err := client.ChainID(idCtx); err != nil {
			r.logger.LogWarn(ctx, "could not verify chain id", "error", err.Error())
		} else if id.Int64() != chainCfg.ChainID {
			r.logger.LogWarn(ctx, "RPC endpoint serves a different chain",
				"expected", chainCfg.ChainID,
				"actual", id.String(),
			)
		}
	}

	r.logger.Info("connected to RPC endpoint", "url", redactURL(chainCfg.RPCURL), "batching", r.batcher != nil)
	return r, nil
}

// redactURL drops the path and query, which often carry provider API keys
func redactURL(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		if j := strings.Index(raw[i+3:], "/"); j >= 0 {
			return raw[:i+3+j]
		}
	}
	return raw
}

// Close releases the RPC connection and the reader's own worker pool
func (r *Reader) Close() {
	if r.ownPool {
		r.pool.Close()
	}
	if r.closeFn != nil {
		r.closeFn()
	}
}

// Contract returns the descriptor for token
func (r *Reader) Contract(token Token) (*Contract, error) {
	c, ok := r.contracts[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown contract %s", ErrReadFailed, token)
	}
	return c, nil
}

// BurnAddress is the address whose RDLN balance counts as burned
func (r *Reader) BurnAddress() common.Address {
	return r.burn
}

// BreakerState reports the RPC circuit breaker state
func (r *Reader) BreakerState() resilience.State {
	return r.breaker.State()
}

// opName is the performance monitor name for a contract method
func opName(token Token, method string) string {
	return "chain." + strings.ToLower(string(token)) + "." + method
}

// run wraps one logical RPC operation: span, perf sample, retry, then per
// attempt the limiter, breaker and request timeout.
func run[T any](ctx context.Context, r *Reader, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := r.tracer.StartSpan(ctx, name, attribute.String("rpc.system", "jsonrpc"))
	defer span.End()

	res, err := observability.Measure(ctx, r.perf, name, func(ctx context.Context) (T, error) {
		return resilience.Do(ctx, r.retry, func(ctx context.Context) (T, error) {
			return attempt(ctx, r, name, fn)
		})
	})
	if err != nil {
		span.NoticeError(err)
		r.metrics.RecordError(ctx, "rpc_read")
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", ErrReadFailed, name, err)
	}
	return res, nil
}

func attempt[T any](ctx context.Context, r *Reader, name string, fn func(context.Context) (T, error)) (T, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}

	start := time.Now()
	res, err := resilience.Call(ctx, r.breaker, func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return fn(ctx)
	})
	r.limiter.Observe(err)
	r.metrics.RecordRPCCall(ctx, name, err == nil, time.Since(start))

	return res, err
}

// call invokes a view method through the bound contract
func (r *Reader) call(ctx context.Context, token Token, method string, args ...any) ([]any, error) {
	c, err := r.Contract(token)
	if err != nil {
		return nil, err
	}

	return run(ctx, r, opName(token, method), func(ctx context.Context) ([]any, error) {
		var out []any
		if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// single extracts the only output of a call
func single[T any](out []any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, fmt.Errorf("%w: expected 1 output, got %d", ErrReadFailed, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected output type %T", ErrReadFailed, out[0])
	}
	return v, nil
}

// TotalSupply reads totalSupply() of token
func (r *Reader) TotalSupply(ctx context.Context, token Token) (*big.Int, error) {
	return single[*big.Int](r.call(ctx, token, "totalSupply"))
}

// BalanceOf reads balanceOf(holder) of token
func (r *Reader) BalanceOf(ctx context.Context, token Token, holder common.Address) (*big.Int, error) {
	return single[*big.Int](r.call(ctx, token, "balanceOf", holder))
}

// UserTier reads the RON tier code of holder
func (r *Reader) UserTier(ctx context.Context, holder common.Address) (uint8, error) {
	return single[uint8](r.call(ctx, RON, "getUserTier", holder))
}

// CurrentMintCost reads the riddle NFT mint cost in RDLN base units
func (r *Reader) CurrentMintCost(ctx context.Context) (*big.Int, error) {
	return single[*big.Int](r.call(ctx, NFT, "getCurrentMintCost"))
}

// RiddleRecord is the on-chain state of one riddle
type RiddleRecord struct {
	ID          *big.Int
	Difficulty  uint8
	Solved      bool
	WinnerCount *big.Int
	MaxWinners  *big.Int
}

// Riddle reads getRiddle(id)
func (r *Reader) Riddle(ctx context.Context, id *big.Int) (RiddleRecord, error) {
	out, err := r.call(ctx, NFT, "getRiddle", id)
	if err != nil {
		return RiddleRecord{}, err
	}
	if len(out) != 4 {
		return RiddleRecord{}, fmt.Errorf("%w: getRiddle returned %d outputs", ErrReadFailed, len(out))
	}

	difficulty, ok1 := out[0].(uint8)
	solved, ok2 := out[1].(bool)
	winners, ok3 := out[2].(*big.Int)
	maxWinners, ok4 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return RiddleRecord{}, fmt.Errorf("%w: unexpected getRiddle output types", ErrReadFailed)
	}

	return RiddleRecord{
		ID:          new(big.Int).Set(id),
		Difficulty:  difficulty,
		Solved:      solved,
		WinnerCount: winners,
		MaxWinners:  maxWinners,
	}, nil
}

// SuggestGasPrice returns the node's current gas price in wei
func (r *Reader) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return run(ctx, r, "chain.gasPrice", r.backend.SuggestGasPrice)
}

// EstimateGas simulates msg and returns the gas it would use
func (r *Reader) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return run(ctx, r, "chain.estimateGas", func(ctx context.Context) (uint64, error) {
		return r.backend.EstimateGas(ctx, msg)
	})
}

// MintCallMsg builds the mintRiddleNFT() call sent from the zero address.
// The mint is paid in RDLN, so no native value is attached.
func (r *Reader) MintCallMsg() (ethereum.CallMsg, error) {
	c, err := r.Contract(NFT)
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	data, err := c.ABI.Pack("mintRiddleNFT")
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("%w: pack mintRiddleNFT: %w", ErrReadFailed, err)
	}

	to := c.Address
	return ethereum.CallMsg{
		From:  common.Address{},
		To:    &to,
		Value: new(big.Int),
		Data:  data,
	}, nil
}

// Ping returns the latest block number; used for readiness
func (r *Reader) Ping(ctx context.Context) (uint64, error) {
	return run(ctx, r, "chain.blockNumber", r.backend.BlockNumber)
}
