// Package gas estimates what a riddle NFT mint costs the user.
package gas

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/money"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/cache"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/parallel"
)

// Placeholder figures served when estimation fails
const (
	PlaceholderGasUnits uint64 = 150_000
	PlaceholderGasGwei  int64  = 30
)

const gweiDecimals = 9

// ChainReader is the subset of chain.Reader the estimator uses
type ChainReader interface {
	MintCallMsg() (ethereum.CallMsg, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Estimate is the cost of one mint transaction
type Estimate struct {
	GasUnits     uint64 `json:"gasUnits"`
	GasPriceGwei string `json:"gasPriceGwei"`
	CostNative   string `json:"costNative"`
	NativeSymbol string `json:"nativeSymbol"`
	CostUSD      string `json:"costUsd"`

	// IsEstimate marks the fixed placeholder served when the chain could
	// not be asked
	IsEstimate bool `json:"isEstimate"`

	CostWei *big.Int  `json:"-"`
	USD     money.USD `json:"-"`
}

// Estimator prices mintRiddleNFT() calls
type Estimator struct {
	chain    ChainReader
	gasPrice *cache.Entry[*big.Int]
	rate     money.USD
	symbol   string

	perf    *observability.PerfMonitor
	logger  *observability.Logger
	metrics *observability.Metrics
}

// EstimatorConfig holds estimator dependencies
type EstimatorConfig struct {
	Chain ChainReader
	Gas   config.GasConfig

	Perf    *observability.PerfMonitor
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

// NewEstimator creates an estimator. The gas price is cached for
// Gas.PriceCacheTTL.
func NewEstimator(cfg EstimatorConfig) (*Estimator, error) {
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain reader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Gas.NativeSymbol == "" {
		cfg.Gas.NativeSymbol = "POL"
	}

	e := &Estimator{
		chain:   cfg.Chain,
		rate:    money.NewUSD(cfg.Gas.NativeUSDRate),
		symbol:  cfg.Gas.NativeSymbol,
		perf:    cfg.Perf,
		logger:  cfg.Logger.Component("gas"),
		metrics: cfg.Metrics,
	}

	opts := []cache.Option{cache.WithSingleFlight(true), cache.WithRecorder(cfg.Metrics)}
	if cfg.Now != nil {
		opts = append(opts, cache.WithClock(cfg.Now))
	}
	e.gasPrice = cache.NewEntry("gas_price", cfg.Gas.PriceCacheTTL, e.fetchGasPrice, opts...)

	return e, nil
}

// EstimateMint returns the cost of minting the current riddle NFT, or the
// placeholder if the chain cannot be asked.
func (e *Estimator) EstimateMint(ctx context.Context) Estimate {
	est, err := observability.Measure(ctx, e.perf, "gas.estimateMint", e.estimateMint)
	if err != nil {
		e.logger.LogWarn(ctx, "gas estimation failed, serving placeholder", "error", err.Error())
		e.metrics.RecordFallback(ctx, "gas")
		return e.Placeholder()
	}
	return est
}

// Placeholder is the fixed estimate of 150,000 gas at 30 gwei
func (e *Estimator) Placeholder() Estimate {
	est := e.build(PlaceholderGasUnits, money.NewGwei(PlaceholderGasGwei).ToWei())
	est.IsEstimate = true
	return est
}

func (e *Estimator) estimateMint(ctx context.Context) (Estimate, error) {
	msg, err := e.chain.MintCallMsg()
	if err != nil {
		return Estimate{}, err
	}

	g, gctx := parallel.New(ctx)
	units := parallel.Go(gctx, g, "estimate gas", func(ctx context.Context) (uint64, error) {
		return e.chain.EstimateGas(ctx, msg)
	})
	price := parallel.Go(gctx, g, "gas price", e.gasPrice.Get)
	if err := g.Wait(); err != nil {
		return Estimate{}, err
	}

	return e.build(units.Value(), price.Value()), nil
}

func (e *Estimator) fetchGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := e.chain.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	e.metrics.SetGasPrice(ctx, money.GweiFromWei(price).Float64())
	return price, nil
}

func (e *Estimator) build(units uint64, price *big.Int) Estimate {
	cost := new(big.Int).Mul(new(big.Int).SetUint64(units), price)
	usd := money.WeiToUSD(cost, e.rate)

	return Estimate{
		GasUnits:     units,
		GasPriceGwei: money.FormatUnits(price, gweiDecimals),
		CostNative:   money.FormatEther(cost),
		NativeSymbol: e.symbol,
		CostUSD:      usd.Format(4),
		CostWei:      cost,
		USD:          usd,
	}
}
