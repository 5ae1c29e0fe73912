// Package riddlen composes chain reads into the denormalized views the
// frames render. Aggregators are the error boundary: every public method
// returns a complete view and substitutes a fixed fallback on any failure.
package riddlen

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/chain"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/money"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/observability"
	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/parallel"
)

// ChainReader is the subset of chain.Reader the aggregators use
type ChainReader interface {
	TotalSupply(ctx context.Context, token chain.Token) (*big.Int, error)
	BalanceOf(ctx context.Context, token chain.Token, holder common.Address) (*big.Int, error)
	UserTier(ctx context.Context, holder common.Address) (uint8, error)
	CurrentMintCost(ctx context.Context) (*big.Int, error)
	Riddle(ctx context.Context, id *big.Int) (chain.RiddleRecord, error)
	HolderReadings(ctx context.Context, holders []common.Address) []chain.HolderReading
	TokenMetadata(ctx context.Context, token chain.Token) (chain.TokenMetadata, error)
	BurnAddress() common.Address
}

var (
	prizePoolShare   = money.NewBPS(25)
	airdropPoolShare = money.NewBPS(10)
)

const tokenDecimals = money.EtherDecimals

// Aggregator builds the frame views from chain reads
type Aggregator struct {
	chain      ChainReader
	candidates CandidateSource
	registry   []config.ContractInfo

	perf    *observability.PerfMonitor
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// AggregatorConfig holds aggregator dependencies
type AggregatorConfig struct {
	Chain      ChainReader
	Candidates CandidateSource
	Registry   []config.ContractInfo

	Perf    *observability.PerfMonitor
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

// NewAggregator creates an aggregator
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Candidates == nil {
		cfg.Candidates = StaticCandidates(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Aggregator{
		chain:      cfg.Chain,
		candidates: cfg.Candidates,
		registry:   cfg.Registry,
		perf:       cfg.Perf,
		logger:     cfg.Logger.Component("aggregator"),
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}
}

func (a *Aggregator) fallback(ctx context.Context, aggregator string, err error) {
	a.logger.LogWarn(ctx, "serving fallback data", "aggregator", aggregator, "error", err.Error())
	a.metrics.RecordFallback(ctx, aggregator)
}

// --- Riddle ---

// RiddleData returns the current riddle, or FallbackRiddle on any read error
func (a *Aggregator) RiddleData(ctx context.Context) RiddleView {
	view, err := a.fetchRiddle(ctx)
	if err != nil {
		a.fallback(ctx, "riddle", err)
		return FallbackRiddle()
	}
	return view
}

func (a *Aggregator) fetchRiddle(ctx context.Context) (RiddleView, error) {
	return observability.Measure(ctx, a.perf, "aggregate.riddle", func(ctx context.Context) (RiddleView, error) {
		g, gctx := parallel.New(ctx)
		minted := parallel.Go(gctx, g, "nft supply", func(ctx context.Context) (*big.Int, error) {
			return a.chain.TotalSupply(ctx, chain.NFT)
		})
		mintCost := parallel.Go(gctx, g, "mint cost", a.chain.CurrentMintCost)
		rdlnSupply := parallel.Go(gctx, g, "rdln supply", func(ctx context.Context) (*big.Int, error) {
			return a.chain.TotalSupply(ctx, chain.RDLN)
		})
		if err := g.Wait(); err != nil {
			return RiddleView{}, err
		}

		// The NFT supply doubles as the id of the latest riddle
		id := minted.Value()
		view := RiddleView{
			RiddleID:           toInt(id),
			MintPriceDecimal:   money.FormatEther(mintCost.Value()),
			PrizePoolFormatted: money.FormatWhole(prizePoolShare.Of(rdlnSupply.Value()), tokenDecimals),
			TotalNFTs:          toInt(id),
			NFTsAvailable:      remaining(MaxNFTSupply, id),
			IsLive:             true,
			Difficulty:         DifficultyMedium,
		}

		if id.Sign() > 0 {
			record, err := a.chain.Riddle(ctx, id)
			if err != nil {
				return RiddleView{}, fmt.Errorf("riddle %s: %w", id, err)
			}
			view.IsLive = !record.Solved
			view.Difficulty = DifficultyFor(int(record.Difficulty))
			view.CurrentWinners = toInt(record.WinnerCount)
			view.TotalWinners = toInt(record.MaxWinners)
		}

		return view, nil
	})
}

// --- Profile ---

// UserProfile returns addr's standing with rank 0, or FallbackProfile on any
// read error. Rank is filled from the leaderboard by the Service.
func (a *Aggregator) UserProfile(ctx context.Context, addr common.Address) UserProfileView {
	view, err := a.fetchProfile(ctx, addr)
	if err != nil {
		a.fallback(ctx, "profile", err)
		return FallbackProfile(addr)
	}
	return view
}

func (a *Aggregator) fetchProfile(ctx context.Context, addr common.Address) (UserProfileView, error) {
	return observability.Measure(ctx, a.perf, "aggregate.profile", func(ctx context.Context) (UserProfileView, error) {
		g, gctx := parallel.New(ctx)
		ron := parallel.Go(gctx, g, "ron balance", func(ctx context.Context) (*big.Int, error) {
			return a.chain.BalanceOf(ctx, chain.RON, addr)
		})
		rdln := parallel.Go(gctx, g, "rdln balance", func(ctx context.Context) (*big.Int, error) {
			return a.chain.BalanceOf(ctx, chain.RDLN, addr)
		})
		nfts := parallel.Go(gctx, g, "nft balance", func(ctx context.Context) (*big.Int, error) {
			return a.chain.BalanceOf(ctx, chain.NFT, addr)
		})
		tierCode := parallel.Go(gctx, g, "tier", func(ctx context.Context) (uint8, error) {
			return a.chain.UserTier(ctx, addr)
		})
		if err := g.Wait(); err != nil {
			return UserProfileView{}, err
		}

		ronWhole := money.WholeUnits(ron.Value(), tokenDecimals)
		tier, multiplier := TierFor(int(tierCode.Value()))

		return UserProfileView{
			AddressShort:          ShortAddress(addr),
			RONBalanceFormatted:   money.FormatWhole(ron.Value(), tokenDecimals),
			RDLNBalanceFormatted:  money.FormatWhole(rdln.Value(), tokenDecimals),
			NFTsOwned:             toInt(nfts.Value()),
			RiddlesSolvedEstimate: toInt(new(big.Int).Quo(ronWhole, big.NewInt(RONPerRiddle))),
			Tier:                  tier,
			TierMultiplier:        multiplier,
		}, nil
	})
}

// --- Leaderboard ---

// Leaderboard ranks the candidates by RON balance. A holder whose reads
// fail gets a zero score; a failed candidate lookup yields an empty board.
func (a *Aggregator) Leaderboard(ctx context.Context) []LeaderboardEntry {
	entries, err := a.fetchLeaderboard(ctx)
	if err != nil {
		a.fallback(ctx, "leaderboard", err)
		return []LeaderboardEntry{}
	}
	return entries
}

func (a *Aggregator) fetchLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	return observability.Measure(ctx, a.perf, "aggregate.leaderboard", func(ctx context.Context) ([]LeaderboardEntry, error) {
		addrs, err := a.candidates.Candidates(ctx)
		if err != nil {
			return nil, fmt.Errorf("leaderboard candidates: %w", err)
		}

		readings := a.chain.HolderReadings(ctx, addrs)
		entries := make([]LeaderboardEntry, len(readings))
		for i, r := range readings {
			entry := LeaderboardEntry{
				Rank:           i + 1,
				Address:        r.Holder,
				AddressShort:   ShortAddress(r.Holder),
				ScoreFormatted: "0",
				Tier:           TierNewcomer,
			}
			if r.Err != nil {
				a.logger.LogDebug(ctx, "leaderboard holder read failed", "holder", r.Holder.Hex(), "error", r.Err.Error())
			} else {
				entry.ScoreFormatted = money.FormatWhole(r.Balance, tokenDecimals)
				entry.Tier, _ = TierFor(int(r.Tier))
			}
			entries[i] = entry
		}

		return RankEntries(entries), nil
	})
}

// RankEntries sorts entries by descending score, keeping the input order for
// ties, and renumbers ranks 1..N. The provisional ranks are discarded.
func RankEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	scores := make(map[*LeaderboardEntry]*big.Int, len(entries))
	ranked := make([]*LeaderboardEntry, len(entries))
	for i := range entries {
		ranked[i] = &entries[i]
		scores[ranked[i]] = ParseScore(entries[i].ScoreFormatted)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]].Cmp(scores[ranked[j]]) > 0
	})

	out := make([]LeaderboardEntry, len(ranked))
	for i, e := range ranked {
		out[i] = *e
		out[i].Rank = i + 1
	}
	return out
}

// --- Ecosystem ---

// EcosystemStats returns the token, treasury and NFT counters, or
// FallbackEcosystem on any read error.
func (a *Aggregator) EcosystemStats(ctx context.Context) EcosystemStatsView {
	view, err := a.fetchEcosystem(ctx)
	if err != nil {
		a.fallback(ctx, "ecosystem", err)
		return FallbackEcosystem()
	}
	return view
}

func (a *Aggregator) fetchEcosystem(ctx context.Context) (EcosystemStatsView, error) {
	return observability.Measure(ctx, a.perf, "aggregate.ecosystem", func(ctx context.Context) (EcosystemStatsView, error) {
		values, err := parallel.All(ctx, map[string]parallel.Fetcher[*big.Int]{
			"rdln supply": func(ctx context.Context) (*big.Int, error) {
				return a.chain.TotalSupply(ctx, chain.RDLN)
			},
			"nft supply": func(ctx context.Context) (*big.Int, error) {
				return a.chain.TotalSupply(ctx, chain.NFT)
			},
			"burned": func(ctx context.Context) (*big.Int, error) {
				return a.chain.BalanceOf(ctx, chain.RDLN, a.chain.BurnAddress())
			},
		})
		if err != nil {
			return EcosystemStatsView{}, err
		}

		return ComputeEcosystem(values["rdln supply"], values["burned"], values["nft supply"], a.now()), nil
	})
}

// ComputeEcosystem derives the stats view from raw supplies in base units
// (minted is a plain count).
func ComputeEcosystem(totalSupply, burned, minted *big.Int, now time.Time) EcosystemStatsView {
	circulating := new(big.Int).Sub(totalSupply, burned)
	if circulating.Sign() < 0 {
		circulating.SetInt64(0)
	}
	grandPrize := prizePoolShare.Of(totalSupply)
	airdropPool := airdropPoolShare.Of(totalSupply)
	tvl := new(big.Int).Add(grandPrize, airdropPool)

	mintedCount := toInt(minted)
	ronEstimate := new(big.Int).Mul(minted, big.NewInt(RONPerRiddle))

	return EcosystemStatsView{
		RDLN: RDLNStats{
			TotalSupply: money.FormatWhole(totalSupply, tokenDecimals),
			Burned:      money.FormatWhole(burned, tokenDecimals),
			Circulating: money.FormatWhole(circulating, tokenDecimals),
		},
		RON: RONStats{TotalSupply: money.FormatWhole(ronEstimate, 0)},
		NFT: NFTStats{
			Minted:    mintedCount,
			Available: remaining(MaxNFTSupply, minted),
			MaxSupply: MaxNFTSupply,
		},
		Treasury: TreasuryStats{
			GrandPrize:  money.FormatWhole(grandPrize, tokenDecimals),
			AirdropPool: money.FormatWhole(airdropPool, tokenDecimals),
		},
		Metrics: EcosystemMetrics{
			TVL:           money.FormatWhole(tvl, tokenDecimals),
			RiddlesSolved: mintedCount,
			ActiveUsers:   mintedCount,
		},
		LastUpdated: now.UTC(),
	}
}

// --- Contract info ---

// ContractInfo returns metadata for every configured contract. A contract
// whose metadata read fails is described from configuration instead.
func (a *Aggregator) ContractInfo(ctx context.Context) []ContractInfoView {
	views, _ := a.fetchContractInfo(ctx)
	return views
}

// fetchContractInfo returns an error only when every on-chain read failed
func (a *Aggregator) fetchContractInfo(ctx context.Context) ([]ContractInfoView, error) {
	views := a.configContractInfo()
	var lastErr error
	fromChain := 0

	for i := range views {
		view := views[i]
		switch token := chain.Token(view.Key); token {
		case chain.RDLN, chain.RON, chain.NFT:
			meta, err := a.chain.TokenMetadata(ctx, token)
			if err != nil {
				lastErr = err
				a.fallback(ctx, "contract_info", err)
				break
			}
			view.Name, view.Symbol, view.Decimals, view.Source = meta.Name, meta.Symbol, meta.Decimals, "chain"
			fromChain++
		}
		views[i] = view
	}

	if fromChain == 0 && lastErr != nil {
		return views, lastErr
	}
	return views, nil
}

// configContractInfo describes the contracts from configuration alone
func (a *Aggregator) configContractInfo() []ContractInfoView {
	views := make([]ContractInfoView, len(a.registry))
	for i, info := range a.registry {
		views[i] = ContractInfoView{
			Key:      info.Key,
			Name:     info.Name,
			Symbol:   info.Symbol,
			Address:  info.Address.Hex(),
			Decimals: info.Decimals,
			Source:   "config",
		}
	}
	return views
}
