package riddlen

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Supply and estimate constants used by the aggregators
const (
	MaxNFTSupply = 999

	// Average RON reward per solved riddle, used for rough estimates only
	RONPerRiddle = 100

	fallbackMintPrice = "1000"
)

// RiddleView is the current riddle as rendered by the riddle frame
type RiddleView struct {
	RiddleID           int        `json:"riddleId"`
	MintPriceDecimal   string     `json:"mintPriceDecimal"`
	PrizePoolFormatted string     `json:"prizePoolFormatted"`
	TotalNFTs          int        `json:"totalNFTs"`
	NFTsAvailable      int        `json:"nftsAvailable"`
	IsLive             bool       `json:"isLive"`
	Difficulty         Difficulty `json:"difficulty"`
	CurrentWinners     int        `json:"currentWinners"`
	TotalWinners       int        `json:"totalWinners"`
}

// FallbackRiddle is served when the riddle reads fail
func FallbackRiddle() RiddleView {
	return RiddleView{
		RiddleID:           0,
		MintPriceDecimal:   fallbackMintPrice,
		PrizePoolFormatted: "0",
		TotalNFTs:          0,
		NFTsAvailable:      MaxNFTSupply,
		IsLive:             true,
		Difficulty:         DifficultyMedium,
	}
}

// UserProfileView is one wallet's standing
type UserProfileView struct {
	AddressShort          string `json:"addressShort"`
	RONBalanceFormatted   string `json:"ronBalanceFormatted"`
	RDLNBalanceFormatted  string `json:"rdlnBalanceFormatted"`
	NFTsOwned             int    `json:"nftsOwned"`
	RiddlesSolvedEstimate int    `json:"riddlesSolvedEstimate"`
	Tier                  Tier   `json:"tier"`
	TierMultiplier        string `json:"tierMultiplier"`
	Rank                  int    `json:"rank"`
}

// FallbackProfile is an all-zero profile that still shows the address
func FallbackProfile(addr common.Address) UserProfileView {
	tier, multiplier := TierFor(0)
	return UserProfileView{
		AddressShort:         ShortAddress(addr),
		RONBalanceFormatted:  "0",
		RDLNBalanceFormatted: "0",
		Tier:                 tier,
		TierMultiplier:       multiplier,
	}
}

// LeaderboardEntry is one ranked holder
type LeaderboardEntry struct {
	Rank           int            `json:"rank"`
	Address        common.Address `json:"-"`
	AddressShort   string         `json:"addressShort"`
	ScoreFormatted string         `json:"scoreFormatted"`
	Tier           Tier           `json:"tier"`
}

// RDLNStats are the RDLN token counters
type RDLNStats struct {
	TotalSupply string `json:"totalSupply"`
	Burned      string `json:"burned"`
	Circulating string `json:"circulating"`
}

// RONStats are the RON token counters
type RONStats struct {
	TotalSupply string `json:"totalSupply"`
}

// NFTStats are the riddle NFT counters
type NFTStats struct {
	Minted    int `json:"minted"`
	Available int `json:"available"`
	MaxSupply int `json:"maxSupply"`
}

// TreasuryStats are the prize and airdrop allocations
type TreasuryStats struct {
	GrandPrize  string `json:"grandPrize"`
	AirdropPool string `json:"airdropPool"`
}

// EcosystemMetrics are the headline figures
type EcosystemMetrics struct {
	TVL           string `json:"tvl"`
	RiddlesSolved int    `json:"riddlesSolved"`
	ActiveUsers   int    `json:"activeUsers"`
}

// EcosystemStatsView is served by the stats endpoint.
// RON supply, riddles solved and active users are estimates derived from the
// NFT count; there is no on-chain source for them.
type EcosystemStatsView struct {
	RDLN        RDLNStats        `json:"rdln"`
	RON         RONStats         `json:"ron"`
	NFT         NFTStats         `json:"nft"`
	Treasury    TreasuryStats    `json:"treasury"`
	Metrics     EcosystemMetrics `json:"metrics"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Fallback    bool             `json:"fallback,omitempty"`
}

// FallbackEcosystem is the fixed snapshot served when the stats reads fail.
// It reflects the launch allocation of the 1B RDLN supply.
func FallbackEcosystem() EcosystemStatsView {
	return EcosystemStatsView{
		RDLN:     RDLNStats{TotalSupply: "1,000,000,000", Burned: "0", Circulating: "1,000,000,000"},
		RON:      RONStats{TotalSupply: "0"},
		NFT:      NFTStats{Minted: 0, Available: MaxNFTSupply, MaxSupply: MaxNFTSupply},
		Treasury: TreasuryStats{GrandPrize: "250,000,000", AirdropPool: "100,000,000"},
		Metrics:  EcosystemMetrics{TVL: "350,000,000"},
		Fallback: true,
	}
}

// ContractInfoView describes one deployed contract
type ContractInfoView struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Source   string `json:"source"` // "chain" or "config"
}
