package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultBurnAddress is the conventional dead address RDLN is burned to
const DefaultBurnAddress = "0x000000000000000000000000000000000000dEaD"

// ContractsConfig holds the deployed Riddlen contract addresses
type ContractsConfig struct {
	RDLN        string `mapstructure:"rdln"`    // fungible game token
	RON         string `mapstructure:"ron"`     // soulbound reputation token
	NFT         string `mapstructure:"nft"`     // riddle NFT collection
	Airdrop     string `mapstructure:"airdrop"` // optional
	BurnAddress string `mapstructure:"burn_address"`
}

// ContractInfo contains static metadata for a known contract.
// Symbol and Decimals are used when the on-chain metadata read fails.
type ContractInfo struct {
	Key      string
	Name     string
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Contract keys
const (
	ContractRDLN    = "RDLN"
	ContractRON     = "RON"
	ContractNFT     = "NFT"
	ContractAirdrop = "AIRDROP"
)

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
// Checksums are not enforced.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// Validate checks address formats only
func (c ContractsConfig) Validate() error {
	required := map[string]string{
		ContractRDLN: c.RDLN,
		ContractRON:  c.RON,
		ContractNFT:  c.NFT,
	}
	for name, addr := range required {
		if addr == "" {
			return fmt.Errorf("%s contract address is required", name)
		}
		if !IsAddress(addr) {
			return fmt.Errorf("invalid %s contract address: %s", name, addr)
		}
	}

	if c.Airdrop != "" && !IsAddress(c.Airdrop) {
		return fmt.Errorf("invalid %s contract address: %s", ContractAirdrop, c.Airdrop)
	}
	if c.BurnAddress != "" && !IsAddress(c.BurnAddress) {
		return fmt.Errorf("invalid burn address: %s", c.BurnAddress)
	}

	return nil
}

// Burn returns the burn address, falling back to the dead address
func (c ContractsConfig) Burn() common.Address {
	if c.BurnAddress == "" {
		return common.HexToAddress(DefaultBurnAddress)
	}
	return common.HexToAddress(c.BurnAddress)
}

// Registry returns metadata for every configured contract in display order.
// The airdrop contract is omitted when not configured.
func (c ContractsConfig) Registry() []ContractInfo {
	infos := []ContractInfo{
		{Key: ContractRDLN, Name: "Riddlen", Symbol: "RDLN", Address: common.HexToAddress(c.RDLN), Decimals: 18},
		{Key: ContractRON, Name: "Riddlen Oracle Network", Symbol: "RON", Address: common.HexToAddress(c.RON), Decimals: 18},
		{Key: ContractNFT, Name: "Riddlen Riddle NFT", Symbol: "RIDDLE", Address: common.HexToAddress(c.NFT), Decimals: 0},
	}
	if c.Airdrop != "" {
		infos = append(infos, ContractInfo{
			Key: ContractAirdrop, Name: "Riddlen Airdrop", Symbol: "AIRDROP", Address: common.HexToAddress(c.Airdrop),
		})
	}
	return infos
}

