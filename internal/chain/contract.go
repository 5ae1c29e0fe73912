package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
)

// Token identifies one of the Riddlen contracts the reader is bound to
type Token string

const (
	RDLN Token = config.ContractRDLN
	RON  Token = config.ContractRON
	NFT  Token = config.ContractNFT
)

// Contract is a deployed contract together with its parsed ABI
type Contract struct {
	Token   Token
	Address common.Address
	ABI     abi.ABI

	bound *bind.BoundContract
}

// HasMethod reports whether the contract's ABI declares method
func (c *Contract) HasMethod(method string) bool {
	_, ok := c.ABI.Methods[method]
	return ok
}

func newContract(token Token, address common.Address, rawABI string, caller bind.ContractCaller) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s ABI: %w", token, err)
	}

	return &Contract{
		Token:   token,
		Address: address,
		ABI:     parsed,
		bound:   bind.NewBoundContract(address, parsed, caller, nil, nil),
	}, nil
}

func buildContracts(cfg config.ContractsConfig, caller bind.ContractCaller) (map[Token]*Contract, error) {
	specs := []struct {
		token   Token
		address string
		abi     string
	}{
		{RDLN, cfg.RDLN, erc20ABI},
		{RON, cfg.RON, ronABI},
		{NFT, cfg.NFT, riddleNFTABI},
	}

	contracts := make(map[Token]*Contract, len(specs))
	for _, s := range specs {
		c, err := newContract(s.token, common.HexToAddress(s.address), s.abi, caller)
		if err != nil {
			return nil, err
		}
		contracts[s.token] = c
	}
	return contracts, nil
}
