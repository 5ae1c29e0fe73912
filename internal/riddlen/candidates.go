package riddlen

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RiddlenBaba/Riddlen-sub000/internal/platform/config"
)

// CandidateSource supplies the addresses considered for the leaderboard.
// The static list is a stand-in until holders are indexed from events.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]common.Address, error)
}

// StaticCandidates is a fixed candidate list
type StaticCandidates []common.Address

// Candidates returns a copy of the list
func (s StaticCandidates) Candidates(context.Context) ([]common.Address, error) {
	out := make([]common.Address, len(s))
	copy(out, s)
	return out, nil
}

// ParseCandidates validates and de-duplicates configured addresses
func ParseCandidates(raw []string) (StaticCandidates, error) {
	seen := make(map[common.Address]struct{}, len(raw))
	out := make(StaticCandidates, 0, len(raw))
	for _, s := range raw {
		if !config.IsAddress(s) {
			return nil, fmt.Errorf("invalid leaderboard candidate: %q", s)
		}
		addr := common.HexToAddress(s)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}
