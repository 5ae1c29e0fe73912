package riddlen

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ShortAddress renders an address as 0x1234...abcd
func ShortAddress(addr common.Address) string {
	hex := strings.ToLower(addr.Hex())
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// ParseScore reads a thousands-separated whole number back into an integer.
// Unparseable input scores zero.
func ParseScore(formatted string) *big.Int {
	n, ok := new(big.Int).SetString(strings.ReplaceAll(formatted, ",", ""), 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// remaining returns max(0, cap-used)
func remaining(capacity int, used *big.Int) int {
	if used == nil || !used.IsInt64() || used.Int64() >= int64(capacity) {
		return 0
	}
	if used.Sign() < 0 {
		return capacity
	}
	return capacity - int(used.Int64())
}

// toInt clamps a counter to int for display
func toInt(n *big.Int) int {
	if n == nil || n.Sign() < 0 {
		return 0
	}
	if !n.IsInt64() {
		return int(^uint(0) >> 1)
	}
	return int(n.Int64())
}
