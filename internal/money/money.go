// Package money provides fixed-point arithmetic for USD figures and
// helpers for formatting on-chain token amounts.
// USD values are int64 with a fixed scale so the gas estimator never
// accumulates floating-point error; token amounts stay *big.Int.
package money

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
)

// Scale factors for different precisions
const (
	USDScale      int64 = 1_000_000 // 6 decimals: $1.00 = 1_000_000
	BPSScale      int64 = 10000     // basis points: 100% = 10000
	WeiPerGwei    int64 = 1e9
	EtherDecimals uint8 = 18
)

// USD represents US dollars in millionths. Gas costs on a sidechain are
// routinely fractions of a cent, so cents are not precise enough.
type USD int64

// BPS represents basis points (1 bps = 0.01%).
type BPS int64

// Gwei represents a gas price in whole gwei.
type Gwei int64

// --- USD ---

// NewUSD creates USD from a dollar amount.
func NewUSD(dollars float64) USD {
	return USD(math.Round(dollars * float64(USDScale)))
}

// Float64 converts to float64 for display.
func (a USD) Float64() float64 {
	return float64(a) / float64(USDScale)
}

// Micros returns the raw value.
func (a USD) Micros() int64 {
	return int64(a)
}

// Format renders the amount with the given number of decimals, e.g. "$0.0023".
func (a USD) Format(decimals int) string {
	if a < 0 {
		return fmt.Sprintf("-$%.*f", decimals, (-a).Float64())
	}
	return fmt.Sprintf("$%.*f", decimals, a.Float64())
}

// String returns formatted string like "$123.45".
func (a USD) String() string {
	return a.Format(2)
}

// --- BPS ---

// NewBPS creates BPS from a percentage (e.g., 25 for 25% = 2500 bps).
func NewBPS(percent float64) BPS {
	return BPS(math.Round(percent * 100))
}

// Of returns floor(amount * bps / 10000). The input is not modified.
func (a BPS) Of(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(a)))
	return out.Quo(out, big.NewInt(BPSScale))
}

// --- Gwei ---

// NewGwei creates Gwei from a whole number of gwei.
func NewGwei(gwei int64) Gwei {
	return Gwei(gwei)
}

// GweiFromWei truncates a wei amount to whole gwei.
func GweiFromWei(wei *big.Int) Gwei {
	if wei == nil {
		return 0
	}
	return Gwei(new(big.Int).Quo(wei, big.NewInt(WeiPerGwei)).Int64())
}

// ToWei converts gwei to wei.
func (g Gwei) ToWei() *big.Int {
	return new(big.Int).Mul(big.NewInt(int64(g)), big.NewInt(WeiPerGwei))
}

// Float64 returns gwei as float.
func (g Gwei) Float64() float64 {
	return float64(g)
}

// --- Token amounts ---

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// FormatUnits renders a base-unit amount as a decimal string with trailing
// zeros trimmed: 1000e18 wei -> "1000", 5e16 wei -> "0.05".
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)

	whole, frac := new(big.Int).QuoRem(abs, pow10(decimals), new(big.Int))
	out := whole.String()
	if frac.Sign() != 0 {
		fs := frac.String()
		fs = strings.Repeat("0", int(decimals)-len(fs)) + fs
		out += "." + strings.TrimRight(fs, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FormatEther is FormatUnits with 18 decimals.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

// WholeUnits truncates a base-unit amount to whole tokens.
func WholeUnits(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Quo(amount, pow10(decimals))
}

// FormatWhole renders whole tokens with thousands separators: "1,250,000".
func FormatWhole(amount *big.Int, decimals uint8) string {
	return humanize.BigComma(WholeUnits(amount, decimals))
}

// WeiToUSD converts a native-currency amount to USD at a fixed rate
// (USD per whole native token). The result is floored to the USD scale.
func WeiToUSD(wei *big.Int, rate USD) USD {
	if wei == nil {
		return 0
	}
	out := new(big.Int).Mul(wei, big.NewInt(int64(rate)))
	out.Quo(out, pow10(EtherDecimals))
	if !out.IsInt64() {
		return USD(math.MaxInt64)
	}
	return USD(out.Int64())
}
