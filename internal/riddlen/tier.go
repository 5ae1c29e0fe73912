package riddlen

// Tier is a RON reputation tier
type Tier string

const (
	TierNewcomer Tier = "NEWCOMER"
	TierSolver   Tier = "SOLVER"
	TierExpert   Tier = "EXPERT"
	TierOracle   Tier = "ORACLE"
)

var (
	tierNames       = [...]Tier{TierNewcomer, TierSolver, TierExpert, TierOracle}
	tierMultipliers = [...]string{"1.0x", "1.5x", "2.0x", "2.5x"}
)

// TierFor maps an on-chain tier code to its name and reward multiplier.
// Codes outside 0..3 map to NEWCOMER/1.0x.
func TierFor(code int) (Tier, string) {
	if code < 0 || code >= len(tierNames) {
		return tierNames[0], tierMultipliers[0]
	}
	return tierNames[code], tierMultipliers[code]
}

// Difficulty is a riddle's difficulty level
type Difficulty string

const (
	DifficultyEasy      Difficulty = "EASY"
	DifficultyMedium    Difficulty = "MEDIUM"
	DifficultyHard      Difficulty = "HARD"
	DifficultyLegendary Difficulty = "LEGENDARY"
)

var difficulties = [...]Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyLegendary}

// DifficultyFor maps an on-chain difficulty code; unknown codes are MEDIUM
func DifficultyFor(code int) Difficulty {
	if code < 0 || code >= len(difficulties) {
		return DifficultyMedium
	}
	return difficulties[code]
}
