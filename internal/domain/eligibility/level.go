package eligibility

import "fmt"

// LevelOutcome classifies a level comparison.
type LevelOutcome string

// Level outcomes. LevelInvalid is a data problem, LevelInsufficient is a
// legitimate shortfall.
const (
	LevelSufficient   LevelOutcome = "sufficient"
	LevelInsufficient LevelOutcome = "insufficient"
	LevelInvalid      LevelOutcome = "invalid"
)

// LevelCheck is the result of comparing a held level against a required one.
type LevelCheck struct {
	IsValid bool         `json:"is_valid"`
	Outcome LevelOutcome `json:"outcome"`
	Reason  string       `json:"reason"`
	Gap     int          `json:"gap,omitempty"`
}

// ValidateLevel reports whether userLevel meets requiredLevel for subject.
// Levels outside 1-7 yield LevelInvalid with no gap.
func ValidateLevel(userLevel, requiredLevel int, subject string) LevelCheck {
	switch {
	case !inRange(userLevel):
		return LevelCheck{
			Outcome: LevelInvalid,
			Reason:  fmt.Sprintf("%s: level %d is outside the %d-%d scale", subject, userLevel, MinLevel, MaxLevel),
		}
	case !inRange(requiredLevel):
		return LevelCheck{
			Outcome: LevelInvalid,
			Reason:  fmt.Sprintf("%s: required level %d is outside the %d-%d scale", subject, requiredLevel, MinLevel, MaxLevel),
		}
	case userLevel >= requiredLevel:
		return LevelCheck{
			IsValid: true,
			Outcome: LevelSufficient,
			Reason:  fmt.Sprintf("%s level %d meets required level %d", subject, userLevel, requiredLevel),
		}
	default:
		gap := requiredLevel - userLevel
		return LevelCheck{
			Outcome: LevelInsufficient,
			Reason:  fmt.Sprintf("%s level %d is below required level %d (gap %d)", subject, userLevel, requiredLevel, gap),
			Gap:     gap,
		}
	}
}

func inRange(level int) bool { return level >= MinLevel && level <= MaxLevel }
