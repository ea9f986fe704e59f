package game

import (
	"math"
	"time"
)

const (
	basePoints     = 100
	maxSpeedBonus  = 50
	streakTierSize = 3
	maxStreakTier  = 3
)

type ScoreResult struct {
	BasePoints int
	SpeedBonus int
	Multiplier int
	NewStreak  int
	Points     int
}

// Score computes the points for one answer. The speed bonus is clamped to
// [0, maxSpeedBonus] so answers landing in the grace period after the time
// limit still earn the base points.
func Score(isCorrect bool, timeTaken, timeLimit time.Duration, streak int) ScoreResult {
	if !isCorrect {
		return ScoreResult{}
	}

	if timeTaken < 0 {
		timeTaken = 0
	}

	bonus := 0
	if timeLimit > 0 {
		bonus = int(math.Floor((1 - float64(timeTaken)/float64(timeLimit)) * maxSpeedBonus))
	}
	bonus = max(0, min(bonus, maxSpeedBonus))

	newStreak := streak + 1
	multiplier := min(newStreak/streakTierSize, maxStreakTier)

	return ScoreResult{
		BasePoints: basePoints,
		SpeedBonus: bonus,
		Multiplier: multiplier,
		NewStreak:  newStreak,
		// (1 + m*0.5) == (2 + m) / 2, kept in integers
		Points: (basePoints + bonus) * (2 + multiplier) / 2,
	}
}
