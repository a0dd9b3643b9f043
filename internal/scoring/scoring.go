package scoring

import "math"

// Result is the outcome of one guess.
type Result struct {
	Diff     int
	Score    int
	Grade    string
	Message  string
	ColorTag string
}

type tier struct {
	maxDiff  int
	score    int
	grade    string
	message  string
	colorTag string
}

// 오름차순으로 평가, 처음 맞는 구간이 이긴다.
var tiers = []tier{
	{10, 100, "S+", "Perfect! You're a chess rating expert!", "text-emerald-600"},
	{25, 95, "S", "Excellent! Incredible rating intuition!", "text-emerald-500"},
	{50, 90, "A+", "Great! You have a keen eye for skill levels!", "text-green-500"},
	{75, 80, "A", "Very good! Strong rating assessment skills!", "text-green-400"},
	{100, 70, "B+", "Good! You understand chess skill levels well!", "text-blue-500"},
	{150, 60, "B", "Fair! You're getting the hang of rating assessment!", "text-blue-400"},
	{200, 50, "C+", "Average! Keep practicing to improve your rating sense!", "text-yellow-500"},
	{250, 40, "C", "Below average! Study more games to improve!", "text-yellow-400"},
	{300, 30, "D", "Poor! You need more practice with rating assessment!", "text-orange-500"},
	{400, 20, "F", "Very poor! Consider studying chess fundamentals!", "text-red-500"},
}

var fallback = tier{math.MaxInt, 10, "F-", "Terrible! You might need to learn chess basics first!", "text-red-600"}

const (
	MaxScore         = 100
	DefaultGoodScore = 70
)

func Score(guess, actual int) Result {
	diff := abs(guess - actual)
	t := fallback
	for _, candidate := range tiers {
		if diff <= candidate.maxDiff {
			t = candidate
			break
		}
	}
	return Result{
		Diff:     diff,
		Score:    t.score,
		Grade:    t.grade,
		Message:  t.message,
		ColorTag: t.colorTag,
	}
}

func StreakBonus(streak int) int {
	switch {
	case streak <= 1:
		return 0
	case streak <= 3:
		return 5
	case streak <= 5:
		return 10
	case streak <= 10:
		return 15
	default:
		return 20
	}
}

func TotalScore(base, streak, timeBonus int) int {
	total := base + StreakBonus(streak) + timeBonus
	if total > MaxScore {
		return MaxScore
	}
	return total
}

// Accuracy is round(100 - diff/max(guess,actual,1)*100), floored at 0.
func Accuracy(guess, actual int) int {
	denom := max(guess, actual, 1)
	v := math.Round(100 - float64(abs(guess-actual))/float64(denom)*100)
	if v < 0 {
		return 0
	}
	return int(v)
}

func MotivationalMessage(score int) string {
	switch {
	case score >= 95:
		return "You're a rating genius! 🧠"
	case score >= 85:
		return "Amazing intuition! 🌟"
	case score >= 75:
		return "Great job! Keep it up! 👍"
	case score >= 65:
		return "Good effort! You're improving! 📈"
	case score >= 55:
		return "Not bad! Practice makes perfect! 💪"
	case score >= 45:
		return "Keep practicing! You'll get better! 🎯"
	case score >= 35:
		return "Don't give up! Learning takes time! 📚"
	case score >= 25:
		return "Study more games to improve! 🔍"
	case score >= 15:
		return "Consider learning chess basics! ♟️"
	default:
		return "Maybe start with chess fundamentals! 🎓"
	}
}

// GradeRank orders grades from best (0) to worst. Unknown grades rank last.
func GradeRank(grade string) int {
	for i, t := range tiers {
		if t.grade == grade {
			return i
		}
	}
	if grade == fallback.grade {
		return len(tiers)
	}
	return len(tiers) + 1
}

// BetterGrade returns whichever of a and b ranks higher.
func BetterGrade(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if GradeRank(b) < GradeRank(a) {
		return b
	}
	return a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
