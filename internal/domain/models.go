package domain

import "time"

// DefaultCategory is the bucket for questions without a category label.
const DefaultCategory = "General"

// Unanswered marks a question the user has not picked an option for.
// It never equals a valid option index.
const Unanswered = -1

// Question is a multiple-choice question as the bank stores it.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Active       bool     `json:"active"`
	Category     string   `json:"category,omitempty"`
}

// WellFormed reports whether the question can be played at all:
// at least two options and a correct index inside them.
func (q Question) WellFormed() bool {
	return len(q.Options) >= 2 && q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}

// CategoryOrDefault coerces a missing category to DefaultCategory.
func (q Question) CategoryOrDefault() string {
	if q.Category == "" {
		return DefaultCategory
	}
	return q.Category
}

// AttemptDetail is one per-question entry in an attempt, in round order.
type AttemptDetail struct {
	QuestionID   string `json:"questionId"`
	ChosenIndex  int    `json:"chosenIndex"`
	CorrectIndex int    `json:"correctIndex"`
	IsCorrect    bool   `json:"isCorrect"`
	Category     string `json:"category,omitempty"`
}

// Attempt is the immutable outcome of one completed round.
// Historical rows may lack UserID; UserLabel is the stable join key.
type Attempt struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId,omitempty"`
	UserLabel string          `json:"userLabel"`
	Score     int             `json:"score"`
	Total     int             `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	Details   []AttemptDetail `json:"details"`
}

// UserSummary is the per-user rollup over the attempt history.
type UserSummary struct {
	UserLabel      string `json:"userLabel"`
	AttemptCount   int    `json:"attemptCount"`
	AveragePercent int    `json:"averagePercent"`
	BestPercent    int    `json:"bestPercent"`
	Level          string `json:"level"`
}

// LeaderboardEntry is a ranked per-user summary.
type LeaderboardEntry struct {
	UserLabel      string    `json:"userLabel"`
	AttemptCount   int       `json:"attemptCount"`
	AveragePercent int       `json:"averagePercent"`
	BestPercent    int       `json:"bestPercent"`
	Level          string    `json:"level"`
	LastAttemptAt  time.Time `json:"lastAttemptAt"`
}

// Leaderboard bundles the two independently ordered boards: Ranked is
// averagePercent-first, BestRuns is bestPercent-first. BestRuns is built
// from the grouped summaries directly, not re-sorted from Ranked.
type Leaderboard struct {
	Ranked    []LeaderboardEntry `json:"ranked"`
	BestRuns  []LeaderboardEntry `json:"bestRuns"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// QuestionDifficulty is the per-question accuracy rollup.
type QuestionDifficulty struct {
	QuestionID      string `json:"questionId"`
	Text            string `json:"text"`
	Category        string `json:"category,omitempty"`
	TimesSeen       int    `json:"timesSeen"`
	TimesCorrect    int    `json:"timesCorrect"`
	AccuracyPercent int    `json:"accuracyPercent"`
}

// CategoryAccuracy is the per-category rollup.
type CategoryAccuracy struct {
	Category               string `json:"category"`
	QuestionCount          int    `json:"questionCount"`
	AverageAccuracyPercent int    `json:"averageAccuracyPercent"`
}

// Level bands for an average percent, evaluated top-down.
const (
	LevelGold     = "gold"
	LevelSilver   = "silver"
	LevelBronze   = "bronze"
	LevelIron     = "iron"
	LevelTraining = "training"
)

// LevelFor maps an average percent to its qualitative band.
func LevelFor(averagePercent int) string {
	switch {
	case averagePercent >= 95:
		return LevelGold
	case averagePercent >= 80:
		return LevelSilver
	case averagePercent >= 60:
		return LevelBronze
	case averagePercent >= 50:
		return LevelIron
	default:
		return LevelTraining
	}
}
