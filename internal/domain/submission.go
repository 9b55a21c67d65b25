package domain

import "time"

// ExerciseCategory tags an exercise (or a whole manual activity) with the
// broad training category it belongs to. Categories drive class bonuses and
// the category-specific achievement tallies.
type ExerciseCategory string

const (
	CategoryStrength    ExerciseCategory = "strength"
	CategoryCardio      ExerciseCategory = "cardio"
	CategoryBodyweight  ExerciseCategory = "bodyweight"
	CategoryFlexibility ExerciseCategory = "flexibility"
)

// Difficulty of a submitted workout, declared by the user.
// Mirrors the exercise library's difficulty labels.
type Difficulty string

const (
	DifficultyNovice   Difficulty = "novice"
	DifficultyMedium   Difficulty = "medium"
	DifficultyAdvanced Difficulty = "advanced"
)

// SetEntry is a single performed set within an exercise.
// Only sets with Completed=true contribute to the reward.
type SetEntry struct {
	Weight    float64 `bson:"weight" json:"weight"`
	Reps      int     `bson:"reps" json:"reps"`
	Completed bool    `bson:"completed" json:"completed"`
}

// ExerciseEntry is one exercise performed during a workout.
type ExerciseEntry struct {
	ExerciseID    string           `json:"exerciseId"`
	Category      ExerciseCategory `json:"category,omitempty"`
	CompletedSets []SetEntry       `json:"completedSets"`
}

// CompletedSetCount returns how many sets in this entry were actually
// completed.
func (e *ExerciseEntry) CompletedSetCount() int {
	n := 0
	for _, s := range e.CompletedSets {
		if s.Completed {
			n++
		}
	}
	return n
}

// WorkoutSubmission is the raw payload the reward pipeline consumes.
// It is constructed per request and never persisted as-is.
type WorkoutSubmission struct {
	Exercises         []ExerciseEntry  `json:"exercises"`
	DurationSeconds   int              `json:"durationSeconds"`
	HasPersonalRecord bool             `json:"hasPersonalRecord"`
	ActivityType      ExerciseCategory `json:"activityType,omitempty"` // set for manual activities without exercise entries
	Difficulty        Difficulty       `json:"difficulty,omitempty"`
	Timezone          string           `json:"timezone,omitempty"` // IANA name; only honored on a user's first submission
	SubmittedAt       time.Time        `json:"submittedAt"`
}

// IsManualActivity reports whether this submission is an explicit manual
// activity (no exercise entries, but a declared activity type).
func (w *WorkoutSubmission) IsManualActivity() bool {
	return len(w.Exercises) == 0 && w.ActivityType != ""
}

// DominantCategory returns the category with the most completed sets, or the
// declared activity type for manual activities. Empty when nothing
// categorized was completed.
func (w *WorkoutSubmission) DominantCategory() ExerciseCategory {
	if w.ActivityType != "" {
		return w.ActivityType
	}
	counts := make(map[ExerciseCategory]int)
	for i := range w.Exercises {
		e := &w.Exercises[i]
		if e.Category == "" {
			continue
		}
		counts[e.Category] += e.CompletedSetCount()
	}
	var best ExerciseCategory
	bestCount := 0
	for _, e := range w.Exercises {
		// Iterate in submission order so ties resolve deterministically.
		c := e.Category
		if c == "" {
			continue
		}
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}
