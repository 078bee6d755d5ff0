package scheduler

// Category buckets a review interval for progress displays.
type Category string

const (
	CategoryLearning Category = "learning"
	CategoryYoung    Category = "young"
	CategoryMature   Category = "mature"
	CategoryMastered Category = "mastered"
)

// Categories returns every category from the shortest interval to the longest.
func Categories() []Category {
	return []Category{CategoryLearning, CategoryYoung, CategoryMature, CategoryMastered}
}

// CategoryOf classifies an interval in days.
func CategoryOf(intervalDays int) Category {
	switch {
	case intervalDays < 1:
		return CategoryLearning
	case intervalDays < 7:
		return CategoryYoung
	case intervalDays < 30:
		return CategoryMature
	default:
		return CategoryMastered
	}
}
