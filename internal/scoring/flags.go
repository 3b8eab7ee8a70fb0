package scoring

import "sort"

// Flags carry every scoring observation as data. The score reacts to them;
// nothing here raises an error.

// Severity orders flags for display and for penalty weight
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityInfo   Severity = "info"
)

// Flag is one red or green observation about the setup
type Flag struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
}

var severityOrder = map[Severity]int{
	SeverityHigh:   0,
	SeverityMedium: 1,
	SeverityInfo:   2,
}

// SortFlags orders flags high severity first, preserving insertion order
// within a tier.
func SortFlags(flags []Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return severityOrder[flags[i].Severity] < severityOrder[flags[j].Severity]
	})
}
