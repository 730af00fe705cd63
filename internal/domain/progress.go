package domain

// Stage distinguishes the two phases a progress report can come from.
type Stage string

const (
	// StageFetching covers listing calls and page-by-page assembly.
	StageFetching Stage = "fetching"
	// StageArchiving covers container entry writes during finalization.
	StageArchiving Stage = "archiving"
)

// Progress is a two-level progress report: publication counts for the whole
// operation plus page counts within the publication currently assembling.
// During StageArchiving, Title carries the container entry name and
// PagePercent the percent written within that entry.
type Progress struct {
	Item           int
	TotalItems     int
	OverallPercent int
	Title          string
	Page           int
	PageCount      int
	PagePercent    int
	Stage          Stage
}

// ProgressFunc receives progress reports. Implementations must be fast; they
// are invoked inline between suspension points.
type ProgressFunc func(Progress)
