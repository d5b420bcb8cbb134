package domain

// Summary reports what one pipeline run did.
type Summary struct {
	RunID          string
	UnitsTotal     int
	UnitsSkipped   int
	UnitsCommitted int
	UnitsAbandoned int
	Calls          int
	Resumed        int
	NewRecords     int
	TotalRecords   int
	Dropped        int
	Duplicates     int
	RawPath        string
	NormalizedPath string
}
