package database

// ReportRun records one batch build.
type ReportRun struct {
	ID             int64
	Source         string
	PeriodStart    *string
	PeriodEnd      *string
	DriverCount    int
	DetailFailures int
	DurationMS     int64
	CreatedAt      *string
}

// Stats holds aggregate database statistics.
type Stats struct {
	LiveDatasets    int
	ExpiredDatasets int
	Runs            int
	ReportsBuilt    int
}
