package database

import (
	"database/sql"
)

// InsertRun records a batch build.
func (db *DB) InsertRun(run ReportRun) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO report_runs
		(source, period_start, period_end, driver_count, detail_failures, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Source, run.PeriodStart, run.PeriodEnd, run.DriverCount, run.DetailFailures, run.DurationMS,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRecentRuns returns the latest runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]ReportRun, error) {
	rows, err := db.conn.Query(
		`SELECT id, source, period_start, period_end, driver_count, detail_failures, duration_ms, created_at
		FROM report_runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		var r ReportRun
		if err := rows.Scan(&r.ID, &r.Source, &r.PeriodStart, &r.PeriodEnd,
			&r.DriverCount, &r.DetailFailures, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetLastRun returns the most recent run, or nil when none exists.
func (db *DB) GetLastRun() (*ReportRun, error) {
	row := db.conn.QueryRow(
		`SELECT id, source, period_start, period_end, driver_count, detail_failures, duration_ms, created_at
		FROM report_runs ORDER BY id DESC LIMIT 1`,
	)

	var r ReportRun
	if err := row.Scan(&r.ID, &r.Source, &r.PeriodStart, &r.PeriodEnd,
		&r.DriverCount, &r.DetailFailures, &r.DurationMS, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}
