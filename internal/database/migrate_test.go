package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func rawConn(t *testing.T, path string) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	return conn
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	version, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatal(err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
	for _, table := range []string{"datasets", "report_runs"} {
		ok, err := hasTable(db.conn, table)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestMigrateUnversionedDatasetsKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw := rawConn(t, path)
	_, err := raw.Exec(`CREATE TABLE datasets (
		token TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		payload BLOB NOT NULL,
		driver_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	_, err = raw.Exec(`INSERT INTO datasets VALUES ('tok', 'fp', '[]', 0, 1, 9999999999999)`)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	raw.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	version, _ := schemaVersion(db.conn)
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM datasets").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected legacy row to survive, got %d rows", n)
	}
	if ok, _ := hasTable(db.conn, "report_runs"); !ok {
		t.Error("expected report_runs to be added on top of the legacy schema")
	}
}

func TestMigrateReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := first.InsertRun(ReportRun{Source: "a.json", DriverCount: 2}); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer second.Close()

	runs, err := second.GetRecentRuns(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("expected run history to survive reopen, got %d", len(runs))
	}
}

func TestPending(t *testing.T) {
	if got := len(pending(0)); got != len(migrations) {
		t.Errorf("expected all %d migrations pending, got %d", len(migrations), got)
	}
	p := pending(1)
	if len(p) != len(migrations)-1 || p[0].Version != 2 {
		t.Errorf("expected migrations after 1, got %+v", p)
	}
	if len(pending(latestVersion())) != 0 {
		t.Error("expected nothing pending at latest version")
	}
}

func TestFreshDatabaseIsUnversioned(t *testing.T) {
	conn := rawConn(t, filepath.Join(t.TempDir(), "fresh.db"))
	defer conn.Close()

	version, err := schemaVersion(conn)
	if err != nil {
		t.Fatal(err)
	}
	if version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}
	if ok, _ := hasTable(conn, legacyTable); ok {
		t.Error("expected no datasets table")
	}
}
