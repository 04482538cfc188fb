package migrations

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestSplitStatements(t *testing.T) {
	input := `-- price bars
CREATE TABLE a (x UInt64) ENGINE = MergeTree ORDER BY x;

-- second
CREATE TABLE b (y String)
ENGINE = MergeTree ORDER BY y;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") {
		t.Errorf("stmts[0] = %q", stmts[0])
	}
	if strings.Contains(stmts[1], "--") {
		t.Errorf("comment leaked into %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"plain", "SELECT 1; SELECT 2;", false},
		{"quoted", "SELECT 'a;b';", true},
		{"escaped quote", "SELECT 'it''s';", false},
		{"escaped quote then semicolon", "SELECT 'it''s;';", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNoSemicolonInStrings(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateNoSemicolonInStrings(%q) error = %v, wantErr %v", tt.sql, err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/backtest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db != "backtest" {
		t.Errorf("db = %q, want backtest", db)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for DSN without database")
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_b.sql":  {Data: []byte("SELECT 2;")},
		"pg/001_a.sql":  {Data: []byte("SELECT 1;")},
		"pg/003_c.sql":  {Data: []byte("  \n")},
		"pg/README.txt": {Data: []byte("ignored")},
	}
	files, err := readMigrations(fsys, "pg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0].Name != "001_a.sql" || files[1].Name != "002_b.sql" {
		t.Errorf("unexpected files: %+v", files)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := readMigrations(PostgresFS, "postgres")
	if err != nil || len(pg) == 0 {
		t.Fatalf("postgres migrations: %v (%d files)", err, len(pg))
	}
	if !strings.Contains(pg[0].SQL, "backtest_jobs") {
		t.Error("postgres schema missing backtest_jobs")
	}

	ch, err := readMigrations(ClickhouseFS, "clickhouse")
	if err != nil || len(ch) == 0 {
		t.Fatalf("clickhouse migrations: %v (%d files)", err, len(ch))
	}
	for _, f := range ch {
		if err := validateNoSemicolonInStrings(f.SQL); err != nil {
			t.Errorf("%s: %v", f.Name, err)
		}
	}
}
