package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw     string
		dialect string
		dsn     string
	}{
		{"sqlite://chat_history.db", DialectSQLite, "chat_history.db"},
		{"sqlite:///var/lib/relay/chat.db", DialectSQLite, "/var/lib/relay/chat.db"},
		{"sqlite://./data/chat.db", DialectSQLite, "./data/chat.db"},
		{"mysql://root:pw@tcp(127.0.0.1:3306)/relay?parseTime=true", DialectMySQL, "root:pw@tcp(127.0.0.1:3306)/relay?parseTime=true"},
		{"postgres://u:p@localhost:5432/relay", DialectPostgres, "postgres://u:p@localhost:5432/relay"},
		{" postgresql://u:p@localhost/relay ", DialectPostgres, "postgresql://u:p@localhost/relay"},
	}
	for _, tt := range tests {
		target, err := ParseURL(tt.raw)
		if err != nil {
			t.Errorf("ParseURL(%q) error = %v", tt.raw, err)
			continue
		}
		if target.Dialect != tt.dialect {
			t.Errorf("ParseURL(%q) dialect = %q, want %q", tt.raw, target.Dialect, tt.dialect)
		}
		if target.DSN != tt.dsn {
			t.Errorf("ParseURL(%q) dsn = %q, want %q", tt.raw, target.DSN, tt.dsn)
		}
	}
}

func TestParseURL_Rejects(t *testing.T) {
	for _, raw := range []string{"", "sqlite://", "mysql://", "redis://localhost", "chat.db"} {
		if _, err := ParseURL(raw); err == nil {
			t.Errorf("ParseURL(%q) expected error", raw)
		}
	}
}

func TestNew_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat.db")

	db, err := New(context.Background(), "sqlite://"+path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	if err := db.Exec("CREATE TABLE smoke (id INTEGER)").Error; err != nil {
		t.Fatalf("expected writable database, got %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		"chat.db":                   "chat.db?_journal_mode=WAL&_busy_timeout=5000",
		"file:chat.db?cache=shared": "file:chat.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000",
		"/var/lib/relay/chat.db":    "/var/lib/relay/chat.db?_journal_mode=WAL&_busy_timeout=5000",
	}
	for in, want := range tests {
		if got := SQLiteDSN(in); got != want {
			t.Errorf("SQLiteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew_SQLiteURLWithQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	db, err := New(context.Background(), "sqlite://file:"+path+"?cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("expected wal journal mode, got %q", mode)
	}
}

func TestMySQLDSN_ForcesParseTime(t *testing.T) {
	for _, in := range []string{
		"root:pw@tcp(127.0.0.1:3306)/relay",
		"root:pw@tcp(127.0.0.1:3306)/relay?charset=utf8mb4",
		"root:pw@tcp(127.0.0.1:3306)/relay?parseTime=false",
	} {
		got, err := MySQLDSN(in)
		if err != nil {
			t.Errorf("MySQLDSN(%q) error = %v", in, err)
			continue
		}
		if !strings.Contains(got, "parseTime=true") {
			t.Errorf("MySQLDSN(%q) = %q, expected parseTime=true", in, got)
		}
	}
	if got, _ := MySQLDSN("root:pw@tcp(127.0.0.1:3306)/relay?charset=utf8mb4"); !strings.Contains(got, "charset=utf8mb4") {
		t.Errorf("expected existing params kept, got %q", got)
	}
	if _, err := MySQLDSN("not a dsn"); err == nil {
		t.Error("expected error for malformed dsn")
	}
}
