package db

import "testing"

func TestRebind(t *testing.T) {
	q := "SELECT id FROM actions WHERE partner=? AND date>=? AND date<?"
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite should not rewrite: %s", got)
	}
	want := "SELECT id FROM actions WHERE partner=$1 AND date>=$2 AND date<$3"
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"": SQLite, "sqlite3": SQLite, "PostgreSQL": Postgres} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatalf("expected error for mysql")
	}
}

func TestOpenSQLiteInWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, dialect, err := Open(Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if dialect != SQLite {
		t.Fatalf("expected sqlite, got %s", dialect)
	}
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Fatalf("expected dsn error for postgres")
	}
}
