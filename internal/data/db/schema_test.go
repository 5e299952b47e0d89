package db

import "testing"

func TestSplitStatements(t *testing.T) {
	raw := `-- jobs table
CREATE TABLE jobs (
    token TEXT PRIMARY KEY,
    status TEXT NOT NULL
);

CREATE INDEX idx_jobs_status ON jobs (status);

-- trailing comment only
`
	stmts := splitStatements(raw)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0][:12] != "CREATE TABLE" {
		t.Errorf("first statement mangled: %q", stmts[0])
	}
	if stmts[1] != "CREATE INDEX idx_jobs_status ON jobs (status)" {
		t.Errorf("second statement mangled: %q", stmts[1])
	}
}

func TestSplitStatementsDropsCommentLines(t *testing.T) {
	raw := "-- header\nCREATE TABLE a (id TEXT);\n  -- inline note\nCREATE TABLE b (id TEXT);"
	stmts := splitStatements(raw)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	for _, s := range stmts {
		if len(s) == 0 || s[0] == '-' {
			t.Errorf("comment leaked into statement: %q", s)
		}
	}
}

func TestSplitStatementsEmptyInput(t *testing.T) {
	if stmts := splitStatements("  \n-- only a comment\n"); len(stmts) != 0 {
		t.Fatalf("expected no statements, got %q", stmts)
	}
}
