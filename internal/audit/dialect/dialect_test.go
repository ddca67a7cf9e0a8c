package dialect

import "testing"

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driver   string
		wantName string
		wantErr  bool
	}{
		{"sqlite", "sqlite", false},
		{"sqlite3", "sqlite", false},
		{"postgres", "postgres", false},
		{"pgx", "postgres", false},
		{"PGX", "postgres", false},
		{"mysql", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := FromDriverName(tt.driver)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FromDriverName(%q) expected error", tt.driver)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromDriverName(%q) error = %v", tt.driver, err)
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.wantName)
			}
		})
	}
}

func TestPostgresRebind(t *testing.T) {
	d, _ := FromDriverName("postgres")

	got := d.Rebind("INSERT INTO chat_logs (a, b, c) VALUES (?, ?, ?)")
	want := "INSERT INTO chat_logs (a, b, c) VALUES ($1, $2, $3)"
	if got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}

	if got := d.Rebind("SELECT 1"); got != "SELECT 1" {
		t.Errorf("Rebind() altered placeholder-free query: %q", got)
	}
}

func TestSQLiteRebindIsIdentity(t *testing.T) {
	d, _ := FromDriverName("sqlite")
	q := "SELECT * FROM chat_logs WHERE session_id = ? LIMIT ?"
	if got := d.Rebind(q); got != q {
		t.Errorf("Rebind() = %q, want unchanged", got)
	}
}

func TestUpsertClause(t *testing.T) {
	sqlite, _ := FromDriverName("sqlite")
	pg, _ := FromDriverName("postgres")

	gotSQLite := sqlite.UpsertClause("session_id",
		"last_activity = excluded.last_activity",
		"total_messages = chat_sessions.total_messages + 1",
	)
	wantSQLite := "ON CONFLICT(session_id) DO UPDATE SET last_activity = excluded.last_activity, total_messages = chat_sessions.total_messages + 1"
	if gotSQLite != wantSQLite {
		t.Errorf("sqlite UpsertClause() = %q, want %q", gotSQLite, wantSQLite)
	}

	gotPG := pg.UpsertClause("session_id")
	if gotPG != "ON CONFLICT (session_id) DO NOTHING" {
		t.Errorf("postgres UpsertClause() with no sets = %q", gotPG)
	}
}

func TestDateOf(t *testing.T) {
	sqlite, _ := FromDriverName("sqlite")
	pg, _ := FromDriverName("postgres")

	if got := sqlite.DateOf("created_at"); got != "date(created_at)" {
		t.Errorf("sqlite DateOf() = %q", got)
	}
	if got := pg.DateOf("created_at"); got != "created_at::date" {
		t.Errorf("postgres DateOf() = %q", got)
	}
}
