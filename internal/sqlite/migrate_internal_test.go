package sqlite

import (
	"log/slog"
	"testing"

	"github.com/myrjola/runplan/internal/testhelpers"
)

func TestDatabase_migrateTo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		schemas     []string
		queries     []string
		wantErr     bool
		wantColumns []string
	}{
		{
			name:    "empty schema",
			schemas: []string{""},
			queries: []string{"SELECT * FROM sqlite_schema"},
		},
		{
			name:    "create table",
			schemas: []string{"CREATE TABLE weeks (id INTEGER PRIMARY KEY, week_number INTEGER) STRICT"},
			queries: []string{"INSERT INTO weeks (week_number) VALUES (1)"},
		},
		{
			name: "drop table",
			schemas: []string{
				"CREATE TABLE weeks (id INTEGER PRIMARY KEY, week_number INTEGER)",
				"",
			},
			queries: []string{"INSERT INTO weeks (week_number) VALUES (1)"},
			wantErr: true,
		},
		{
			name: "add column",
			schemas: []string{
				"CREATE TABLE days (id INTEGER PRIMARY KEY, type TEXT NOT NULL)",
				"CREATE TABLE days (id INTEGER PRIMARY KEY, type TEXT NOT NULL, description TEXT NOT NULL DEFAULT '')",
			},
			queries:     []string{"SELECT description FROM days WHERE type = 'rest'"},
			wantColumns: []string{"id", "type", "description"},
		},
		{
			name: "remove column",
			schemas: []string{
				"CREATE TABLE days (id INTEGER PRIMARY KEY, distance_km REAL)",
				"CREATE TABLE days (id INTEGER PRIMARY KEY)",
			},
			queries:     []string{"INSERT INTO days (distance_km) VALUES (5)"},
			wantErr:     true,
			wantColumns: []string{"id"},
		},
		{
			name: "tightened check constraint",
			schemas: []string{
				"CREATE TABLE weeks (id INTEGER PRIMARY KEY, week_number INTEGER)",
				"CREATE TABLE weeks (id INTEGER PRIMARY KEY, week_number INTEGER CHECK (week_number >= 1))",
			},
			queries: []string{"INSERT INTO weeks (week_number) VALUES (0)"},
			wantErr: true,
		},
		{
			name: "drop index",
			schemas: []string{
				"CREATE TABLE days (id INTEGER PRIMARY KEY, date TEXT); CREATE INDEX days_date_idx ON days (date)",
				"CREATE TABLE days (id INTEGER PRIMARY KEY, date TEXT)",
			},
			queries: []string{"DROP INDEX days_date_idx"},
			wantErr: true,
		},
		{
			name: "change index",
			schemas: []string{
				"CREATE TABLE days (id INTEGER PRIMARY KEY, date TEXT); CREATE INDEX days_date_idx ON days (date)",
				"CREATE TABLE days (id INTEGER PRIMARY KEY, date TEXT); CREATE INDEX days_date_idx ON days (id, date)",
			},
			queries: []string{"DROP INDEX days_date_idx"},
		},
		{
			name: "create trigger",
			schemas: []string{
				`CREATE TABLE exercises (id INTEGER PRIMARY KEY, name TEXT);
                 CREATE TRIGGER exercises_guard BEFORE INSERT ON exercises BEGIN SELECT RAISE(ABORT, 'no'); END;`,
			},
			queries: []string{"INSERT INTO exercises (name) VALUES ('Планка')"},
			wantErr: true,
		},
		{
			name: "delete trigger",
			schemas: []string{
				`CREATE TABLE exercises (id INTEGER PRIMARY KEY, name TEXT);
                 CREATE TRIGGER exercises_guard BEFORE INSERT ON exercises BEGIN SELECT RAISE(ABORT, 'no'); END;`,
				"CREATE TABLE exercises (id INTEGER PRIMARY KEY, name TEXT)",
			},
			queries: []string{"INSERT INTO exercises (name) VALUES ('Планка')"},
		},
		{
			name:    "production schema applies twice",
			schemas: []string{schemaDefinition, schemaDefinition},
			queries: []string{"INSERT INTO users (id) VALUES (1)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
			db, err := connect(ctx, ":memory:", logger)
			if err != nil {
				t.Fatalf("connect: %v", err)
			}
			t.Cleanup(func() {
				if err = db.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			})

			for _, schema := range tt.schemas {
				logger.LogAttrs(ctx, slog.LevelDebug, "migrating", slog.String("schema", schema))
				if err = db.migrateTo(ctx, schema); err != nil {
					t.Fatalf("migrateTo: %v", err)
				}
			}

			for _, query := range tt.queries {
				_, err = db.ReadWrite.ExecContext(ctx, query)
				if tt.wantErr && err == nil {
					t.Errorf("expected error for query %q", query)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("unexpected error for query %q: %v", query, err)
				}
			}

			if tt.wantColumns == nil {
				return
			}
			rows, err := db.ReadWrite.QueryContext(ctx, "SELECT name FROM PRAGMA_TABLE_INFO('days') ORDER BY cid")
			if err != nil {
				t.Fatalf("table info: %v", err)
			}
			defer rows.Close()
			var got []string
			for rows.Next() {
				var name string
				if err = rows.Scan(&name); err != nil {
					t.Fatalf("scan: %v", err)
				}
				got = append(got, name)
			}
			if len(got) != len(tt.wantColumns) {
				t.Fatalf("columns = %v, want %v", got, tt.wantColumns)
			}
			for i := range got {
				if got[i] != tt.wantColumns[i] {
					t.Errorf("columns = %v, want %v", got, tt.wantColumns)
				}
			}
		})
	}
}
