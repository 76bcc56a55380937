package sqlite_test

import (
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/sqlite"
	"github.com/myrjola/runplan/internal/testhelpers"
)

func TestDatabase_ExportUser(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})

	setup := []string{
		"INSERT INTO users (id, display_name) VALUES (1, 'Аня'), (2, 'Борис')",
		"INSERT INTO weeks (id, user_id, week_number, start_date, total_volume_km) VALUES " +
			"(1, 1, 1, '2025-03-03', 10), (2, 1, 2, '2025-03-10', 12), (3, 2, 1, '2025-03-03', 30)",
		"INSERT INTO days (id, user_id, week_id, day_of_week, type, date) VALUES " +
			"(1, 1, 1, 1, 'easy', '2025-03-03'), (2, 1, 2, 2, 'other', '2025-03-11'), " +
			"(3, 2, 3, 1, 'long', '2025-03-03')",
		"INSERT INTO exercises (user_id, day_id, exercise_library_id, category, name) VALUES " +
			"(1, 1, NULL, 'run', 'Лёгкий бег'), " +
			"(1, 2, (SELECT id FROM exercise_library WHERE name = 'Планка'), 'ofp', 'Планка'), " +
			"(2, 3, NULL, 'run', 'Длительный бег')",
	}
	for _, query := range setup {
		if _, err = db.ReadWrite.ExecContext(ctx, query); err != nil {
			t.Fatalf("setup %q: %v", query, err)
		}
	}

	dir := t.TempDir()
	path, err := db.ExportUser(ctx, 1, dir)
	if err != nil {
		t.Fatalf("ExportUser: %v", err)
	}

	exported, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	t.Cleanup(func() { _ = exported.Close() })

	got := map[string]int{}
	for _, table := range []string{"users", "exercise_library", "weeks", "days", "exercises"} {
		var count int
		if err = exported.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		got[table] = count
	}
	want := map[string]int{"users": 1, "exercise_library": 1, "weeks": 2, "days": 2, "exercises": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("row counts mismatch (-want +got):\n%s", diff)
	}

	var foreign int
	if err = exported.QueryRowContext(ctx, "SELECT COUNT(*) FROM weeks WHERE user_id <> 1").Scan(&foreign); err != nil {
		t.Fatalf("count foreign weeks: %v", err)
	}
	if foreign != 0 {
		t.Errorf("export contains %d weeks of other users", foreign)
	}

	if _, err = db.ExportUser(ctx, 1, dir); !errors.Is(err, sqlite.ErrExportExists) {
		t.Errorf("second export error = %v, want %v", err, sqlite.ErrExportExists)
	}
}
