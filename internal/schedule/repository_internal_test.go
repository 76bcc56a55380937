package schedule

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/runplan/internal/ptr"
	"github.com/myrjola/runplan/internal/sqlite"
	"github.com/myrjola/runplan/internal/testhelpers"
)

func newTestRepository(t *testing.T) (*sqliteRepository, *sqlite.Database) {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(t.Context(), ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	return newSQLiteRepository(db, logger), db
}

func Test_sqliteRepository_unknownTypeStoredAsRest(t *testing.T) {
	repo, _ := newTestRepository(t)
	weeks := []Week{{
		WeekNumber: 1,
		StartDate:  "2025-03-03",
		Days: []Day{{
			Date:        "2025-03-03",
			DayOfWeek:   1,
			Type:        DayType("yoga"),
			Description: "Йога 30 минут",
			Exercises:   []Exercise{{Category: CategoryOFP, Name: "Поза собаки"}},
		}},
	}}
	if err := repo.replaceAll(t.Context(), 1, weeks); err != nil {
		t.Fatalf("replaceAll: %v", err)
	}

	got, err := repo.list(t.Context(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	day := got[0].Days[0]
	if day.Type != DayTypeRest || day.Description != "" || len(day.Exercises) != 0 {
		t.Errorf("stored day = %+v, want an empty rest day", day)
	}
}

func Test_sqliteRepository_libraryLinkage(t *testing.T) {
	repo, db := newTestRepository(t)
	var lungesID int64
	if err := db.ReadOnly.QueryRowContext(t.Context(),
		`SELECT id FROM exercise_library WHERE name = 'Выпады'`).Scan(&lungesID); err != nil {
		t.Fatalf("query library: %v", err)
	}

	exercises := []Exercise{
		{Category: CategoryOFP, Name: "приседания"},
		{Category: CategoryOFP, Name: "Многоскоки", OrderIndex: 1},
		{Category: CategoryOFP, Name: "Своё упражнение", LibraryID: ptr.Ref(int64(9999)), OrderIndex: 2},
		{Category: CategoryOFP, Name: "Выпады назад", LibraryID: ptr.Ref(lungesID), OrderIndex: 3},
	}
	weeks := []Week{{
		WeekNumber: 1,
		StartDate:  "2025-03-03",
		Days: []Day{{
			Date: "2025-03-03", DayOfWeek: 1, Type: DayTypeOther, Description: "ОФП", Exercises: exercises,
		}},
	}}
	if err := repo.replaceAll(t.Context(), 1, weeks); err != nil {
		t.Fatalf("replaceAll: %v", err)
	}

	got, err := repo.list(t.Context(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	linked := map[string]bool{}
	for _, e := range got[0].Days[0].Exercises {
		linked[e.Name] = e.LibraryID != nil
	}
	want := map[string]bool{
		"приседания":      true,
		"Многоскоки":      false,
		"Своё упражнение": false,
		"Выпады назад":    true,
	}
	if diff := cmp.Diff(want, linked); diff != "" {
		t.Errorf("library linkage mismatch (-want +got):\n%s", diff)
	}
	if id := got[0].Days[0].Exercises[3].LibraryID; id == nil || *id != lungesID {
		t.Errorf("explicit library id = %v, want %d", ptr.Deref(id, 0), lungesID)
	}
}

func Test_sqliteRepository_lastWeekNumberBefore(t *testing.T) {
	repo, _ := newTestRepository(t)
	weeks := []Week{
		{WeekNumber: 1, StartDate: "2025-03-03", Days: []Day{}},
		{WeekNumber: 2, StartDate: "2025-03-10", Days: []Day{}},
		{WeekNumber: 3, StartDate: "2025-03-17", Days: []Day{}},
	}
	if err := repo.replaceAll(t.Context(), 1, weeks); err != nil {
		t.Fatalf("replaceAll: %v", err)
	}

	tests := []struct {
		cutoff string
		want   int
	}{
		{cutoff: "2025-03-03", want: 0},
		{cutoff: "2025-03-10", want: 1},
		{cutoff: "2025-03-17", want: 2},
		{cutoff: "2026-01-05", want: 3},
	}
	for _, tt := range tests {
		got, err := repo.lastWeekNumberBefore(t.Context(), 1, tt.cutoff)
		if err != nil {
			t.Fatalf("lastWeekNumberBefore(%s): %v", tt.cutoff, err)
		}
		if got != tt.want {
			t.Errorf("lastWeekNumberBefore(%s) = %d, want %d", tt.cutoff, got, tt.want)
		}
	}
	if got, err := repo.lastWeekNumberBefore(t.Context(), 2, "2026-01-05"); err != nil || got != 0 {
		t.Errorf("other user: got %d, %v; want 0", got, err)
	}
}
