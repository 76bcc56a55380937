package schedule

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/sqlite"
)

// sqliteRepository owns the weeks, days and exercises tables.
type sqliteRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newSQLiteRepository(db *sqlite.Database, logger *slog.Logger) *sqliteRepository {
	return &sqliteRepository{
		db:     db,
		logger: logger,
	}
}

// replaceAll deletes the whole schedule of the user and inserts weeks in one transaction.
func (r *sqliteRepository) replaceAll(ctx context.Context, userID int64, weeks []Week) error {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer r.db.Rollback(ctx, tx)()

	if err = ensureUser(ctx, tx, userID); err != nil {
		return err
	}
	statements := []string{
		`DELETE FROM exercises WHERE user_id = ?`,
		`DELETE FROM days WHERE user_id = ?`,
		`DELETE FROM weeks WHERE user_id = ?`,
	}
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt, userID); err != nil {
			return errors.Wrap(err, "delete schedule")
		}
	}
	if err = r.insertWeeks(ctx, tx, userID, weeks); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// replaceFrom deletes the weeks starting on or after cutoff together with their days and exercises and inserts
// weeks in one transaction. Earlier weeks are not touched.
func (r *sqliteRepository) replaceFrom(ctx context.Context, userID int64, cutoff string, weeks []Week) error {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer r.db.Rollback(ctx, tx)()

	if err = ensureUser(ctx, tx, userID); err != nil {
		return err
	}
	const futureWeeks = `SELECT id FROM weeks WHERE user_id = :user_id AND start_date >= :cutoff`
	statements := []string{
		`DELETE FROM exercises WHERE day_id IN (SELECT id FROM days WHERE week_id IN (` + futureWeeks + `))`,
		`DELETE FROM days WHERE week_id IN (` + futureWeeks + `)`,
		`DELETE FROM weeks WHERE id IN (` + futureWeeks + `)`,
	}
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt, sql.Named("user_id", userID), sql.Named("cutoff", cutoff)); err != nil {
			return errors.Wrap(err, "delete future weeks", slog.String("cutoff", cutoff))
		}
	}
	if err = r.insertWeeks(ctx, tx, userID, weeks); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// lastWeekNumberBefore returns the highest week number of the weeks starting before cutoff, or 0 when there are
// none.
func (r *sqliteRepository) lastWeekNumberBefore(ctx context.Context, userID int64, cutoff string) (int, error) {
	var last int
	if err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(week_number), 0)
		FROM weeks
		WHERE user_id = ? AND start_date < ?`, userID, cutoff).Scan(&last); err != nil {
		return 0, errors.Wrap(err, "query last week number")
	}
	return last, nil
}

func ensureUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO users (id) VALUES (?) ON CONFLICT (id) DO NOTHING`,
		userID); err != nil {
		return errors.Wrap(err, "ensure user")
	}
	return nil
}

// exerciseLibrary resolves exercises to exercise_library rows.
type exerciseLibrary struct {
	ids    map[int64]bool
	byName map[string]int64
}

func loadExerciseLibrary(ctx context.Context, tx *sql.Tx) (exerciseLibrary, error) {
	lib := exerciseLibrary{ids: map[int64]bool{}, byName: map[string]int64{}}
	rows, err := tx.QueryContext(ctx, `SELECT id, name, category FROM exercise_library`)
	if err != nil {
		return lib, errors.Wrap(err, "query exercise library")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       int64
			name     string
			category Category
		)
		if err = rows.Scan(&id, &name, &category); err != nil {
			return lib, errors.Wrap(err, "scan exercise library")
		}
		lib.ids[id] = true
		lib.byName[libraryKey(category, name)] = id
	}
	if err = rows.Err(); err != nil {
		return lib, errors.Wrap(err, "iterate exercise library")
	}
	return lib, nil
}

// libraryKey folds case in Go because SQLite NOCASE only folds ASCII.
func libraryKey(category Category, name string) string {
	return string(category) + "/" + strings.ToLower(strings.TrimSpace(name))
}

func (l exerciseLibrary) resolve(e Exercise) *int64 {
	if e.LibraryID != nil && l.ids[*e.LibraryID] {
		return e.LibraryID
	}
	if id, ok := l.byName[libraryKey(e.Category, e.Name)]; ok {
		return &id
	}
	return nil
}

func (r *sqliteRepository) insertWeeks(ctx context.Context, tx *sql.Tx, userID int64, weeks []Week) error {
	lib, err := loadExerciseLibrary(ctx, tx)
	if err != nil {
		return err
	}
	for _, w := range weeks {
		var res sql.Result
		if res, err = tx.ExecContext(ctx, `
			INSERT INTO weeks (user_id, week_number, start_date, total_volume_km)
			VALUES (?, ?, ?, ?)`, userID, w.WeekNumber, w.StartDate, w.TotalVolumeKm); err != nil {
			return errors.Wrap(err, "insert week", slog.Int("week_number", w.WeekNumber))
		}
		var weekID int64
		if weekID, err = res.LastInsertId(); err != nil {
			return errors.Wrap(err, "week id")
		}
		for _, d := range w.Days {
			if err = r.insertDay(ctx, tx, userID, weekID, d, lib); err != nil {
				return errors.Wrap(err, "insert day", slog.String("date", d.Date))
			}
		}
	}
	return nil
}

func (r *sqliteRepository) insertDay(
	ctx context.Context,
	tx *sql.Tx,
	userID, weekID int64,
	d Day,
	lib exerciseLibrary,
) error {
	if !d.Type.Valid() {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "unknown day type stored as rest",
			slog.String("type", string(d.Type)), slog.String("date", d.Date))
		d.Type = DayTypeRest
		d.Description = ""
		d.Exercises = nil
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO days (user_id, week_id, day_of_week, type, description, is_key_workout, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, weekID, d.DayOfWeek, d.Type, d.Description, d.IsKeyWorkout, d.Date)
	if err != nil {
		return errors.Wrap(err, "insert")
	}
	dayID, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "day id")
	}
	for _, e := range d.Exercises {
		if e.Category == CategoryRun {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO exercises (user_id, day_id, category, name, distance_m, duration_sec, pace, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				userID, dayID, e.Category, e.Name, e.DistanceM, e.DurationSec, e.Pace, e.Notes)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO exercises (user_id, day_id, exercise_library_id, category, name, sets, reps, distance_m,
				                       duration_sec, weight_kg, pace, notes, order_index)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				userID, dayID, lib.resolve(e), e.Category, e.Name, e.Sets, e.Reps, e.DistanceM,
				e.DurationSec, e.WeightKg, e.Pace, e.Notes, e.OrderIndex)
		}
		if err != nil {
			return errors.Wrap(err, "insert exercise", slog.String("name", e.Name))
		}
	}
	return nil
}

// list reads the stored schedule ordered by week number. Day distance, duration and pace are recovered from the
// day's run exercise.
func (r *sqliteRepository) list(ctx context.Context, userID int64) ([]Week, error) {
	weeks, weekIndex, err := r.listWeeks(ctx, userID)
	if err != nil {
		return nil, err
	}
	dayRefs, err := r.listDays(ctx, userID, weeks, weekIndex)
	if err != nil {
		return nil, err
	}
	if err = r.listExercises(ctx, userID, weeks, dayRefs); err != nil {
		return nil, err
	}
	return weeks, nil
}

func (r *sqliteRepository) listWeeks(ctx context.Context, userID int64) ([]Week, map[int64]int, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, week_number, start_date, total_volume_km
		FROM weeks
		WHERE user_id = ?
		ORDER BY week_number`, userID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "query weeks")
	}
	defer rows.Close()

	weeks := []Week{}
	index := map[int64]int{}
	for rows.Next() {
		w := Week{Days: []Day{}} //nolint:exhaustruct // scanned below.
		if err = rows.Scan(&w.ID, &w.WeekNumber, &w.StartDate, &w.TotalVolumeKm); err != nil {
			return nil, nil, errors.Wrap(err, "scan week")
		}
		index[w.ID] = len(weeks)
		weeks = append(weeks, w)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "iterate weeks")
	}
	return weeks, index, nil
}

// dayRef locates a day inside the weeks slice.
type dayRef struct {
	week int
	day  int
}

func (r *sqliteRepository) listDays(
	ctx context.Context,
	userID int64,
	weeks []Week,
	weekIndex map[int64]int,
) (map[int64]dayRef, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, week_id, day_of_week, type, description, is_key_workout, date
		FROM days
		WHERE user_id = ?
		ORDER BY date`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query days")
	}
	defer rows.Close()

	refs := map[int64]dayRef{}
	for rows.Next() {
		var weekID int64
		d := Day{Exercises: []Exercise{}} //nolint:exhaustruct // scanned below.
		if err = rows.Scan(&d.ID, &weekID, &d.DayOfWeek, &d.Type, &d.Description, &d.IsKeyWorkout,
			&d.Date); err != nil {
			return nil, errors.Wrap(err, "scan day")
		}
		wi, ok := weekIndex[weekID]
		if !ok {
			continue
		}
		refs[d.ID] = dayRef{week: wi, day: len(weeks[wi].Days)}
		weeks[wi].Days = append(weeks[wi].Days, d)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate days")
	}
	return refs, nil
}

func (r *sqliteRepository) listExercises(
	ctx context.Context,
	userID int64,
	weeks []Week,
	dayRefs map[int64]dayRef,
) error {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT day_id, exercise_library_id, category, name, sets, reps, distance_m, duration_sec, weight_kg,
		       pace, notes, order_index
		FROM exercises
		WHERE user_id = ?
		ORDER BY day_id, category <> 'run', order_index, id`, userID)
	if err != nil {
		return errors.Wrap(err, "query exercises")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dayID int64
			e     Exercise
		)
		if err = rows.Scan(&dayID, &e.LibraryID, &e.Category, &e.Name, &e.Sets, &e.Reps, &e.DistanceM,
			&e.DurationSec, &e.WeightKg, &e.Pace, &e.Notes, &e.OrderIndex); err != nil {
			return errors.Wrap(err, "scan exercise")
		}
		ref, ok := dayRefs[dayID]
		if !ok {
			continue
		}
		d := &weeks[ref.week].Days[ref.day]
		if e.Category == CategoryRun {
			recoverRunFields(d, e)
		}
		d.Exercises = append(d.Exercises, e)
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "iterate exercises")
	}
	return nil
}

func recoverRunFields(d *Day, run Exercise) {
	if run.DistanceM != nil {
		km := float64(*run.DistanceM) / 1000 //nolint:mnd // meters per km
		d.DistanceKm = &km
	}
	if run.DurationSec != nil {
		minutes := *run.DurationSec / 60 //nolint:mnd // seconds per minute
		d.DurationMinutes = &minutes
	}
	d.Pace = run.Pace
}
