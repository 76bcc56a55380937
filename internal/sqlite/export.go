package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/myrjola/runplan/internal/errors"
)

// ErrExportExists is returned when the export file already exists.
var ErrExportExists = errors.NewSentinel("export file already exists")

// exportTable is a table copied into a user export and the filter selecting the user's rows.
type exportTable struct {
	name  string
	where string
}

// exportTables are listed parents first so that foreign keys hold while copying.
//
//nolint:gochecknoglobals // static table list.
var exportTables = []exportTable{
	{name: "users", where: "id = :user_id"},
	{
		name:  "exercise_library",
		where: "id IN (SELECT exercise_library_id FROM main.exercises WHERE user_id = :user_id)",
	},
	{name: "weeks", where: "user_id = :user_id"},
	{name: "days", where: "user_id = :user_id"},
	{name: "exercises", where: "user_id = :user_id"},
}

// ExportUser copies the schedule of userID into a standalone SQLite database in dir and returns its path. Only the
// exercise library entries the user's exercises reference are included.
func (db *Database) ExportUser(ctx context.Context, userID int64, dir string) (_ string, err error) {
	exportPath := filepath.Join(dir, fmt.Sprintf("runplan-user-%d.sqlite3", userID))
	if _, statErr := os.Stat(exportPath); statErr == nil {
		return "", errors.Wrap(ErrExportExists, "stat", slog.String("path", exportPath))
	}

	conn, err := db.ReadWrite.Conn(ctx)
	if err != nil {
		return "", errors.Wrap(err, "get connection")
	}
	defer func() {
		err = errors.Join(err, conn.Close())
	}()

	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS export", "file:"+exportPath+"?mode=rwc"); err != nil {
		return "", errors.Wrap(err, "attach export database")
	}
	defer func() {
		if _, detachErr := conn.ExecContext(ctx, "DETACH DATABASE export"); detachErr != nil {
			err = errors.Join(err, errors.Wrap(detachErr, "detach export database"))
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin transaction")
	}
	defer db.Rollback(ctx, tx)()

	for _, table := range exportTables {
		if err = copyTable(ctx, tx, table, userID); err != nil {
			return "", errors.Wrap(err, "copy table", slog.String("table", table.name))
		}
	}
	if err = tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit")
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "exported user", slog.Int64("user_id", userID),
		slog.String("path", exportPath))
	return exportPath, nil
}

func copyTable(ctx context.Context, tx *sql.Tx, table exportTable, userID int64) error {
	var createSQL string
	if err := tx.QueryRowContext(ctx, `SELECT sql FROM main.sqlite_schema WHERE type = 'table' AND name = ?`,
		table.name).Scan(&createSQL); err != nil {
		return errors.Wrap(err, "query table definition")
	}
	createSQL = strings.Replace(createSQL, "CREATE TABLE ", "CREATE TABLE export.", 1)
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return errors.Wrap(err, "create table")
	}
	//nolint:gosec // table names and filters come from exportTables.
	query := fmt.Sprintf("INSERT INTO export.%s SELECT * FROM main.%s WHERE %s", table.name, table.name, table.where)
	if _, err := tx.ExecContext(ctx, query, sql.Named("user_id", userID)); err != nil {
		return errors.Wrap(err, "copy rows")
	}
	return nil
}
