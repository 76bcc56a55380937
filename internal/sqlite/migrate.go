package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/runplan/internal/errors"
)

// migrateTo makes the live schema match schemaDefinition declaratively. Removed tables are dropped, new tables
// created, and changed tables rebuilt with the 12-step procedure from
// https://www.sqlite.org/lang_altertable.html#otheralter. Triggers and indexes are synchronised last.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return errors.Wrap(err, "attach schema target")
	}
	defer detach()

	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign keys")
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign keys"))
		}
	}()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer db.Rollback(ctx, tx)()

	if err = db.migrateTables(ctx, tx); err != nil {
		return errors.Wrap(err, "migrate tables")
	}
	for _, typ := range []string{"trigger", "index"} {
		if err = db.migrateSchemaObjects(ctx, tx, typ); err != nil {
			return errors.Wrap(err, "migrate "+typ)
		}
	}
	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// attachSchemaTarget attaches an in-memory database initialised with the target schema as schemaTarget. The
// returned function detaches it.
func (db *Database) attachSchemaTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open schema target")
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target",
				errors.SlogError(closeErr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, errors.Wrap(err, "create target schema")
	}
	// The shared cache keeps the in-memory database alive while it is attached.
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, errors.Wrap(err, "attach")
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target",
				errors.SlogError(detachErr))
		}
	}, nil
}

const userObjects = `AND name NOT LIKE 'sqlite_%'`

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	deleted, err := queryStrings(ctx, tx, `SELECT name FROM main.sqlite_schema
WHERE type = 'table' `+userObjects+`
  AND name NOT IN (SELECT name FROM schemaTarget.sqlite_schema WHERE type = 'table')`)
	if err != nil {
		return errors.Wrap(err, "query deleted tables")
	}
	for _, table := range deleted {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err = tx.ExecContext(ctx, "DROP TABLE "+table); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}

	created, err := queryStrings(ctx, tx, `SELECT sql FROM schemaTarget.sqlite_schema
WHERE type = 'table' `+userObjects+`
  AND name NOT IN (SELECT name FROM main.sqlite_schema WHERE type = 'table')`)
	if err != nil {
		return errors.Wrap(err, "query new tables")
	}
	for _, query := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", query))
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create table", slog.String("query", query))
		}
	}

	changed, err := queryChanged(ctx, tx, "table")
	if err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	for _, c := range changed {
		if err = db.rebuildTable(ctx, tx, c); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", c.name))
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the common columns over, and swaps the
// tables.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, c changedSchema) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", c.name), slog.String("live_sql", c.liveSQL), slog.String("new_sql", c.newSQL))

	tempName := c.name + "_migration_temp"
	if _, err := tx.ExecContext(ctx, strings.Replace(c.newSQL, c.name, tempName, 1)); err != nil {
		return errors.Wrap(err, "create temporary table")
	}

	// Quoted so that columns named after keywords survive.
	columns, err := queryStrings(ctx, tx, `SELECT '"' || target.name || '"'
FROM PRAGMA_TABLE_INFO(:table_name) AS live
JOIN PRAGMA_TABLE_INFO(:table_name, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table_name", c.name))
	if err != nil {
		return errors.Wrap(err, "query common columns")
	}
	common := strings.Join(columns, ", ")
	statements := []string{
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tempName, common, common, c.name),
		"DROP TABLE " + c.name,
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempName, c.name),
	}
	if common == "" {
		statements = statements[1:]
	}
	for _, stmt := range statements {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "executing", slog.String("query", stmt))
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "execute", slog.String("query", stmt))
		}
	}
	return nil
}

// migrateSchemaObjects synchronises triggers or indexes of the given type.
func (db *Database) migrateSchemaObjects(ctx context.Context, tx *sql.Tx, typ string) error {
	logger := db.logger.With(slog.String("schema_type", typ))

	// Implicit indexes created by UNIQUE constraints have no SQL.
	deleted, err := queryStrings(ctx, tx, `SELECT name FROM main.sqlite_schema
WHERE type = ? AND sql IS NOT NULL `+userObjects+`
  AND name NOT IN (SELECT name FROM schemaTarget.sqlite_schema WHERE type = ?)`, typ, typ)
	if err != nil {
		return errors.Wrap(err, "query deleted")
	}
	for _, name := range deleted {
		logger.LogAttrs(ctx, slog.LevelInfo, "dropping", slog.String("name", name))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP %s %s", strings.ToUpper(typ), name)); err != nil {
			return errors.Wrap(err, "drop", slog.String("name", name))
		}
	}

	created, err := queryStrings(ctx, tx, `SELECT sql FROM schemaTarget.sqlite_schema
WHERE type = ? AND sql IS NOT NULL `+userObjects+`
  AND name NOT IN (SELECT name FROM main.sqlite_schema WHERE type = ?)`, typ, typ)
	if err != nil {
		return errors.Wrap(err, "query created")
	}
	for _, query := range created {
		logger.LogAttrs(ctx, slog.LevelInfo, "creating", slog.String("query", query))
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create", slog.String("query", query))
		}
	}

	changed, err := queryChanged(ctx, tx, typ)
	if err != nil {
		return errors.Wrap(err, "query changed")
	}
	for _, c := range changed {
		logger.LogAttrs(ctx, slog.LevelInfo, "recreating",
			slog.String("name", c.name), slog.String("live_sql", c.liveSQL), slog.String("new_sql", c.newSQL))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP %s %s", strings.ToUpper(typ), c.name)); err != nil {
			return errors.Wrap(err, "drop changed", slog.String("name", c.name))
		}
		if _, err = tx.ExecContext(ctx, c.newSQL); err != nil {
			return errors.Wrap(err, "create changed", slog.String("name", c.name))
		}
	}
	return nil
}

type changedSchema struct {
	name    string
	liveSQL string
	newSQL  string
}

// queryChanged lists objects of typ whose definition differs between the live and target schema. Renaming a
// table adds quotes around its name, so quotes are ignored in the comparison.
func queryChanged(ctx context.Context, tx *sql.Tx, typ string) ([]changedSchema, error) {
	rows, err := tx.QueryContext(ctx, `SELECT live.name, live.sql, target.sql
FROM main.sqlite_schema AS live
JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ? AND live.name NOT LIKE 'sqlite_%'
  AND REPLACE(live.sql, '"', '') <> REPLACE(target.sql, '"', '')`, typ)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()

	var changed []changedSchema
	for rows.Next() {
		var c changedSchema
		if err = rows.Scan(&c.name, &c.liveSQL, &c.newSQL); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		changed = append(changed, c)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return changed, nil
}

// queryStrings returns the single string column of query.
func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		results = append(results, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return results, nil
}
