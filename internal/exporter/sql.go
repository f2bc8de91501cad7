package exporter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/huandu/go-sqlbuilder"

	// database drivers
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Names of database drivers supported by OpenSQL
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

var flavors = map[string]sqlbuilder.Flavor{
	DriverSQLite:   sqlbuilder.SQLite,
	DriverMySQL:    sqlbuilder.MySQL,
	DriverPostgres: sqlbuilder.PostgreSQL,
}

const (
	idColumn   = "id"
	typeColumn = "type"
	bodyColumn = "body"
)

// DefaultMaxQueryVar is the default maximum number of variables in a single query.
const DefaultMaxQueryVar = 999

var (
	errUnknownDriver         = errors.New("unknown database driver")
	errInsufficientQueryVars = errors.New("insufficient query variables")
)

// SQL implements a Store inside an sql database.
//
// Documents are held in a single table with an id, type and body column.
// Indexing a document deletes any previous document with the same id.
type SQL struct {
	DB          *sql.DB
	Flavor      sqlbuilder.Flavor
	Table       string // name of the table holding documents
	Type        string // value of the type column, may be empty
	MaxQueryVar int    // Maximum number of query variables, defaults to DefaultMaxQueryVar

	dbLock sync.Mutex
}

// OpenSQL opens a database using the given driver and creates the document table if needed.
func OpenSQL(ctx context.Context, driver, dsn, table, documentType string) (*SQL, error) {
	flavor, ok := flavors[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite only supports a single writer
		db.SetMaxOpenConns(1)
	}

	sink := &SQL{
		DB:     db,
		Flavor: flavor,
		Table:  table,
		Type:   documentType,
	}
	if err := sink.CreateTable(ctx); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return sink, nil
}

// CreateTable creates the document table unless it already exists.
func (sql *SQL) CreateTable(ctx context.Context) error {
	idType, bodyType := "TEXT", "TEXT"
	if sql.Flavor == sqlbuilder.MySQL {
		idType, bodyType = "VARCHAR(768)", "LONGTEXT"
	}

	table := sql.Flavor.NewCreateTableBuilder()
	table.CreateTable(sql.Table).IfNotExists()
	table.Define(idColumn, idType, "NOT NULL", "PRIMARY KEY")
	table.Define(typeColumn, "TEXT")
	table.Define(bodyColumn, bodyType, "NOT NULL")

	query, args := table.Build()

	sql.dbLock.Lock()
	defer sql.dbLock.Unlock()

	if _, err := sql.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create table %q: %w", sql.Table, err)
	}
	return nil
}

// chunkSize returns the number of rows that can be handled by a single query with the given number of columns.
func (sql *SQL) chunkSize(columns int) (int, error) {
	maxQueryVar := sql.MaxQueryVar
	if maxQueryVar <= 0 {
		maxQueryVar = DefaultMaxQueryVar
	}

	size := maxQueryVar / columns
	if size == 0 {
		return 0, errInsufficientQueryVars
	}
	return size, nil
}

// BulkIndex replaces the given items inside a single transaction.
// Either all items are acknowledged, or all of them fail with the same error.
func (sql *SQL) BulkIndex(ctx context.Context, items []Item) []error {
	if len(items) == 0 {
		return nil
	}

	// when an id occurs more than once, the last item wins
	last := make(map[string]int, len(items))
	for i, item := range items {
		last[item.ID] = i
	}
	ids := make([]any, 0, len(last))
	rows := make([][]any, 0, len(last))
	for i, item := range items {
		if last[item.ID] != i {
			continue
		}
		ids = append(ids, item.ID)
		rows = append(rows, []any{item.ID, sql.Type, string(item.Body)})
	}

	if err := sql.replace(ctx, ids, rows); err != nil {
		return fill(len(items), err)
	}
	return make([]error, len(items))
}

func (sql *SQL) replace(ctx context.Context, ids []any, rows [][]any) (e error) {
	deleteSize, err := sql.chunkSize(1)
	if err != nil {
		return err
	}
	insertSize, err := sql.chunkSize(3)
	if err != nil {
		return err
	}

	sql.dbLock.Lock()
	defer sql.dbLock.Unlock()

	tx, err := sql.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if e == nil {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, errTxDone) {
			e = errors.Join(e, err)
		}
	}()

	for chunk := range slices.Chunk(ids, deleteSize) {
		del := sql.Flavor.NewDeleteBuilder()
		del.DeleteFrom(sql.Table)
		del.Where(del.In(idColumn, chunk...))

		query, args := del.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete documents: %w", err)
		}
	}

	for chunk := range slices.Chunk(rows, insertSize) {
		insert := sql.Flavor.NewInsertBuilder()
		insert.InsertInto(sql.Table)
		insert.Cols(idColumn, typeColumn, bodyColumn)
		for _, row := range chunk {
			insert.Values(row...)
		}

		query, args := insert.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert documents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get returns the body of the document with the given id.
func (sql *SQL) Get(ctx context.Context, id string) ([]byte, error) {
	sel := sql.Flavor.NewSelectBuilder()
	sel.Select(bodyColumn).From(sql.Table).Where(sel.Equal(idColumn, id))

	query, args := sel.Build()

	var body string
	err := sql.DB.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, errNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return []byte(body), nil
}

// IDs returns the ids of all documents, in ascending order.
func (sql *SQL) IDs(ctx context.Context) (ids []string, e error) {
	sel := sql.Flavor.NewSelectBuilder()
	sel.Select(idColumn).From(sql.Table).OrderBy(idColumn).Asc()

	query, args := sel.Build()
	rows, err := sql.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil && e == nil {
			ids, e = nil, fmt.Errorf("failed to close rows: %w", err)
		}
	}()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ids: %w", err)
	}
	return ids, nil
}

func (sql *SQL) Close() error {
	return sql.DB.Close() // close the database
}

// errors of the sql package, which methods of SQL cannot refer to directly
var (
	errNoRows = sql.ErrNoRows
	errTxDone = sql.ErrTxDone
)
