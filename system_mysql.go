package persistence_benchmark

import (
	"context"
	"database/sql"
	"time"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	_ "github.com/go-sql-driver/mysql"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS simple_entity (
		id BIGINT PRIMARY KEY,
		simple_boolean BOOLEAN NOT NULL,
		simple_byte TINYINT NOT NULL,
		simple_short SMALLINT NOT NULL,
		simple_int INT NOT NULL,
		simple_long BIGINT NOT NULL,
		simple_float FLOAT NOT NULL,
		simple_double DOUBLE NOT NULL,
		simple_string TEXT NOT NULL,
		simple_byte_array BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS indexed_string_entity (
		id BIGINT PRIMARY KEY,
		indexed_string VARCHAR(255) NOT NULL,
		INDEX indexed_string_entity_indexed_string_idx (indexed_string)
	)`,
	`TRUNCATE TABLE simple_entity`,
	`TRUNCATE TABLE indexed_string_entity`,
}

const (
	mysqlInsertSimpleEntity = `INSERT INTO simple_entity
		(id, simple_boolean, simple_byte, simple_short, simple_int, simple_long, simple_float, simple_double, simple_string, simple_byte_array)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	mysqlUpdateSimpleEntity = `UPDATE simple_entity SET
		simple_boolean = ?, simple_byte = ?, simple_short = ?, simple_int = ?, simple_long = ?,
		simple_float = ?, simple_double = ?, simple_string = ?, simple_byte_array = ?
		WHERE id = ?`
	mysqlSelectSimpleEntities = `SELECT
		id, simple_boolean, simple_byte, simple_short, simple_int, simple_long, simple_float, simple_double, simple_string, simple_byte_array
		FROM simple_entity`
	mysqlInsertIndexed = `INSERT INTO indexed_string_entity (id, indexed_string) VALUES (?, ?)`
	mysqlQueryIndexed  = `SELECT id, indexed_string FROM indexed_string_entity WHERE indexed_string = ?`
)

type MySQLDatabaseSystem struct {
	db              *sql.DB
	transactionSize int
}

func NewMySQLDatabaseSystem(ctx context.Context, dsn string, transactionSize int) (*MySQLDatabaseSystem, error) {
	if transactionSize <= 0 {
		return nil, errors.New("transaction size must be positive")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening the database")
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error pinging the database")
	}

	for _, statement := range mysqlSchema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "error creating the schema")
		}
	}

	return &MySQLDatabaseSystem{
		db:              db,
		transactionSize: transactionSize,
	}, nil
}

func (m *MySQLDatabaseSystem) InsertOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		if _, err := m.db.ExecContext(ctx, mysqlInsertSimpleEntity, simpleEntityArgs(entity)...); err != nil {
			return errors.Wrap(err, "error calling exec")
		}
	}
	return nil
}

func (m *MySQLDatabaseSystem) UpdateOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		if _, err := m.db.ExecContext(ctx, mysqlUpdateSimpleEntity, mysqlUpdateArgs(entity)...); err != nil {
			return errors.Wrap(err, "error calling exec")
		}
	}
	return nil
}

func (m *MySQLDatabaseSystem) RefreshOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for i := range entities {
		row := m.db.QueryRowContext(ctx, mysqlSelectSimpleEntities+" WHERE id = ?", entities[i].ID)

		entity, err := scanMySQLSimpleEntity(row)
		if err != nil {
			return errors.Wrap(err, "error scanning the entity")
		}

		entities[i] = entity
	}
	return nil
}

func (m *MySQLDatabaseSystem) BatchInsert(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return m.execInTransactions(ctx, mysqlInsertSimpleEntity, entities, simpleEntityArgs)
}

func (m *MySQLDatabaseSystem) BatchUpdate(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return m.execInTransactions(ctx, mysqlUpdateSimpleEntity, entities, mysqlUpdateArgs)
}

func (m *MySQLDatabaseSystem) ReadAll(ctx context.Context) ([]benchmark.SimpleEntity, error) {
	rows, err := m.db.QueryContext(ctx, mysqlSelectSimpleEntities)
	if err != nil {
		return nil, errors.Wrap(err, "error calling query")
	}
	defer rows.Close()

	var entities []benchmark.SimpleEntity
	for rows.Next() {
		entity, err := scanMySQLSimpleEntity(rows)
		if err != nil {
			return nil, errors.Wrap(err, "error scanning the entity")
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return entities, nil
}

func (m *MySQLDatabaseSystem) DeleteAll(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM simple_entity"); err != nil {
		return errors.Wrap(err, "error calling exec")
	}
	return nil
}

func (m *MySQLDatabaseSystem) InsertIndexed(ctx context.Context, entities []benchmark.IndexedStringEntity) error {
	return m.execInTransactionsIndexed(ctx, entities)
}

func (m *MySQLDatabaseSystem) QueryIndexed(ctx context.Context, value string) ([]benchmark.IndexedStringEntity, error) {
	rows, err := m.db.QueryContext(ctx, mysqlQueryIndexed, value)
	if err != nil {
		return nil, errors.Wrap(err, "error calling query")
	}
	defer rows.Close()

	var result []benchmark.IndexedStringEntity
	for rows.Next() {
		var entity benchmark.IndexedStringEntity
		if err := rows.Scan(&entity.ID, &entity.IndexedString); err != nil {
			return nil, errors.Wrap(err, "error scanning the entity")
		}
		result = append(result, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return result, nil
}

func (m *MySQLDatabaseSystem) DeleteAllIndexed(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM indexed_string_entity"); err != nil {
		return errors.Wrap(err, "error calling exec")
	}
	return nil
}

func (m *MySQLDatabaseSystem) Close() error {
	return m.db.Close()
}

func (m *MySQLDatabaseSystem) execInTransactions(ctx context.Context, query string, entities []benchmark.SimpleEntity, args func(benchmark.SimpleEntity) []any) error {
	for _, chunk := range chunks(entities, m.transactionSize) {
		if err := m.inTransaction(ctx, query, func(stmt *sql.Stmt) error {
			for _, entity := range chunk {
				if _, err := stmt.ExecContext(ctx, args(entity)...); err != nil {
					return errors.Wrap(err, "error calling exec")
				}
			}
			return nil
		}); err != nil {
			return errors.Wrap(err, "transaction failed")
		}
	}
	return nil
}

func (m *MySQLDatabaseSystem) execInTransactionsIndexed(ctx context.Context, entities []benchmark.IndexedStringEntity) error {
	for _, chunk := range chunks(entities, m.transactionSize) {
		if err := m.inTransaction(ctx, mysqlInsertIndexed, func(stmt *sql.Stmt) error {
			for _, entity := range chunk {
				if _, err := stmt.ExecContext(ctx, entity.ID, entity.IndexedString); err != nil {
					return errors.Wrap(err, "error calling exec")
				}
			}
			return nil
		}); err != nil {
			return errors.Wrap(err, "transaction failed")
		}
	}
	return nil
}

func (m *MySQLDatabaseSystem) inTransaction(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning the transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "error preparing the statement")
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}

	return tx.Commit()
}

func mysqlUpdateArgs(e benchmark.SimpleEntity) []any {
	args := simpleEntityArgs(e)
	return append(args[1:], args[0])
}

func scanMySQLSimpleEntity(row rowScanner) (benchmark.SimpleEntity, error) {
	var (
		e           benchmark.SimpleEntity
		byteCell    int16
		floatCell   float64
		booleanCell int64
	)

	if err := row.Scan(
		&e.ID,
		&booleanCell,
		&byteCell,
		&e.Short,
		&e.Int,
		&e.Long,
		&floatCell,
		&e.Double,
		&e.String,
		&e.ByteArray,
	); err != nil {
		return benchmark.SimpleEntity{}, err
	}

	e.Bool = booleanCell != 0
	e.Byte = int8(byteCell)
	e.Float = float32(floatCell)
	return e, nil
}
