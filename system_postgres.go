package persistence_benchmark

import (
	"context"
	"time"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS simple_entity (
	id BIGINT PRIMARY KEY,
	simple_boolean BOOLEAN NOT NULL,
	simple_byte SMALLINT NOT NULL,
	simple_short SMALLINT NOT NULL,
	simple_int INTEGER NOT NULL,
	simple_long BIGINT NOT NULL,
	simple_float REAL NOT NULL,
	simple_double DOUBLE PRECISION NOT NULL,
	simple_string TEXT NOT NULL,
	simple_byte_array BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS indexed_string_entity (
	id BIGINT PRIMARY KEY,
	indexed_string TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS indexed_string_entity_indexed_string_idx ON indexed_string_entity (indexed_string);
TRUNCATE simple_entity, indexed_string_entity;
`

const (
	postgresInsertSimpleEntity = `INSERT INTO simple_entity
		(id, simple_boolean, simple_byte, simple_short, simple_int, simple_long, simple_float, simple_double, simple_string, simple_byte_array)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	postgresUpdateSimpleEntity = `UPDATE simple_entity SET
		simple_boolean = $2, simple_byte = $3, simple_short = $4, simple_int = $5, simple_long = $6,
		simple_float = $7, simple_double = $8, simple_string = $9, simple_byte_array = $10
		WHERE id = $1`
	postgresSelectSimpleEntities = `SELECT
		id, simple_boolean, simple_byte, simple_short, simple_int, simple_long, simple_float, simple_double, simple_string, simple_byte_array
		FROM simple_entity`
	postgresQueryIndexed = `SELECT id, indexed_string FROM indexed_string_entity WHERE indexed_string = $1`
)

var simpleEntityColumns = []string{
	"id",
	"simple_boolean",
	"simple_byte",
	"simple_short",
	"simple_int",
	"simple_long",
	"simple_float",
	"simple_double",
	"simple_string",
	"simple_byte_array",
}

type PostgresDatabaseSystem struct {
	pool            *pgxpool.Pool
	transactionSize int
}

func NewPostgresDatabaseSystem(ctx context.Context, dsn string, transactionSize int) (*PostgresDatabaseSystem, error) {
	if transactionSize <= 0 {
		return nil, errors.New("transaction size must be positive")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing the dsn")
	}
	config.MaxConns = 2

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, errors.Wrap(err, "error creating the pool")
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "error pinging the database")
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "error creating the schema")
	}

	return &PostgresDatabaseSystem{
		pool:            pool,
		transactionSize: transactionSize,
	}, nil
}

func (p *PostgresDatabaseSystem) InsertOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		if _, err := p.pool.Exec(ctx, postgresInsertSimpleEntity, simpleEntityArgs(entity)...); err != nil {
			return errors.Wrap(err, "error calling exec")
		}
	}
	return nil
}

func (p *PostgresDatabaseSystem) UpdateOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		if _, err := p.pool.Exec(ctx, postgresUpdateSimpleEntity, simpleEntityArgs(entity)...); err != nil {
			return errors.Wrap(err, "error calling exec")
		}
	}
	return nil
}

func (p *PostgresDatabaseSystem) RefreshOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for i := range entities {
		row := p.pool.QueryRow(ctx, postgresSelectSimpleEntities+" WHERE id = $1", entities[i].ID)

		entity, err := scanPostgresSimpleEntity(row)
		if err != nil {
			return errors.Wrap(err, "error scanning the entity")
		}

		entities[i] = entity
	}
	return nil
}

func (p *PostgresDatabaseSystem) BatchInsert(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, chunk := range chunks(entities, p.transactionSize) {
		if err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			_, err := tx.CopyFrom(
				ctx,
				pgx.Identifier{"simple_entity"},
				simpleEntityColumns,
				pgx.CopyFromSlice(len(chunk), func(i int) ([]any, error) {
					return simpleEntityArgs(chunk[i]), nil
				}),
			)
			return err
		}); err != nil {
			return errors.Wrap(err, "error copying the entities")
		}
	}
	return nil
}

func (p *PostgresDatabaseSystem) BatchUpdate(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, chunk := range chunks(entities, p.transactionSize) {
		if err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			b := &pgx.Batch{}
			for _, entity := range chunk {
				b.Queue(postgresUpdateSimpleEntity, simpleEntityArgs(entity)...)
			}
			return tx.SendBatch(ctx, b).Close()
		}); err != nil {
			return errors.Wrap(err, "error sending the batch")
		}
	}
	return nil
}

func (p *PostgresDatabaseSystem) ReadAll(ctx context.Context) ([]benchmark.SimpleEntity, error) {
	rows, err := p.pool.Query(ctx, postgresSelectSimpleEntities)
	if err != nil {
		return nil, errors.Wrap(err, "error calling query")
	}
	defer rows.Close()

	var entities []benchmark.SimpleEntity
	for rows.Next() {
		entity, err := scanPostgresSimpleEntity(rows)
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

func (p *PostgresDatabaseSystem) DeleteAll(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM simple_entity"); err != nil {
		return errors.Wrap(err, "error calling exec")
	}
	return nil
}

func (p *PostgresDatabaseSystem) InsertIndexed(ctx context.Context, entities []benchmark.IndexedStringEntity) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"indexed_string_entity"},
			[]string{"id", "indexed_string"},
			pgx.CopyFromSlice(len(entities), func(i int) ([]any, error) {
				return []any{entities[i].ID, entities[i].IndexedString}, nil
			}),
		)
		if err != nil {
			return errors.Wrap(err, "error copying the entities")
		}
		return nil
	})
}

func (p *PostgresDatabaseSystem) QueryIndexed(ctx context.Context, value string) ([]benchmark.IndexedStringEntity, error) {
	rows, err := p.pool.Query(ctx, postgresQueryIndexed, value)
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

func (p *PostgresDatabaseSystem) DeleteAllIndexed(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM indexed_string_entity"); err != nil {
		return errors.Wrap(err, "error calling exec")
	}
	return nil
}

func (p *PostgresDatabaseSystem) Close() error {
	p.pool.Close()
	return nil
}

func simpleEntityArgs(e benchmark.SimpleEntity) []any {
	return []any{
		e.ID,
		e.Bool,
		int16(e.Byte),
		e.Short,
		e.Int,
		e.Long,
		e.Float,
		e.Double,
		e.String,
		e.ByteArray,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresSimpleEntity(row rowScanner) (benchmark.SimpleEntity, error) {
	var (
		e        benchmark.SimpleEntity
		byteCell int16
	)

	if err := row.Scan(
		&e.ID,
		&e.Bool,
		&byteCell,
		&e.Short,
		&e.Int,
		&e.Long,
		&e.Float,
		&e.Double,
		&e.String,
		&e.ByteArray,
	); err != nil {
		return benchmark.SimpleEntity{}, err
	}

	e.Byte = int8(byteCell)
	return e, nil
}
