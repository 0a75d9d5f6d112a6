package persistence_benchmark

import (
	"context"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type gormSimpleEntity struct {
	ID              int64   `gorm:"primaryKey;autoIncrement:false"`
	SimpleBoolean   bool    `gorm:"not null"`
	SimpleByte      int16   `gorm:"type:smallint;not null"`
	SimpleShort     int16   `gorm:"type:smallint;not null"`
	SimpleInt       int32   `gorm:"type:integer;not null"`
	SimpleLong      int64   `gorm:"type:bigint;not null"`
	SimpleFloat     float32 `gorm:"type:real;not null"`
	SimpleDouble    float64 `gorm:"type:double precision;not null"`
	SimpleString    string  `gorm:"type:text;not null"`
	SimpleByteArray []byte  `gorm:"type:bytea;not null"`
}

func (gormSimpleEntity) TableName() string {
	return "gorm_simple_entity"
}

type gormIndexedStringEntity struct {
	ID            int64  `gorm:"primaryKey;autoIncrement:false"`
	IndexedString string `gorm:"type:text;not null;index"`
}

func (gormIndexedStringEntity) TableName() string {
	return "gorm_indexed_string_entity"
}

type GormDatabaseSystem struct {
	db              *gorm.DB
	transactionSize int
}

func NewGormDatabaseSystem(ctx context.Context, dsn string, transactionSize int) (*GormDatabaseSystem, error) {
	if transactionSize <= 0 {
		return nil, errors.New("transaction size must be positive")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to the database")
	}

	db = db.WithContext(ctx)

	if err := db.AutoMigrate(&gormSimpleEntity{}, &gormIndexedStringEntity{}); err != nil {
		return nil, errors.Wrap(err, "error migrating the database")
	}

	g := &GormDatabaseSystem{
		db:              db,
		transactionSize: transactionSize,
	}

	if err := g.DeleteAll(ctx); err != nil {
		return nil, errors.Wrap(err, "error deleting simple entities")
	}

	if err := g.DeleteAllIndexed(ctx); err != nil {
		return nil, errors.Wrap(err, "error deleting indexed entities")
	}

	return g, nil
}

func (g *GormDatabaseSystem) InsertOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		model := toGormSimpleEntity(entity)
		if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
			return errors.Wrap(err, "error calling create")
		}
	}
	return nil
}

func (g *GormDatabaseSystem) UpdateOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		model := toGormSimpleEntity(entity)
		if err := g.db.WithContext(ctx).Save(&model).Error; err != nil {
			return errors.Wrap(err, "error calling save")
		}
	}
	return nil
}

func (g *GormDatabaseSystem) RefreshOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for i := range entities {
		var model gormSimpleEntity
		if err := g.db.WithContext(ctx).First(&model, entities[i].ID).Error; err != nil {
			return errors.Wrap(err, "error calling first")
		}
		entities[i] = fromGormSimpleEntity(model)
	}
	return nil
}

func (g *GormDatabaseSystem) BatchInsert(ctx context.Context, entities []benchmark.SimpleEntity) error {
	models := toGormSimpleEntities(entities)
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&models, g.transactionSize).Error; err != nil {
			return errors.Wrap(err, "error calling create in batches")
		}
		return nil
	})
}

func (g *GormDatabaseSystem) BatchUpdate(ctx context.Context, entities []benchmark.SimpleEntity) error {
	models := toGormSimpleEntities(entities)
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&models, g.transactionSize).Error; err != nil {
			return errors.Wrap(err, "error calling upsert in batches")
		}
		return nil
	})
}

func (g *GormDatabaseSystem) ReadAll(ctx context.Context) ([]benchmark.SimpleEntity, error) {
	var models []gormSimpleEntity
	if err := g.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "error calling find")
	}

	entities := make([]benchmark.SimpleEntity, 0, len(models))
	for _, model := range models {
		entities = append(entities, fromGormSimpleEntity(model))
	}
	return entities, nil
}

func (g *GormDatabaseSystem) DeleteAll(ctx context.Context) error {
	if err := g.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&gormSimpleEntity{}).Error; err != nil {
		return errors.Wrap(err, "error calling delete")
	}
	return nil
}

func (g *GormDatabaseSystem) InsertIndexed(ctx context.Context, entities []benchmark.IndexedStringEntity) error {
	models := make([]gormIndexedStringEntity, 0, len(entities))
	for _, entity := range entities {
		models = append(models, gormIndexedStringEntity{
			ID:            entity.ID,
			IndexedString: entity.IndexedString,
		})
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&models, g.transactionSize).Error; err != nil {
			return errors.Wrap(err, "error calling create in batches")
		}
		return nil
	})
}

func (g *GormDatabaseSystem) QueryIndexed(ctx context.Context, value string) ([]benchmark.IndexedStringEntity, error) {
	var models []gormIndexedStringEntity
	if err := g.db.WithContext(ctx).Where("indexed_string = ?", value).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "error calling find")
	}

	result := make([]benchmark.IndexedStringEntity, 0, len(models))
	for _, model := range models {
		result = append(result, benchmark.IndexedStringEntity{
			ID:            model.ID,
			IndexedString: model.IndexedString,
		})
	}
	return result, nil
}

func (g *GormDatabaseSystem) DeleteAllIndexed(ctx context.Context) error {
	if err := g.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&gormIndexedStringEntity{}).Error; err != nil {
		return errors.Wrap(err, "error calling delete")
	}
	return nil
}

func (g *GormDatabaseSystem) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return errors.Wrap(err, "error getting the connection")
	}
	return sqlDB.Close()
}

func toGormSimpleEntity(e benchmark.SimpleEntity) gormSimpleEntity {
	return gormSimpleEntity{
		ID:              e.ID,
		SimpleBoolean:   e.Bool,
		SimpleByte:      int16(e.Byte),
		SimpleShort:     e.Short,
		SimpleInt:       e.Int,
		SimpleLong:      e.Long,
		SimpleFloat:     e.Float,
		SimpleDouble:    e.Double,
		SimpleString:    e.String,
		SimpleByteArray: e.ByteArray,
	}
}

func toGormSimpleEntities(entities []benchmark.SimpleEntity) []gormSimpleEntity {
	models := make([]gormSimpleEntity, 0, len(entities))
	for _, entity := range entities {
		models = append(models, toGormSimpleEntity(entity))
	}
	return models
}

func fromGormSimpleEntity(m gormSimpleEntity) benchmark.SimpleEntity {
	return benchmark.SimpleEntity{
		ID:        m.ID,
		Bool:      m.SimpleBoolean,
		Byte:      int8(m.SimpleByte),
		Short:     m.SimpleShort,
		Int:       m.SimpleInt,
		Long:      m.SimpleLong,
		Float:     m.SimpleFloat,
		Double:    m.SimpleDouble,
		String:    m.SimpleString,
		ByteArray: m.SimpleByteArray,
	}
}
