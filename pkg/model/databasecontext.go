package model

import (
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type DatabaseContext struct {
	DB     *gorm.DB
	Config *Database
	Logger *zerolog.Logger
}

var Models = []interface{}{
	SyncRun{},
}

// DefaultGormModel provides a base model with common fields for GORM models, removing the DeletedAt field.
type DefaultGormModel struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewDatabaseContext(config *Database, logger *zerolog.Logger) (*DatabaseContext, error) {
	dsn := config.Dsn
	var dialector gorm.Dialector
	switch config.Driver {
	case DatabaseDriverSqlite:
		dialector = sqlite.Open(dsn)
	case DatabaseDriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DatabaseContext{
		DB:     db,
		Config: config,
		Logger: logger,
	}, nil
}

func (dc *DatabaseContext) Migrate() error {
	for _, model := range Models {
		err := dc.DB.AutoMigrate(&model)
		if err != nil {
			return err
		}
		dc.Logger.Info().Str("model", fmt.Sprintf("%T", model)).Msg("Migrated model")
	}
	return nil
}

func (databaseContext *DatabaseContext) DatabaseMiddleware() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ctx = huma.WithValue(ctx, "databaseContext", databaseContext)
		next(ctx)
	}
}
