package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLDatabase implements Database on a relational database through gorm.
// Documents are stored as JSON text.
type SQLDatabase struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// Compile-time interface checks.
var (
	_ Database   = (*SQLDatabase)(nil)
	_ Collection = (*sqlCollection)(nil)
)

// NewSQLDatabase creates a SQL backed Database. Call Start before use.
func NewSQLDatabase(log logrus.FieldLogger, cfg *config.DatabaseConfig) *SQLDatabase {
	return &SQLDatabase{
		log: log.WithField("component", "sql-docstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *SQLDatabase) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case config.DatabaseDriverSQLite:
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case config.DatabaseDriverPostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening document database: %w", err)
	}

	if s.cfg.Driver == config.DatabaseDriverSQLite {
		// Every sqlite connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&CollectionRow{},
		&DocumentRow{},
	); err != nil {
		return fmt.Errorf("running document migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Document database connected")

	return nil
}

func (s *SQLDatabase) Kind() string {
	return s.cfg.Driver
}

// Collection returns the registered collection called name.
func (s *SQLDatabase) Collection(ctx context.Context, name string) (Collection, error) {
	var row CollectionRow

	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("collection %s: %w", name, ErrNotFound)
		}

		return nil, fmt.Errorf("reading collection %s: %w", name, err)
	}

	return &sqlCollection{name: row.Name, db: s.db}, nil
}

// CreateCollection registers a new collection.
func (s *SQLDatabase) CreateCollection(
	ctx context.Context, name, partitionKeyPath string,
) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&CollectionRow{}).
			Where("name = ?", name).
			Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return fmt.Errorf("collection %s: %w", name, ErrConflict)
		}

		return tx.Create(&CollectionRow{
			Name:             name,
			PartitionKeyPath: partitionKeyPath,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	s.log.WithField("collection", name).Info("Collection created")

	return nil
}

// Close closes the underlying database connection.
func (s *SQLDatabase) Close() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

type sqlCollection struct {
	name string
	db   *gorm.DB
}

func (c *sqlCollection) Name() string {
	return c.name
}

// Upsert inserts or replaces the document keyed by collection + id.
func (c *sqlCollection) Upsert(ctx context.Context, id string, doc any) error {
	body, err := encodeDocument(id, doc)
	if err != nil {
		return err
	}

	row := &DocumentRow{Collection: c.name, ID: id}

	result := c.db.WithContext(ctx).
		Where("collection = ? AND id = ?", c.name, id).
		Assign(DocumentRow{Body: string(body)}).
		FirstOrCreate(row)
	if result.Error != nil {
		return fmt.Errorf("upserting %s into %s: %w", id, c.name, result.Error)
	}

	return nil
}

// Create inserts the document unless one with the same id exists.
func (c *sqlCollection) Create(ctx context.Context, id string, doc any) error {
	body, err := encodeDocument(id, doc)
	if err != nil {
		return err
	}

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DocumentRow{}).
			Where("collection = ? AND id = ?", c.name, id).
			Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return ErrConflict
		}

		return tx.Create(&DocumentRow{
			Collection: c.name,
			ID:         id,
			Body:       string(body),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("creating %s in %s: %w", id, c.name, err)
	}

	return nil
}

// Get decodes the stored document into out.
func (c *sqlCollection) Get(ctx context.Context, id string, out any) error {
	var row DocumentRow

	err := c.db.WithContext(ctx).
		Where("collection = ? AND id = ?", c.name, id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("document %s in %s: %w", id, c.name, ErrNotFound)
		}

		return fmt.Errorf("reading %s from %s: %w", id, c.name, err)
	}

	if err := json.Unmarshal([]byte(row.Body), out); err != nil {
		return fmt.Errorf("decoding %s: %w", id, err)
	}

	return nil
}
