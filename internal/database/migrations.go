package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"listmyspace/server/internal/models"
)

// Migration is one forward-only schema step, applied at most once
type Migration struct {
	Version string
	Name    string
	Up      func(*gorm.DB) error
}

// MigrationRecord marks an applied migration
type MigrationRecord struct {
	Version   string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// SchemaModels lists every table owned by the application
func SchemaModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Owner{},
		&models.Customer{},
		&models.Feature{},
		&models.Residence{},
		&models.Commercial{},
		&models.Land{},
		&models.Image{},
		&models.Message{},
		&models.Review{},
		&models.Favorite{},
		&models.Notification{},
	}
}

var migrations = []Migration{
	{
		Version: "20241016150830",
		Name:    "create_marketplace_tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(SchemaModels()...)
		},
	},
	{
		Version: "20241020181907",
		Name:    "index_property_coordinates",
		Up: func(tx *gorm.DB) error {
			for _, kind := range models.PropertyKinds {
				stmt := fmt.Sprintf(
					"CREATE INDEX IF NOT EXISTS idx_%s_coordinates ON %s(latitude, longitude)",
					kind.Table(), kind.Table(),
				)
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrations returns the registered migrations in application order
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// RunMigrations applies pending migrations, each inside its own transaction
func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := d.AppliedMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}

		d.logger.WithFields(logrus.Fields{
			"version": m.Version,
			"name":    m.Name,
		}).Info("Applying migration")

		err := d.db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s_%s: %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// AppliedMigrations returns the records of applied migrations keyed by version
func (d *Database) AppliedMigrations() (map[string]MigrationRecord, error) {
	var records []MigrationRecord
	if err := d.db.Order("version").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	out := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		out[r.Version] = r
	}
	return out, nil
}
