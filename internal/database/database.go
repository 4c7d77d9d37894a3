package database

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Wirlhawk/skillswap-sub000/config"
)

// Databases holds the write connection and the read-only connection used for display queries
type Databases struct {
	Write *gorm.DB
	Read  *gorm.DB
}

// Connect opens the write database and, when configured, the read-only replica.
// Without a replica DSN reads go to the write database.
func Connect(cfg config.DatabaseConfig) (*Databases, error) {
	write, err := Open(postgres.Open(cfg.DSN), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to write database")
	}

	if cfg.ReadOnlyDSN == "" {
		log.Info().Msg("No read-only database configured, reading from the write database")
		return &Databases{Write: write, Read: write}, nil
	}

	read, err := Open(postgres.Open(cfg.ReadOnlyDSN), cfg)
	if err != nil {
		_ = closeDB(write)
		return nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	return &Databases{Write: write, Read: read}, nil
}

// Open opens a gorm database with the service's logger, pool settings and metrics hooks
func Open(dialector gorm.Dialector, cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewLogger(cfg.LogLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get DB instance")
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := RegisterMetricsHooks(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Close closes both connections
func (d *Databases) Close() error {
	if d.Read != nil && d.Read != d.Write {
		if err := closeDB(d.Read); err != nil {
			return err
		}
	}
	return closeDB(d.Write)
}

// Ping checks that the write database is reachable
func (d *Databases) Ping() error {
	sqlDB, err := d.Write.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
