package repository

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gigearn-link/internal/config"
	"gigearn-link/internal/util"
)

type Database struct {
	db     *gorm.DB
	cipher *util.Cipher
}

// New connects to Postgres.
func New(cfg config.DatabaseConfig, cipher *util.Cipher, autoMigrate bool) (*Database, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
	return open(postgres.Open(dsn), cipher, autoMigrate)
}

// NewSQLite opens a SQLite file, or a private in-memory database for ":memory:".
func NewSQLite(path string, cipher *util.Cipher, autoMigrate bool) (*Database, error) {
	return open(sqlite.Open(path), cipher, autoMigrate)
}

func open(dialector gorm.Dialector, cipher *util.Cipher, autoMigrate bool) (*Database, error) {
	if cipher == nil {
		return nil, ErrNoCipher
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed db connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("can`t db connection: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed db connect: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// one writer; also keeps ":memory:" on a single connection
		sqlDB.SetMaxOpenConns(1)
	}

	log.Print("DB connected")

	if autoMigrate {
		log.Println("DB migrations...")
		if err := RunMigrations(db); err != nil {
			return nil, fmt.Errorf("migration error: %w", err)
		}
		log.Println("Migrations done")
	} else {
		log.Println("AutoMigrate disabled")
	}

	return &Database{db: db, cipher: cipher}, nil
}

// DB retrieve DB
func (d *Database) DB() *gorm.DB {
	return d.db
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
