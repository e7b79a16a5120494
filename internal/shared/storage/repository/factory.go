// Package repository 存储工厂函数
package repository

import (
	"fmt"

	"genome-engine/internal/shared/storage"
	"genome-engine/internal/shared/storage/dbutil"
	postgresdriver "genome-engine/internal/shared/storage/driver/postgres"
	sqlitedriver "genome-engine/internal/shared/storage/driver/sqlite"
)

// 编译期校验：Store 实现了全部存储接口
var _ storage.PersistentStore = (*Store)(nil)

// NewSQLiteStore 创建 SQLite 存储（含自动建表）
func NewSQLiteStore(dsn string) (*Store, error) {
	db, err := sqlitedriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	dialect := sqlitedriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite auto-migrate failed: %w", err)
	}
	return NewStore(db, dialect), nil
}

// NewPostgresStore 创建 PostgreSQL 存储（含幂等建表）
func NewPostgresStore(databaseURL string) (*Store, error) {
	db, err := postgresdriver.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	dialect := postgresdriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres auto-migrate failed: %w", err)
	}
	return NewStore(db, dialect), nil
}

// NewPersistentStoreFromDSN 根据驱动类型和 DSN 创建持久化存储
// 支持的驱动类型：postgres, sqlite
func NewPersistentStoreFromDSN(driver dbutil.DriverType, dsn string) (storage.PersistentStore, error) {
	switch driver {
	case dbutil.DriverPostgres:
		return NewPostgresStore(dsn)
	case dbutil.DriverSQLite:
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
