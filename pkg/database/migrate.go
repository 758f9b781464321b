package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "budget_schema_migrations"

// RunMigrations 应用嵌入的全部未执行迁移
// 上次迁移中断（dirty）时拒绝启动，需人工修复后用 migrate force 清除标记
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("读取迁移版本失败: %w", err)
	case dirty:
		return fmt.Errorf("数据库迁移处于 dirty 状态（版本 %d），请人工修复", from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("数据库结构已是最新", zap.Uint("version", from))
			return nil
		}
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	to, _, _ := m.Version()
	logger.Info("数据库迁移完成", zap.Uint("from", from), zap.Uint("to", to))
	return nil
}
