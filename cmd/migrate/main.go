package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/logger"
	sqlstore "agenticflow/backend/internal/storage/sql"
)

// main 对配置的数据库执行表结构迁移。
//
// 建表基于 GORM AutoMigrate,可以安全地重复执行:
// 已存在的表只补充缺失的列和索引。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Fatal("database not configured, set AGENTICFLOW_DATABASE_TYPE and AGENTICFLOW_DATABASE_DSN")
	}

	log.Info("running database migration",
		zap.String("type", cfg.Database.Type),
	)

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	defer store.Close()

	if err := store.Health(); err != nil {
		log.Fatal("database health check failed", zap.Error(err))
	}

	log.Info("migration completed successfully")
}
