package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mermaid-studio/engine/internal/migrations"
	"github.com/mermaid-studio/engine/pkg/config"
	"github.com/mermaid-studio/engine/pkg/database"
	"github.com/mermaid-studio/engine/pkg/logger"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the most recent migration instead of migrating up")
	flag.Parse()

	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.OpenPostgres(context.Background(), cfg.DatabaseURL, log, true)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if *rollback {
		if err := migrations.RollbackLast(db); err != nil {
			log.Fatal("rollback failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, "rolled back last migration")
		return
	}

	if err := migrations.Run(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	fmt.Fprintln(os.Stdout, "migrations completed")
}
