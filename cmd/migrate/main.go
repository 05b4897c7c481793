package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/config"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/database"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/logger"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to revert with down")
	flag.Parse()

	direction := flag.Arg(0)
	if direction == "" {
		direction = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	switch direction {
	case "up":
		err = database.RunMigrations(db.DB, logr)
	case "down":
		err = database.RollbackMigrations(db.DB, *steps, logr)
	default:
		logr.Fatal("unknown direction, use up or down", zap.String("direction", direction))
	}
	if err != nil {
		logr.Fatal("migration failed", zap.String("direction", direction), zap.Error(err))
	}
}
