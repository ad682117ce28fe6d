package main

import (
	"context"
	"flag"
	"time"
	mongoMigration "tourbook/internal/migrations/mongo"
	"tourbook/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	timeout := flag.Duration("timeout", 120*time.Second, "overall deadline for the migration job")
	flag.Parse()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg.Log.Info("Starting Mongo migration job", "database", cfg.MongoDatabaseName, "timeout", *timeout)
	started := time.Now()
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully", "duration", time.Since(started))
}
