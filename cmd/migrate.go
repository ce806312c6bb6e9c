package cmd

import (
	"context"
	"time"

	"github.com/nodaluxe/ms-go-checkout/app/repository"
	"github.com/nodaluxe/ms-go-checkout/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the bookings schema to the Postgres store",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		logrus.WithField("driver", cfg.Store.Driver).Fatal("migrate requires BOOKING_STORE_DRIVER=postgres")
	}

	db := mustOpenPostgres(cfg)
	defer func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := repository.Migrate(ctx, db); err != nil {
		logrus.WithError(err).Fatal("Migration failed")
	}
	logrus.Info("Bookings schema applied")
}
