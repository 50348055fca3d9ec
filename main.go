package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danthegoodman1/icejoin/crdb"
	"github.com/danthegoodman1/icejoin/dataset"
	"github.com/danthegoodman1/icejoin/datastore"
	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/danthegoodman1/icejoin/http_server"
	"github.com/danthegoodman1/icejoin/metastore"
	"github.com/danthegoodman1/icejoin/migrations"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/spf13/cobra"
)

var logger = gologger.NewLogger()

var rootCmd = &cobra.Command{
	Use:           "icejoin",
	Short:         "Partitioned shuffle joins over CSV files and stored parquet datasets",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply pending CRDB migrations before starting")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func serve() error {
	logger.Debug().Msg("starting icejoin api")

	if utils.METASTORE == "crdb" {
		if runMigrations {
			n, err := migrations.RunMigrations(utils.CRDB_DSN)
			if err != nil {
				return fmt.Errorf("error running migrations: %w", err)
			}
			logger.Info().Int("applied", n).Msg("ran migrations")
		}
		if err := crdb.ConnectToDB(); err != nil {
			return fmt.Errorf("error connecting to CRDB: %w", err)
		}
		if err := migrations.CheckMigrations(utils.CRDB_DSN); err != nil {
			return fmt.Errorf("error checking migrations: %w", err)
		}
	}

	ds, err := datastore.FromEnv()
	if err != nil {
		return fmt.Errorf("error creating datastore: %w", err)
	}
	ms, err := metastore.FromEnv()
	if err != nil {
		return fmt.Errorf("error creating metastore: %w", err)
	}

	httpServer := http_server.StartHTTPServer(dataset.NewStore(ds, ms))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	// Convert the time to seconds
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
	if err := ms.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown metastore")
	}
	if err := ds.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown datastore")
	}
	return nil
}
