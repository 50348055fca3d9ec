package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/icejoin/gologger"
	"github.com/danthegoodman1/icejoin/utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

var (
	PGPool                 *pgxpool.Pool
	StandardContextTimeout = 10 * time.Second

	logger = gologger.NewComponentLogger("crdb")
)

func ConnectToDB() error {
	if utils.CRDB_DSN == "" {
		return fmt.Errorf("CRDB_DSN is not set")
	}
	logger.Debug().Msg("connecting to CRDB...")
	var err error
	config, err := pgxpool.ParseConfig(utils.CRDB_DSN)
	if err != nil {
		return fmt.Errorf("error in pgxpool.ParseConfig: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.HealthCheckPeriod = time.Second * 5
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 30

	ctx, cancel := context.WithTimeout(context.Background(), StandardContextTimeout)
	defer cancel()
	PGPool, err = pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("error in pgxpool.ConnectConfig: %w", err)
	}
	logger.Debug().Msg("connected to CRDB")
	return nil
}
