package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/xuanbach0212/predictum/internal/blob/s3"
	"github.com/xuanbach0212/predictum/internal/cache/redis"
	"github.com/xuanbach0212/predictum/internal/config"
	"github.com/xuanbach0212/predictum/internal/domain"
	"github.com/xuanbach0212/predictum/internal/ledger"
	"github.com/xuanbach0212/predictum/internal/oracle"
	"github.com/xuanbach0212/predictum/internal/platform/chain"
	"github.com/xuanbach0212/predictum/internal/reconcile"
	"github.com/xuanbach0212/predictum/internal/server"
	"github.com/xuanbach0212/predictum/internal/server/handler"
	"github.com/xuanbach0212/predictum/internal/server/ws"
	"github.com/xuanbach0212/predictum/internal/service"
	"github.com/xuanbach0212/predictum/internal/settlement"
	"github.com/xuanbach0212/predictum/internal/store/postgres"
)

// Dependencies bundles everything the application supervises. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Ledger     *ledger.Ledger
	Chain      *chain.Client
	Monitor    *reconcile.Monitor
	Settlement *settlement.Engine
	Server     *server.Server
	Hub        *ws.Hub
	Archiver   *s3blob.Archiver
	Oracle     *oracle.Oracle
}

// Wire constructs every concrete dependency from the configuration. Optional
// backends (postgres, redis, chain, s3) are skipped when disabled; the
// ledger then runs purely in memory.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Durable mirror.
	var store domain.LedgerStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		store = postgres.NewLedgerStore(pgClient.Pool())
	}

	// Sync cache and signal bus.
	var (
		syncCache domain.SyncCache
		bus       domain.SignalBus
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		syncCache = redis.NewSyncCache(redisClient)
		bus = redis.NewSignalBus(redisClient)
	}

	// Ledger, hydrated from the mirror.
	deps.Ledger = ledger.New(store, cfg.Ledger.StartingBalance, logger)
	if store != nil {
		if err := deps.Ledger.Hydrate(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: hydrate ledger: %w", err)
		}
	}

	// Chain client and reconciliation monitor.
	if cfg.Chain.Enabled {
		deps.Chain = chain.NewClient(chain.Config{
			NodeURL:       cfg.Chain.NodeURL,
			ChainID:       cfg.Chain.ChainID,
			ApplicationID: cfg.Chain.ApplicationID,
			APIKey:        cfg.Chain.APIKey,
			Timeout:       cfg.Chain.Timeout.Duration,
		})

		if cfg.Reconcile.Enabled {
			deps.Monitor = reconcile.NewMonitor(deps.Chain, deps.Ledger, reconcile.Config{
				Interval:     cfg.Reconcile.Interval.Duration,
				MaxRetries:   cfg.Reconcile.MaxRetries,
				InitialDelay: cfg.Reconcile.InitialDelay.Duration,
			}, syncCache, bus, logger)
		}
	}

	// Settlement archive.
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(deps.Ledger, s3blob.NewWriter(s3Client), cfg.Archive.Interval.Duration, logger)
	}

	// Price oracle.
	if cfg.Oracle.Enabled {
		prices := oracle.NewCoinGecko(oracle.CoinGeckoConfig{
			BaseURL: cfg.Oracle.BaseURL,
		})
		deps.Oracle = oracle.New(deps.Ledger, prices, oracle.Config{
			Interval:      cfg.Oracle.Interval.Duration,
			CreateMarkets: cfg.Oracle.CreateMarkets,
			TopCoins:      cfg.Oracle.TopCoins,
		}, logger)
	}

	// Services, settlement, HTTP surface.
	markets := service.NewMarketService(deps.Ledger, bus, logger)
	bets := service.NewBetService(deps.Ledger, bus, logger)
	deps.Settlement = settlement.NewEngine(deps.Ledger, bus, logger)

	if bus != nil {
		deps.Hub = ws.NewHub(bus, logger)
	}

	deps.Server = server.New(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
		AdminKey:    cfg.Server.AdminKey,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(chainPinger(deps.Chain), logger),
		Markets: handler.NewMarketHandler(markets, syncCache, logger),
		Bets:    handler.NewBetHandler(bets, logger),
		Claims:  handler.NewClaimHandler(deps.Settlement, logger),
	}, deps.Hub, logger)

	return deps, cleanup, nil
}

// chainPinger avoids handing the health handler a typed-nil interface when
// the chain client is disabled.
func chainPinger(c *chain.Client) handler.ChainPinger {
	if c == nil {
		return nil
	}
	return c
}
