package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmmmuhib/beneat-sol-sub001/params"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/api"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/events"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/feed"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/keeper"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/program"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	programID, err := ledger.AddressFromHex(cfg.Program.ID)
	if err != nil {
		sugar.Fatalw("bad_program_id", "err", err)
	}
	delegationProgram, err := ledger.AddressFromHex(cfg.Program.DelegationProgram)
	if err != nil {
		sugar.Fatalw("bad_delegation_program", "err", err)
	}
	delegationAuthority, err := ledger.AddressFromHex(cfg.Program.DelegationAuthority)
	if err != nil {
		sugar.Fatalw("bad_delegation_authority", "err", err)
	}

	// ---- Ledger: permanent base layer + delegated execution layer ----
	base, err := ledger.NewStore(filepath.Join(cfg.Node.DataDir, "base.db"))
	if err != nil {
		sugar.Fatalw("base_store_failed", "err", err)
	}
	defer base.Close()
	exec, err := ledger.NewStore(filepath.Join(cfg.Node.DataDir, "exec.db"))
	if err != nil {
		sugar.Fatalw("exec_store_failed", "err", err)
	}
	defer exec.Close()

	prog := &program.Program{
		ID:                  programID,
		DelegationProgram:   delegationProgram,
		DelegationAuthority: delegationAuthority,
		GracePeriod:         cfg.Program.GracePeriod,
		Clock:               util.RealClock{},
	}
	rt := &program.Runtime{Base: base, Exec: exec}

	// ---- Keeper identity ----
	var signer *keeper.Signer
	if seed := os.Getenv("KEEPER_SEED"); seed != "" {
		signer, err = keeper.SignerFromSeedHex(seed)
	} else {
		signer, err = keeper.GenerateSigner()
	}
	if err != nil {
		sugar.Fatalw("signer_failed", "err", err)
	}
	sugar.Infow("keeper_identity", "crank", signer.Address().Hex())

	// ---- Price feed ----
	var priceFeed keeper.PriceFeed
	if cfg.Keeper.NatsURL != "" {
		natsFeed, err := feed.ConnectNATS(cfg.Keeper.NatsURL, sugar)
		if err != nil {
			sugar.Fatalw("price_feed_failed", "err", err)
		}
		defer natsFeed.Close()
		priceFeed = natsFeed
	} else {
		// Dev fallback: one fixed price for every feed.
		static := uint64(180_000_000)
		if v := os.Getenv("PRICE_STATIC"); v != "" {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				static = n
			}
		}
		priceFeed = feed.Static{FixedPrice: static}
		sugar.Infow("price_feed_static", "price", static)
	}

	// ---- Keeper ----
	registry := prometheus.NewRegistry()
	k, err := keeper.New(keeper.Config{
		PollInterval:   cfg.Keeper.PollInterval,
		PriceStaleness: cfg.Keeper.PriceStaleness,
		TipLamports:    cfg.Keeper.TipLamports,
	}, keeper.Options{
		Exec:      exec,
		ProgramID: programID,
		Signer:    signer,
		Submitter: &keeper.LocalSubmitter{Program: prog, Runtime: rt},
		Feed:      priceFeed,
		Logger:    sugar,
		Metrics:   keeper.NewMetrics(registry),
	})
	if err != nil {
		sugar.Fatalw("keeper_init_failed", "err", err)
	}

	// ---- Settlement events ----
	var publisher events.Publisher = events.Nop{}
	if cfg.Keeper.NatsURL != "" {
		pub, err := events.Connect(cfg.Keeper.NatsURL)
		if err != nil {
			sugar.Fatalw("nats_publisher_failed", "err", err)
		}
		publisher = pub
	}
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API server ----
	apiServer := api.NewServer(api.Options{
		Keeper:              k,
		Base:                base,
		Exec:                exec,
		DelegationAuthority: delegationAuthority,
		Registry:            registry,
		Logger:              sugar,
	})
	go func() {
		if err := apiServer.Start(ctx, cfg.Keeper.ListenAddr); err != nil && ctx.Err() == nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// Fan settlement outcomes out to NATS and the WebSocket hub.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-k.Events():
				if !ok {
					return
				}
				apiServer.BroadcastResult(res)
				if err := publisher.PublishResult(res); err != nil {
					sugar.Warnw("event_publish_failed", "record", res.Address.Hex(), "err", err)
				}
			}
		}
	}()

	sugar.Infow("keeper_starting",
		"program", programID.Hex(),
		"poll_interval_ms", cfg.Keeper.PollInterval.Milliseconds(),
		"listen", cfg.Keeper.ListenAddr,
	)

	if err := k.Run(ctx); err != nil && ctx.Err() == nil {
		sugar.Fatalw("keeper_failed", "err", err)
	}
}
