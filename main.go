package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/goal_vault/config"
	"github.com/goal_vault/handler"
	"github.com/goal_vault/model"
	"github.com/goal_vault/repository"
	"github.com/goal_vault/router"
	"github.com/goal_vault/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial rpc node")
	}

	var signer *service.Signer
	if cfg.SignerKeyHex != "" {
		signer, err = service.NewSignerFromHex(cfg.SignerKeyHex, cfg.ChainID)
	} else {
		signer, err = service.NewSignerFromMnemonic(cfg.SignerMnemonic, cfg.ChainID)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signing key")
	}
	log.Info().Str("address", signer.Address().Hex()).Msg("operator signer loaded")

	if !common.IsHexAddress(cfg.ContractAddress) {
		log.Fatal().Str("address", cfg.ContractAddress).Msg("invalid contract address")
	}
	bridge, err := service.NewLedgerBridge(client, common.HexToAddress(cfg.ContractAddress), signer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ledger bridge")
	}

	goalRepo := repository.NewGoalRepository(db)
	txRepo := repository.NewTxRepository(db)
	reconcileRepo := repository.NewReconcileRepository(db)
	walletRepo := repository.NewWalletLinkRepository(db)

	oracle := service.NewPriceOracle(cfg.PriceAPIBase, log)
	goalSvc := service.NewGoalService(goalRepo, txRepo, reconcileRepo, bridge, log)
	walletSvc := service.NewWalletService(walletRepo, log)
	sweeper := service.NewReconcileSweeper(service.SweeperConfig{
		Goals:    goalRepo,
		Queue:    reconcileRepo,
		Interval: cfg.SweepInterval,
		Logger:   log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go oracle.Run(ctx)
	sweeper.Start(ctx)

	r := router.SetupRouter(
		handler.NewGoalHandler(goalSvc, oracle),
		handler.NewWalletHandler(walletSvc),
		handler.NewPriceHandler(oracle),
	)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("goal vault service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}

	// Let in-flight ledger confirmations land before exiting.
	goalSvc.Wait()
}
