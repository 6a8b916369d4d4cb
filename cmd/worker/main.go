package main

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"govhub/internal/config"
	"govhub/internal/db"
	"govhub/internal/distribution"
	"govhub/internal/ledger"
	"govhub/internal/logging"
	"govhub/internal/settlement"
	"govhub/internal/store"
	"govhub/internal/worker"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		panic("logger init failed: " + err.Error())
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer pool.Close()

	hubOwner, err := ledger.DecodePrincipal(cfg.Ledger.HubPrincipal)
	if err != nil {
		log.Fatal("invalid hub principal", zap.Error(err))
	}
	treasury, err := ledger.DecodePrincipal(cfg.Ledger.TreasuryPrincipal)
	if err != nil {
		log.Fatal("invalid treasury principal", zap.Error(err))
	}

	client, err := ledger.NewMultiRPCClient(cfg.Ledger.GatewayEndpoints, cfg.Ledger.FailoverThreshold)
	if err != nil {
		log.Fatal("ledger client init failed", zap.Error(err))
	}
	gateway := &ledger.Gateway{
		Client: client,
		Resolver: ledger.Resolver{
			Env: ledger.Environment(cfg.Ledger.Environment),
			Overrides: map[ledger.Token]string{
				ledger.TokenICP:   cfg.Ledger.ICPLedger,
				ledger.TokenCKBTC: cfg.Ledger.CkBTCLedger,
			},
		},
		Log: log,
	}

	holderSub, err := parseHolderSubaccount(cfg.Distribution.HolderSubaccount)
	if err != nil {
		log.Fatal("invalid holder subaccount", zap.Error(err))
	}

	st := store.New(pool)
	scheduler := &distribution.Scheduler{
		Store:            st,
		Tokens:           gateway,
		HolderSubaccount: holderSub,
		EmissionSpacing:  cfg.EmissionSpacing(),
		Log:              log,
	}
	engine := &settlement.Engine{
		Store:      st,
		Gateway:    gateway,
		HubOwner:   hubOwner,
		Treasury:   treasury,
		BaseFee:    cfg.Payments.BaseFee,
		ConfirmTTL: cfg.ConfirmTTL(),
		Log:        log,
	}

	w := &worker.Worker{
		Store:      st,
		Scheduler:  scheduler,
		Engine:     engine,
		Interval:   cfg.DistributionInterval(),
		ConfirmTTL: cfg.ConfirmTTL(),
		HubOwner:   hubOwner,
		WSEndpoint: cfg.Ledger.WSEndpoint,
		Log:        log,
	}

	log.Info("worker starting", zap.Duration("interval", cfg.DistributionInterval()))
	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}

// parseHolderSubaccount decodes an optional 32-byte hex subaccount. Empty
// means the zero subaccount, the ledger default.
func parseHolderSubaccount(s string) ([32]byte, error) {
	var sub [32]byte
	if s == "" {
		return sub, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return sub, err
	}
	if len(raw) != 32 {
		return sub, errors.New("holder subaccount must be 32 bytes")
	}
	copy(sub[:], raw)
	return sub, nil
}
