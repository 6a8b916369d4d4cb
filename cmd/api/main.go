package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"govhub/internal/config"
	"govhub/internal/db"
	internalhttp "govhub/internal/http"
	"govhub/internal/ledger"
	"govhub/internal/logging"
	"govhub/internal/models"
	"govhub/internal/services"
	"govhub/internal/settlement"
	"govhub/internal/store"

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

	ctx := context.Background()
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

	st := store.New(pool)
	orderSvc := &services.OrderService{
		Store: st,
		Prices: map[models.PaymentType]int64{
			models.PaymentSubscription: cfg.Payments.Prices.Subscription,
			models.PaymentDaoCreation:  cfg.Payments.Prices.DaoCreation,
			models.PaymentAward:        cfg.Payments.Prices.Award,
			models.PaymentVerification: cfg.Payments.Prices.Verification,
		},
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

	h := internalhttp.NewHandler(orderSvc, engine, st, cfg.Admin.Token)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
