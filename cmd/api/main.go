package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"rentora/internal/config"
	"rentora/internal/database"
	"rentora/internal/middleware"
	"rentora/internal/modules/billing"
	"rentora/internal/modules/lease"
	"rentora/internal/modules/ledger"
	"rentora/internal/modules/payment"
	"rentora/internal/modules/settlement"
	"rentora/internal/notification"
	"rentora/internal/pkg/audit"
	jwtsvc "rentora/internal/pkg/jwt"
	"rentora/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := buildLogger(cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("database connect failed", "err", err)
	}
	if err := database.Migrate(db); err != nil {
		sugar.Fatalw("migrate failed", "err", err)
	}

	store := repository.NewStore(db)
	auditLog := audit.New(store.Audit, sugar)
	notifier := buildNotifier(cfg, sugar)

	j := jwtsvc.New(cfg.JWTSecret, 24*time.Hour)

	ledgerService := ledger.NewService(store, sugar)
	leaseService := lease.NewService(store, ledgerService, notifier, auditLog, sugar)
	billingService := billing.NewService(store, notifier, auditLog, cfg.InvoiceDueDay, sugar)
	settlementService := settlement.NewService(store, billingService, notifier, auditLog, sugar)
	coordinator := settlement.NewCoordinator(store, leaseService, sugar)
	billingService.SetSettlementHook(coordinator)
	paymentService := payment.NewService(store, leaseService, billingService, cfg, sugar)

	ledgerHandler := ledger.NewHandler(ledgerService)
	leaseHandler := lease.NewHandler(leaseService)
	billingHandler := billing.NewHandler(billingService)
	settlementHandler := settlement.NewHandler(settlementService)
	paymentHandler := payment.NewHandler(paymentService, sugar)

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(sugar))
	r.Use(middleware.CORS())

	v1 := r.Group("/api/v1")
	{
		// public: the gateway authenticates with its own signature
		paymentHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.Auth(j))
		{
			leaseHandler.RegisterRoutes(protected)
			ledgerHandler.RegisterRoutes(protected)
			billingHandler.RegisterRoutes(protected)
			settlementHandler.RegisterRoutes(protected)
			paymentHandler.RegisterRoutes(protected)
		}
	}

	sugar.Infow("listening", "addr", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		sugar.Fatalw("server stopped", "err", err)
	}
}

func buildLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// buildNotifier wires real mail delivery when SMTP is configured and falls
// back to log-only delivery otherwise. Tenant addresses follow the directory
// convention tenant-<id>@<billing domain> until a tenant service exists.
func buildNotifier(cfg *config.Config, sugar *zap.SugaredLogger) *notification.TenantNotifier {
	var sender notification.Sender
	if cfg.SMTPAddr != "" {
		sender = &notification.SMTPSender{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom}
	} else {
		sender = &notification.LogSender{Log: sugar}
	}
	return &notification.TenantNotifier{
		Sender: sender,
		Lookup: func(_ context.Context, tenantID int64) (string, error) {
			return fmt.Sprintf("tenant-%d@rentora.local", tenantID), nil
		},
		Log: sugar,
	}
}
