package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkovalev/coinfunnel/internal/db"
	"github.com/dkovalev/coinfunnel/internal/handlers"
	"github.com/dkovalev/coinfunnel/internal/logger"
	"github.com/dkovalev/coinfunnel/internal/repository/postgres"
	"github.com/dkovalev/coinfunnel/internal/service/funnel"
	"github.com/dkovalev/coinfunnel/internal/service/ledger"
	"github.com/dkovalev/coinfunnel/internal/service/payment"
	"github.com/dkovalev/coinfunnel/internal/service/payment/gateway"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	closePool func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	ledgerService := ledger.NewService(storage)
	funnelService := funnel.NewService(storage)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:   c.GatewayAPIURL,
		ShopID:    c.GatewayShopID,
		SecretKey: c.GatewaySecretKey,
	})
	paymentService := payment.NewService(payment.Config{
		ReturnURL:            c.ReturnURL,
		DefaultCustomerEmail: c.DefaultCustomerEmail,
	}, storage, gatewayClient, logger)

	mux := handlers.NewRouter(
		funnelService,
		ledgerService,
		paymentService,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		closePool:  pool.Close,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if s.closePool != nil {
		s.closePool()
	}

	return err
}
