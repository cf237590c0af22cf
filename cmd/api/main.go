package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lv-finbroker/internal/broker"
	"lv-finbroker/internal/config"
	"lv-finbroker/internal/gateway"
	"lv-finbroker/internal/health"
	"lv-finbroker/internal/httpserver"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := newLogger(cfg.Mode)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	gw := gateway.NewClient(
		cfg.GatewayBaseURL,
		cfg.GatewayWSURL,
		cfg.GatewayIssuer,
		[]byte(cfg.GatewayToken),
		cfg.GatewayTokenTTL,
		logger.Named("gateway"),
	)
	b := broker.New(gw, cfg.ClientID, cfg.UsePositions, logger.Named("broker"))
	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer b.Stop()

	brokerHandler := broker.NewHandler(b)
	healthHandler := health.NewHandler(time.Now(), cfg.HTTPAddr)
	wsHandler := httpserver.NewNotificationsWS(b, cfg.WebSocketOrigin)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		BrokerHandler: brokerHandler,
		HealthHandler: healthHandler,
		WSHandler:     wsHandler,
		InternalToken: cfg.InternalToken,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
