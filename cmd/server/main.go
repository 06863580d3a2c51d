package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/anvar-m/judgement/internal/config"
	"github.com/anvar-m/judgement/internal/handlers"
	"github.com/anvar-m/judgement/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	var st store.Store
	switch cfg.StoreBackend {
	case "redis":
		rs, err := store.ConnectRedis(context.Background(), cfg.RedisAddr, cfg.RedisDB, logger)
		if err != nil {
			logger.WithError(err).Fatal("redis store init failed")
		}
		st = rs
	default:
		st = store.NewMemoryStore()
	}
	logger.WithField("backend", cfg.StoreBackend).Info("store ready")

	mux := http.NewServeMux()
	mux.HandleFunc("/", handlers.PingHandler)
	mux.Handle("/store", handlers.NewStoreHandler(st, logger))

	server := &http.Server{
		Handler:      handlers.LogMiddleware(logger)(mux),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		logger.WithError(err).Fatal("failed to listen")
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.WithError(err).Error("failed to serve")
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
