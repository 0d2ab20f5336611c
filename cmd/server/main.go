package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-studychat/internal/api"
	"github.com/npezzotti/go-studychat/internal/config"
	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/server"
	"github.com/npezzotti/go-studychat/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	envFile        string
	addr           string
	dsn            string
	store          string
	badgerPath     string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[go-studychat] ", log.LstdFlags)

	env, err := config.LoadEnv(".env")
	if err != nil {
		logger.Fatal("env:", err)
	}
	if env.SigningKey == "" {
		env.SigningKey = defaultSigningKey
	}

	flag.StringVar(&addr, "addr", env.Addr, "server address")
	flag.StringVar(&store, "store", env.Store, "message store backend: postgres or badger")
	flag.StringVar(&dsn, "dsn", env.DSN, "database connection string")
	flag.StringVar(&badgerPath, "badger-path", env.BadgerPath, "badger data directory, in-memory when empty")
	flag.StringVar(&signingKey, "signing-key", env.SigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = env.AllowedOrigins
	}

	cfg, err := config.NewConfig(addr, store, dsn, badgerPath, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := database.Open(cfg.Store, cfg.DatabaseDSN, cfg.BadgerPath)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	chatServer := server.NewChatServer(logger, db, statsUpdater, server.AllowAllRooms{})

	srv := api.NewStudyChatApp(mux, logger, chatServer, db, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
