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

	"github.com/npezzotti/go-social/internal/api"
	"github.com/npezzotti/go-social/internal/config"
	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/media"
	"github.com/npezzotti/go-social/internal/relay"
	"github.com/npezzotti/go-social/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, config.SplitOrigins(value)...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	uploadDir      string
	runMigrations  bool
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[go-social] ", log.LstdFlags)

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatal("env: ", err)
	}

	if env.SigningKey == "" {
		env.SigningKey = defaultSigningKey
	}

	flag.StringVar(&addr, "addr", env.Addr, "server address")
	flag.StringVar(&dsn, "dsn", env.DSN, "database connection string")
	flag.StringVar(&signingKey, "signing-key", env.SigningKey, "base64 encoded signing key")
	flag.StringVar(&uploadDir, "upload-dir", env.UploadDir, "directory for uploaded images")
	flag.BoolVar(&runMigrations, "migrate", env.Migrate, "apply database migrations on startup")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = config.SplitOrigins(env.AllowedOrigins)
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, uploadDir)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	dbConn, err := database.NewPgSocialRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if runMigrations {
		if err := dbConn.Migrate(); err != nil {
			logger.Fatal("db migrate: ", err)
		}
	}

	store, err := media.NewStore(cfg.UploadDir, media.DefaultMaxSize)
	if err != nil {
		logger.Fatal("media store: ", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatRelay := relay.NewRelay(logger, api.NewChatDirectory(dbConn), statsUpdater)

	srv := api.NewSocialApp(mux, logger, chatRelay, dbConn, store, cfg)

	go chatRelay.Run()

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

	logger.Println("shutting down chat relay...")
	if err := chatRelay.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat relay shutdown:", err)
	}

	logger.Println("shutdown complete")
}
