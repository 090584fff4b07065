package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmcateer/chatrelay/internal/api"
	"github.com/jmcateer/chatrelay/internal/auth"
	"github.com/jmcateer/chatrelay/internal/config"
	"github.com/jmcateer/chatrelay/internal/database"
	"github.com/jmcateer/chatrelay/internal/relay"
	"github.com/jmcateer/chatrelay/internal/stats"
	"github.com/jmcateer/chatrelay/internal/stream"
	"github.com/jmcateer/chatrelay/internal/types"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	allowedOrigins stringSliceFlag
	hashToken      string
)

func main() {
	flag.StringVar(&addr, "addr", "", "server address (overrides LISTEN_ADDR)")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&hashToken, "hash-token", "", "print a bcrypt hash of the given token and exit")
	flag.Parse()

	logger := log.New(os.Stderr, "[chat-relay] ", log.LstdFlags)

	if hashToken != "" {
		hash, err := auth.HashToken(hashToken)
		if err != nil {
			logger.Fatal("hash token:", err)
		}
		fmt.Println(hash)
		return
	}

	// load .env if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	cfg, err := config.NewConfig(addr, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	repo, err := database.NewPgChatRepository(cfg.StoreDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := repo.Migrate(logger); err != nil {
		logger.Fatal("migrate:", err)
	}

	gate, err := auth.NewGate(cfg.AuthToken, cfg.AuthTokenHash, logger)
	if err != nil {
		logger.Fatal("gate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatRelay := relay.NewChatRelay(gate, repo, statsUpdater, logger)

	listener, err := stream.NewListener(stream.Config{
		URL:        cfg.RealtimeURL,
		Key:        cfg.RealtimeKey,
		RetryDelay: cfg.StreamRetryDelay,
		Identity:   chatRelay.Identity,
	}, logger, statsUpdater)
	if err != nil {
		logger.Fatal("stream listener:", err)
	}

	listener.OnMessage = func(msg types.ChatMessage) {
		logger.Printf("message %d from %s: %s", msg.Id, msg.Username, msg.Message)
	}
	listener.OnPresence = func(change types.PresenceChange) {
		if change.IsConnected {
			logger.Printf("presence: %s connected", change.Username)
		} else {
			logger.Printf("presence: %s disconnected", change.Username)
		}
	}

	srv := api.NewRelayApp(mux, logger, chatRelay, repo, cfg)

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()

	streamDone := make(chan struct{})
	go func() {
		listener.Run(streamCtx)
		close(streamDone)
	}()

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
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("stopping stream listener...")
	stopStream()
	select {
	case <-streamDone:
	case <-shutDownCtx.Done():
		logger.Println("stream listener did not stop in time")
	}

	logger.Println("shutdown complete")
}
