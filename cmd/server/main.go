package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mihijito/uvid-api/internal/config"
	"github.com/Mihijito/uvid-api/internal/server"
	"github.com/Mihijito/uvid-api/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (env vars used if empty)")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = config.FromEnv()
	}

	opts := []server.Option{
		server.WithJournalSize(cfg.Journal.MaxEvents),
		server.WithConnOptions(
			ws.WithSendBuffer(cfg.WebSocket.SendBuffer),
			ws.WithWriteTimeout(cfg.WebSocket.WriteTimeout.Std()),
			ws.WithMaxConns(cfg.WebSocket.MaxConns),
			ws.WithIdleTimeout(cfg.WebSocket.IdleTimeout.Std()),
		),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		log.Printf("Connected to Redis at %s", cfg.RedisAddr)
		opts = append(opts, server.WithRedis(rdb))
	}

	srv := server.New(cfg.ListenAddr, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Print("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Signaling relay listening on %s", cfg.ListenAddr)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
