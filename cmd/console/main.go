package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jcourtner/wayfarer/internal/config"
	"github.com/jcourtner/wayfarer/internal/logger"
	internalstorage "github.com/jcourtner/wayfarer/internal/storage"
)

type ConsoleConfig struct {
	GuildID string
	UserID  string
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <guild-id> <user-id>\n", os.Args[0])
		os.Exit(1)
	}

	consoleCfg := &ConsoleConfig{
		GuildID: os.Args[1],
		UserID:  os.Args[2],
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	slogger := logger.Setup(cfg)

	store, err := internalstorage.NewRedisStore(cfg.RedisURL, slogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close() // Ignore error in defer
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect to Redis. Please ensure it is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(consoleCfg, store), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
