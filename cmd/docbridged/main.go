package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docbridge/docbridge/internal/agent"
	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/internal/ingest"
	"github.com/docbridge/docbridge/internal/mcp"
	"github.com/docbridge/docbridge/internal/retrieval"
	"github.com/docbridge/docbridge/internal/server"
	"github.com/docbridge/docbridge/internal/store"
)

const (
	documentServer  = "DocumentService"
	retrievalServer = "RAGService"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to docbridge config")
	listenAddr := flag.String("addr", "", "override listen address")
	debug := flag.Bool("debug", false, "debug logging")
	showVersion := flag.Bool("version", false, "print version")
	flag.Parse()

	if *showVersion {
		fmt.Println("docbridged dev")
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "error", err)
	}

	if err := run(*configPath, *listenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "docbridged: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr string) error {
	cfg, err := config.LoadOrInit(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	mgr := mcp.NewManager(cfg.Servers...)
	defer mgr.Close()

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	docs := ingest.New(mgr, documentServer)
	search := retrieval.New(mgr, retrievalServer)

	var answerer server.Answerer
	if cfg.Azure.Complete() {
		serverNames := make([]string, 0, len(cfg.Servers))
		for _, s := range cfg.Servers {
			serverNames = append(serverNames, s.Name)
		}
		a, err := agent.New(cfg.Azure, mgr, serverNames)
		if err != nil {
			return fmt.Errorf("build agent: %w", err)
		}
		answerer = a
	} else {
		slog.Warn("azure openai settings incomplete, conversational agent disabled")
	}

	srv := server.New(cfg.Server.UploadDir, mgr, docs, search, answerer, st)
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docbridged listening", "addr", cfg.Server.ListenAddr, "servers", len(cfg.Servers))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
