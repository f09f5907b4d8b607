package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/Vasu1712/bookmate-backend/internal/api/messages"
	"github.com/Vasu1712/bookmate-backend/internal/config"
	"github.com/Vasu1712/bookmate-backend/internal/conversations"
	"github.com/Vasu1712/bookmate-backend/internal/middleware"
	"github.com/Vasu1712/bookmate-backend/internal/storage"
	"github.com/Vasu1712/bookmate-backend/internal/storage/badgerstore"
	"github.com/Vasu1712/bookmate-backend/internal/storage/memory"
	"github.com/Vasu1712/bookmate-backend/internal/storage/postgres"
	"github.com/Vasu1712/bookmate-backend/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bookmate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.Logger()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	var db *sqlx.DB
	if cfg.StoreDriver == config.StorePostgres || cfg.DirectoryDriver == config.DirectoryPostgres {
		db, err = postgres.Open(cfg.PostgresDSN, log)
		if err != nil {
			return err
		}
		closers = append(closers, db)
	}

	var store storage.MessageStore
	switch cfg.StoreDriver {
	case config.StorePostgres:
		store = postgres.NewMessageStore(db, log)
	case config.StoreBadger:
		bdb, err := badgerstore.Open(cfg.BadgerPath)
		if err != nil {
			return err
		}
		closers = append(closers, bdb)
		store = badgerstore.NewMessageStore(bdb, log)
	default:
		store = memory.NewMessageStore(log)
	}

	var directory storage.UserDirectory
	if cfg.DirectoryDriver == config.DirectoryPostgres {
		directory = postgres.NewUserDirectory(db)
	} else {
		directory = memory.NewUserDirectory(cfg.DirectoryUsers)
	}
	log.Info("Storage ready", "store", cfg.StoreDriver, "directory", cfg.DirectoryDriver)

	hub := ws.NewHub(ws.NewMemoryRegistry(), store, directory, log)
	if cfg.ValkeyAddr != "" {
		backplane, err := ws.NewValkeyBackplane(cfg.ValkeyAddr, cfg.ValkeyChannel, log)
		if err != nil {
			return err
		}
		defer backplane.Close()
		hub.WithBackplane(backplane)
		log.Info("Valkey backplane enabled", "addr", cfg.ValkeyAddr, "channel", cfg.ValkeyChannel)
	}

	handler := &messages.MessageHandler{
		Store:     store,
		Index:     conversations.NewIndex(store, directory, log),
		Directory: directory,
		Hub:       hub,
		Upgrader:  messages.NewUpgrader(cfg.CORSOrigin),
		Session:   cfg.Session(),
		Log:       log.With("component", "api"),
	}
	router := mux.NewRouter()
	router.Use(middleware.Logging(log))
	messages.RegisterMessageRoutes(router, handler, middleware.Authenticate([]byte(cfg.JWTSecret)))

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: middleware.CORS(cfg.CORSOrigin, log)(router),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return hub.RunBackplane(gctx) })
	g.Go(func() error {
		log.Info("Server started", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("Shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
