package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yanote/internal/auth"
	"yanote/internal/config"
	"yanote/internal/db"
	"yanote/internal/notes"
	"yanote/internal/obs"
	"yanote/internal/web"
)

const sessionCleanupInterval = time.Hour

func main() {
	addr, dbPath := config.ParseFlags()

	obs.Init()
	log := obs.Pkg("main")

	cfg, err := config.LoadConfig(addr, dbPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	cfg.PrintStartupSummary()

	auth.SetSecureCookies(cfg.RequireSecureCookies())

	database, err := db.Open(cfg.DatabasePath, cfg.DatabaseKey)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	userService := auth.NewUserService(database)
	sessionService := auth.NewSessionService(database, cfg.SessionDuration)
	notesService := notes.NewService(database)

	renderer, err := web.NewRenderer(cfg.TemplatesDir)
	if err != nil {
		log.Error("parse templates", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	handler := web.NewWebHandler(renderer, notesService, userService, sessionService, cfg.BaseURL)
	handler.RegisterRoutes(mux, auth.NewMiddleware(sessionService, userService))

	rootHandler := obs.RequestContextMiddleware(obs.AccessLogMiddleware(mux))

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expired sessions are swept in the background so the table does not
	// grow without bound.
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sessionService.Cleanup(ctx)
				if err != nil {
					log.Warn("session cleanup", "error", err)
					continue
				}
				if n > 0 {
					log.Info("session cleanup", "deleted", n)
				}
			}
		}
	}()

	go func() {
		log.Info("listening", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
