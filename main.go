package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"coachhub/onboard/analytics"
	"coachhub/onboard/database"
	"coachhub/onboard/guide"
	"coachhub/onboard/handlers"
	"coachhub/onboard/models"
	"coachhub/onboard/redirect"
	"coachhub/onboard/settings"
	"coachhub/onboard/store"
)

const (
	sessionLinger   = time.Minute
	sessionMaxAge   = 30 * time.Minute
	sweepInterval   = 5 * time.Minute
	analyticsWrites = 10 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// --- PostgreSQL: per-visitor onboarding state, push subscriptions ---
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()
	if err := dbClient.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare PostgreSQL schema: %v", err)
	}

	// --- ClickHouse: scan analytics ---
	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse database: %v", err)
	}
	defer chClient.Close()
	if err := chClient.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare ClickHouse schema: %v", err)
	}

	defaults := models.DefaultGuideConfiguration()
	if path := os.Getenv("GUIDE_DEFAULTS_FILE"); path != "" {
		defaults, err = settings.LoadDefaults(path)
		if err != nil {
			log.Fatalf("Failed to load guide defaults: %v", err)
		}
	}
	settingsURL := os.Getenv("SETTINGS_URL")
	if settingsURL == "" {
		log.Println("SETTINGS_URL not set; guide settings come from built-in defaults only.")
	}

	visitorState := store.NewVisitorStateStore(dbClient.DB)
	pushStore := store.NewPushStore(dbClient.DB)
	analyticsStore := store.NewAnalyticsStore(chClient)
	dispatcher := analytics.NewDispatcher(analyticsStore, analyticsWrites)

	sessions := guide.NewRegistry(sessionLinger)
	redirector := redirect.New(redirect.Config{
		Settings:  settings.NewClient(settingsURL, defaults),
		Defaults:  defaults,
		State:     visitorState,
		Analytics: dispatcher,
		Sessions:  sessions,
	})

	promptTimeout := handlers.DefaultPromptTimeout
	if v := os.Getenv("INSTALL_PROMPT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid INSTALL_PROMPT_TIMEOUT %q: %v", v, err)
		}
		promptTimeout = d
	}

	r := gin.Default()
	handlers.RegisterRoutes(r, handlers.Set{
		Entry: handlers.NewEntryHandlers(redirector, os.Getenv("GUIDE_SHELL_URL")),
		Guide: handlers.NewGuideHandlers(sessions, promptTimeout),
		Scans: handlers.NewScanHandlers(analyticsStore, dispatcher),
		Push:  handlers.NewPushHandlers(pushStore, os.Getenv("VAPID_PUBLIC_KEY")),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
		// POST /install holds the request open while the native prompt is up
		WriteTimeout: promptTimeout + 10*time.Second,
	}

	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessions.Sweep(sessionMaxAge)
			case <-stopSweep:
				return
			}
		}
	}()

	go func() {
		log.Printf("Onboarding server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Onboarding server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	close(stopSweep)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	sessions.Shutdown()
	dispatcher.Close()

	log.Println("Server exiting.")
}
