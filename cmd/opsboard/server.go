package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"opsboard/internal/api"
	"opsboard/internal/config"
	"opsboard/internal/data"
	"opsboard/internal/logger"
	"opsboard/internal/service"
	"opsboard/internal/session"
)

const shutdownTimeout = 5 * time.Second

// runServer serves the dashboard until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context) error {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w (check .env, OPSBOARD_CONFIG or OPSBOARD_KEY)", err)
	}

	// 2. Initialize Logger
	logFile, err := logger.Init(logger.Options{Dir: cfg.LogDir, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logFile.Close()
	logger.Info.Println("Starting opsboard...")

	// 3. Initialize Store
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error.Printf("Failed to init store: %v", err)
		return err
	}
	defer store.Close()
	logger.Info.Printf("Record store ready (%s)", store.Dialect().Name)

	// 4. Initialize Repos and Services
	incidents := service.NewIncidentService(data.NewIncidentRepo(store))
	datasets := service.NewDatasetService(data.NewDatasetRepo(store))
	tickets := service.NewTicketService(data.NewTicketRepo(store))
	svcs := api.Services{
		Auth:      service.NewAuthService(data.NewAccountRepo(store), service.NewCredentialManager(cfg.BcryptCost)),
		Incidents: incidents,
		Datasets:  datasets,
		Tickets:   tickets,
		Overview:  service.NewOverviewService(incidents, datasets, tickets),
	}

	sessions := session.NewManager(cfg.SessionKey, session.Options{
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.SecureCookies,
	})

	// Rate Limiters
	loginLimiter := api.NewRateLimiter(cfg.LoginRatePerMin, cfg.LoginBurst)
	defer loginLimiter.Close()
	apiLimiter := api.NewRateLimiter(cfg.APIRatePerMin, cfg.APIBurst)
	defer apiLimiter.Close()

	handler := api.NewHandler(svcs, sessions, store, loginLimiter, apiLimiter)
	handler.TrustProxy = cfg.TrustProxy
	if cfg.TrustProxy {
		logger.Info.Println("Trusting X-Forwarded-For / X-Real-IP for client addresses")
	}

	// 5. Start Server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info.Printf("Server listening on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error.Printf("Server startup failed: %v", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("Server shutdown error: %v", err)
		return err
	}
	logger.Info.Println("Server stopped")
	return nil
}
