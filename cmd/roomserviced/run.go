package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"roomservice-agent/config"
	"roomservice-agent/internal/api"
	"roomservice-agent/internal/backend"
	"roomservice-agent/internal/db"
	"roomservice-agent/internal/keyring"
	"roomservice-agent/internal/kiosk"
	"roomservice-agent/internal/logger"
	"roomservice-agent/internal/notification"
	"roomservice-agent/internal/staff"
	"roomservice-agent/internal/store"
)

type RunCmd struct{}

func (c *RunCmd) Run(cliCtx *Context) error {
	cfg, err := config.Load(cliCtx.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", cliCtx.ConfigPath, err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Log.Debug, File: cfg.Log.File}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("configuration loaded", "path", cliCtx.ConfigPath)

	if !cfg.Kiosk.Enabled && !cfg.Staff.Enabled {
		return errors.New("neither the kiosk nor the staff role is enabled")
	}
	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	var token string
	if cfg.Staff.Enabled {
		if token, err = keyring.ResolveStaffToken(cfg.Staff.Token); err != nil {
			return fmt.Errorf("staff role needs a token, set staff.token or run `roomserviced token set`: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(cfg.Backend.APIBaseURL, cfg.Backend.Timeout)
	var wg sync.WaitGroup

	var agent *kiosk.Agent
	if cfg.Kiosk.Enabled {
		agent = kiosk.NewAgent(cfg, client, appStore)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := agent.Run(ctx); err != nil {
				logger.Error("kiosk role stopped", "err", err)
			}
		}()
		logger.Info("kiosk role started", "device", cfg.Kiosk.DeviceUID)
	}

	var dashboard *staff.Dashboard
	if cfg.Staff.Enabled {
		var notifier staff.Notifier
		if webpushOptions != nil {
			pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
			pool.Start(ctx)
			notifier = pool
		} else {
			logger.Warn("VAPID keys are not configured, push notifications are disabled")
		}

		dashboard = staff.NewDashboard(cfg, token, client.WithToken(token), notifier)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dashboard.Run(ctx); err != nil {
				logger.Error("staff role stopped", "err", err)
			}
		}()
		logger.Info("staff role started")
	}

	handler := api.NewHandler(appStore, webpushOptions, agent, dashboard)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(cfg, handler),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping services")
	case err := <-serverErr:
		logger.Error("HTTP server failed", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "err", err)
	}

	wg.Wait()
	logger.Info("agent stopped")
	return nil
}
