package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"costlens/config"
	"costlens/internal/channel"
	"costlens/internal/dashboard"
	"costlens/internal/feed"
	"costlens/internal/state"
	"costlens/logger"
	"costlens/models"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Costlens.Name,
		"version": cfg.Costlens.Version,
	}).Info("starting costlens")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.DashboardName)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	channels := channel.NewChannels(
		cfg.Channels.EventBuffer,
		cfg.Channels.EmitBuffer,
	)

	go channels.StartMetricsReporting(ctx, 30*time.Second)

	supervisor := feed.NewSupervisor(cfg, channels)

	params := state.NewParamStore(models.Parameters{
		Exchange:   cfg.Parameters.Exchange,
		Symbol:     cfg.Parameters.Symbol,
		OrderType:  cfg.Parameters.OrderType,
		Quantity:   cfg.Parameters.Quantity,
		Volatility: cfg.Parameters.Volatility,
		FeeTier:    cfg.Parameters.FeeTier,
	}, supervisor.Conn())

	store := state.NewStore()
	reconciler := state.NewReconciler(channels, store, params)

	if err := reconciler.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start reconciler")
		os.Exit(1)
	}

	if err := supervisor.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start feed supervisor")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	dash := dashboard.NewServer(cfg.Dashboard, cfg.Form, store, params, log)
	if dash != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dash.Run(ctx, cfg.Costlens.Name); err != nil {
				log.WithError(err).Warn("dashboard server exited")
			}
		}()
	} else {
		log.WithComponent("main").Info("dashboard disabled")
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping feed supervisor")
	supervisor.Stop()

	log.Info("stopping reconciler")
	reconciler.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("costlens stopped")
}
