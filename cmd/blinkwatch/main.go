package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/blinkwatch/blinkwatch/internal/alerts"
	"github.com/blinkwatch/blinkwatch/internal/api"
	"github.com/blinkwatch/blinkwatch/internal/auth"
	"github.com/blinkwatch/blinkwatch/internal/config"
	"github.com/blinkwatch/blinkwatch/internal/health"
	"github.com/blinkwatch/blinkwatch/internal/metrics"
	"github.com/blinkwatch/blinkwatch/internal/monitor"
	"github.com/blinkwatch/blinkwatch/internal/session"
	"github.com/blinkwatch/blinkwatch/internal/source"
	"github.com/blinkwatch/blinkwatch/internal/store"
	"github.com/blinkwatch/blinkwatch/internal/ws"
	"github.com/blinkwatch/blinkwatch/pkg/logger"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file; empty uses the built-in desktop profile")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	sourcePath := flag.String("source", "", "override source.path (JSONL frames, - for stdin)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *sourcePath != "" {
		cfg.Source.Path = *sourcePath
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	slog.Info("blinkwatch starting",
		"config", *configPath,
		"profile", cfg.Profile,
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"source", cfg.Source.Path,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctl, err := session.New(cfg.Session(), session.WithLogger(log))
	if err != nil {
		slog.Error("invalid detector configuration", "err", err)
		os.Exit(1)
	}

	// Alert history with background TTL eviction.
	history := store.New(cfg.Alerts.HistoryTTL)
	go history.Run(ctx)

	notifier := alerts.NewNotifier(cfg.Alerts.Webhooks, history, alerts.WithLogger(log))
	ready := health.New()

	mon := monitor.New(ctl,
		monitor.WithLogger(log),
		monitor.WithObserver(notifier),
		monitor.WithObserver(ready),
	)
	met := metrics.New(mon.Stats)
	hub := ws.New(mon, cfg.Server.BroadcastInterval)
	mon.Subscribe(met)
	mon.Subscribe(hub)

	go hub.Run(ctx)

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, cfg, func(ch config.Change) {
				if ch.Has(config.KeyLowBlinkThreshold) {
					applied := mon.SetLowBlinkThreshold(ch.Config.Alerts.LowBlinkThreshold)
					log.Info("config: low blink threshold applied", "value", applied)
				}
				if keys := ch.RestartRequired(); len(keys) > 0 {
					log.Warn("config: changed settings take effect after restart", "keys", keys)
				}
			})
			if err != nil {
				log.Error("config watcher stopped", "err", err)
			}
		}()
	}

	guard := auth.New(cfg.Server.Auth)
	if cfg.Server.Auth.Mode == auth.ModeAPIKey && !guard.Enabled() {
		slog.Warn("auth mode is apikey but no key is set; control endpoints are open",
			"key_env", cfg.Server.Auth.KeyEnv)
	}

	var grpcSrv *grpc.Server
	if cfg.Server.GRPCPort != 0 {
		grpcSrv = grpc.NewServer(
			grpc.UnaryInterceptor(guard.UnaryInterceptor()),
			grpc.StreamInterceptor(guard.StreamInterceptor()),
		)
		ready.Register(grpcSrv)

		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
			os.Exit(1)
		}
		go func() {
			slog.Info("gRPC health listening", "port", cfg.Server.GRPCPort)
			if err := grpcSrv.Serve(lis); err != nil {
				slog.Error("gRPC server stopped", "err", err)
			}
		}()
	}

	var httpSrv *http.Server
	if cfg.Server.HTTPPort != 0 {
		r := chi.NewRouter()
		// The websocket upgrade needs the raw ResponseWriter, so it sits
		// outside the logging and metrics middleware.
		r.Handle("/ws/stream", hub)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestID)
			r.Use(logger.RequestLogger(log))
			r.Use(met.RequestMiddleware)
			r.Handle("/metrics", met.Handler())
			r.Mount("/api/v1", api.New(mon, history, guard.Middleware, log, api.WithActiveAlert(notifier)).Routes())
		})

		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server stopped", "err", err)
				cancel()
			}
		}()
	}

	if cfg.Source.Path != "" {
		go runSource(ctx, cfg.Source.Path, mon)
	}

	<-ctx.Done()
	slog.Info("blinkwatch shutting down")

	ready.Shutdown()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if httpSrv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			slog.Error("HTTP shutdown error", "err", err)
		}
	}
	notifier.Wait()

	sum := mon.Summary()
	slog.Info("session summary",
		"session_id", sum.SessionID,
		"total_blinks", sum.TotalBlinks,
		"rate", sum.Rate,
		"baseline", sum.Calibration.Baseline,
		"ear_threshold", sum.Threshold,
	)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(config.ProfileDesktop)
	}
	return config.Load(path)
}

// runSource feeds the JSONL stream at path into mon until EOF or shutdown.
func runSource(ctx context.Context, path string, mon *monitor.Monitor) {
	rc, err := source.Open(path)
	if err != nil {
		slog.Error("frame source unavailable", "err", err)
		return
	}
	defer rc.Close()

	slog.Info("reading frames", "source", path)
	st, err := source.Run(ctx, rc, func(f types.FrameInput) error {
		_, err := mon.Submit(f)
		return err
	})
	if err != nil {
		slog.Error("frame source failed", "err", err)
	}
	slog.Info("frame source finished",
		"frames", st.Frames,
		"malformed", st.Malformed,
		"rejected", st.Rejected,
	)
}
