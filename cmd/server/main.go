package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Huddle/internal/adapters/http"
	"github.com/dkeye/Huddle/internal/adapters/rtc"
	signaling "github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
)

var errWorkerDied = errors.New("media worker died")

func newRootCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)
	cmd := &cobra.Command{
		Use:   "huddle",
		Short: "Multi-party video call signaling server with an embedded SFU",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, port)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides config")
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg == nil || cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if cfg == nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(cfg.Level())
}

func run(ctx context.Context, configPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}
	setupLogger(cfg)

	worker, err := rtc.NewWorker(rtc.Config{
		ListenIP:    cfg.RTC.ListenIP,
		AnnouncedIP: cfg.RTC.AnnouncedIP,
		MinPort:     cfg.RTC.MinPort,
		MaxPort:     cfg.RTC.MaxPort,
		ICEServers:  cfg.RTC.ICEServers,
	})
	if err != nil {
		return err
	}
	defer worker.Close()

	adminPolicy, err := domain.ParseAdminPolicy(cfg.AdminPolicy)
	if err != nil {
		return err
	}
	var policy app.Policy = app.SimplePolicy{}
	if cfg.SlowPeerPolicy == config.SlowPeerDrop {
		policy = app.LenientPolicy{}
	}

	rooms := app.NewRoomRegistry(worker, cfg.Codecs(), cfg.EngineTimeout)
	o := &orch.Orchestrator{
		Registry:      app.NewRegistry(),
		Rooms:         rooms,
		Admission:     app.NewAdmissionController(adminPolicy),
		Policy:        policy,
		EngineTimeout: cfg.EngineTimeout,
		DefaultName:   cfg.DefaultName,
	}
	ctrl := signaling.NewSignalWSController(o,
		signaling.NewJoinRateLimiter(cfg.JoinRate.Limit, cfg.JoinRate.Interval),
		signaling.Options{
			ReadLimit:     cfg.ReadLimit,
			PingPeriod:    cfg.PingPeriod,
			PongWait:      cfg.PongWait,
			WriteWait:     cfg.WriteWait,
			SendQueue:     cfg.SendQueue,
			AllowedOrigin: cfg.CORSOrigin,
		})

	g, gctx := errgroup.WithContext(ctx)
	r := router.SetupRouter(gctx, cfg, rooms, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.WithCORS(cfg, r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case err := <-worker.Died():
			return fmt.Errorf("%w: %v", errWorkerDied, err)
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// logger is usable before the config is read
	setupLogger(nil)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("huddle exited")
	}
}
