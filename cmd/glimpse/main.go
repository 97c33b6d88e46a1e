package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Glimpse/internal/adapters/http"
	"github.com/dkeye/Glimpse/internal/adapters/rest"
	"github.com/dkeye/Glimpse/internal/adapters/rtc"
	control "github.com/dkeye/Glimpse/internal/adapters/signal"
	"github.com/dkeye/Glimpse/internal/app/session"
	"github.com/dkeye/Glimpse/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("bad flags")
	}
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("glimpse stopped")
		os.Exit(1)
	}
	log.Info().Msg("glimpse exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	id, err := cfg.Identity()
	if err != nil {
		return err
	}
	rv := rest.NewClient(cfg.ServerURL, nil)

	if id.IsHost() && id.RoomID == "" {
		roomID, err := rv.CreateRoom(ctx, id.User)
		if err != nil {
			return err
		}
		id.RoomID = roomID
		log.Info().Str("room_id", string(roomID)).Msg("room created, share this id with the guest")
	}

	rtcCfg := rtc.Config{ICEServers: cfg.ICEServers(), IncludeLoopback: cfg.IncludeLoop}
	api, err := rtc.NewAPI(rtcCfg)
	if err != nil {
		return err
	}

	sink := &rtc.Sink{RecordDir: cfg.RecordDir}
	ch := control.NewChannel(control.ChannelOptions{
		ConnectTimeout: cfg.ConnectTimeout,
		ReadLimit:      cfg.ReadLimit,
	})
	sess, err := session.New(id, session.Deps{
		Channel:      ch,
		Rendezvous:   rv,
		NewTransport: rtc.Factory(api, rtcCfg, id),
		Media:        &rtc.Source{StreamID: string(id.User.ID), VideoFile: cfg.VideoFile},
		Sink:         sink,
	}, session.Options{PingPeriod: cfg.PingPeriod})
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer stop()
		if err := sess.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router.SetupRouter(gctx, cfg, sess),
	}
	g.Go(func() error {
		log.Info().Str("addr", cfg.Listen).Msg("control API started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("control API forced to shutdown")
		}
		return nil
	})

	// a finished attempt ends the process
	g.Go(func() error {
		states, unsubscribe := sess.Subscribe(16)
		defer unsubscribe()
		for {
			select {
			case <-gctx.Done():
				return nil
			case snap := <-states:
				log.Info().
					Str("peer", snap.Peer.String()).
					Str("channel", snap.Channel.String()).
					Msg("session state")
				if snap.Peer.Terminal() {
					sess.Close()
				}
			}
		}
	})

	g.Go(func() error {
		addr, err := config.SignalURL(cfg.WSURL, id.User)
		if err != nil {
			return err
		}
		if err := sess.Connect(gctx, addr); err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := sess.Join(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	err = g.Wait()
	packets, bytes := sink.Stats()
	log.Info().Int64("packets", packets).Int64("bytes", bytes).Msg("remote media received")
	return err
}
