package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"synapse/internal/config"
	"synapse/internal/coordinator"
	"synapse/internal/logging"
	"synapse/internal/negotiation"
	"synapse/internal/policy"
	"synapse/internal/reasoner"
	"synapse/internal/store"
	httptransport "synapse/internal/transport/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		panic(err)
	}
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completer, err := reasoner.New(ctx, cfg.Reasoner)
	if err != nil {
		log.Fatal().Err(err).Msg("reasoner init failed")
	}
	if completer == nil {
		log.Warn().Str("provider", cfg.Reasoner.Provider).Msg("no reasoner configured, LLM agents use the rule-based policy")
	}
	policies := func(role negotiation.Role, agent negotiation.AgentConfig) negotiation.Policy {
		return policy.Select(role, agent, completer)
	}

	var sink coordinator.Sink = coordinator.LogSink{}
	opts := coordinator.Options{
		MaxSessions: cfg.Server.MaxSessions,
		TurnTimeout: cfg.Negotiation.TurnTimeout,
		Retention:   cfg.Server.SessionRetention,
	}
	if cfg.Server.PostgresDSN != "" {
		st, err := store.New(cfg.Server.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		if err := st.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate failed")
		}
		sink = st
		opts.History = st
		log.Info().Msg("chat log store enabled")
	}

	coord := coordinator.New(policies, sink, opts)
	coord.StartJanitor(ctx, cfg.Server.JanitorInterval)
	r := httptransport.NewRouter(coord, cfg.Negotiation)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
