package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/colinloretz/railsconf-webhooks/config"
	"github.com/colinloretz/railsconf-webhooks/inbound"
	inboundredis "github.com/colinloretz/railsconf-webhooks/inbound/redis"
	"github.com/colinloretz/railsconf-webhooks/internal/http/chi"
	"github.com/colinloretz/railsconf-webhooks/metrics"
	"github.com/colinloretz/railsconf-webhooks/providers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TIMEOUT = 30 * time.Second

/* The entry point wires everything together: configuration, the provider
 * table, the Redis-backed repository, the ingestion service, and the HTTP
 * surface. Imports flow one direction only: the application layer imports
 * the business layer, which imports the storage layer.
 */

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	loader := providers.NewLoader()
	if err := loader.Load(cfg.ProvidersFile); err != nil {
		log.Fatal().Err(err).Msg("loading providers")
	}
	for _, p := range loader.List() {
		if p.Mode == providers.Accept {
			// Loud on purpose: an accept-all provider is unauthenticated
			log.Warn().Str("provider", p.Name).Msg("provider accepts unverified deliveries, development mode only")
		}
	}

	repo, err := inboundredis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	defer repo.Close(ctx)

	service := inbound.NewService(repo, log.Logger)

	collector := metrics.NewRedisCollector(repo.GetClient(), loader, repo)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		log.Fatal().Err(err).Msg("setting up metrics exporter")
	}
	defer exporter.Shutdown(context.Background())

	r := chi.Handlers(service, loader, cfg.MaxBodyBytes)
	r.Handle("/metrics", exporter.ServeHTTP())

	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	log.Info().Str("port", cfg.Port).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("serving")
	}
	if err := <-errShutdown; err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		log.Info().Msg("shutting down server")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing server close")
	default:
		errShutdown <- fmt.Errorf("forcing server close")
	}
}
