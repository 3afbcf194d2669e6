package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/colinloretz/railsconf-webhooks/config"
	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/colinloretz/railsconf-webhooks/inbound/processors"
	inboundredis "github.com/colinloretz/railsconf-webhooks/inbound/redis"
	"github.com/colinloretz/railsconf-webhooks/providers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

/* Worker binary: consumes processing tasks off the Redis streams, one
 * consumer goroutine per configured provider. Decoupled from the HTTP
 * request path, so processors may block on external services without
 * delaying sender acknowledgments.
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

	repo, err := inboundredis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	repo = repo.WithConsumer(cfg.WorkerID)
	defer repo.Close(context.Background())

	procs := map[string]inbound.Processor{
		"movies": processors.Movies{Log: log.Logger},
		"stripe": processors.Stripe{Log: log.Logger},
	}

	worker := inbound.NewWorker(cfg.WorkerID, repo, procs, log.Logger)
	worker.Heartbeat = repo

	var wg sync.WaitGroup
	for _, provider := range loader.List() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			worker.Run(ctx, name)
		}(provider.Name)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down workers")
	wg.Wait()
}
