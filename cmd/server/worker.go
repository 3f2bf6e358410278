package main

import (
	"context"

	"github.com/shiva/moveops/internal/email"
	"github.com/shiva/moveops/internal/tasks"
	"github.com/shiva/moveops/pkg/logger"
)

// runWorker delivers queued notification emails until ctx is cancelled.
func runWorker(ctx context.Context, in *infra) error {
	cfg := in.cfg
	sender := email.NewSender(cfg.Email, logger.New("email"))
	processor := tasks.NewProcessor(sender, cfg.Email.From, logger.New("tasks"))
	srv, mux := tasks.NewServer(in.redis, cfg.Worker, processor, logger.New("asynq"))

	if err := srv.Start(mux); err != nil {
		return err
	}
	in.log.Info().Int("concurrency", cfg.Worker.Concurrency).Str("queue", cfg.Worker.Queue).Msg("worker started")

	<-ctx.Done()
	in.log.Info().Msg("shutting down worker")
	srv.Shutdown()
	return nil
}
