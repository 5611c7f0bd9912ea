package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"
)

// Service is the long-running mode: the task scheduler plus, when
// configured, the Telegram operator console.
type Service struct {
	logger    *slog.Logger
	scheduler *Scheduler
	tgBot     *tgbot.Bot
	startTask string
}

// NewService creates a service. tgBot may be nil. When startTask is not
// empty that task runs once right after the scheduler starts.
func NewService(logger *slog.Logger, scheduler *Scheduler, tgBot *tgbot.Bot, startTask string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:    logger.With("component", "service"),
		scheduler: scheduler,
		tgBot:     tgBot,
		startTask: startTask,
	}
}

// Run blocks until ctx is cancelled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Starting service...")

	g, gCtx := errgroup.WithContext(ctx)

	if s.tgBot != nil {
		g.Go(func() error {
			s.logger.Info("Starting Telegram operator console...")
			s.tgBot.Start(gCtx)
			s.logger.Info("Telegram operator console stopped.")

			if gCtx.Err() == nil {
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := s.scheduler.Start(); err != nil {
			s.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		if s.startTask != "" {
			if err := s.scheduler.RunNow(gCtx, s.startTask); err != nil {
				s.logger.Error("Initial task failed", "task_name", s.startTask, "error", err)
			}
		}

		<-gCtx.Done()
		s.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := s.scheduler.Stop(); err != nil {
			s.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Service stopped due to error", "error", err)
		return err
	}

	s.logger.Info("Service stopped gracefully.")
	return nil
}
