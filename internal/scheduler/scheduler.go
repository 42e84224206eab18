// Package scheduler periodically checks for surveys whose scheduled send
// time has arrived and broadcasts them.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"surveybot/internal/storage"
)

// Broadcaster sends a survey to all registered groups.
type Broadcaster interface {
	BroadcastSurvey(ctx context.Context, surveyID int64) error
}

const checkInterval = time.Minute

type Scheduler struct {
	db        storage.Storage
	broadcast Broadcaster
	logger    *zap.Logger
	cron      gocron.Scheduler
}

func New(db storage.Storage, broadcast Broadcaster, logger *zap.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{db: db, broadcast: broadcast, logger: logger, cron: cron}, nil
}

// Start begins the periodic due-survey check.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(checkInterval),
		gocron.NewTask(func() { s.RunDue(ctx) }),
	)
	if err != nil {
		return fmt.Errorf("failed to register scheduled-survey job: %w", err)
	}
	s.cron.Start()
	return nil
}

// RunDue broadcasts every survey whose scheduled time has passed and
// clears its schedule so it fires once. A failed broadcast keeps the
// schedule so the next tick retries it.
func (s *Scheduler) RunDue(ctx context.Context) {
	due, err := s.db.ListDueScheduled(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to list due surveys", zap.Error(err))
		return
	}
	for _, survey := range due {
		if err := s.broadcast.BroadcastSurvey(ctx, survey.ID); err != nil {
			s.logger.Error("Scheduled broadcast failed",
				zap.String("survey", survey.Name), zap.Error(err))
			continue
		}
		if err := s.db.ScheduleSurvey(ctx, survey.ID, nil); err != nil {
			s.logger.Error("Failed to clear survey schedule",
				zap.String("survey", survey.Name), zap.Error(err))
			continue
		}
		s.logger.Info("Scheduled survey sent", zap.String("survey", survey.Name))
	}
}

func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}
