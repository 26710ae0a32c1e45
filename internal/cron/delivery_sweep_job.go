package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

const deliverySweepJobName = "delivery_sweep"

// SessionReloader re-initialises every live order manager from storage.
type SessionReloader interface {
	ReloadAll(ctx context.Context) (int, error)
}

type DeliverySweepJobParams struct {
	Logger   *logger.Logger
	Sessions SessionReloader
}

// DeliverySweepJob re-arms delivery timers that are missing for orders still out for
// delivery and drops timers for orders that moved on.
type DeliverySweepJob struct {
	logg     *logger.Logger
	sessions SessionReloader
}

func NewDeliverySweepJob(params DeliverySweepJobParams) (*DeliverySweepJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session reloader required")
	}
	return &DeliverySweepJob{logg: params.Logger, sessions: params.Sessions}, nil
}

func (j *DeliverySweepJob) Name() string { return deliverySweepJobName }

func (j *DeliverySweepJob) Run(ctx context.Context) error {
	count, err := j.sessions.ReloadAll(ctx)
	j.logg.Debug(j.logg.WithField(ctx, "sessions", count), "delivery sweep reloaded sessions")
	if err != nil {
		return fmt.Errorf("reload sessions: %w", err)
	}
	return nil
}
