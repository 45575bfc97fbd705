package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"adops-backend/internal/common/logging"
)

const pollBatchSize = 100

// startPoller schedules the periodic pass that reconciles running
// pipeline jobs with the orchestrator.
func (app *App) startPoller() error {
	app.cron = cron.New()

	_, err := app.cron.AddFunc(app.Config.PipelinePollCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		failed, err := app.Pipelines.PollRunning(ctx, pollBatchSize)
		if err != nil {
			app.Logger.Error("pipeline poll pass failed", err)
			return
		}
		if failed > 0 {
			app.Logger.Warn("pipeline poll pass had failures",
				logging.Field{Key: "failed", Value: failed})
		}
	})
	if err != nil {
		return err
	}

	app.cron.Start()
	app.Logger.Info("pipeline status poller started",
		logging.Field{Key: "schedule", Value: app.Config.PipelinePollCron})
	return nil
}
