// Package jobs runs the scheduled background work of the service. Currently
// that is the daily recurring-entry generation pass.
package jobs

import (
    "context"
    "log/slog"
    "time"

    "github.com/jasonlvhit/gocron"

    "github.com/finbooks/ledger/internal/service/recurring"
)

// RecurringJob drives the recurring generation pass on a daily schedule.
// The pass itself is idempotent, so an overlapping manual run is harmless.
type RecurringJob struct {
    svc recurring.Service
    log *slog.Logger
    at  string
}

// NewRecurringJob builds the job. at is a clock time like "02:00:00".
func NewRecurringJob(svc recurring.Service, log *slog.Logger, at string) *RecurringJob {
    return &RecurringJob{svc: svc, log: log, at: at}
}

// Process blocks, running the generation pass every day at the configured
// time. Call it from its own goroutine.
func (j *RecurringJob) Process() {
    s := gocron.NewScheduler()
    s.Every(1).Day().At(j.at).Do(j.run)
    <-s.Start()
}

func (j *RecurringJob) run() {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
    defer cancel()
    res, err := j.svc.RunGenerationPass(ctx, time.Now().UTC())
    if err != nil {
        j.log.Error("recurring generation pass failed", "err", err)
        return
    }
    j.log.Info("recurring generation pass complete",
        "generated", res.Generated,
        "skipped", res.Skipped,
        "errors", len(res.Errors),
    )
    for _, e := range res.Errors {
        j.log.Warn("recurring template failed", "template_id", e.TemplateID, "err", e.Err)
    }
}
