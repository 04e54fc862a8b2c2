// Package reaper implements the Stale-Job Reaper (spec §4.8): a periodic
// sweep that fails Jobs stuck in a non-terminal state past a timeout.
package reaper

import (
	"context"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/models"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"
)

const staleErrorMessage = "job exceeded the processing timeout and was marked failed by the reaper"

var nonTerminalStatuses = []models.JobStatus{
	models.StatusUploading,
	models.StatusAssembling,
	models.StatusTranscribing,
	models.StatusDiarizing,
}

// Reaper periodically fails Jobs that have been stuck in a non-terminal
// status longer than Timeout.
type Reaper struct {
	jobs     repository.JobRepository
	Interval time.Duration
	Timeout  time.Duration
}

func New(jobs repository.JobRepository, interval, timeout time.Duration) *Reaper {
	return &Reaper{jobs: jobs, Interval: interval, Timeout: timeout}
}

// Run blocks, sweeping every Interval until ctx is cancelled. Publishes no
// updates (spec §4.8: "clients will have reconnected if still interested").
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// SweepOnce runs a single sweep immediately, for the meetingctl admin CLI.
func (r *Reaper) SweepOnce(ctx context.Context) {
	r.sweep(ctx)
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.Timeout)
	stale, err := r.jobs.ListStale(ctx, nonTerminalStatuses, cutoff)
	if err != nil {
		logger.Error("reaper: list stale jobs failed", "error", err.Error())
		return
	}

	for _, job := range stale {
		if err := r.jobs.MarkFailed(ctx, job.ID, staleErrorMessage); err != nil {
			logger.Error("reaper: mark failed failed", "job_id", job.ID, "error", err.Error())
			continue
		}
		logger.Info("reaper: marked stale job failed", "job_id", job.ID, "request_id", job.RequestID, "status", job.Status)
	}
}
